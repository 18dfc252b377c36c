package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/opd-ai/rtcall/meeting"
)

// MeetingClient drives the meeting endpoints under /api/v1/meetings.
type MeetingClient struct {
	http *resty.Client
}

// NewMeetingClient creates a meeting lifecycle client. A zero timeout
// means DefaultTimeout.
func NewMeetingClient(baseURL, token string, timeout time.Duration) *MeetingClient {
	return &MeetingClient{http: newClient(baseURL, token, timeout)}
}

// CanJoin checks whether identity may enter without admission.
func (c *MeetingClient) CanJoin(ctx context.Context, code, identity string) (bool, error) {
	var result struct {
		Allowed bool `json:"allowed"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("identity", identity).
		SetResult(&result).
		Get(fmt.Sprintf("/api/v1/meetings/%s/permissions", code))
	if err := checkResponse(resp, err); err != nil {
		return false, err
	}
	return result.Allowed, nil
}

// Join registers identity as a participant.
func (c *MeetingClient) Join(ctx context.Context, code, identity string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"identity": identity}).
		Post(fmt.Sprintf("/api/v1/meetings/%s/participants/add", code))
	return checkResponse(resp, err)
}

// Leave removes identity from the meeting.
func (c *MeetingClient) Leave(ctx context.Context, code, identity string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"identity": identity}).
		Post(fmt.Sprintf("/api/v1/meetings/%s/participants/remove", code))
	return checkResponse(resp, err)
}

// Participants returns the current roster.
func (c *MeetingClient) Participants(ctx context.Context, code string) ([]string, error) {
	var roster []string
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&roster).
		Get(fmt.Sprintf("/api/v1/meetings/%s/participants", code))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return roster, nil
}

// WaitingUsers returns identities in the waiting room.
func (c *MeetingClient) WaitingUsers(ctx context.Context, code string) ([]string, error) {
	var waiting []string
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&waiting).
		Get(fmt.Sprintf("/api/v1/meetings/%s/waiting-users", code))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return waiting, nil
}

// Admit lets a waiting identity in.
func (c *MeetingClient) Admit(ctx context.Context, code, identity string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"identity": identity}).
		Post(fmt.Sprintf("/api/v1/meetings/%s/admit", code))
	return checkResponse(resp, err)
}

var _ meeting.RosterAPI = (*MeetingClient)(nil)
