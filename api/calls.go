package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/opd-ai/rtcall/call"
)

// CallClient drives the call lifecycle endpoints under /api/v1/calls.
type CallClient struct {
	http *resty.Client
}

// NewCallClient creates a call lifecycle client. A zero timeout means
// DefaultTimeout.
func NewCallClient(baseURL, token string, timeout time.Duration) *CallClient {
	return &CallClient{http: newClient(baseURL, token, timeout)}
}

// Initiate registers a new call.
func (c *CallClient) Initiate(ctx context.Context, callID, caller, receiver string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"callId":   callID,
			"caller":   caller,
			"receiver": receiver,
		}).
		Post("/api/v1/calls/initiate")
	return checkResponse(resp, err)
}

// Ringing acknowledges that the receiver's device is ringing.
func (c *CallClient) Ringing(ctx context.Context, callID string) error {
	return c.postAction(ctx, callID, "ringing")
}

// Accept records the receiver's acceptance.
func (c *CallClient) Accept(ctx context.Context, callID string) error {
	return c.postAction(ctx, callID, "accept")
}

// Reject records the receiver's rejection.
func (c *CallClient) Reject(ctx context.Context, callID string) error {
	return c.postAction(ctx, callID, "reject")
}

// End records a hang-up.
func (c *CallClient) End(ctx context.Context, callID string) error {
	return c.postAction(ctx, callID, "end")
}

// ReceiverReady records that the receiver can take the offer.
func (c *CallClient) ReceiverReady(ctx context.Context, callID string) error {
	return c.postAction(ctx, callID, "receiver/ready")
}

// SetCamera records a camera toggle.
func (c *CallClient) SetCamera(ctx context.Context, callID string, on bool) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]bool{"enabled": on}).
		Put(fmt.Sprintf("/api/v1/calls/%s/camera", callID))
	return checkResponse(resp, err)
}

// SetMicrophone records a microphone toggle.
func (c *CallClient) SetMicrophone(ctx context.Context, callID string, on bool) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]bool{"enabled": on}).
		Put(fmt.Sprintf("/api/v1/calls/%s/mic", callID))
	return checkResponse(resp, err)
}

// SendReaction records an emoji reaction.
func (c *CallClient) SendReaction(ctx context.Context, callID, emoji string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"emoji": emoji}).
		Post(fmt.Sprintf("/api/v1/calls/%s/reaction", callID))
	return checkResponse(resp, err)
}

// SetHandRaised records a hand raise or lower.
func (c *CallClient) SetHandRaised(ctx context.Context, callID string, raised bool) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]bool{"raised": raised}).
		Put(fmt.Sprintf("/api/v1/calls/%s/hand", callID))
	return checkResponse(resp, err)
}

// FetchCall retrieves the call record.
func (c *CallClient) FetchCall(ctx context.Context, callID string) (*call.Details, error) {
	var details call.Details
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&details).
		Get(fmt.Sprintf("/api/v1/calls/%s", callID))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *CallClient) postAction(ctx context.Context, callID, action string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/api/v1/calls/%s/%s", callID, action))
	return checkResponse(resp, err)
}

var _ call.LifecycleAPI = (*CallClient)(nil)
