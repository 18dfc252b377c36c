// Package rtcall is a client library for peer-to-peer audio/video
// calling: 1:1 calls with ring/accept/reject semantics and N-party
// meetings over a full mesh, coordinated through a topic-based
// signaling broker and a REST lifecycle API.
//
// A Client owns one authenticated signaling connection and hands out
// per-call and per-meeting orchestrators:
//
//	client, err := rtcall.New(opts)
//	if err != nil { ... }
//	if err := client.Connect(ctx); err != nil { ... }
//	defer client.Close()
//
//	c, err := client.NewCall()
//	if err != nil { ... }
//	callID, err := c.Start(ctx, "bob@example.com")
package rtcall

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtcall/api"
	"github.com/opd-ai/rtcall/call"
	"github.com/opd-ai/rtcall/media"
	"github.com/opd-ai/rtcall/meeting"
	"github.com/opd-ai/rtcall/signal"
)

// ErrInvalidOptions indicates New was given unusable options.
var ErrInvalidOptions = errors.New("invalid client options")

// Client is the top-level entry point. It owns the signaling transport
// and the envelope router shared by every call and meeting, plus the
// REST clients for both lifecycle surfaces.
type Client struct {
	opts      *Options
	transport signal.Transport
	router    *signal.Router
	calls     *api.CallClient
	meetings  *api.MeetingClient

	mu          sync.Mutex
	signalSub   *signal.Subscription
	incomingSub *signal.Subscription

	cbMu       sync.RWMutex
	incomingCb func(callID, caller string)
}

// New creates a disconnected client from the given options.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: options are required", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		opts:      opts,
		transport: signal.NewWebsocketTransport(opts.SignalURL),
		router:    signal.NewRouter(opts.Identity),
		calls:     api.NewCallClient(opts.APIURL, opts.Token, opts.RequestTimeout),
		meetings:  api.NewMeetingClient(opts.APIURL, opts.Token, opts.RequestTimeout),
	}, nil
}

// Connect authenticates to the signaling broker and subscribes to the
// participant's signaling and incoming-call topics. The transport
// replays both subscriptions itself after any reconnect.
func (c *Client) Connect(ctx context.Context) error {
	creds := signal.Credentials{Identity: c.opts.Identity, Token: c.opts.Token}
	if err := c.transport.Connect(ctx, creds); err != nil {
		return fmt.Errorf("failed to connect signaling transport: %w", err)
	}

	signalSub, err := c.transport.Subscribe(signal.SignalTopic(c.opts.Identity), c.router.HandlePayload)
	if err != nil {
		c.transport.Disconnect()
		return fmt.Errorf("failed to subscribe to signaling topic: %w", err)
	}
	incomingSub, err := c.transport.Subscribe(signal.IncomingCallTopic(c.opts.Identity), c.handleIncoming)
	if err != nil {
		c.transport.Unsubscribe(signalSub)
		c.transport.Disconnect()
		return fmt.Errorf("failed to subscribe to incoming-call topic: %w", err)
	}

	c.mu.Lock()
	c.signalSub = signalSub
	c.incomingSub = incomingSub
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"identity": c.opts.Identity,
	}).Info("Signaling connected")
	return nil
}

// OnIncomingCall registers the observer for announced inbound calls.
// Answer by creating an orchestrator with NewCall and attaching the
// announced call ID.
func (c *Client) OnIncomingCall(fn func(callID, caller string)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.incomingCb = fn
}

// NewCall creates an orchestrator for one call, with fresh local
// tracks. Use Start to dial or AttachIncoming to take an announced
// inbound call.
func (c *Client) NewCall() (*call.Orchestrator, error) {
	tracks, err := media.NewTrackSet()
	if err != nil {
		return nil, fmt.Errorf("failed to create local tracks: %w", err)
	}
	cfg := call.Config{
		RingTimeout: c.opts.RingTimeout,
		RTC:         c.opts.rtcConfig(),
	}
	return call.NewOrchestrator(c.opts.Identity, cfg, c.transport, c.router, c.calls, tracks, nil), nil
}

// NewMeeting creates a mesh orchestrator for one meeting, with fresh
// local tracks.
func (c *Client) NewMeeting() (*meeting.Orchestrator, error) {
	tracks, err := media.NewTrackSet()
	if err != nil {
		return nil, fmt.Errorf("failed to create local tracks: %w", err)
	}
	return meeting.NewOrchestrator(c.opts.Identity, c.opts.rtcConfig(), c.transport, c.router, c.meetings, tracks, nil), nil
}

// CallAPI exposes the call lifecycle client, for call detail lookups
// outside an orchestrator.
func (c *Client) CallAPI() *api.CallClient {
	return c.calls
}

// MeetingAPI exposes the meeting client, for waiting-room
// administration.
func (c *Client) MeetingAPI() *api.MeetingClient {
	return c.meetings
}

// Close releases the topic subscriptions and disconnects. Established
// peer links are not touched; end calls and leave meetings first for a
// clean shutdown.
func (c *Client) Close() error {
	c.mu.Lock()
	signalSub, incomingSub := c.signalSub, c.incomingSub
	c.signalSub, c.incomingSub = nil, nil
	c.mu.Unlock()

	if signalSub != nil {
		c.transport.Unsubscribe(signalSub)
	}
	if incomingSub != nil {
		c.transport.Unsubscribe(incomingSub)
	}
	if err := c.transport.Disconnect(); err != nil && !errors.Is(err, signal.ErrNotConnected) {
		return fmt.Errorf("failed to disconnect signaling transport: %w", err)
	}
	return nil
}

// handleIncoming surfaces incoming-call announcements.
func (c *Client) handleIncoming(topic string, payload []byte) {
	ev, err := signal.ParseCallEvent(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleIncoming",
			"topic":    topic,
			"error":    err.Error(),
		}).Warn("Dropping unparseable incoming-call announcement")
		return
	}
	if ev.Type != signal.CallEventIncoming {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "handleIncoming",
		"call_id":  ev.CallID,
		"caller":   ev.From,
	}).Info("Incoming call")

	c.cbMu.RLock()
	cb := c.incomingCb
	c.cbMu.RUnlock()
	if cb != nil {
		cb(ev.CallID, ev.From)
	}
}
