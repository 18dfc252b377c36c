package call

import "context"

// Details is the server-side record of a call, fetched by the
// receiver to resolve the caller before answering.
type Details struct {
	CallID   string `json:"callId"`
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
	Status   string `json:"status"`
}

// LifecycleAPI is the REST surface the orchestrator drives. The api
// package provides the production implementation; tests substitute a
// recording fake.
type LifecycleAPI interface {
	// Initiate registers a new call from caller to receiver.
	Initiate(ctx context.Context, callID, caller, receiver string) error

	// Ringing acknowledges that the receiver's device is ringing.
	Ringing(ctx context.Context, callID string) error

	// Accept records the receiver's acceptance.
	Accept(ctx context.Context, callID string) error

	// Reject records the receiver's rejection.
	Reject(ctx context.Context, callID string) error

	// End records a hang-up by either side.
	End(ctx context.Context, callID string) error

	// ReceiverReady records that the receiver is subscribed and has a
	// peer link waiting for the offer.
	ReceiverReady(ctx context.Context, callID string) error

	// SetCamera records a camera toggle.
	SetCamera(ctx context.Context, callID string, on bool) error

	// SetMicrophone records a microphone toggle.
	SetMicrophone(ctx context.Context, callID string, on bool) error

	// SendReaction records an emoji reaction.
	SendReaction(ctx context.Context, callID, emoji string) error

	// SetHandRaised records a hand raise or lower.
	SetHandRaised(ctx context.Context, callID string, raised bool) error

	// FetchCall retrieves the call record.
	FetchCall(ctx context.Context, callID string) (*Details, error)
}
