package rtc

import (
	"github.com/opd-ai/rtcall/signal"
	"github.com/pion/webrtc/v4"
)

// LinkState is the connection-health state of one peer link.
type LinkState int

const (
	// LinkNew indicates the link exists but negotiation has not started.
	LinkNew LinkState = iota
	// LinkConnecting indicates negotiation or ICE checks in progress.
	LinkConnecting
	// LinkConnected indicates media can flow.
	LinkConnected
	// LinkDisconnected indicates a transient connectivity loss.
	LinkDisconnected
	// LinkFailed indicates the link cannot recover.
	LinkFailed
	// LinkClosed indicates the link was closed locally.
	LinkClosed
)

// String returns a human-readable link state name.
func (s LinkState) String() string {
	switch s {
	case LinkNew:
		return "new"
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	case LinkDisconnected:
		return "disconnected"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is one the link never leaves.
func (s LinkState) Terminal() bool {
	return s == LinkFailed || s == LinkClosed
}

// RemoteStream is the inbound media surfaced by a link once the remote
// peer's first track arrives. The UI layer attaches it for playback.
type RemoteStream struct {
	Track    *webrtc.TrackRemote
	Receiver *webrtc.RTPReceiver
}

// Link is the orchestrator-facing contract of one negotiated peer
// connection to exactly one remote participant.
//
// Handler setters must be called before negotiation starts; handlers
// run on the underlying connection's event goroutines and must not
// block.
type Link interface {
	// Remote returns the identity of the remote participant.
	Remote() string

	// CreateOffer produces the local session description for the
	// offering side and installs it as the local description.
	CreateOffer() (string, error)

	// CreateAnswer applies the remote offer and produces the local
	// answer, installing it as the local description.
	CreateAnswer(offerSDP string) (string, error)

	// ApplyRemoteDescription installs the remote session description.
	ApplyRemoteDescription(kind signal.SignalType, sdp string) error

	// ApplyCandidate adds one remote ICE candidate. Returns
	// ErrNoRemoteDescription when called before the remote description
	// is set; the caller buffers and retries after it is.
	ApplyCandidate(cand signal.CandidateDescriptor) error

	// RemoteDescriptionSet reports whether a remote description has been
	// applied. Gates candidate application.
	RemoteDescriptionSet() bool

	// State returns the current connection-health state.
	State() LinkState

	// OnCandidate registers the consumer of locally gathered candidates.
	OnCandidate(fn func(signal.CandidateDescriptor))

	// OnRemoteTrack registers the consumer of the inbound media stream.
	OnRemoteTrack(fn func(RemoteStream))

	// OnStateChange registers the connection-health observer.
	OnStateChange(fn func(LinkState))

	// Close releases the link. Idempotent.
	Close() error
}
