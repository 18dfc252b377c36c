package call

// State is the lifecycle state of a call. Transitions are one-way;
// the three terminal states are mutually exclusive and final.
type State int

const (
	// StateIdle is the orchestrator before any call is attached.
	StateIdle State = iota
	// StateInitiating is the caller side between dialing and the
	// receiver's ringing acknowledgement.
	StateInitiating
	// StateRinging means the receiver has been notified and a decision
	// is pending. The ring timer runs in this state.
	StateRinging
	// StateAccepted means the receiver agreed; negotiation has not
	// started yet.
	StateAccepted
	// StateNegotiating means SDP/ICE exchange is in flight.
	StateNegotiating
	// StateConnected means media is flowing on the peer link.
	StateConnected
	// StateEnded is the terminal state for a call either side hung up,
	// or that was aborted by a failure.
	StateEnded
	// StateRejected is the terminal state for a call the receiver
	// declined.
	StateRejected
	// StateTimeout is the terminal state for a call nobody answered
	// within the ring timeout.
	StateTimeout
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiating:
		return "initiating"
	case StateRinging:
		return "ringing"
	case StateAccepted:
		return "accepted"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateRejected:
		return "rejected"
	case StateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateRejected || s == StateTimeout
}

// Role distinguishes the dialing side from the receiving side.
type Role int

const (
	// RoleCaller dialed the call and creates the offer.
	RoleCaller Role = iota
	// RoleReceiver was dialed and creates the answer.
	RoleReceiver
)

// String returns a human-readable role name.
func (r Role) String() string {
	if r == RoleReceiver {
		return "receiver"
	}
	return "caller"
}
