package call

import "errors"

var (
	// ErrCallActive indicates Start or AttachIncoming on an orchestrator
	// that already carries a call.
	ErrCallActive = errors.New("a call is already active")

	// ErrNoActiveCall indicates an operation before Start/AttachIncoming.
	ErrNoActiveCall = errors.New("no active call")

	// ErrCallTerminated indicates an operation on a finished call.
	ErrCallTerminated = errors.New("call has reached a terminal state")

	// ErrInvalidTransition indicates an operation not valid in the
	// call's current state.
	ErrInvalidTransition = errors.New("operation not valid in current call state")

	// ErrNotReceiver indicates Accept or Reject called by the caller
	// side.
	ErrNotReceiver = errors.New("only the receiving side can accept or reject")
)
