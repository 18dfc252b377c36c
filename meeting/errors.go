package meeting

import "errors"

var (
	// ErrAlreadyJoined indicates Join on an orchestrator already in a
	// meeting.
	ErrAlreadyJoined = errors.New("already joined a meeting")

	// ErrNotJoined indicates an operation before Join or after Leave.
	ErrNotJoined = errors.New("not in a meeting")

	// ErrNotAdmitted indicates the meeting requires admission and the
	// local participant is still in the waiting room.
	ErrNotAdmitted = errors.New("not admitted to the meeting")
)
