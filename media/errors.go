package media

import "errors"

var (
	// ErrTrackSetClosed indicates an operation on a released track set.
	ErrTrackSetClosed = errors.New("track set is closed")

	// ErrTrackDisabled indicates a sample write to a muted track.
	ErrTrackDisabled = errors.New("track is disabled")
)
