package rtc

import "errors"

// Sentinel errors for peer link operations.

var (
	// ErrLinkClosed indicates an operation on a closed peer link.
	ErrLinkClosed = errors.New("peer link is closed")

	// ErrNoRemoteDescription indicates a candidate was applied before the
	// remote description was set. Callers should buffer and retry after
	// ApplyRemoteDescription.
	ErrNoRemoteDescription = errors.New("remote description not set")

	// ErrUnexpectedDescription indicates CreateAnswer was called without
	// an offer, or a description arrived in the wrong signaling state.
	ErrUnexpectedDescription = errors.New("unexpected session description")

	// ErrNoLocalTracks indicates link creation without any local media.
	ErrNoLocalTracks = errors.New("no local tracks attached")
)
