package signal

import "errors"

// Sentinel errors for signaling operations.
// These enable reliable error classification using errors.Is().

// Transport errors.
var (
	// ErrNotConnected indicates the transport has no live connection.
	ErrNotConnected = errors.New("transport is not connected")

	// ErrAlreadyConnected indicates Connect was called on a live transport
	// with different credentials.
	ErrAlreadyConnected = errors.New("transport is already connected")

	// ErrInvalidCredentials indicates the credential set failed validation
	// before any network activity.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSubscriptionClosed indicates the subscription handle was already
	// released.
	ErrSubscriptionClosed = errors.New("subscription is closed")
)

// Envelope errors.
var (
	// ErrUnknownSignalType indicates the envelope type field is not one of
	// offer, answer or candidate.
	ErrUnknownSignalType = errors.New("unknown signal type")

	// ErrEmptyEnvelope indicates a zero-length payload at the transport edge.
	ErrEmptyEnvelope = errors.New("empty envelope payload")

	// ErrMissingAddress indicates an envelope without from/to identities.
	ErrMissingAddress = errors.New("envelope missing from or to address")
)

// Router errors.
var (
	// ErrScopeAlreadyBound indicates a sink is already registered for the scope.
	ErrScopeAlreadyBound = errors.New("scope is already bound to a sink")
)
