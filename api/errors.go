package api

import "errors"

var (
	// ErrUnauthorized indicates the bearer token was rejected.
	ErrUnauthorized = errors.New("request unauthorized")

	// ErrNotFound indicates the call or meeting does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrServerRejected indicates any other non-2xx response.
	ErrServerRejected = errors.New("server rejected request")
)
