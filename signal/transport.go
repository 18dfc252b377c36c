package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Handler consumes the raw payload of one message delivered on a
// subscribed topic. Handlers run on the transport's receive loop and
// must not block.
type Handler func(topic string, payload []byte)

// Subscription is the handle returned by Transport.Subscribe. It is
// owned by the subscriber and released through Transport.Unsubscribe.
type Subscription struct {
	ID      string
	Topic   string
	handler Handler
	closed  bool
}

// Credentials authenticates a transport connection.
type Credentials struct {
	// Identity is the stable participant identity (email-equivalent)
	// this connection acts as. Unique per connected session.
	Identity string

	// Token is the bearer token presented to the broker.
	Token string
}

// Validate checks the credential set before any network activity.
//
// The token is parsed without signature verification, which is the
// broker's job. The parse only catches a token that is already
// expired before a connect round trip is spent on it.
func (c Credentials) Validate() error {
	if c.Identity == "" {
		return fmt.Errorf("%w: identity is required", ErrInvalidCredentials)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidCredentials)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(c.Token, claims); err != nil {
		// Opaque (non-JWT) tokens are allowed; the broker decides.
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("%w: token expired at %s", ErrInvalidCredentials, exp.Format(time.RFC3339))
	}
	return nil
}

// ConnectionState reports transport connectivity to observers.
type ConnectionState int

const (
	// StateDisconnected indicates no live connection.
	StateDisconnected ConnectionState = iota
	// StateConnected indicates a live, authenticated connection.
	StateConnected
)

// String returns a human-readable connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Transport is the persistent, authenticated, topic-addressed
// publish/subscribe channel used for signaling.
//
// Connect is idempotent per credential set. Publish while disconnected
// is a no-op with a logged warning, never an error that could tear
// down a call: a disconnected transport only stalls renegotiation,
// media on established peer links keeps flowing.
type Transport interface {
	// Connect establishes the connection. Calling Connect on an already
	// connected transport with the same credentials is a no-op.
	Connect(ctx context.Context, creds Credentials) error

	// Subscribe registers a handler for a topic and returns the handle
	// used to release it.
	Subscribe(topic string, handler Handler) (*Subscription, error)

	// Publish sends a payload to a topic.
	Publish(topic string, payload []byte) error

	// Unsubscribe releases a subscription handle.
	Unsubscribe(sub *Subscription) error

	// IsConnected reports whether a live connection exists. Orchestrators
	// use this to gate publish attempts.
	IsConnected() bool

	// OnConnectionStateChange registers an observer for connectivity
	// transitions. Pass nil to unregister.
	OnConnectionStateChange(fn func(state ConnectionState))

	// Disconnect closes the connection. Active peer links are left
	// intact; only renegotiation stalls until reconnect.
	Disconnect() error
}
