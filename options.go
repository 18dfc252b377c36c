package rtcall

import (
	"fmt"
	"time"

	"github.com/opd-ai/rtcall/call"
	"github.com/opd-ai/rtcall/rtc"
)

// Options configures a Client.
type Options struct {
	// Identity is the stable participant identity (email-equivalent)
	// this client acts as.
	Identity string

	// Token is the bearer token presented to both the signaling broker
	// and the lifecycle API.
	Token string

	// SignalURL is the websocket URL of the signaling broker.
	SignalURL string

	// APIURL is the base URL of the lifecycle REST API.
	APIURL string

	// RingTimeout bounds how long calls ring. Zero means the package
	// default of 30 seconds.
	RingTimeout time.Duration

	// RequestTimeout bounds each lifecycle REST request. Zero means the
	// api package default.
	RequestTimeout time.Duration

	// ICEServers lists STUN/TURN URLs. Empty means the stock STUN set.
	ICEServers []string
}

// NewOptions returns options with the package defaults filled in.
// Identity, Token, SignalURL and APIURL must still be set.
func NewOptions() *Options {
	return &Options{
		RingTimeout: call.DefaultRingTimeout,
		ICEServers:  rtc.DefaultConfig().ICEServers,
	}
}

// Validate checks that the options describe a usable client.
func (o *Options) Validate() error {
	if o.Identity == "" {
		return fmt.Errorf("%w: identity is required", ErrInvalidOptions)
	}
	if o.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidOptions)
	}
	if o.SignalURL == "" {
		return fmt.Errorf("%w: signal URL is required", ErrInvalidOptions)
	}
	if o.APIURL == "" {
		return fmt.Errorf("%w: API URL is required", ErrInvalidOptions)
	}
	if o.RingTimeout < 0 {
		return fmt.Errorf("%w: ring timeout cannot be negative", ErrInvalidOptions)
	}
	return nil
}

// rtcConfig derives the peer link configuration.
func (o *Options) rtcConfig() rtc.Config {
	if len(o.ICEServers) == 0 {
		return rtc.DefaultConfig()
	}
	return rtc.Config{ICEServers: o.ICEServers}
}
