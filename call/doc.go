// Package call implements the 1:1 call lifecycle: the state machine
// from dialing through ringing, acceptance, negotiation and media
// flow, down to one of the three terminal outcomes (ended, rejected,
// timed out).
//
// The Orchestrator owns a single call. It drives the REST lifecycle
// API, exchanges out-of-band events with the remote party on the
// call's event topic, and runs SDP/ICE negotiation through a peer
// link once the receiver has signaled readiness. The caller never
// creates its offer before observing that readiness signal; candidates
// arriving ahead of a remote description are buffered and replayed in
// arrival order.
//
// All state transitions are one-way. Once a call reaches a terminal
// state the orchestrator is spent; dial again with a fresh one.
package call
