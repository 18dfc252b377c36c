// Package signal implements the control plane of rtcall: the
// topic-addressed publish/subscribe transport used for WebRTC
// negotiation, the wire envelope exchanged between peers, and the
// router that demultiplexes inbound envelopes to the orchestrator
// owning their scope.
//
// The package provides two Transport implementations:
//
//   - WebsocketTransport: a persistent, authenticated websocket
//     connection to a signaling broker, with subscription replay
//     after reconnect.
//   - MemoryTransport: an in-process broker used by tests and
//     single-process demos.
//
// Signaling is best-effort by design. Malformed or unroutable
// messages are dropped with a diagnostic; they never terminate a
// call, because media may already be flowing peer-to-peer.
package signal
