// Package rtc wraps the transport-level peer connection machinery:
// one PeerLink per remote participant, plus the candidate buffering
// needed to tolerate signaling messages arriving out of order.
//
// A PeerLink is exclusively owned by the orchestrator that created it.
// Orchestrators program against the Link interface so tests can
// substitute scripted links for the pion-backed implementation.
package rtc
