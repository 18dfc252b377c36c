package signal

import (
	"encoding/json"
	"fmt"
)

// SignalType identifies the negotiation message carried by an Envelope.
type SignalType string

const (
	// SignalOffer carries a session description proposed by the offerer.
	SignalOffer SignalType = "offer"
	// SignalAnswer carries the session description accepting an offer.
	SignalAnswer SignalType = "answer"
	// SignalCandidate carries one ICE candidate.
	SignalCandidate SignalType = "candidate"
)

// CandidateDescriptor is the JSON form of a single ICE candidate as
// produced by the transport layer of the sending peer. The field set
// mirrors the standard RTCIceCandidateInit dictionary so either side
// of the wire can consume it without translation.
type CandidateDescriptor struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Envelope is the single-use signaling message exchanged between two
// peers during negotiation.
//
// Wire format (JSON):
//
//	{"scopeId": "...", "from": "...", "to": "...",
//	 "type": "offer"|"answer"|"candidate",
//	 "sdp": "...", "candidate": {...}}
//
// ScopeID is the call ID for 1:1 calls and the meeting code for
// meetings. To always names the single intended recipient; delivery to
// anyone else is a routing fault and the envelope is dropped.
type Envelope struct {
	ScopeID   string               `json:"scopeId"`
	From      string               `json:"from"`
	To        string               `json:"to"`
	Type      SignalType           `json:"type"`
	SDP       string               `json:"sdp,omitempty"`
	Candidate *CandidateDescriptor `json:"candidate,omitempty"`
}

// Encode serializes the envelope for publication.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// ParseEnvelope decodes and validates an inbound envelope payload.
//
// Validation happens once, here at the transport edge: unknown signal
// types and missing addresses are rejected so downstream dispatch can
// switch on Type without re-checking.
func ParseEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, ErrEmptyEnvelope
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch env.Type {
	case SignalOffer, SignalAnswer, SignalCandidate:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSignalType, env.Type)
	}

	if env.From == "" || env.To == "" {
		return nil, ErrMissingAddress
	}

	return &env, nil
}

// CallEventType identifies an out-of-band call lifecycle push.
type CallEventType string

const (
	// CallEventIncoming announces a new call on the receiver's
	// incoming-call topic. From names the caller.
	CallEventIncoming CallEventType = "incoming"
	// CallEventRinging reports that the receiver's device is ringing.
	CallEventRinging CallEventType = "ringing"
	// CallEventAccepted reports that the receiver accepted the call.
	CallEventAccepted CallEventType = "accepted"
	// CallEventRejected reports that the receiver rejected the call.
	CallEventRejected CallEventType = "rejected"
	// CallEventReady reports that the receiver has created its peer link
	// and subscribed to its signaling topic. The caller must not create
	// an offer before observing this event.
	CallEventReady CallEventType = "ready"
	// CallEventEnded reports that the remote party hung up.
	CallEventEnded CallEventType = "ended"
	// CallEventCamera reports a remote camera on/off toggle.
	CallEventCamera CallEventType = "camera"
	// CallEventMic reports a remote microphone on/off toggle.
	CallEventMic CallEventType = "mic"
	// CallEventReaction carries a remote emoji reaction.
	CallEventReaction CallEventType = "reaction"
	// CallEventHand reports a remote hand raise/lower.
	CallEventHand CallEventType = "hand"
)

// CallEvent is the out-of-band lifecycle message pushed on a call's
// event topic. Media toggles and reactions travel here so they never
// touch the negotiation state machine.
type CallEvent struct {
	CallID string        `json:"callId"`
	Type   CallEventType `json:"type"`
	From   string        `json:"from"`
	Action string        `json:"action,omitempty"`
}

// ParseCallEvent decodes an inbound call event payload.
func ParseCallEvent(data []byte) (*CallEvent, error) {
	if len(data) == 0 {
		return nil, ErrEmptyEnvelope
	}
	var ev CallEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode call event: %w", err)
	}
	return &ev, nil
}

// Encode serializes the call event for publication.
func (ev *CallEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call event: %w", err)
	}
	return data, nil
}

// RosterEvent announces a participant joining or leaving a meeting on
// the meeting's roster topics.
type RosterEvent struct {
	MeetingCode string `json:"meetingCode"`
	Identity    string `json:"identity"`
}

// ParseRosterEvent decodes an inbound roster event payload.
func ParseRosterEvent(data []byte) (*RosterEvent, error) {
	if len(data) == 0 {
		return nil, ErrEmptyEnvelope
	}
	var ev RosterEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode roster event: %w", err)
	}
	if ev.Identity == "" {
		return nil, ErrMissingAddress
	}
	return &ev, nil
}

// Encode serializes the roster event for publication.
func (ev *RosterEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode roster event: %w", err)
	}
	return data, nil
}
