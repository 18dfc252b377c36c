package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelopeOffer(t *testing.T) {
	data := []byte(`{"scopeId":"call-1","from":"alice","to":"bob","type":"offer","sdp":"v=0..."}`)

	env, err := ParseEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "call-1", env.ScopeID)
	assert.Equal(t, "alice", env.From)
	assert.Equal(t, "bob", env.To)
	assert.Equal(t, SignalOffer, env.Type)
	assert.Equal(t, "v=0...", env.SDP)
	assert.Nil(t, env.Candidate)
}

func TestParseEnvelopeCandidate(t *testing.T) {
	data := []byte(`{"scopeId":"call-1","from":"alice","to":"bob","type":"candidate",` +
		`"candidate":{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}}`)

	env, err := ParseEnvelope(data)
	require.NoError(t, err)
	require.NotNil(t, env.Candidate)
	assert.Contains(t, env.Candidate.Candidate, "typ host")
	require.NotNil(t, env.Candidate.SDPMid)
	assert.Equal(t, "0", *env.Candidate.SDPMid)
	require.NotNil(t, env.Candidate.SDPMLineIndex)
	assert.Equal(t, uint16(0), *env.Candidate.SDPMLineIndex)
}

func TestParseEnvelopeRejectsUnknownType(t *testing.T) {
	data := []byte(`{"scopeId":"call-1","from":"alice","to":"bob","type":"renegotiate"}`)

	env, err := ParseEnvelope(data)
	assert.Nil(t, env)
	assert.ErrorIs(t, err, ErrUnknownSignalType)
}

func TestParseEnvelopeRejectsMissingAddress(t *testing.T) {
	data := []byte(`{"scopeId":"call-1","from":"alice","type":"offer","sdp":"v=0"}`)

	_, err := ParseEnvelope(data)
	assert.ErrorIs(t, err, ErrMissingAddress)
}

func TestParseEnvelopeRejectsEmpty(t *testing.T) {
	_, err := ParseEnvelope(nil)
	assert.ErrorIs(t, err, ErrEmptyEnvelope)

	_, err = ParseEnvelope([]byte("{not json"))
	assert.Error(t, err)
}

func TestEnvelopeEncodeParseRoundTrip(t *testing.T) {
	mid := "0"
	idx := uint16(1)
	env := &Envelope{
		ScopeID: "meet-42",
		From:    "carol",
		To:      "dave",
		Type:    SignalCandidate,
		Candidate: &CandidateDescriptor{
			Candidate:     "candidate:2 1 udp 1694498815 198.51.100.7 61000 typ srflx",
			SDPMid:        &mid,
			SDPMLineIndex: &idx,
		},
	}

	data, err := env.Encode()
	require.NoError(t, err)

	got, err := ParseEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

func TestParseCallEvent(t *testing.T) {
	data := []byte(`{"callId":"call-1","type":"camera","from":"bob","action":"off"}`)

	ev, err := ParseCallEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "call-1", ev.CallID)
	assert.Equal(t, CallEventCamera, ev.Type)
	assert.Equal(t, "bob", ev.From)
	assert.Equal(t, "off", ev.Action)
}

func TestParseRosterEventRequiresIdentity(t *testing.T) {
	ev, err := ParseRosterEvent([]byte(`{"meetingCode":"m-1","identity":"erin"}`))
	require.NoError(t, err)
	assert.Equal(t, "erin", ev.Identity)

	_, err = ParseRosterEvent([]byte(`{"meetingCode":"m-1"}`))
	assert.ErrorIs(t, err, ErrMissingAddress)
}
