package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtcall/signal"
)

func testTracks(t *testing.T) []webrtc.TrackLocal {
	t.Helper()
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "test-stream")
	require.NoError(t, err)
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "test-stream")
	require.NoError(t, err)
	return []webrtc.TrackLocal{audio, video}
}

func TestNewPeerLinkRequiresTracks(t *testing.T) {
	_, err := NewPeerLink("bob", nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoLocalTracks)
}

func TestPeerLinkCreateOffer(t *testing.T) {
	link, err := NewPeerLink("bob", testTracks(t), Config{})
	require.NoError(t, err)
	defer link.Close()

	assert.Equal(t, "bob", link.Remote())
	assert.False(t, link.RemoteDescriptionSet())

	offer, err := link.CreateOffer()
	require.NoError(t, err)
	assert.Contains(t, offer, "v=0")
}

func TestPeerLinkOfferAnswerExchange(t *testing.T) {
	caller, err := NewPeerLink("bob", testTracks(t), Config{})
	require.NoError(t, err)
	defer caller.Close()
	receiver, err := NewPeerLink("alice", testTracks(t), Config{})
	require.NoError(t, err)
	defer receiver.Close()

	offer, err := caller.CreateOffer()
	require.NoError(t, err)

	answer, err := receiver.CreateAnswer(offer)
	require.NoError(t, err)
	assert.True(t, receiver.RemoteDescriptionSet())

	require.NoError(t, caller.ApplyRemoteDescription(signal.SignalAnswer, answer))
	assert.True(t, caller.RemoteDescriptionSet())
}

func TestPeerLinkCandidateBeforeRemoteDescription(t *testing.T) {
	link, err := NewPeerLink("bob", testTracks(t), Config{})
	require.NoError(t, err)
	defer link.Close()

	err = link.ApplyCandidate(signal.CandidateDescriptor{Candidate: "candidate:1"})
	assert.ErrorIs(t, err, ErrNoRemoteDescription)
}

func TestPeerLinkRejectsCandidateAsDescription(t *testing.T) {
	link, err := NewPeerLink("bob", testTracks(t), Config{})
	require.NoError(t, err)
	defer link.Close()

	err = link.ApplyRemoteDescription(signal.SignalCandidate, "v=0")
	assert.ErrorIs(t, err, ErrUnexpectedDescription)
}

func TestPeerLinkCloseIdempotent(t *testing.T) {
	link, err := NewPeerLink("bob", testTracks(t), Config{})
	require.NoError(t, err)

	require.NoError(t, link.Close())
	require.NoError(t, link.Close())

	assert.Equal(t, LinkClosed, link.State())
	_, err = link.CreateOffer()
	assert.ErrorIs(t, err, ErrLinkClosed)
}

func TestLinkStateStrings(t *testing.T) {
	assert.Equal(t, "connected", LinkConnected.String())
	assert.Equal(t, "failed", LinkFailed.String())
	assert.True(t, LinkFailed.Terminal())
	assert.True(t, LinkClosed.Terminal())
	assert.False(t, LinkConnected.Terminal())
}
