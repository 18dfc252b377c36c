package media

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"
)

// TrackSet is the pair of local tracks a participant contributes to
// every peer link. One set serves all links in a call or meeting; the
// underlying sample tracks fan out to each attached connection.
type TrackSet struct {
	mu     sync.RWMutex
	closed bool

	audio        *webrtc.TrackLocalStaticSample
	video        *webrtc.TrackLocalStaticSample
	audioEnabled bool
	videoEnabled bool
}

// NewTrackSet creates an Opus audio track and a VP8 video track under
// a shared stream ID. Both tracks start enabled.
func NewTrackSet() (*TrackSet, error) {
	streamID := uuid.New().String()

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}

	return &TrackSet{
		audio:        audio,
		video:        video,
		audioEnabled: true,
		videoEnabled: true,
	}, nil
}

// Tracks returns the local tracks in the form peer links attach.
func (t *TrackSet) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{t.audio, t.video}
}

// WriteAudioSample pushes one encoded audio sample to all attached
// links. Returns ErrTrackDisabled while the mic is off.
func (t *TrackSet) WriteAudioSample(sample media.Sample) error {
	t.mu.RLock()
	closed, enabled := t.closed, t.audioEnabled
	t.mu.RUnlock()

	if closed {
		return ErrTrackSetClosed
	}
	if !enabled {
		return ErrTrackDisabled
	}
	if err := t.audio.WriteSample(sample); err != nil {
		return fmt.Errorf("failed to write audio sample: %w", err)
	}
	return nil
}

// WriteVideoSample pushes one encoded video sample to all attached
// links. Returns ErrTrackDisabled while the camera is off.
func (t *TrackSet) WriteVideoSample(sample media.Sample) error {
	t.mu.RLock()
	closed, enabled := t.closed, t.videoEnabled
	t.mu.RUnlock()

	if closed {
		return ErrTrackSetClosed
	}
	if !enabled {
		return ErrTrackDisabled
	}
	if err := t.video.WriteSample(sample); err != nil {
		return fmt.Errorf("failed to write video sample: %w", err)
	}
	return nil
}

// SetAudioEnabled toggles the mic. A disabled track stays attached to
// its links; only sample writes are gated.
func (t *TrackSet) SetAudioEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audioEnabled = enabled

	logrus.WithFields(logrus.Fields{
		"function": "SetAudioEnabled",
		"enabled":  enabled,
	}).Debug("Microphone toggled")
}

// SetVideoEnabled toggles the camera.
func (t *TrackSet) SetVideoEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.videoEnabled = enabled

	logrus.WithFields(logrus.Fields{
		"function": "SetVideoEnabled",
		"enabled":  enabled,
	}).Debug("Camera toggled")
}

// AudioEnabled reports the mic state.
func (t *TrackSet) AudioEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.audioEnabled
}

// VideoEnabled reports the camera state.
func (t *TrackSet) VideoEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.videoEnabled
}

// Close marks the set released. Sample writers see ErrTrackSetClosed
// from then on; the tracks themselves are owned by whatever links
// still hold them.
func (t *TrackSet) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}
