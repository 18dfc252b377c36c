package rtc

import (
	"fmt"
	"sync"

	"github.com/opd-ai/rtcall/signal"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// Config carries the transport-level settings for new peer links.
type Config struct {
	// ICEServers lists STUN/TURN URLs used for candidate gathering.
	ICEServers []string
}

// DefaultConfig returns the stock STUN configuration.
func DefaultConfig() Config {
	return Config{
		ICEServers: []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		},
	}
}

// PeerLink is the pion-backed Link: one RTCPeerConnection to one
// remote participant, carrying the local tracks attached at creation
// and surfacing the remote peer's media and connection health.
type PeerLink struct {
	remote string
	pc     *webrtc.PeerConnection

	mu          sync.RWMutex
	closed      bool
	candidateCb func(signal.CandidateDescriptor)
	trackCb     func(RemoteStream)
	stateCb     func(LinkState)
}

// NewPeerLink creates a peer connection to the remote participant and
// attaches the local tracks. Handler registration happens before any
// negotiation, so no early candidate or track can be missed.
func NewPeerLink(remote string, tracks []webrtc.TrackLocal, cfg Config) (*PeerLink, error) {
	if len(tracks) == 0 {
		return nil, ErrNoLocalTracks
	}

	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, url := range cfg.ICEServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{url}})
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	link := &PeerLink{
		remote: remote,
		pc:     pc,
	}

	for _, track := range tracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to attach local track: %w", err)
		}
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			// End-of-gathering marker, nothing to relay.
			return
		}
		link.mu.RLock()
		cb := link.candidateCb
		link.mu.RUnlock()
		if cb != nil {
			init := cand.ToJSON()
			cb(signal.CandidateDescriptor{
				Candidate:        init.Candidate,
				SDPMid:           init.SDPMid,
				SDPMLineIndex:    init.SDPMLineIndex,
				UsernameFragment: init.UsernameFragment,
			})
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		logrus.WithFields(logrus.Fields{
			"function": "OnTrack",
			"remote":   remote,
			"kind":     track.Kind().String(),
		}).Info("Remote media track arrived")

		link.mu.RLock()
		cb := link.trackCb
		link.mu.RUnlock()
		if cb != nil {
			cb(RemoteStream{Track: track, Receiver: receiver})
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		mapped := mapConnectionState(state)
		logrus.WithFields(logrus.Fields{
			"function": "OnConnectionStateChange",
			"remote":   remote,
			"state":    mapped.String(),
		}).Debug("Peer link state changed")

		link.mu.RLock()
		cb := link.stateCb
		link.mu.RUnlock()
		if cb != nil {
			cb(mapped)
		}
	})

	return link, nil
}

// mapConnectionState converts pion connection states to link states.
func mapConnectionState(state webrtc.PeerConnectionState) LinkState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return LinkNew
	case webrtc.PeerConnectionStateConnecting:
		return LinkConnecting
	case webrtc.PeerConnectionStateConnected:
		return LinkConnected
	case webrtc.PeerConnectionStateDisconnected:
		return LinkDisconnected
	case webrtc.PeerConnectionStateFailed:
		return LinkFailed
	case webrtc.PeerConnectionStateClosed:
		return LinkClosed
	default:
		return LinkNew
	}
}

// Remote returns the remote participant's identity.
func (l *PeerLink) Remote() string {
	return l.remote
}

// CreateOffer produces and installs the local offer. Candidate
// gathering starts once the local description is set, which is why
// candidates can only ever originate from an already-created link.
func (l *PeerLink) CreateOffer() (string, error) {
	if l.isClosed() {
		return "", ErrLinkClosed
	}

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local offer: %w", err)
	}
	return offer.SDP, nil
}

// CreateAnswer applies the remote offer, then produces and installs
// the local answer.
func (l *PeerLink) CreateAnswer(offerSDP string) (string, error) {
	if l.isClosed() {
		return "", ErrLinkClosed
	}

	if err := l.ApplyRemoteDescription(signal.SignalOffer, offerSDP); err != nil {
		return "", err
	}

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local answer: %w", err)
	}
	return answer.SDP, nil
}

// ApplyRemoteDescription installs the remote session description.
func (l *PeerLink) ApplyRemoteDescription(kind signal.SignalType, sdp string) error {
	if l.isClosed() {
		return ErrLinkClosed
	}

	var sdpType webrtc.SDPType
	switch kind {
	case signal.SignalOffer:
		sdpType = webrtc.SDPTypeOffer
	case signal.SignalAnswer:
		sdpType = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("%w: %q is not a session description", ErrUnexpectedDescription, kind)
	}

	desc := webrtc.SessionDescription{Type: sdpType, SDP: sdp}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote %s: %w", kind, err)
	}
	return nil
}

// ApplyCandidate adds one remote ICE candidate. Candidates arriving
// before the remote description belong in a CandidateBuffer, not here.
func (l *PeerLink) ApplyCandidate(cand signal.CandidateDescriptor) error {
	if l.isClosed() {
		return ErrLinkClosed
	}
	if l.pc.RemoteDescription() == nil {
		return ErrNoRemoteDescription
	}

	init := webrtc.ICECandidateInit{
		Candidate:        cand.Candidate,
		SDPMid:           cand.SDPMid,
		SDPMLineIndex:    cand.SDPMLineIndex,
		UsernameFragment: cand.UsernameFragment,
	}
	if err := l.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("failed to add ICE candidate: %w", err)
	}
	return nil
}

// RemoteDescriptionSet reports whether a remote description is
// installed.
func (l *PeerLink) RemoteDescriptionSet() bool {
	if l.isClosed() {
		return false
	}
	return l.pc.RemoteDescription() != nil
}

// State returns the current connection-health state.
func (l *PeerLink) State() LinkState {
	if l.isClosed() {
		return LinkClosed
	}
	return mapConnectionState(l.pc.ConnectionState())
}

// OnCandidate registers the consumer of locally gathered candidates.
func (l *PeerLink) OnCandidate(fn func(signal.CandidateDescriptor)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.candidateCb = fn
}

// OnRemoteTrack registers the consumer of the inbound media stream.
func (l *PeerLink) OnRemoteTrack(fn func(RemoteStream)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trackCb = fn
}

// OnStateChange registers the connection-health observer.
func (l *PeerLink) OnStateChange(fn func(LinkState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stateCb = fn
}

// Close releases the peer connection. Idempotent.
func (l *PeerLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	// Detach handlers so teardown does not fan out health events for a
	// close the owner initiated itself.
	l.candidateCb = nil
	l.trackCb = nil
	l.stateCb = nil
	l.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"remote":   l.remote,
	}).Debug("Closing peer link")

	if err := l.pc.Close(); err != nil {
		return fmt.Errorf("failed to close peer connection: %w", err)
	}
	return nil
}

func (l *PeerLink) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

var _ Link = (*PeerLink)(nil)
