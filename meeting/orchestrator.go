package meeting

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtcall/media"
	"github.com/opd-ai/rtcall/rtc"
	"github.com/opd-ai/rtcall/signal"
)

// LinkFactory builds the peer link toward one remote participant.
// Injected so tests can script link behavior.
type LinkFactory func(remote string, tracks *media.TrackSet, cfg rtc.Config) (rtc.Link, error)

func defaultLinkFactory(remote string, tracks *media.TrackSet, cfg rtc.Config) (rtc.Link, error) {
	return rtc.NewPeerLink(remote, tracks.Tracks(), cfg)
}

// Orchestrator manages the local participant's side of one meeting
// mesh: the roster, one peer link per remote participant, and the
// per-remote candidate queues.
type Orchestrator struct {
	identity string
	rtcCfg   rtc.Config

	transport signal.Transport
	router    *signal.Router
	api       RosterAPI
	tracks    *media.TrackSet
	factory   LinkFactory

	mu        sync.Mutex
	joined    bool
	code      string
	links     map[string]rtc.Link
	roster    map[string]bool
	addSub    *signal.Subscription
	removeSub *signal.Subscription

	buffer *rtc.CandidateBuffer

	cbMu     sync.RWMutex
	joinedCb func(identity string)
	leftCb   func(identity string)
	lostCb   func(identity string)
	streamCb func(identity string, stream rtc.RemoteStream)
	errorCb  func(error)
}

// NewOrchestrator creates a mesh orchestrator for a single meeting. A
// nil factory selects the production pion-backed link.
func NewOrchestrator(identity string, rtcCfg rtc.Config, transport signal.Transport, router *signal.Router, api RosterAPI, tracks *media.TrackSet, factory LinkFactory) *Orchestrator {
	if factory == nil {
		factory = defaultLinkFactory
	}
	return &Orchestrator{
		identity:  identity,
		rtcCfg:    rtcCfg,
		transport: transport,
		router:    router,
		api:       api,
		tracks:    tracks,
		factory:   factory,
		links:     make(map[string]rtc.Link),
		roster:    make(map[string]bool),
		buffer:    rtc.NewCandidateBuffer(),
	}
}

// OnParticipantJoined registers the roster-arrival observer.
func (o *Orchestrator) OnParticipantJoined(fn func(identity string)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.joinedCb = fn
}

// OnParticipantLeft registers the roster-departure observer.
func (o *Orchestrator) OnParticipantLeft(fn func(identity string)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.leftCb = fn
}

// OnParticipantLost registers the observer for remotes whose link
// failed. The participant is still on the roster; only its media is
// gone until it re-offers.
func (o *Orchestrator) OnParticipantLost(fn func(identity string)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.lostCb = fn
}

// OnRemoteStream registers the consumer of remote media, keyed by the
// participant it came from.
func (o *Orchestrator) OnRemoteStream(fn func(identity string, stream rtc.RemoteStream)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.streamCb = fn
}

// OnError registers the observer for asynchronous failures.
func (o *Orchestrator) OnError(fn func(error)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.errorCb = fn
}

// Joined reports whether the orchestrator is in a meeting.
func (o *Orchestrator) Joined() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.joined
}

// HasLink reports whether a live link toward the remote exists.
func (o *Orchestrator) HasLink(remote string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.links[remote]
	return ok
}

// Roster returns the known remote participants, links or not.
func (o *Orchestrator) Roster() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.roster))
	for id := range o.roster {
		out = append(out, id)
	}
	return out
}

// Join enters the meeting: admission check, roster registration,
// roster-topic subscriptions, then a roster snapshot. The joiner never
// offers; every incumbent observes the arrival and initiates toward
// it.
func (o *Orchestrator) Join(ctx context.Context, code string) error {
	o.mu.Lock()
	if o.joined {
		o.mu.Unlock()
		return ErrAlreadyJoined
	}
	o.mu.Unlock()

	allowed, err := o.api.CanJoin(ctx, code, o.identity)
	if err != nil {
		return fmt.Errorf("failed to check admission: %w", err)
	}
	if !allowed {
		return ErrNotAdmitted
	}

	if err := o.api.Join(ctx, code, o.identity); err != nil {
		return fmt.Errorf("failed to join meeting: %w", err)
	}

	if err := o.router.Bind(code, o); err != nil {
		return fmt.Errorf("failed to bind meeting scope: %w", err)
	}
	addSub, err := o.transport.Subscribe(signal.RosterAddTopic(code), o.handleRosterAdd)
	if err != nil {
		o.router.Release(code)
		return fmt.Errorf("failed to subscribe to roster additions: %w", err)
	}
	removeSub, err := o.transport.Subscribe(signal.RosterRemoveTopic(code), o.handleRosterRemove)
	if err != nil {
		o.transport.Unsubscribe(addSub)
		o.router.Release(code)
		return fmt.Errorf("failed to subscribe to roster removals: %w", err)
	}

	snapshot, err := o.api.Participants(ctx, code)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "Join",
			"meeting_code": code,
			"error":        err.Error(),
		}).Warn("Roster snapshot unavailable; waiting for incumbent offers")
	}

	o.mu.Lock()
	o.joined = true
	o.code = code
	o.addSub = addSub
	o.removeSub = removeSub
	for _, id := range snapshot {
		if id != o.identity {
			o.roster[id] = true
		}
	}
	o.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":     "Join",
		"meeting_code": code,
		"identity":     o.identity,
		"incumbents":   len(snapshot),
	}).Info("Joined meeting")
	return nil
}

// Leave exits the meeting and tears down every link synchronously.
func (o *Orchestrator) Leave(ctx context.Context) error {
	o.mu.Lock()
	if !o.joined {
		o.mu.Unlock()
		return ErrNotJoined
	}
	o.joined = false
	code := o.code
	links := o.links
	o.links = make(map[string]rtc.Link)
	o.roster = make(map[string]bool)
	addSub, removeSub := o.addSub, o.removeSub
	o.addSub, o.removeSub = nil, nil
	o.mu.Unlock()

	if err := o.api.Leave(ctx, code, o.identity); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "Leave",
			"meeting_code": code,
			"error":        err.Error(),
		}).Warn("Failed to report departure; tearing down locally anyway")
	}

	if addSub != nil {
		o.transport.Unsubscribe(addSub)
	}
	if removeSub != nil {
		o.transport.Unsubscribe(removeSub)
	}
	o.router.Release(code)

	for id, link := range links {
		if err := link.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":     "Leave",
				"meeting_code": code,
				"remote":       id,
				"error":        err.Error(),
			}).Debug("Link already closed")
		}
	}
	o.buffer.Clear()
	if o.tracks != nil {
		o.tracks.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Leave",
		"meeting_code": code,
		"identity":     o.identity,
	}).Info("Left meeting")
	return nil
}

// handleRosterAdd reacts to a new arrival: the incumbent side of the
// existing-initiates convention. One offer per arrival; a duplicate
// announcement for a remote that already has a link is dropped.
func (o *Orchestrator) handleRosterAdd(topic string, payload []byte) {
	ev, err := signal.ParseRosterEvent(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleRosterAdd",
			"topic":    topic,
			"error":    err.Error(),
		}).Warn("Dropping unparseable roster event")
		return
	}
	if ev.Identity == o.identity {
		return
	}

	o.mu.Lock()
	if !o.joined {
		o.mu.Unlock()
		return
	}
	code := o.code
	_, exists := o.links[ev.Identity]
	o.roster[ev.Identity] = true
	o.mu.Unlock()

	o.cbMu.RLock()
	cb := o.joinedCb
	o.cbMu.RUnlock()
	if cb != nil {
		cb(ev.Identity)
	}

	if exists {
		logrus.WithFields(logrus.Fields{
			"function":     "handleRosterAdd",
			"meeting_code": code,
			"remote":       ev.Identity,
		}).Debug("Link already exists; ignoring duplicate arrival")
		return
	}

	o.offerTo(code, ev.Identity)
}

// offerTo builds a link toward a new arrival and sends the offer.
// Failure is isolated to this one remote.
func (o *Orchestrator) offerTo(code, remote string) {
	link, err := o.buildLink(remote)
	if err != nil {
		o.isolateFailure(remote, fmt.Errorf("failed to build link to %s: %w", remote, err))
		return
	}

	o.mu.Lock()
	if !o.joined {
		o.mu.Unlock()
		link.Close()
		return
	}
	o.links[remote] = link
	o.mu.Unlock()

	offer, err := link.CreateOffer()
	if err != nil {
		o.isolateFailure(remote, fmt.Errorf("failed to create offer for %s: %w", remote, err))
		return
	}
	o.publishEnvelope(&signal.Envelope{
		ScopeID: code,
		From:    o.identity,
		To:      remote,
		Type:    signal.SignalOffer,
		SDP:     offer,
	})
}

// handleRosterRemove tears down the departed participant's link and
// queued candidates. Nothing else in the mesh is touched.
func (o *Orchestrator) handleRosterRemove(topic string, payload []byte) {
	ev, err := signal.ParseRosterEvent(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleRosterRemove",
			"topic":    topic,
			"error":    err.Error(),
		}).Warn("Dropping unparseable roster event")
		return
	}
	if ev.Identity == o.identity {
		return
	}

	o.mu.Lock()
	if !o.joined {
		o.mu.Unlock()
		return
	}
	link := o.links[ev.Identity]
	delete(o.links, ev.Identity)
	delete(o.roster, ev.Identity)
	o.mu.Unlock()

	if link != nil {
		link.Close()
	}
	o.buffer.Discard(ev.Identity)

	o.cbMu.RLock()
	cb := o.leftCb
	o.cbMu.RUnlock()
	if cb != nil {
		cb(ev.Identity)
	}
}

// HandleOffer answers an incumbent's offer: the arrival side of the
// existing-initiates convention. A second offer from a remote that
// already has a link replaces it, which keeps at most one link per
// pair.
func (o *Orchestrator) HandleOffer(env *signal.Envelope) {
	o.mu.Lock()
	if !o.joined {
		o.mu.Unlock()
		return
	}
	code := o.code
	old := o.links[env.From]
	delete(o.links, env.From)
	o.roster[env.From] = true
	o.mu.Unlock()

	if old != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "HandleOffer",
			"meeting_code": code,
			"remote":       env.From,
		}).Info("Replacing existing link on renewed offer")
		old.Close()
	}

	link, err := o.buildLink(env.From)
	if err != nil {
		o.isolateFailure(env.From, fmt.Errorf("failed to build link to %s: %w", env.From, err))
		return
	}

	o.mu.Lock()
	if !o.joined {
		o.mu.Unlock()
		link.Close()
		return
	}
	o.links[env.From] = link
	o.mu.Unlock()

	answer, err := link.CreateAnswer(env.SDP)
	if err != nil {
		o.isolateFailure(env.From, fmt.Errorf("failed to answer %s: %w", env.From, err))
		return
	}
	o.publishEnvelope(&signal.Envelope{
		ScopeID: code,
		From:    o.identity,
		To:      env.From,
		Type:    signal.SignalAnswer,
		SDP:     answer,
	})
	o.drainCandidates(link, env.From)
}

// HandleAnswer completes negotiation with one arrival. An answer from
// a remote with no link means the offer never went out; the remote
// stays on the roster and its candidates stay queued for the re-offer.
func (o *Orchestrator) HandleAnswer(env *signal.Envelope) {
	o.mu.Lock()
	link := o.links[env.From]
	o.roster[env.From] = true
	o.mu.Unlock()

	if link == nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandleAnswer",
			"remote":   env.From,
		}).Warn("Dropping answer with no link awaiting it")
		return
	}
	if err := link.ApplyRemoteDescription(signal.SignalAnswer, env.SDP); err != nil {
		o.isolateFailure(env.From, fmt.Errorf("failed to apply answer from %s: %w", env.From, err))
		return
	}
	o.drainCandidates(link, env.From)
}

// HandleCandidate applies or queues one remote candidate. Candidates
// may legitimately precede the roster announcement or the offer; they
// queue under the sender until that remote's description is set.
func (o *Orchestrator) HandleCandidate(env *signal.Envelope) {
	if env.Candidate == nil {
		return
	}
	o.mu.Lock()
	link := o.links[env.From]
	o.mu.Unlock()

	if link == nil || !link.RemoteDescriptionSet() {
		o.buffer.Enqueue(env.From, *env.Candidate)
		return
	}
	if err := link.ApplyCandidate(*env.Candidate); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandleCandidate",
			"remote":   env.From,
			"error":    err.Error(),
		}).Warn("Failed to apply remote candidate")
	}
}

// buildLink constructs and wires a link toward one remote.
func (o *Orchestrator) buildLink(remote string) (rtc.Link, error) {
	link, err := o.factory(remote, o.tracks, o.rtcCfg)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	code := o.code
	o.mu.Unlock()

	link.OnCandidate(func(cand signal.CandidateDescriptor) {
		c := cand
		o.publishEnvelope(&signal.Envelope{
			ScopeID:   code,
			From:      o.identity,
			To:        remote,
			Type:      signal.SignalCandidate,
			Candidate: &c,
		})
	})
	link.OnRemoteTrack(func(stream rtc.RemoteStream) {
		o.cbMu.RLock()
		cb := o.streamCb
		o.cbMu.RUnlock()
		if cb != nil {
			cb(remote, stream)
		}
	})
	link.OnStateChange(func(state rtc.LinkState) {
		if state == rtc.LinkFailed {
			o.isolateFailure(remote, fmt.Errorf("link to %s failed", remote))
		}
	})
	return link, nil
}

// isolateFailure removes exactly one remote's link after a failure.
// The participant stays on the roster so a re-offer can rebuild it.
func (o *Orchestrator) isolateFailure(remote string, cause error) {
	logrus.WithFields(logrus.Fields{
		"function": "isolateFailure",
		"remote":   remote,
		"error":    cause.Error(),
	}).Error("Participant link failed")

	o.mu.Lock()
	link := o.links[remote]
	delete(o.links, remote)
	o.mu.Unlock()

	if link != nil {
		link.Close()
	}
	o.buffer.Discard(remote)

	o.cbMu.RLock()
	lostCb, errCb := o.lostCb, o.errorCb
	o.cbMu.RUnlock()
	if errCb != nil {
		errCb(cause)
	}
	if lostCb != nil {
		lostCb(remote)
	}
}

// drainCandidates replays the queue for one remote exactly once.
func (o *Orchestrator) drainCandidates(link rtc.Link, remote string) {
	for _, cand := range o.buffer.Flush(remote) {
		if err := link.ApplyCandidate(cand); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "drainCandidates",
				"remote":   remote,
				"error":    err.Error(),
			}).Warn("Failed to apply buffered candidate")
		}
	}
}

// publishEnvelope sends one envelope to the recipient's signaling
// topic, best effort.
func (o *Orchestrator) publishEnvelope(env *signal.Envelope) {
	data, err := env.Encode()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "publishEnvelope",
			"meeting_code": env.ScopeID,
			"type":         string(env.Type),
			"error":        err.Error(),
		}).Error("Failed to encode envelope")
		return
	}
	if err := o.transport.Publish(signal.SignalTopic(env.To), data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "publishEnvelope",
			"meeting_code": env.ScopeID,
			"type":         string(env.Type),
			"error":        err.Error(),
		}).Warn("Failed to publish envelope")
	}
}

var _ signal.EnvelopeSink = (*Orchestrator)(nil)
