package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtcall/media"
	"github.com/opd-ai/rtcall/rtc"
	"github.com/opd-ai/rtcall/signal"
)

// DefaultRingTimeout is how long an unanswered call rings before it
// times out.
const DefaultRingTimeout = 30 * time.Second

// LinkFactory builds the peer link for a call. Injected so tests can
// script link behavior without a real peer connection.
type LinkFactory func(remote string, tracks *media.TrackSet, cfg rtc.Config) (rtc.Link, error)

// defaultLinkFactory builds production pion-backed links.
func defaultLinkFactory(remote string, tracks *media.TrackSet, cfg rtc.Config) (rtc.Link, error) {
	return rtc.NewPeerLink(remote, tracks.Tracks(), cfg)
}

// Config carries per-orchestrator tunables.
type Config struct {
	// RingTimeout bounds how long a call may ring. Zero means
	// DefaultRingTimeout.
	RingTimeout time.Duration

	// RTC configures the peer link (ICE servers).
	RTC rtc.Config
}

// Orchestrator drives one 1:1 call end to end. It is the envelope
// sink for the call's scope, the consumer of the call's event topic,
// and the single owner of the call's peer link and state.
type Orchestrator struct {
	identity  string
	cfg       Config
	transport signal.Transport
	router    *signal.Router
	api       LifecycleAPI
	tracks    *media.TrackSet
	factory   LinkFactory

	mu        sync.Mutex
	state     State
	role      Role
	callID    string
	remote    string
	link      rtc.Link
	buffer    *rtc.CandidateBuffer
	ringTimer *time.Timer
	eventSub  *signal.Subscription

	cbMu        sync.RWMutex
	stateCb     func(State)
	streamCb    func(rtc.RemoteStream)
	errorCb     func(error)
	peerEventCb func(ev signal.CallEvent)
}

// NewOrchestrator creates an orchestrator for a single call. A nil
// factory selects the production pion-backed link.
func NewOrchestrator(identity string, cfg Config, transport signal.Transport, router *signal.Router, api LifecycleAPI, tracks *media.TrackSet, factory LinkFactory) *Orchestrator {
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = DefaultRingTimeout
	}
	if factory == nil {
		factory = defaultLinkFactory
	}
	return &Orchestrator{
		identity:  identity,
		cfg:       cfg,
		transport: transport,
		router:    router,
		api:       api,
		tracks:    tracks,
		factory:   factory,
		state:     StateIdle,
		buffer:    rtc.NewCandidateBuffer(),
	}
}

// OnStateChanged registers the lifecycle observer.
func (o *Orchestrator) OnStateChanged(fn func(State)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.stateCb = fn
}

// OnRemoteStream registers the consumer of the remote party's media.
func (o *Orchestrator) OnRemoteStream(fn func(rtc.RemoteStream)) {
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

// OnPeerEvent registers the observer for remote camera/mic toggles,
// reactions and hand raises.
func (o *Orchestrator) OnPeerEvent(fn func(signal.CallEvent)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.peerEventCb = fn
}

// State returns the current call state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CallID returns the active call's ID, empty before Start.
func (o *Orchestrator) CallID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.callID
}

// Remote returns the other party's identity.
func (o *Orchestrator) Remote() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remote
}

// Start dials receiver. It registers the call with the lifecycle API,
// announces it on the receiver's incoming-call topic and arms the ring
// timer. The returned call ID identifies the call on both sides.
func (o *Orchestrator) Start(ctx context.Context, receiver string) (string, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return "", ErrCallActive
	}
	callID := uuid.New().String()
	o.callID = callID
	o.remote = receiver
	o.role = RoleCaller
	o.state = StateInitiating
	o.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"call_id":  callID,
		"caller":   o.identity,
		"receiver": receiver,
	}).Info("Dialing call")

	if err := o.api.Initiate(ctx, callID, o.identity, receiver); err != nil {
		o.abort()
		return "", fmt.Errorf("failed to initiate call: %w", err)
	}
	if err := o.attachSignaling(callID); err != nil {
		o.abort()
		return "", err
	}

	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventIncoming,
		From:   o.identity,
	}, signal.IncomingCallTopic(receiver))

	o.armRingTimer()
	o.notifyState(StateInitiating)
	return callID, nil
}

// AttachIncoming takes ownership of an announced inbound call on the
// receiving side. It acknowledges ringing to the server and to the
// caller, then waits for Accept or Reject.
func (o *Orchestrator) AttachIncoming(ctx context.Context, callID, caller string) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrCallActive
	}
	o.callID = callID
	o.remote = caller
	o.role = RoleReceiver
	o.state = StateRinging
	o.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "AttachIncoming",
		"call_id":  callID,
		"caller":   caller,
		"receiver": o.identity,
	}).Info("Incoming call attached")

	if err := o.attachSignaling(callID); err != nil {
		o.abort()
		return err
	}
	if err := o.api.Ringing(ctx, callID); err != nil {
		o.abort()
		return fmt.Errorf("failed to acknowledge ringing: %w", err)
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventRinging,
		From:   o.identity,
	}, signal.CallEventTopic(callID, caller))

	o.armRingTimer()
	o.notifyState(StateRinging)
	return nil
}

// Accept agrees to the incoming call. It records acceptance, builds
// the peer link so the offer can be answered the moment it arrives,
// and only then signals readiness to the caller.
func (o *Orchestrator) Accept(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return ErrNoActiveCall
	}
	if o.role != RoleReceiver {
		o.mu.Unlock()
		return ErrNotReceiver
	}
	if o.state.Terminal() {
		o.mu.Unlock()
		return ErrCallTerminated
	}
	if o.state != StateRinging {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot accept while %s", ErrInvalidTransition, state)
	}
	callID, caller := o.callID, o.remote
	o.mu.Unlock()

	if err := o.api.Accept(ctx, callID); err != nil {
		o.abort()
		return fmt.Errorf("failed to accept call: %w", err)
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventAccepted,
		From:   o.identity,
	}, signal.CallEventTopic(callID, caller))

	link, err := o.buildLink(caller)
	if err != nil {
		o.abort()
		return err
	}

	o.mu.Lock()
	o.link = link
	o.state = StateAccepted
	o.mu.Unlock()

	// The link exists and the signaling topic is live; readiness is now
	// true, so the caller may create its offer.
	if err := o.api.ReceiverReady(ctx, callID); err != nil {
		o.abort()
		return fmt.Errorf("failed to signal readiness: %w", err)
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventReady,
		From:   o.identity,
	}, signal.CallEventTopic(callID, caller))

	o.notifyState(StateAccepted)
	return nil
}

// Reject declines the incoming call.
func (o *Orchestrator) Reject(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return ErrNoActiveCall
	}
	if o.role != RoleReceiver {
		o.mu.Unlock()
		return ErrNotReceiver
	}
	if o.state.Terminal() {
		o.mu.Unlock()
		return ErrCallTerminated
	}
	if o.state != StateRinging {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot reject while %s", ErrInvalidTransition, state)
	}
	callID, caller := o.callID, o.remote
	o.mu.Unlock()

	if err := o.api.Reject(ctx, callID); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Reject",
			"call_id":  callID,
			"error":    err.Error(),
		}).Warn("Lifecycle API rejected the rejection; ending locally anyway")
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventRejected,
		From:   o.identity,
	}, signal.CallEventTopic(callID, caller))

	o.terminate(StateRejected)
	return nil
}

// End hangs up from any active state.
func (o *Orchestrator) End(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return ErrNoActiveCall
	}
	if o.state.Terminal() {
		o.mu.Unlock()
		return ErrCallTerminated
	}
	callID, remote := o.callID, o.remote
	o.mu.Unlock()

	if err := o.api.End(ctx, callID); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "End",
			"call_id":  callID,
			"error":    err.Error(),
		}).Warn("Lifecycle API hang-up failed; ending locally anyway")
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventEnded,
		From:   o.identity,
	}, signal.CallEventTopic(callID, remote))

	o.terminate(StateEnded)
	return nil
}

// SetCamera toggles the local camera and tells the server and the
// remote party. Negotiation state is never touched.
func (o *Orchestrator) SetCamera(ctx context.Context, on bool) error {
	callID, remote, err := o.activeIDs()
	if err != nil {
		return err
	}
	o.tracks.SetVideoEnabled(on)
	if err := o.api.SetCamera(ctx, callID, on); err != nil {
		return fmt.Errorf("failed to record camera toggle: %w", err)
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventCamera,
		From:   o.identity,
		Action: onOff(on),
	}, signal.CallEventTopic(callID, remote))
	return nil
}

// SetMicrophone toggles the local microphone and tells the server and
// the remote party.
func (o *Orchestrator) SetMicrophone(ctx context.Context, on bool) error {
	callID, remote, err := o.activeIDs()
	if err != nil {
		return err
	}
	o.tracks.SetAudioEnabled(on)
	if err := o.api.SetMicrophone(ctx, callID, on); err != nil {
		return fmt.Errorf("failed to record microphone toggle: %w", err)
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventMic,
		From:   o.identity,
		Action: onOff(on),
	}, signal.CallEventTopic(callID, remote))
	return nil
}

// SendReaction sends an emoji reaction to the remote party.
func (o *Orchestrator) SendReaction(ctx context.Context, emoji string) error {
	callID, remote, err := o.activeIDs()
	if err != nil {
		return err
	}
	if err := o.api.SendReaction(ctx, callID, emoji); err != nil {
		return fmt.Errorf("failed to record reaction: %w", err)
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventReaction,
		From:   o.identity,
		Action: emoji,
	}, signal.CallEventTopic(callID, remote))
	return nil
}

// SetHandRaised raises or lowers the local hand.
func (o *Orchestrator) SetHandRaised(ctx context.Context, raised bool) error {
	callID, remote, err := o.activeIDs()
	if err != nil {
		return err
	}
	if err := o.api.SetHandRaised(ctx, callID, raised); err != nil {
		return fmt.Errorf("failed to record hand state: %w", err)
	}
	o.publishEvent(signal.CallEvent{
		CallID: callID,
		Type:   signal.CallEventHand,
		From:   o.identity,
		Action: onOff(raised),
	}, signal.CallEventTopic(callID, remote))
	return nil
}

// HandleOffer answers the caller's offer. Receiver side only; the
// link was built during Accept, before readiness was signaled.
func (o *Orchestrator) HandleOffer(env *signal.Envelope) {
	o.mu.Lock()
	link := o.link
	if link == nil || o.state.Terminal() {
		state := o.state
		o.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "HandleOffer",
			"call_id":  env.ScopeID,
			"state":    state.String(),
		}).Warn("Dropping offer with no link to answer it")
		return
	}
	o.state = StateNegotiating
	callID, remote := o.callID, o.remote
	o.mu.Unlock()

	answer, err := link.CreateAnswer(env.SDP)
	if err != nil {
		o.fail(fmt.Errorf("failed to answer offer: %w", err))
		return
	}
	o.publishEnvelope(&signal.Envelope{
		ScopeID: callID,
		From:    o.identity,
		To:      remote,
		Type:    signal.SignalAnswer,
		SDP:     answer,
	})
	o.drainCandidates(link, remote)
	o.notifyState(StateNegotiating)
}

// HandleAnswer applies the receiver's answer. Caller side only.
func (o *Orchestrator) HandleAnswer(env *signal.Envelope) {
	o.mu.Lock()
	link := o.link
	remote := o.remote
	o.mu.Unlock()

	if link == nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandleAnswer",
			"call_id":  env.ScopeID,
		}).Warn("Dropping answer with no link awaiting it")
		return
	}
	if err := link.ApplyRemoteDescription(signal.SignalAnswer, env.SDP); err != nil {
		o.fail(fmt.Errorf("failed to apply answer: %w", err))
		return
	}
	o.drainCandidates(link, remote)
}

// HandleCandidate applies or buffers one remote ICE candidate.
// Candidates that arrive before the remote description are queued and
// replayed in arrival order once it is set.
func (o *Orchestrator) HandleCandidate(env *signal.Envelope) {
	if env.Candidate == nil {
		return
	}
	o.mu.Lock()
	link := o.link
	o.mu.Unlock()

	if link == nil || !link.RemoteDescriptionSet() {
		o.buffer.Enqueue(env.From, *env.Candidate)
		return
	}
	if err := link.ApplyCandidate(*env.Candidate); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandleCandidate",
			"call_id":  env.ScopeID,
			"from":     env.From,
			"error":    err.Error(),
		}).Warn("Failed to apply remote candidate")
	}
}

// attachSignaling binds the call scope on the router and subscribes to
// the call's event topic.
func (o *Orchestrator) attachSignaling(callID string) error {
	if err := o.router.Bind(callID, o); err != nil {
		return fmt.Errorf("failed to bind call scope: %w", err)
	}
	sub, err := o.transport.Subscribe(signal.CallEventTopic(callID, o.identity), o.handleEventPayload)
	if err != nil {
		o.router.Release(callID)
		return fmt.Errorf("failed to subscribe to call events: %w", err)
	}
	o.mu.Lock()
	o.eventSub = sub
	o.mu.Unlock()
	return nil
}

// handleEventPayload is the transport handler for the call's event
// topic.
func (o *Orchestrator) handleEventPayload(topic string, payload []byte) {
	ev, err := signal.ParseCallEvent(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleEventPayload",
			"topic":    topic,
			"error":    err.Error(),
		}).Warn("Dropping unparseable call event")
		return
	}
	o.handleEvent(ev)
}

func (o *Orchestrator) handleEvent(ev *signal.CallEvent) {
	o.mu.Lock()
	if ev.CallID != o.callID || o.state.Terminal() {
		o.mu.Unlock()
		return
	}
	state, role := o.state, o.role
	o.mu.Unlock()

	switch ev.Type {
	case signal.CallEventRinging:
		if role == RoleCaller && state == StateInitiating {
			o.mu.Lock()
			o.state = StateRinging
			o.mu.Unlock()
			o.notifyState(StateRinging)
		}

	case signal.CallEventAccepted:
		if role == RoleCaller && (state == StateInitiating || state == StateRinging) {
			o.mu.Lock()
			o.state = StateAccepted
			o.mu.Unlock()
			o.notifyState(StateAccepted)
		}

	case signal.CallEventReady:
		if role == RoleCaller {
			o.handleReceiverReady()
		}

	case signal.CallEventRejected:
		if role == RoleCaller {
			o.terminate(StateRejected)
		}

	case signal.CallEventEnded:
		o.terminate(StateEnded)

	case signal.CallEventCamera, signal.CallEventMic,
		signal.CallEventReaction, signal.CallEventHand:
		o.cbMu.RLock()
		cb := o.peerEventCb
		o.cbMu.RUnlock()
		if cb != nil {
			cb(*ev)
		}
	}
}

// handleReceiverReady runs the caller's half of the ready handshake:
// the offer is created here and nowhere else, strictly after the
// receiver's readiness signal was observed.
func (o *Orchestrator) handleReceiverReady() {
	o.mu.Lock()
	if o.state != StateAccepted && o.state != StateRinging && o.state != StateInitiating {
		state := o.state
		o.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "handleReceiverReady",
			"state":    state.String(),
		}).Warn("Ignoring readiness signal in unexpected state")
		return
	}
	if o.link != nil {
		o.mu.Unlock()
		return
	}
	callID, remote := o.callID, o.remote
	o.mu.Unlock()

	link, err := o.buildLink(remote)
	if err != nil {
		o.fail(err)
		return
	}

	o.mu.Lock()
	if o.state.Terminal() {
		o.mu.Unlock()
		link.Close()
		return
	}
	o.link = link
	o.state = StateNegotiating
	o.mu.Unlock()

	offer, err := link.CreateOffer()
	if err != nil {
		o.fail(fmt.Errorf("failed to create offer: %w", err))
		return
	}
	o.publishEnvelope(&signal.Envelope{
		ScopeID: callID,
		From:    o.identity,
		To:      remote,
		Type:    signal.SignalOffer,
		SDP:     offer,
	})
	o.notifyState(StateNegotiating)
}

// buildLink constructs and wires a peer link for the remote party.
func (o *Orchestrator) buildLink(remote string) (rtc.Link, error) {
	link, err := o.factory(remote, o.tracks, o.cfg.RTC)
	if err != nil {
		return nil, fmt.Errorf("failed to build peer link: %w", err)
	}

	callID := o.CallID()
	link.OnCandidate(func(cand signal.CandidateDescriptor) {
		c := cand
		o.publishEnvelope(&signal.Envelope{
			ScopeID:   callID,
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
			cb(stream)
		}
	})
	link.OnStateChange(o.handleLinkState)
	return link, nil
}

// handleLinkState reacts to peer link health transitions.
func (o *Orchestrator) handleLinkState(state rtc.LinkState) {
	switch state {
	case rtc.LinkConnected:
		o.mu.Lock()
		if o.state != StateNegotiating && o.state != StateAccepted {
			o.mu.Unlock()
			return
		}
		o.state = StateConnected
		o.stopRingTimerLocked()
		o.mu.Unlock()
		o.notifyState(StateConnected)

	case rtc.LinkFailed, rtc.LinkDisconnected, rtc.LinkClosed:
		o.mu.Lock()
		connected := o.state == StateConnected
		terminal := o.state.Terminal()
		o.mu.Unlock()
		if terminal {
			return
		}
		if connected || state == rtc.LinkFailed {
			o.fail(fmt.Errorf("peer link %s", state))
		}
	}
}

// drainCandidates replays buffered candidates after the remote
// description is set. Each queue is flushed exactly once; the buffer
// entry is gone after Flush.
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

// armRingTimer starts the ring timeout clock.
func (o *Orchestrator) armRingTimer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ringTimer = time.AfterFunc(o.cfg.RingTimeout, o.onRingTimeout)
}

func (o *Orchestrator) onRingTimeout() {
	o.mu.Lock()
	// The timer covers every state short of Connected; handleLinkState
	// stops it once the link reports connected.
	expired := !o.state.Terminal() && o.state != StateIdle && o.state != StateConnected
	callID, remote, role := o.callID, o.remote, o.role
	o.mu.Unlock()
	if !expired {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "onRingTimeout",
		"call_id":  callID,
		"timeout":  o.cfg.RingTimeout.String(),
	}).Info("Call timed out before connecting")

	if role == RoleCaller {
		if err := o.api.End(context.Background(), callID); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "onRingTimeout",
				"call_id":  callID,
				"error":    err.Error(),
			}).Warn("Failed to record timed-out call")
		}
		o.publishEvent(signal.CallEvent{
			CallID: callID,
			Type:   signal.CallEventEnded,
			From:   o.identity,
		}, signal.CallEventTopic(callID, remote))
	}
	o.terminate(StateTimeout)
}

// stopRingTimerLocked stops the timer. Caller holds o.mu.
func (o *Orchestrator) stopRingTimerLocked() {
	if o.ringTimer != nil {
		o.ringTimer.Stop()
		o.ringTimer = nil
	}
}

// terminate moves the call to a terminal state and releases every
// resource exactly once. Later terminations are no-ops, which is what
// makes the three outcomes mutually exclusive.
func (o *Orchestrator) terminate(outcome State) {
	o.mu.Lock()
	if o.state.Terminal() || o.state == StateIdle {
		o.mu.Unlock()
		return
	}
	o.state = outcome
	o.stopRingTimerLocked()
	link := o.link
	o.link = nil
	sub := o.eventSub
	o.eventSub = nil
	callID := o.callID
	o.mu.Unlock()

	if link != nil {
		link.Close()
	}
	o.buffer.Clear()
	if sub != nil {
		if err := o.transport.Unsubscribe(sub); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "terminate",
				"call_id":  callID,
				"error":    err.Error(),
			}).Debug("Event topic already released")
		}
	}
	o.router.Release(callID)
	if o.tracks != nil {
		o.tracks.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "terminate",
		"call_id":  callID,
		"outcome":  outcome.String(),
	}).Info("Call finished")

	o.notifyState(outcome)
}

// abort tears down a call that failed during setup.
func (o *Orchestrator) abort() {
	o.terminate(StateEnded)
}

// fail reports an asynchronous failure and ends the call.
func (o *Orchestrator) fail(err error) {
	logrus.WithFields(logrus.Fields{
		"function": "fail",
		"call_id":  o.CallID(),
		"error":    err.Error(),
	}).Error("Call failed")

	o.cbMu.RLock()
	cb := o.errorCb
	o.cbMu.RUnlock()
	if cb != nil {
		cb(err)
	}
	o.terminate(StateEnded)
}

// activeIDs returns the call and remote IDs if the call is live.
func (o *Orchestrator) activeIDs() (callID, remote string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateIdle {
		return "", "", ErrNoActiveCall
	}
	if o.state.Terminal() {
		return "", "", ErrCallTerminated
	}
	return o.callID, o.remote, nil
}

// publishEnvelope sends a negotiation envelope to the recipient's
// signaling topic. Best effort: a disconnected transport only delays
// renegotiation.
func (o *Orchestrator) publishEnvelope(env *signal.Envelope) {
	data, err := env.Encode()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "publishEnvelope",
			"call_id":  env.ScopeID,
			"type":     string(env.Type),
			"error":    err.Error(),
		}).Error("Failed to encode envelope")
		return
	}
	if err := o.transport.Publish(signal.SignalTopic(env.To), data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "publishEnvelope",
			"call_id":  env.ScopeID,
			"type":     string(env.Type),
			"error":    err.Error(),
		}).Warn("Failed to publish envelope")
	}
}

// publishEvent sends a call event to an explicit topic.
func (o *Orchestrator) publishEvent(ev signal.CallEvent, topic string) {
	data, err := ev.Encode()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "publishEvent",
			"call_id":  ev.CallID,
			"type":     string(ev.Type),
			"error":    err.Error(),
		}).Error("Failed to encode call event")
		return
	}
	if err := o.transport.Publish(topic, data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "publishEvent",
			"call_id":  ev.CallID,
			"type":     string(ev.Type),
			"error":    err.Error(),
		}).Warn("Failed to publish call event")
	}
}

// notifyState delivers a state transition to the observer.
func (o *Orchestrator) notifyState(state State) {
	o.cbMu.RLock()
	cb := o.stateCb
	o.cbMu.RUnlock()
	if cb != nil {
		cb(state)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

var _ signal.EnvelopeSink = (*Orchestrator)(nil)
