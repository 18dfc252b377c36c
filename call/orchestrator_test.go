package call

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtcall/media"
	"github.com/opd-ai/rtcall/rtc"
	"github.com/opd-ai/rtcall/signal"
)

// fakeLink is a scripted rtc.Link. SDP handling is symbolic; state
// transitions are fired by the test through fire().
type fakeLink struct {
	mu          sync.Mutex
	local       string
	remote      string
	remoteSet   bool
	closed      bool
	offers      int
	answered    []string
	applied     []signal.CandidateDescriptor
	candidateCb func(signal.CandidateDescriptor)
	trackCb     func(rtc.RemoteStream)
	stateCb     func(rtc.LinkState)
}

func (l *fakeLink) Remote() string { return l.remote }

func (l *fakeLink) CreateOffer() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offers++
	return "offer-from-" + l.local, nil
}

func (l *fakeLink) CreateAnswer(offerSDP string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remoteSet = true
	l.answered = append(l.answered, offerSDP)
	return "answer-to-" + l.remote, nil
}

func (l *fakeLink) ApplyRemoteDescription(kind signal.SignalType, sdp string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remoteSet = true
	return nil
}

func (l *fakeLink) ApplyCandidate(cand signal.CandidateDescriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.remoteSet {
		return rtc.ErrNoRemoteDescription
	}
	l.applied = append(l.applied, cand)
	return nil
}

func (l *fakeLink) RemoteDescriptionSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remoteSet
}

func (l *fakeLink) State() rtc.LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return rtc.LinkClosed
	}
	return rtc.LinkNew
}

func (l *fakeLink) OnCandidate(fn func(signal.CandidateDescriptor)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.candidateCb = fn
}

func (l *fakeLink) OnRemoteTrack(fn func(rtc.RemoteStream)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trackCb = fn
}

func (l *fakeLink) OnStateChange(fn func(rtc.LinkState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stateCb = fn
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// fire simulates a connection-health transition.
func (l *fakeLink) fire(state rtc.LinkState) {
	l.mu.Lock()
	cb := l.stateCb
	l.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) appliedCandidates() []signal.CandidateDescriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]signal.CandidateDescriptor, len(l.applied))
	copy(out, l.applied)
	return out
}

func (l *fakeLink) answeredOffers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.answered))
	copy(out, l.answered)
	return out
}

// fakeAPI records lifecycle calls and optionally fails some of them.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{fail: make(map[string]error)}
}

func (a *fakeAPI) record(op string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, op)
	return a.fail[op]
}

func (a *fakeAPI) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.calls))
	copy(out, a.calls)
	return out
}

func (a *fakeAPI) has(op string) bool {
	for _, c := range a.recorded() {
		if c == op {
			return true
		}
	}
	return false
}

func (a *fakeAPI) Initiate(ctx context.Context, callID, caller, receiver string) error {
	return a.record("initiate")
}
func (a *fakeAPI) Ringing(ctx context.Context, callID string) error { return a.record("ringing") }
func (a *fakeAPI) Accept(ctx context.Context, callID string) error  { return a.record("accept") }
func (a *fakeAPI) Reject(ctx context.Context, callID string) error  { return a.record("reject") }
func (a *fakeAPI) End(ctx context.Context, callID string) error     { return a.record("end") }
func (a *fakeAPI) ReceiverReady(ctx context.Context, callID string) error {
	return a.record("receiver-ready")
}
func (a *fakeAPI) SetCamera(ctx context.Context, callID string, on bool) error {
	return a.record("camera")
}
func (a *fakeAPI) SetMicrophone(ctx context.Context, callID string, on bool) error {
	return a.record("mic")
}
func (a *fakeAPI) SendReaction(ctx context.Context, callID, emoji string) error {
	return a.record("reaction")
}
func (a *fakeAPI) SetHandRaised(ctx context.Context, callID string, raised bool) error {
	return a.record("hand")
}
func (a *fakeAPI) FetchCall(ctx context.Context, callID string) (*Details, error) {
	if err := a.record("fetch"); err != nil {
		return nil, err
	}
	return &Details{CallID: callID}, nil
}

// peer bundles one participant's test wiring.
type peer struct {
	identity  string
	transport *signal.MemoryTransport
	router    *signal.Router
	api       *fakeAPI
	orch      *Orchestrator

	mu    sync.Mutex
	links []*fakeLink
}

func newPeer(t *testing.T, broker *signal.MemoryBroker, identity string, ringTimeout time.Duration) *peer {
	t.Helper()

	p := &peer{
		identity:  identity,
		transport: broker.NewTransport(),
		router:    signal.NewRouter(identity),
		api:       newFakeAPI(),
	}
	creds := signal.Credentials{Identity: identity, Token: "opaque-token"}
	require.NoError(t, p.transport.Connect(context.Background(), creds))
	_, err := p.transport.Subscribe(signal.SignalTopic(identity), p.router.HandlePayload)
	require.NoError(t, err)

	tracks, err := media.NewTrackSet()
	require.NoError(t, err)

	factory := func(remote string, _ *media.TrackSet, _ rtc.Config) (rtc.Link, error) {
		link := &fakeLink{local: p.identity, remote: remote}
		p.mu.Lock()
		p.links = append(p.links, link)
		p.mu.Unlock()
		return link, nil
	}

	cfg := Config{RingTimeout: ringTimeout}
	p.orch = NewOrchestrator(identity, cfg, p.transport, p.router, p.api, tracks, factory)
	return p
}

func (p *peer) linkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.links)
}

func (p *peer) link(t *testing.T) *fakeLink {
	t.Helper()
	require.Eventually(t, func() bool { return p.linkCount() > 0 },
		2*time.Second, 10*time.Millisecond, "peer link never created")
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.links[0]
}

func nextEvent(t *testing.T, events chan signal.CallEvent) signal.CallEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("peer event never arrived")
		return signal.CallEvent{}
	}
}

func waitForState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return o.State() == want },
		2*time.Second, 10*time.Millisecond,
		"never reached %s, stuck at %s", want, o.State())
}

// connectPeers drives a call from dial to negotiation complete.
func connectPeers(t *testing.T, alice, bob *peer) string {
	t.Helper()
	ctx := context.Background()

	callID, err := alice.orch.Start(ctx, bob.identity)
	require.NoError(t, err)
	require.NoError(t, bob.orch.AttachIncoming(ctx, callID, alice.identity))
	require.NoError(t, bob.orch.Accept(ctx))

	waitForState(t, alice.orch, StateNegotiating)
	waitForState(t, bob.orch, StateNegotiating)
	return callID
}

func TestCallHappyPath(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", time.Second)
	bob := newPeer(t, broker, "bob", time.Second)

	var aliceStates []State
	var statesMu sync.Mutex
	alice.orch.OnStateChanged(func(s State) {
		statesMu.Lock()
		aliceStates = append(aliceStates, s)
		statesMu.Unlock()
	})

	connectPeers(t, alice, bob)

	// The receiver's link saw exactly the caller's offer.
	assert.Equal(t, []string{"offer-from-alice"}, bob.link(t).answeredOffers())

	alice.link(t).fire(rtc.LinkConnected)
	bob.link(t).fire(rtc.LinkConnected)
	waitForState(t, alice.orch, StateConnected)
	waitForState(t, bob.orch, StateConnected)

	statesMu.Lock()
	defer statesMu.Unlock()
	assert.Equal(t, []State{StateInitiating, StateRinging, StateAccepted, StateNegotiating, StateConnected}, aliceStates)

	assert.True(t, alice.api.has("initiate"))
	assert.True(t, bob.api.has("ringing"))
	assert.True(t, bob.api.has("accept"))
	assert.True(t, bob.api.has("receiver-ready"))
}

func TestCallerOffersOnlyAfterReceiverReady(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	bob := newPeer(t, broker, "bob", 5*time.Second)
	ctx := context.Background()

	callID, err := alice.orch.Start(ctx, bob.identity)
	require.NoError(t, err)
	require.NoError(t, bob.orch.AttachIncoming(ctx, callID, alice.identity))

	// Ringing, not yet accepted: the caller must not have built a link.
	waitForState(t, alice.orch, StateRinging)
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, alice.linkCount())

	require.NoError(t, bob.orch.Accept(ctx))
	waitForState(t, alice.orch, StateNegotiating)
	assert.Equal(t, 1, alice.linkCount())
}

func TestDuplicateReadySignalCreatesOneLink(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	bob := newPeer(t, broker, "bob", 5*time.Second)
	callID := connectPeers(t, alice, bob)

	// A replayed readiness signal must not spawn a second link.
	ev := signal.CallEvent{CallID: callID, Type: signal.CallEventReady, From: bob.identity}
	data, err := ev.Encode()
	require.NoError(t, err)
	require.NoError(t, bob.transport.Publish(signal.CallEventTopic(callID, alice.identity), data))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, alice.linkCount())
}

func TestRingTimeout(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 50*time.Millisecond)

	_, err := alice.orch.Start(context.Background(), "bob")
	require.NoError(t, err)

	waitForState(t, alice.orch, StateTimeout)
	assert.True(t, alice.api.has("end"))

	// Terminal states are exclusive: a later hang-up cannot relabel a
	// timed-out call.
	assert.ErrorIs(t, alice.orch.End(context.Background()), ErrCallTerminated)
	assert.Equal(t, StateTimeout, alice.orch.State())
}

func TestTimeoutWhileNegotiating(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 200*time.Millisecond)
	bob := newPeer(t, broker, "bob", 200*time.Millisecond)

	connectPeers(t, alice, bob)

	// Negotiation started but the link never reports connected; the
	// timer must still force the call out.
	waitForState(t, alice.orch, StateTimeout)
	assert.True(t, alice.api.has("end"))
	assert.True(t, alice.link(t).isClosed())

	// The receiver lands in a terminal state too, either through its
	// own timer or the caller's ended event, whichever arrives first.
	require.Eventually(t, func() bool { return bob.orch.State().Terminal() },
		2*time.Second, 10*time.Millisecond, "receiver never left %s", bob.orch.State())
}

func TestReject(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	bob := newPeer(t, broker, "bob", 5*time.Second)
	ctx := context.Background()

	callID, err := alice.orch.Start(ctx, bob.identity)
	require.NoError(t, err)
	require.NoError(t, bob.orch.AttachIncoming(ctx, callID, alice.identity))
	require.NoError(t, bob.orch.Reject(ctx))

	assert.Equal(t, StateRejected, bob.orch.State())
	waitForState(t, alice.orch, StateRejected)

	err = bob.orch.Accept(ctx)
	assert.ErrorIs(t, err, ErrCallTerminated)
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	bob := newPeer(t, broker, "bob", 5*time.Second)
	ctx := context.Background()

	callID, err := alice.orch.Start(ctx, bob.identity)
	require.NoError(t, err)
	require.NoError(t, bob.orch.AttachIncoming(ctx, callID, alice.identity))

	// Candidates land before bob even has a link. They must queue and
	// replay in arrival order after the offer is applied.
	for i := 0; i < 3; i++ {
		env := &signal.Envelope{
			ScopeID: callID,
			From:    alice.identity,
			To:      bob.identity,
			Type:    signal.SignalCandidate,
			Candidate: &signal.CandidateDescriptor{
				Candidate: fmt.Sprintf("candidate:%d 1 udp 2130706431 192.0.2.1 50000 typ host", i),
			},
		}
		data, err := env.Encode()
		require.NoError(t, err)
		require.NoError(t, alice.transport.Publish(signal.SignalTopic(bob.identity), data))
	}

	require.NoError(t, bob.orch.Accept(ctx))
	waitForState(t, bob.orch, StateNegotiating)

	require.Eventually(t, func() bool { return len(bob.link(t).appliedCandidates()) == 3 },
		2*time.Second, 10*time.Millisecond)
	applied := bob.link(t).appliedCandidates()
	for i, cand := range applied {
		assert.Contains(t, cand.Candidate, fmt.Sprintf("candidate:%d", i))
	}
}

func TestLinkFailureEndsConnectedCall(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	bob := newPeer(t, broker, "bob", 5*time.Second)

	errs := make(chan error, 1)
	alice.orch.OnError(func(err error) { errs <- err })

	connectPeers(t, alice, bob)
	alice.link(t).fire(rtc.LinkConnected)
	waitForState(t, alice.orch, StateConnected)

	alice.link(t).fire(rtc.LinkFailed)
	waitForState(t, alice.orch, StateEnded)

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("error callback never fired")
	}
}

func TestMediaToggleLeavesNegotiationAlone(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	bob := newPeer(t, broker, "bob", 5*time.Second)
	ctx := context.Background()

	events := make(chan signal.CallEvent, 4)
	bob.orch.OnPeerEvent(func(ev signal.CallEvent) { events <- ev })

	connectPeers(t, alice, bob)
	linksBefore := alice.linkCount() + bob.linkCount()

	require.NoError(t, alice.orch.SetCamera(ctx, false))
	require.NoError(t, alice.orch.SendReaction(ctx, "👍"))

	ev := nextEvent(t, events)
	assert.Equal(t, signal.CallEventCamera, ev.Type)
	assert.Equal(t, "off", ev.Action)
	ev = nextEvent(t, events)
	assert.Equal(t, signal.CallEventReaction, ev.Type)
	assert.Equal(t, "👍", ev.Action)

	// No renegotiation: the toggle created no link and no offer.
	assert.Equal(t, linksBefore, alice.linkCount()+bob.linkCount())
	assert.True(t, alice.api.has("camera"))
	assert.True(t, alice.api.has("reaction"))
}

func TestAcceptGuards(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	ctx := context.Background()

	assert.ErrorIs(t, alice.orch.Accept(ctx), ErrNoActiveCall)

	_, err := alice.orch.Start(ctx, "bob")
	require.NoError(t, err)
	assert.ErrorIs(t, alice.orch.Accept(ctx), ErrNotReceiver)
}

func TestStartTwice(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	ctx := context.Background()

	_, err := alice.orch.Start(ctx, "bob")
	require.NoError(t, err)
	_, err = alice.orch.Start(ctx, "carol")
	assert.ErrorIs(t, err, ErrCallActive)
}

func TestInitiateFailureAbortsCall(t *testing.T) {
	broker := signal.NewMemoryBroker()
	alice := newPeer(t, broker, "alice", 5*time.Second)
	alice.api.fail["initiate"] = fmt.Errorf("server down")

	_, err := alice.orch.Start(context.Background(), "bob")
	require.Error(t, err)
	assert.Equal(t, StateEnded, alice.orch.State())
}
