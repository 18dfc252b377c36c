package signal

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MemoryBroker is an in-process topic fan-out shared by any number of
// MemoryTransports. It exists for tests and single-process demos: the
// same topic scheme and delivery semantics as the websocket broker,
// without a network.
type MemoryBroker struct {
	mu         sync.RWMutex
	transports map[string]*MemoryTransport
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		transports: make(map[string]*MemoryTransport),
	}
}

// NewTransport attaches a new transport to the broker.
func (b *MemoryBroker) NewTransport() *MemoryTransport {
	t := &MemoryTransport{
		id:     uuid.New().String(),
		broker: b,
		subs:   make(map[string]*Subscription),
		queue:  make(chan delivery, 256),
	}
	go t.deliverLoop()

	b.mu.Lock()
	b.transports[t.id] = t
	b.mu.Unlock()
	return t
}

// publish fans a payload out to every connected transport subscribed
// to the topic.
func (b *MemoryBroker) publish(topic string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.transports {
		t.offer(topic, payload)
	}
}

// remove detaches a transport. Once remove returns no publish can
// reach the transport's queue, because offer only runs under b.mu.
func (b *MemoryBroker) remove(id string) {
	b.mu.Lock()
	delete(b.transports, id)
	b.mu.Unlock()
}

type delivery struct {
	topic   string
	payload []byte
}

// MemoryTransport is a Transport backed by a MemoryBroker.
//
// Delivery is asynchronous on a per-transport queue, serialized in
// publish order, matching the event-loop delivery model of the
// websocket transport. Handlers therefore never run re-entrantly
// inside the publisher's call stack.
type MemoryTransport struct {
	id     string
	broker *MemoryBroker

	mu        sync.RWMutex
	connected bool
	closed    bool
	creds     Credentials
	subs      map[string]*Subscription
	stateCb   func(ConnectionState)

	queue chan delivery
}

// Connect marks the transport connected. Idempotent per credential set.
func (t *MemoryTransport) Connect(_ context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrNotConnected
	}
	if t.connected {
		same := t.creds == creds
		t.mu.Unlock()
		if same {
			return nil
		}
		return ErrAlreadyConnected
	}
	t.creds = creds
	t.connected = true
	t.mu.Unlock()

	t.notifyState(StateConnected)
	return nil
}

// Subscribe registers a handler for a topic.
func (t *MemoryTransport) Subscribe(topic string, handler Handler) (*Subscription, error) {
	sub := &Subscription{
		ID:      uuid.New().String(),
		Topic:   topic,
		handler: handler,
	}
	t.mu.Lock()
	t.subs[sub.ID] = sub
	t.mu.Unlock()
	return sub, nil
}

// Unsubscribe releases a subscription handle.
func (t *MemoryTransport) Unsubscribe(sub *Subscription) error {
	if sub == nil || sub.closed {
		return ErrSubscriptionClosed
	}
	t.mu.Lock()
	delete(t.subs, sub.ID)
	sub.closed = true
	t.mu.Unlock()
	return nil
}

// Publish fans the payload out through the broker. Publishing while
// disconnected is a logged no-op, matching the production transport.
func (t *MemoryTransport) Publish(topic string, payload []byte) error {
	t.mu.RLock()
	connected := t.connected
	t.mu.RUnlock()

	if !connected {
		logrus.WithFields(logrus.Fields{
			"function": "Publish",
			"topic":    topic,
		}).Warn("Publish skipped: transport not connected")
		return nil
	}

	t.broker.publish(topic, payload)
	return nil
}

// offer enqueues a delivery if this transport is connected and has a
// matching subscription.
func (t *MemoryTransport) offer(topic string, payload []byte) {
	t.mu.RLock()
	want := false
	if t.connected {
		for _, sub := range t.subs {
			if sub.Topic == topic {
				want = true
				break
			}
		}
	}
	t.mu.RUnlock()

	if want {
		t.queue <- delivery{topic: topic, payload: payload}
	}
}

// deliverLoop runs handler dispatch serialized in arrival order.
func (t *MemoryTransport) deliverLoop() {
	for d := range t.queue {
		t.mu.RLock()
		handlers := make([]Handler, 0, 1)
		for _, sub := range t.subs {
			if sub.Topic == d.topic {
				handlers = append(handlers, sub.handler)
			}
		}
		t.mu.RUnlock()

		for _, h := range handlers {
			h(d.topic, d.payload)
		}
	}
}

// IsConnected reports whether Connect has been called.
func (t *MemoryTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// OnConnectionStateChange registers a connectivity observer.
func (t *MemoryTransport) OnConnectionStateChange(fn func(ConnectionState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateCb = fn
}

func (t *MemoryTransport) notifyState(state ConnectionState) {
	t.mu.RLock()
	cb := t.stateCb
	t.mu.RUnlock()
	if cb != nil {
		cb(state)
	}
}

// Disconnect detaches the transport from the broker and stops the
// delivery goroutine. As with the websocket transport, Disconnect is
// terminal. Idempotent.
func (t *MemoryTransport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	was := t.connected
	t.connected = false
	t.closed = true
	t.mu.Unlock()

	// Detach first: after remove returns, no publish is mid-flight
	// into the queue, so closing it is safe.
	t.broker.remove(t.id)
	close(t.queue)

	if was {
		t.notifyState(StateDisconnected)
	}
	return nil
}

var _ Transport = (*MemoryTransport)(nil)
