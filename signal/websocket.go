package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// writeTimeout bounds a single frame write to the broker.
	writeTimeout = 10 * time.Second

	// pongTimeout is how long the connection may stay silent before the
	// read loop declares it dead.
	pongTimeout = 60 * time.Second

	// pingInterval must be shorter than pongTimeout.
	pingInterval = 25 * time.Second

	// reconnectBaseDelay is the initial delay between reconnect attempts.
	reconnectBaseDelay = time.Second

	// reconnectMaxDelay caps reconnect backoff.
	reconnectMaxDelay = 30 * time.Second
)

// wireFrame is the frame exchanged with the signaling broker.
//
// Client to broker: {"action": "subscribe"|"unsubscribe"|"send", "topic": ..., "payload": ...}
// Broker to client: {"topic": ..., "payload": ...}
type wireFrame struct {
	Action  string          `json:"action,omitempty"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WebsocketTransport is the production Transport: a single persistent
// websocket to the signaling broker carrying subscription management
// and topic payloads as JSON frames.
//
// After an unexpected connection loss the transport reconnects with
// capped exponential backoff and replays every live subscription, so
// orchestrators keep receiving signaling without re-issuing their
// subscriptions. Peer links are never touched by transport loss.
type WebsocketTransport struct {
	url    string
	dialer *websocket.Dialer

	mu        sync.RWMutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	creds     Credentials
	connected bool
	closing   bool

	subs    map[string]*Subscription
	stateCb func(ConnectionState)

	// sessionID tags log lines across reconnects of this transport.
	sessionID string
}

// NewWebsocketTransport creates a transport that will dial the given
// broker websocket URL.
func NewWebsocketTransport(url string) *WebsocketTransport {
	return &WebsocketTransport{
		url:       url,
		dialer:    websocket.DefaultDialer,
		subs:      make(map[string]*Subscription),
		sessionID: uuid.New().String(),
	}
}

// Connect establishes the websocket connection and starts the read
// loop. Connect is idempotent per credential set: calling it while
// connected with the same credentials is a no-op, with different
// credentials it fails.
func (t *WebsocketTransport) Connect(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	if t.connected {
		same := t.creds == creds
		t.mu.Unlock()
		if same {
			return nil
		}
		return ErrAlreadyConnected
	}
	t.creds = creds
	t.closing = false
	t.mu.Unlock()

	return t.dial(ctx)
}

// dial performs one connection attempt and, on success, marks the
// transport connected, replays subscriptions and starts the read loop.
func (t *WebsocketTransport) dial(ctx context.Context) error {
	t.mu.RLock()
	creds := t.creds
	t.mu.RUnlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.Token)
	header.Set("X-Identity", creds.Identity)

	conn, _, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "dial",
			"session":  t.sessionID,
			"url":      t.url,
			"error":    err.Error(),
		}).Error("Failed to connect to signaling broker")
		return fmt.Errorf("failed to connect to signaling broker: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	resub := make([]*Subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		resub = append(resub, sub)
	}
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":      "dial",
		"session":       t.sessionID,
		"identity":      creds.Identity,
		"subscriptions": len(resub),
	}).Info("Connected to signaling broker")

	// Replay live subscriptions so a reconnect is transparent to
	// orchestrators mid-call.
	for _, sub := range resub {
		if err := t.writeFrame(&wireFrame{Action: "subscribe", Topic: sub.Topic}); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "dial",
				"session":  t.sessionID,
				"topic":    sub.Topic,
				"error":    err.Error(),
			}).Warn("Failed to replay subscription")
		}
	}

	t.notifyState(StateConnected)

	go t.readLoop(conn)
	go t.pingLoop(conn)

	return nil
}

// readLoop consumes broker frames and dispatches them to handlers
// until the connection dies.
func (t *WebsocketTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleDisconnect(conn, err)
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"session":  t.sessionID,
				"error":    err.Error(),
			}).Warn("Dropping malformed broker frame")
			continue
		}

		t.dispatch(frame.Topic, frame.Payload)
	}
}

// dispatch delivers a payload to every handler subscribed to the topic.
func (t *WebsocketTransport) dispatch(topic string, payload []byte) {
	t.mu.RLock()
	handlers := make([]Handler, 0, 1)
	for _, sub := range t.subs {
		if sub.Topic == topic {
			handlers = append(handlers, sub.handler)
		}
	}
	t.mu.RUnlock()

	if len(handlers) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"session":  t.sessionID,
			"topic":    topic,
		}).Debug("Dropping frame for topic with no subscribers")
		return
	}

	for _, h := range handlers {
		h(topic, payload)
	}
}

// pingLoop keeps the connection alive until it is replaced or closed.
func (t *WebsocketTransport) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.RLock()
		current := t.conn == conn && t.connected
		t.mu.RUnlock()
		if !current {
			return
		}

		t.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		t.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// handleDisconnect transitions to disconnected and, unless the close
// was requested locally, starts the reconnect loop.
func (t *WebsocketTransport) handleDisconnect(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		// A newer connection already replaced this one.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.connected = false
	closing := t.closing
	t.mu.Unlock()

	conn.Close()

	logrus.WithFields(logrus.Fields{
		"function":  "handleDisconnect",
		"session":   t.sessionID,
		"requested": closing,
		"cause":     cause.Error(),
	}).Warn("Signaling connection lost")

	t.notifyState(StateDisconnected)

	if !closing {
		go t.reconnectLoop()
	}
}

// reconnectLoop re-dials with capped exponential backoff until the
// connection is restored or Disconnect is called.
func (t *WebsocketTransport) reconnectLoop() {
	delay := reconnectBaseDelay
	for {
		time.Sleep(delay)

		t.mu.RLock()
		stop := t.closing || t.connected
		t.mu.RUnlock()
		if stop {
			return
		}

		logrus.WithFields(logrus.Fields{
			"function": "reconnectLoop",
			"session":  t.sessionID,
			"delay":    delay.String(),
		}).Info("Attempting signaling reconnect")

		if err := t.dial(context.Background()); err == nil {
			return
		}

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// Subscribe registers a handler for a topic. The subscription survives
// reconnects until Unsubscribe is called.
func (t *WebsocketTransport) Subscribe(topic string, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: handler cannot be nil", topic)
	}

	sub := &Subscription{
		ID:      uuid.New().String(),
		Topic:   topic,
		handler: handler,
	}

	t.mu.Lock()
	t.subs[sub.ID] = sub
	connected := t.connected
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Subscribe",
		"session":  t.sessionID,
		"topic":    topic,
		"sub_id":   sub.ID,
	}).Debug("Subscription registered")

	if connected {
		if err := t.writeFrame(&wireFrame{Action: "subscribe", Topic: topic}); err != nil {
			t.mu.Lock()
			delete(t.subs, sub.ID)
			t.mu.Unlock()
			return nil, err
		}
	}

	return sub, nil
}

// Unsubscribe releases a subscription handle.
func (t *WebsocketTransport) Unsubscribe(sub *Subscription) error {
	if sub == nil || sub.closed {
		return ErrSubscriptionClosed
	}

	t.mu.Lock()
	delete(t.subs, sub.ID)
	sub.closed = true
	remaining := 0
	for _, s := range t.subs {
		if s.Topic == sub.Topic {
			remaining++
		}
	}
	connected := t.connected
	t.mu.Unlock()

	// Only tell the broker when the last handler for the topic is gone.
	if connected && remaining == 0 {
		return t.writeFrame(&wireFrame{Action: "unsubscribe", Topic: sub.Topic})
	}
	return nil
}

// Publish sends a payload to a topic. Publishing while disconnected is
// a no-op with a logged warning: the caller's peer links may still be
// alive and must not be torn down by a publish failure.
func (t *WebsocketTransport) Publish(topic string, payload []byte) error {
	t.mu.RLock()
	connected := t.connected
	t.mu.RUnlock()

	if !connected {
		logrus.WithFields(logrus.Fields{
			"function": "Publish",
			"session":  t.sessionID,
			"topic":    topic,
		}).Warn("Publish skipped: transport not connected")
		return nil
	}

	return t.writeFrame(&wireFrame{Action: "send", Topic: topic, Payload: payload})
}

// writeFrame serializes one frame to the current connection.
func (t *WebsocketTransport) writeFrame(frame *wireFrame) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// IsConnected reports whether a live broker connection exists.
func (t *WebsocketTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// OnConnectionStateChange registers a connectivity observer.
func (t *WebsocketTransport) OnConnectionStateChange(fn func(ConnectionState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateCb = fn
}

func (t *WebsocketTransport) notifyState(state ConnectionState) {
	t.mu.RLock()
	cb := t.stateCb
	t.mu.RUnlock()
	if cb != nil {
		cb(state)
	}
}

// Disconnect closes the connection and stops reconnect attempts.
// Subscriptions are retained so a later Connect restores them.
func (t *WebsocketTransport) Disconnect() error {
	t.mu.Lock()
	t.closing = true
	conn := t.conn
	t.conn = nil
	wasConnected := t.connected
	t.connected = false
	t.mu.Unlock()

	if conn != nil {
		t.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		conn.Close()
	}

	if wasConnected {
		logrus.WithFields(logrus.Fields{
			"function": "Disconnect",
			"session":  t.sessionID,
		}).Info("Disconnected from signaling broker")
		t.notifyState(StateDisconnected)
	}
	return nil
}

var _ Transport = (*WebsocketTransport)(nil)
