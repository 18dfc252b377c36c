package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds(identity string) Credentials {
	return Credentials{Identity: identity, Token: "opaque-token"}
}

func TestMemoryTransportRoundTrip(t *testing.T) {
	broker := NewMemoryBroker()
	alice := broker.NewTransport()
	bob := broker.NewTransport()
	require.NoError(t, alice.Connect(context.Background(), testCreds("alice")))
	require.NoError(t, bob.Connect(context.Background(), testCreds("bob")))

	received := make(chan []byte, 1)
	_, err := bob.Subscribe(SignalTopic("bob"), func(topic string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	require.NoError(t, alice.Publish(SignalTopic("bob"), []byte("hello")))

	select {
	case payload := <-received:
		assert.Equal(t, []byte("hello"), payload)
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestMemoryTransportPublishWhileDisconnected(t *testing.T) {
	broker := NewMemoryBroker()
	alice := broker.NewTransport()
	bob := broker.NewTransport()
	require.NoError(t, bob.Connect(context.Background(), testCreds("bob")))

	received := make(chan []byte, 1)
	_, err := bob.Subscribe(SignalTopic("bob"), func(topic string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	// Disconnected publisher: no error, no delivery.
	require.NoError(t, alice.Publish(SignalTopic("bob"), []byte("lost")))

	select {
	case <-received:
		t.Fatal("disconnected transport must not deliver")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryTransportUnsubscribeStopsDelivery(t *testing.T) {
	broker := NewMemoryBroker()
	alice := broker.NewTransport()
	bob := broker.NewTransport()
	require.NoError(t, alice.Connect(context.Background(), testCreds("alice")))
	require.NoError(t, bob.Connect(context.Background(), testCreds("bob")))

	received := make(chan []byte, 4)
	sub, err := bob.Subscribe(SignalTopic("bob"), func(topic string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)
	require.NoError(t, bob.Unsubscribe(sub))

	require.NoError(t, alice.Publish(SignalTopic("bob"), []byte("late")))

	select {
	case <-received:
		t.Fatal("unsubscribed handler must not fire")
	case <-time.After(100 * time.Millisecond):
	}

	// Double release reports the handle as spent.
	assert.ErrorIs(t, bob.Unsubscribe(sub), ErrSubscriptionClosed)
}

func TestMemoryTransportConnectValidatesCredentials(t *testing.T) {
	broker := NewMemoryBroker()
	transport := broker.NewTransport()

	err := transport.Connect(context.Background(), Credentials{Identity: "alice"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = transport.Connect(context.Background(), Credentials{Token: "tok"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMemoryTransportConnectIdempotent(t *testing.T) {
	broker := NewMemoryBroker()
	transport := broker.NewTransport()
	creds := testCreds("alice")

	require.NoError(t, transport.Connect(context.Background(), creds))
	require.NoError(t, transport.Connect(context.Background(), creds))
	assert.True(t, transport.IsConnected())

	err := transport.Connect(context.Background(), testCreds("other"))
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestMemoryTransportDisconnectStopsDelivery(t *testing.T) {
	broker := NewMemoryBroker()
	alice := broker.NewTransport()
	bob := broker.NewTransport()
	require.NoError(t, alice.Connect(context.Background(), testCreds("alice")))
	require.NoError(t, bob.Connect(context.Background(), testCreds("bob")))

	received := make(chan []byte, 4)
	_, err := bob.Subscribe(SignalTopic("bob"), func(topic string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	require.NoError(t, bob.Disconnect())
	require.NoError(t, bob.Disconnect())

	// The detached transport no longer receives broker traffic.
	require.NoError(t, alice.Publish(SignalTopic("bob"), []byte("gone")))
	select {
	case <-received:
		t.Fatal("disconnected transport must not deliver")
	case <-time.After(100 * time.Millisecond):
	}

	// Disconnect is terminal.
	assert.ErrorIs(t, bob.Connect(context.Background(), testCreds("bob")), ErrNotConnected)
}

func TestMemoryTransportStateNotifications(t *testing.T) {
	broker := NewMemoryBroker()
	transport := broker.NewTransport()

	states := make([]ConnectionState, 0, 2)
	transport.OnConnectionStateChange(func(state ConnectionState) {
		states = append(states, state)
	})

	require.NoError(t, transport.Connect(context.Background(), testCreds("alice")))
	require.NoError(t, transport.Disconnect())

	require.Len(t, states, 2)
	assert.Equal(t, StateConnected, states[0])
	assert.Equal(t, StateDisconnected, states[1])
}
