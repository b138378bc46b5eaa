package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Text string `json:"text"`
}

func TestMemoryDeliversToOtherPeers(t *testing.T) {
	broker := NewMemory()
	alice := broker.Connect("alice")
	bob := broker.Connect("bob")
	carol := broker.Connect("carol")

	var aliceGot, bobGot, carolGot []Message
	_, err := alice.Subscribe("room:1", func(m Message) { aliceGot = append(aliceGot, m) })
	require.NoError(t, err)
	_, err = bob.Subscribe("room:1", func(m Message) { bobGot = append(bobGot, m) })
	require.NoError(t, err)
	_, err = carol.Subscribe("room:2", func(m Message) { carolGot = append(carolGot, m) })
	require.NoError(t, err)

	require.NoError(t, alice.Send(context.Background(), "room:1", "note", note{Text: "hi"}))

	assert.Empty(t, aliceGot, "sender does not receive its own broadcast")
	assert.Empty(t, carolGot, "other topics are not delivered")
	require.Len(t, bobGot, 1)
	assert.Equal(t, "alice", bobGot[0].SenderID)
	assert.Equal(t, "note", bobGot[0].Event)

	var n note
	require.NoError(t, bobGot[0].Decode(&n))
	assert.Equal(t, "hi", n.Text)
}

func TestMemoryUnsubscribe(t *testing.T) {
	broker := NewMemory()
	alice := broker.Connect("alice")
	bob := broker.Connect("bob")

	count := 0
	sub, err := bob.Subscribe("t", func(Message) { count++ })
	require.NoError(t, err)
	assert.Equal(t, "t", sub.Topic())
	assert.Equal(t, 1, bob.SubscriptionCount("t"))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, bob.SubscriptionCount("t"))

	require.NoError(t, alice.Send(context.Background(), "t", "e", note{}))
	assert.Equal(t, 0, count)
}

func TestMemoryFailSends(t *testing.T) {
	broker := NewMemory()
	alice := broker.Connect("alice")
	bob := broker.Connect("bob")

	count := 0
	_, err := bob.Subscribe("t", func(Message) { count++ })
	require.NoError(t, err)

	boom := errors.New("network down")
	alice.FailSends(boom)
	assert.ErrorIs(t, alice.Send(context.Background(), "t", "e", note{}), boom)
	assert.Equal(t, 0, count)
	assert.Len(t, alice.Sent(), 1, "failed sends are still recorded")

	alice.FailSends(nil)
	require.NoError(t, alice.Send(context.Background(), "t", "e", note{}))
	assert.Equal(t, 1, count)
}

func TestMemoryClose(t *testing.T) {
	broker := NewMemory()
	alice := broker.Connect("alice")
	bob := broker.Connect("bob")

	count := 0
	_, err := bob.Subscribe("t", func(Message) { count++ })
	require.NoError(t, err)

	bob.Close()
	require.NoError(t, alice.Send(context.Background(), "t", "e", note{}))
	assert.Equal(t, 0, count)

	_, err = bob.Subscribe("t", func(Message) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, bob.Send(context.Background(), "t", "e", note{}), ErrClosed)
}

func TestMemorySendCancelledContext(t *testing.T) {
	alice := NewMemory().Connect("alice")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, alice.Send(ctx, "t", "e", note{}), context.Canceled)
	assert.Empty(t, alice.Sent())
}

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame("typing:r", "typing", map[string]bool{"is_typing": true})
	require.NoError(t, err)
	assert.Equal(t, FrameBroadcast, frame.Type)
	assert.Equal(t, "typing:r", frame.Topic)
	assert.JSONEq(t, `{"is_typing":true}`, string(frame.Payload))

	_, err = EncodeFrame("t", "e", make(chan int))
	assert.Error(t, err)
}

func TestNilSubscriptionUnsubscribe(t *testing.T) {
	var sub *Subscription
	assert.NotPanics(t, sub.Unsubscribe)
}
