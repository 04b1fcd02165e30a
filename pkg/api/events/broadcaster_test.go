package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/willing/pkg/willing"
)

func receive(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast event")
	}
	return Event{}
}

func TestBroadcaster_SubscribeBroadcastUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)
	require.Equal(t, 1, b.Subscribers())

	b.Broadcast(Event{Type: TypeScoreChanged, ConversationID: "c1"})

	event := receive(t, ch)
	assert.Equal(t, TypeScoreChanged, event.Type)
	assert.False(t, event.Timestamp.IsZero())

	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())
}

func TestBroadcaster_ObserveDecision(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)

	var observer willing.DecisionObserver = b.ObserveDecision
	observer(context.Background(), willing.Decision{ConversationID: "c1", Probability: 0.8, WillReply: true})

	event := receive(t, ch)
	assert.Equal(t, TypeDecision, event.Type)
	assert.Equal(t, "c1", event.ConversationID)
	d, ok := event.Payload.(willing.Decision)
	require.True(t, ok)
	assert.True(t, d.WillReply)
}

func TestBroadcaster_ScoreChanged(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)

	b.BroadcastScoreChanged("c2", willing.EventSent, 0.7)

	event := receive(t, ch)
	assert.Equal(t, "c2", event.ConversationID)
	assert.Equal(t, ScoreChange{Cause: willing.EventSent, Score: 0.7}, event.Payload)
}

func TestBroadcaster_DropsWhenFull(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)

	b.Broadcast(Event{Type: "a"})
	b.Broadcast(Event{Type: "b"})

	assert.Equal(t, "a", receive(t, ch).Type)
	assert.Equal(t, uint64(1), b.Dropped())
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)

	b.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late := b.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok, "subscriptions after Close must be closed")

	b.Broadcast(Event{Type: "ignored"})
}
