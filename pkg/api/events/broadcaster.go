// Package events fans willingness events out to in-process subscribers such
// as the websocket stream.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goclaw/willing/pkg/willing"
)

// Event types.
const (
	TypeDecision     = "decision.evaluated"
	TypeScoreChanged = "willingness.changed"
)

const defaultSubscriberBuffer = 16

// Event is the payload broadcast to subscribers.
type Event struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload"`
}

// ScoreChange describes a willingness change outside of evaluation.
type ScoreChange struct {
	Cause string  `json:"cause"`
	Score float64 `json:"score"`
}

// Broadcaster delivers events to subscribers without blocking publishers.
// A subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
	dropped     atomic.Uint64
}

// NewBroadcaster creates a broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel receiving future events. It is closed by
// Unsubscribe or Close.
func (b *Broadcaster) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Broadcast sends event to every subscriber.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	// Sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// ObserveDecision publishes an evaluated decision. Its signature matches
// willing.DecisionObserver.
func (b *Broadcaster) ObserveDecision(_ context.Context, d willing.Decision) {
	b.Broadcast(Event{
		Type:           TypeDecision,
		ConversationID: d.ConversationID,
		Payload:        d,
	})
}

// BroadcastScoreChanged publishes a composing, sent or override change.
func (b *Broadcaster) BroadcastScoreChanged(conversationID, cause string, score float64) {
	b.Broadcast(Event{
		Type:           TypeScoreChanged,
		ConversationID: conversationID,
		Payload:        ScoreChange{Cause: cause, Score: score},
	})
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels. Later subscriptions are closed
// immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
