package willing

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "goclaw.willing"

// Reply lifecycle adjustments.
const (
	ComposingPenalty  = 2.0
	SentRecovery      = 0.2
	SentRecoveryLimit = 1.0
)

// Lifecycle event names reported to the metrics recorder.
const (
	EventComposing = "composing"
	EventSent      = "sent"
	EventOverride  = "override"
)

// Logger is the minimal logger interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any) {}
func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

// MetricsRecorder receives willingness metrics.
type MetricsRecorder interface {
	RecordEvaluation(willReply bool, probability, score float64)
	RecordLifecycle(event string)
	RecordDecayCycle(conversations int)
}

type nopMetrics struct{}

func (nopMetrics) RecordEvaluation(bool, float64, float64) {}
func (nopMetrics) RecordLifecycle(string)                  {}
func (nopMetrics) RecordDecayCycle(int)                    {}

// DecisionObserver is notified after every evaluated stimulus.
type DecisionObserver func(ctx context.Context, d Decision)

// Manager is the public facade over the store, the scorer and the decay loop.
// Create one per process with NewManager and share it between message handlers.
type Manager struct {
	mu      sync.Mutex
	store   *MemoryStore
	decay   *DecayLoop
	started bool
	stopped bool

	decayInterval time.Duration
	decayFactor   float64

	logger    Logger
	metrics   MetricsRecorder
	observers []DecisionObserver
	draw      func() float64
	now       func() time.Time
}

// NewManager creates a Manager. The decay loop is not started until
// EnsureBackgroundDecayStarted is called.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		store:         NewMemoryStore(),
		decayInterval: DefaultDecayInterval,
		decayFactor:   DefaultDecayFactor,
		logger:        nopLogger{},
		metrics:       nopMetrics{},
		draw:          lockedDraw(rand.New(rand.NewSource(time.Now().UnixNano()))),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.decay = NewDecayLoop(m.store, m.decayInterval, m.decayFactor)
	m.decay.OnCycle(func(n int) {
		m.metrics.RecordDecayCycle(n)
	})
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() *MemoryStore {
	return m.store
}

// EnsureBackgroundDecayStarted launches the decay loop exactly once. Later
// calls are no-ops. The loop stops when ctx is cancelled or Stop is called.
func (m *Manager) EnsureBackgroundDecayStarted(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.started {
		return nil
	}

	m.decay.Start(ctx)
	m.started = true
	m.logger.Info("willingness decay started",
		"interval", m.decay.Interval(),
		"factor", m.decay.Factor(),
	)
	return nil
}

// Started reports whether the decay loop has been launched.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}

// Stop halts the decay loop. A stopped manager keeps serving reads and
// updates but never restarts decay.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	if m.started {
		m.decay.Stop()
		m.logger.Info("willingness decay stopped", "cycles", m.decay.Cycles())
	}
}

// GetWillingness returns the current score, 0 for unknown conversations.
func (m *Manager) GetWillingness(conversationID string) float64 {
	return m.store.Get(conversationID)
}

// LastReplyTime returns the unix time of the last chosen reply, 0 if none.
func (m *Manager) LastReplyTime(conversationID string) float64 {
	return m.store.LastReplyTime(conversationID)
}

// SetWillingness overrides the score of a conversation. The value is clamped
// into [MinScore, MaxScore]. Non-finite values are rejected.
func (m *Manager) SetWillingness(ctx context.Context, conversationID string, value float64) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidScore, value)
	}
	m.store.Set(conversationID, clampScore(value))
	m.metrics.RecordLifecycle(EventOverride)
	m.logger.Debug("willingness overridden", "conversation_id", conversationID, "score", value)
	return nil
}

// EvaluateStimulus scores a stimulus for a conversation, persists the new
// score and, when the draw says so, records now as the last reply time.
func (m *Manager) EvaluateStimulus(ctx context.Context, conv Conversation, stim Stimulus, tuning Tuning) (Decision, error) {
	if conv.ID == "" {
		return Decision{}, ErrInvalidConversationID
	}
	if err := tuning.Validate(); err != nil {
		return Decision{}, err
	}
	if err := stim.Validate(); err != nil {
		return Decision{}, err
	}
	if stim.GroupID == "" {
		stim.GroupID = conv.GroupID
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "willing.evaluate", trace.WithAttributes(
		attribute.String("conversation.id", conv.ID),
		attribute.Bool("stimulus.mentioned", stim.IsMentioned),
		attribute.Bool("stimulus.emoji", stim.IsEmoji),
	))
	defer span.End()

	now := unixSeconds(m.now())
	draw := m.draw()

	var res Result
	rec := m.store.Update(conv.ID, func(r Record) Record {
		res = Compute(Input{
			Score:       r.Score,
			LastReplyAt: r.LastReplyAt,
			Now:         now,
			Stimulus:    stim,
		}, tuning, draw)
		r.Score = res.Score
		if res.WillReply {
			r.LastReplyAt = now
		}
		return r
	})

	m.logger.Debug("willingness evaluated",
		"conversation_id", conv.ID,
		"after_mention", res.Trace.AfterMention,
		"after_emoji", res.Trace.AfterEmoji,
		"after_interest", res.Trace.AfterInterest,
		"after_amplify", res.Trace.AfterAmplify,
		"rate_limit_factor", res.RateLimitFactor,
		"score", rec.Score,
		"probability", res.Probability,
		"will_reply", res.WillReply,
	)

	d := Decision{
		ID:              uuid.NewString(),
		ConversationID:  conv.ID,
		Probability:     res.Probability,
		WillReply:       res.WillReply,
		Score:           rec.Score,
		RateLimitFactor: res.RateLimitFactor,
	}

	span.SetAttributes(
		attribute.Float64("willing.probability", d.Probability),
		attribute.Bool("willing.reply", d.WillReply),
	)
	span.SetStatus(otelcodes.Ok, "")

	m.metrics.RecordEvaluation(d.WillReply, d.Probability, d.Score)
	for _, observe := range m.observers {
		observe(ctx, d)
	}
	return d, nil
}

// OnComposingStarted lowers the score by ComposingPenalty (floored at 0) once
// the agent commits to writing a reply, so overlapping messages do not also
// trigger replies.
func (m *Manager) OnComposingStarted(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}
	rec := m.store.Update(conversationID, func(r Record) Record {
		r.Score = max(0, r.Score-ComposingPenalty)
		return r
	})
	m.metrics.RecordLifecycle(EventComposing)
	m.logger.Debug("reply composing", "conversation_id", conversationID, "score", rec.Score)
	return nil
}

// OnReplySent partially restores willingness after delivery: scores below
// SentRecoveryLimit gain SentRecovery, capped at the limit.
func (m *Manager) OnReplySent(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}
	rec := m.store.Update(conversationID, func(r Record) Record {
		if r.Score < SentRecoveryLimit {
			r.Score = min(SentRecoveryLimit, r.Score+SentRecovery)
		}
		return r
	})
	m.metrics.RecordLifecycle(EventSent)
	m.logger.Debug("reply sent", "conversation_id", conversationID, "score", rec.Score)
	return nil
}

// Records returns a snapshot of every known conversation.
func (m *Manager) Records() []Record {
	return m.store.Snapshot()
}

// String implements fmt.Stringer.
func (m *Manager) String() string {
	return fmt.Sprintf("willing.Manager{conversations: %d, started: %t}", m.store.Len(), m.Started())
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// lockedDraw makes a *rand.Rand safe for concurrent draws.
func lockedDraw(r *rand.Rand) func() float64 {
	var mu sync.Mutex
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return r.Float64()
	}
}
