package willing

import (
	"math/rand"
	"time"
)

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager.
func WithLogger(log Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.logger = log
		}
	}
}

// WithMetrics sets the metrics recorder for the manager.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithObserver registers a callback invoked after every decision.
func WithObserver(observer DecisionObserver) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
	}
}

// WithRand uses r as the source for the reply draw. Useful for seeded tests.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) {
		if r != nil {
			m.draw = lockedDraw(r)
		}
	}
}

// WithDrawFunc replaces the reply draw. fn must return values in [0, 1).
func WithDrawFunc(fn func() float64) Option {
	return func(m *Manager) {
		if fn != nil {
			m.draw = fn
		}
	}
}

// WithClock replaces the wall clock used for reply timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDecay sets the decay period and factor.
func WithDecay(interval time.Duration, factor float64) Option {
	return func(m *Manager) {
		m.decayInterval = interval
		m.decayFactor = factor
	}
}

// WithStore uses an existing store instead of a fresh one.
func WithStore(store *MemoryStore) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}
