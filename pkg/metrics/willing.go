package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initWillingMetrics initializes willingness scoring metrics.
func (m *Manager) initWillingMetrics(cfg Config) {
	m.evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "willing_evaluations_total",
			Help: "Total number of evaluated stimuli by outcome",
		},
		[]string{"outcome"},
	)

	m.replyProbability = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "willing_reply_probability",
			Help:    "Reply probability computed per stimulus",
			Buckets: cfg.ProbabilityBuckets,
		},
	)

	m.scores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "willing_score",
			Help:    "Willingness score persisted after each evaluation",
			Buckets: cfg.ScoreBuckets,
		},
	)

	m.decayCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "willing_decay_cycles_total",
			Help: "Total number of background decay passes",
		},
	)

	m.conversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "willing_conversations",
			Help: "Number of conversations tracked by the store",
		},
	)

	m.lifecycleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "willing_lifecycle_events_total",
			Help: "Total number of reply lifecycle notifications",
		},
		[]string{"event"},
	)

	m.tuningReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "willing_tuning_reloads_total",
			Help: "Total number of tuning reloads by result",
		},
		[]string{"result"},
	)

	m.registry.MustRegister(m.evaluations)
	m.registry.MustRegister(m.replyProbability)
	m.registry.MustRegister(m.scores)
	m.registry.MustRegister(m.decayCycles)
	m.registry.MustRegister(m.conversations)
	m.registry.MustRegister(m.lifecycleEvents)
	m.registry.MustRegister(m.tuningReloads)
}

// RecordEvaluation records one scored stimulus.
func (m *Manager) RecordEvaluation(willReply bool, probability, score float64) {
	if !m.enabled {
		return
	}
	outcome := "silent"
	if willReply {
		outcome = "reply"
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	m.replyProbability.Observe(probability)
	m.scores.Observe(score)
}

// RecordLifecycle records a composing, sent or override notification.
func (m *Manager) RecordLifecycle(event string) {
	if !m.enabled {
		return
	}
	m.lifecycleEvents.WithLabelValues(event).Inc()
}

// RecordDecayCycle records a decay pass over the given number of conversations.
func (m *Manager) RecordDecayCycle(conversations int) {
	if !m.enabled {
		return
	}
	m.decayCycles.Inc()
	m.conversations.Set(float64(conversations))
}

// RecordTuningReload records a configuration reload attempt.
func (m *Manager) RecordTuningReload(err error) {
	if !m.enabled {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.tuningReloads.WithLabelValues(result).Inc()
}

// initSnapshotMetrics initializes snapshot persistence metrics.
func (m *Manager) initSnapshotMetrics(cfg Config) {
	m.snapshotOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "willing_snapshot_operations_total",
			Help: "Total number of snapshot operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	m.snapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "willing_snapshot_duration_seconds",
			Help:    "Snapshot operation duration in seconds",
			Buckets: cfg.SnapshotDurationBuckets,
		},
		[]string{"operation"},
	)

	m.snapshotRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "willing_snapshot_records",
			Help: "Number of records handled by the last successful snapshot operation",
		},
		[]string{"operation"},
	)

	m.registry.MustRegister(m.snapshotOps)
	m.registry.MustRegister(m.snapshotDuration)
	m.registry.MustRegister(m.snapshotRecords)
}

// RecordSnapshot records a snapshot save or restore.
func (m *Manager) RecordSnapshot(operation string, records int, duration time.Duration, err error) {
	if !m.enabled {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.snapshotOps.WithLabelValues(operation, result).Inc()
	m.snapshotDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err == nil {
		m.snapshotRecords.WithLabelValues(operation).Set(float64(records))
	}
}
