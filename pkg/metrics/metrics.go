// Package metrics provides Prometheus metrics instrumentation for the
// willingness daemon.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the daemon.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Willingness metrics
	evaluations      *prometheus.CounterVec
	replyProbability prometheus.Histogram
	scores           prometheus.Histogram
	decayCycles      prometheus.Counter
	conversations    prometheus.Gauge
	lifecycleEvents  *prometheus.CounterVec
	tuningReloads    *prometheus.CounterVec

	// Snapshot metrics
	snapshotOps      *prometheus.CounterVec
	snapshotDuration *prometheus.HistogramVec
	snapshotRecords  *prometheus.GaugeVec

	// HTTP metrics
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	// Histogram bucket configurations
	ProbabilityBuckets      []float64
	ScoreBuckets            []float64
	SnapshotDurationBuckets []float64
	HTTPDurationBuckets     []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		Port:                    9091,
		Path:                    "/metrics",
		ProbabilityBuckets:      []float64{0, 0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1},
		ScoreBuckets:            []float64{0, 0.25, 0.5, 0.75, 1, 1.5, 2, 2.5, 3},
		SnapshotDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		HTTPDurationBuckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	defaults := DefaultConfig()
	if len(cfg.ProbabilityBuckets) == 0 {
		cfg.ProbabilityBuckets = defaults.ProbabilityBuckets
	}
	if len(cfg.ScoreBuckets) == 0 {
		cfg.ScoreBuckets = defaults.ScoreBuckets
	}
	if len(cfg.SnapshotDurationBuckets) == 0 {
		cfg.SnapshotDurationBuckets = defaults.SnapshotDurationBuckets
	}
	if len(cfg.HTTPDurationBuckets) == 0 {
		cfg.HTTPDurationBuckets = defaults.HTTPDurationBuckets
	}

	registry := prometheus.NewRegistry()

	// Register Go runtime metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}

	m.initWillingMetrics(cfg)
	m.initSnapshotMetrics(cfg)
	m.initHTTPMetrics(cfg)

	return m
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Registry returns the underlying registry, nil when disabled.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartServer starts the metrics HTTP server on the configured port. It
// returns nil after ctx is cancelled and the server has shut down.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NoOpManager returns a no-op metrics manager for when metrics are disabled.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}
