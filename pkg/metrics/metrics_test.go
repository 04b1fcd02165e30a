package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/willing/pkg/willing"
)

var (
	_ willing.MetricsRecorder = (*Manager)(nil)
	_ willing.SnapshotMetrics = (*Manager)(nil)
)

func TestNewManager(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true

	m := NewManager(cfg)
	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	if !m.Enabled() {
		t.Error("Expected metrics to be enabled")
	}
	if m.Registry() == nil {
		t.Error("Expected registry to be set")
	}
}

func TestNewManager_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	m := NewManager(cfg)
	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	if m.Enabled() {
		t.Error("Expected metrics to be disabled")
	}
}

func TestNewManager_EmptyBucketsUseDefaults(t *testing.T) {
	m := NewManager(Config{Enabled: true})

	m.RecordEvaluation(true, 0.5, 1.2)
	if got := testutil.CollectAndCount(m.replyProbability); got != 1 {
		t.Errorf("expected reply probability histogram to be collected, got %d", got)
	}
}

func TestRecordEvaluation(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordEvaluation(true, 0.9, 1.4)
	m.RecordEvaluation(false, 0.0, 0.3)
	m.RecordEvaluation(false, 0.1, 0.5)

	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("reply")); got != 1 {
		t.Errorf("reply evaluations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("silent")); got != 2 {
		t.Errorf("silent evaluations = %v, want 2", got)
	}
}

func TestRecordLifecycleAndDecay(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordLifecycle(willing.EventComposing)
	m.RecordLifecycle(willing.EventSent)
	m.RecordLifecycle(willing.EventSent)
	m.RecordDecayCycle(4)
	m.RecordDecayCycle(7)

	if got := testutil.ToFloat64(m.lifecycleEvents.WithLabelValues(willing.EventSent)); got != 2 {
		t.Errorf("sent events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.decayCycles); got != 2 {
		t.Errorf("decay cycles = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.conversations); got != 7 {
		t.Errorf("conversations gauge = %v, want 7", got)
	}
}

func TestRecordTuningReload(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordTuningReload(nil)
	m.RecordTuningReload(errors.New("invalid rate"))

	if got := testutil.ToFloat64(m.tuningReloads.WithLabelValues("success")); got != 1 {
		t.Errorf("successful reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.tuningReloads.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}
}

func TestRecordSnapshot(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordSnapshot("save", 12, 3*time.Millisecond, nil)
	m.RecordSnapshot("save", 99, time.Millisecond, errors.New("backend down"))

	if got := testutil.ToFloat64(m.snapshotOps.WithLabelValues("save", "success")); got != 1 {
		t.Errorf("successful saves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.snapshotOps.WithLabelValues("save", "failure")); got != 1 {
		t.Errorf("failed saves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.snapshotRecords.WithLabelValues("save")); got != 12 {
		t.Errorf("saved records = %v, want 12 (failed save must not overwrite)", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordHTTPRequest("GET", "/api/v1/conversations", "200", 5*time.Millisecond)

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)
	m.RecordHTTPRequestContext(ctx, "GET", "/api/v1/conversations", "200", 7*time.Millisecond)

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/conversations", "200")); got != 2 {
		t.Errorf("http requests = %v, want 2", got)
	}

	m.IncActiveConnections()
	m.IncActiveConnections()
	m.DecActiveConnections()
	if got := testutil.ToFloat64(m.httpConnections); got != 1 {
		t.Errorf("active connections = %v, want 1", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordEvaluation(true, 0.7, 1.1)
	m.RecordLifecycle(willing.EventComposing)
	m.RecordDecayCycle(3)
	m.RecordSnapshot("restore", 3, time.Millisecond, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body, _ := io.ReadAll(w.Body)
	for _, name := range []string{
		"willing_evaluations_total",
		"willing_reply_probability",
		"willing_score",
		"willing_decay_cycles_total",
		"willing_conversations",
		"willing_lifecycle_events_total",
		"willing_snapshot_operations_total",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func TestDisabledManager_NoOps(t *testing.T) {
	m := NoOpManager()

	// None of these may panic on a disabled manager.
	m.RecordEvaluation(true, 1, 3)
	m.RecordLifecycle(willing.EventSent)
	m.RecordDecayCycle(10)
	m.RecordTuningReload(nil)
	m.RecordSnapshot("save", 1, time.Millisecond, nil)
	m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
	m.IncActiveConnections()
	m.DecActiveConnections()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for disabled metrics, got %d", w.Code)
	}

	if err := m.StartServer(context.Background(), 0, "/metrics"); err != nil {
		t.Errorf("StartServer on disabled manager should return nil, got %v", err)
	}
}

func TestStartServer_StopsOnCancel(t *testing.T) {
	m := NewManager(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.StartServer(ctx, 0, "/metrics")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("StartServer returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StartServer did not return after cancel")
	}
}
