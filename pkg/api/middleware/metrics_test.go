package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type recordedRequest struct {
	method, path, status string
}

type mockMetricsRecorder struct {
	mu          sync.Mutex
	requests    []recordedRequest
	activeConns int
	peakConns   int
}

func (m *mockMetricsRecorder) RecordHTTPRequestContext(_ context.Context, method, path, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method, path, status})
}

func (m *mockMetricsRecorder) IncActiveConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeConns++
	if m.activeConns > m.peakConns {
		m.peakConns = m.activeConns
	}
}

func (m *mockMetricsRecorder) DecActiveConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeConns--
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	mock := &mockMetricsRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(mock))
	r.Post("/api/v1/conversations/{id}/evaluate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"c1", "c2", "c3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+id+"/evaluate", nil))
	}

	if len(mock.requests) != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", len(mock.requests))
	}
	for _, req := range mock.requests {
		if req.path != "/api/v1/conversations/{id}/evaluate" {
			t.Errorf("expected route pattern label, got %q", req.path)
		}
		if req.status != "200" {
			t.Errorf("expected status 200, got %s", req.status)
		}
	}
	if mock.activeConns != 0 || mock.peakConns != 1 {
		t.Errorf("active=%d peak=%d, want 0 and 1", mock.activeConns, mock.peakConns)
	}
}

func TestMetrics_Unmatched(t *testing.T) {
	mock := &mockMetricsRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(mock))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/123", nil))

	if len(mock.requests) != 1 {
		t.Fatalf("expected 1 recorded request, got %d", len(mock.requests))
	}
	if mock.requests[0].path != "unmatched" || mock.requests[0].status != "404" {
		t.Errorf("unexpected record %+v", mock.requests[0])
	}
}

func TestMetrics_RecordsPanic(t *testing.T) {
	mock := &mockMetricsRecorder{}
	handler := Metrics(mock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}()

	if len(mock.requests) != 1 || mock.requests[0].status != "500" {
		t.Fatalf("expected a 500 record, got %+v", mock.requests)
	}
	if mock.activeConns != 0 {
		t.Errorf("expected active connections to return to 0, got %d", mock.activeConns)
	}
}
