package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/willing/pkg/willing"
)

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler(willing.NewManager(), nil)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_Ready(t *testing.T) {
	m := willing.NewManager()
	h := NewHealthHandler(m, nil)

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "not ready before decay starts")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.EnsureBackgroundDecayStarted(ctx))
	defer m.Stop()

	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_ReadyFailingCheck(t *testing.T) {
	m := willing.NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.EnsureBackgroundDecayStarted(ctx))
	defer m.Stop()

	h := NewHealthHandler(m, nil, ReadinessCheck{
		Name:  "storage",
		Check: func(context.Context) error { return errors.New("redis unreachable") },
	})

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis unreachable")
}

func TestHealthHandler_Status(t *testing.T) {
	m := willing.NewManager()
	require.NoError(t, m.SetWillingness(context.Background(), "c1", 1))
	h := NewHealthHandler(m, map[string]any{"storage": "memory", "conversations": -1})

	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	status := decodeBody[map[string]any](t, w)
	assert.Equal(t, "memory", status["storage"])
	assert.Equal(t, float64(1), status["conversations"], "details never override built-in fields")
	assert.Equal(t, false, status["decay_running"])
	assert.Contains(t, status, "version")
}
