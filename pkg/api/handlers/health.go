package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/goclaw/willing/pkg/api/response"
	"github.com/goclaw/willing/pkg/version"
	"github.com/goclaw/willing/pkg/willing"
)

// Lifecycle reports the state of the willingness manager.
type Lifecycle interface {
	Started() bool
	Records() []willing.Record
}

// ReadinessCheck is an extra named dependency check run by /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves the probe and status endpoints.
type HealthHandler struct {
	manager   Lifecycle
	checks    []ReadinessCheck
	startedAt time.Time
	details   map[string]any
}

// NewHealthHandler creates a health handler. details are merged into the
// /status response.
func NewHealthHandler(manager Lifecycle, details map[string]any, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		manager:   manager,
		checks:    checks,
		startedAt: time.Now(),
		details:   details,
	}
}

// Health handles /health (liveness). The process answering is enough.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles /ready. The daemon is ready once decay is running and every
// extra check passes.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	if !h.manager.Started() {
		failures["decay"] = "not running"
	}
	for _, c := range h.checks {
		if err := c.Check(r.Context()); err != nil {
			failures[c.Name] = err.Error()
		}
	}

	if len(failures) > 0 {
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready":    false,
			"failures": failures,
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"ready": true})
}

// Status handles /status.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"version":       version.Info(),
		"uptime":        time.Since(h.startedAt).Round(time.Second).String(),
		"decay_running": h.manager.Started(),
		"conversations": len(h.manager.Records()),
	}
	for k, v := range h.details {
		if _, taken := status[k]; !taken {
			status[k] = v
		}
	}
	response.JSON(w, http.StatusOK, status)
}
