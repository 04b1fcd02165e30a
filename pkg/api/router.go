// Package api assembles the HTTP surface of the willingness daemon.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/goclaw/willing/config"
	"github.com/goclaw/willing/pkg/api/handlers"
	"github.com/goclaw/willing/pkg/api/middleware"
	"github.com/goclaw/willing/pkg/logger"
)

// Handlers holds the HTTP handlers. Nil handlers leave their routes
// unregistered.
type Handlers struct {
	// Conversations serves /api/v1/conversations.
	Conversations *handlers.ConversationHandler

	// Health serves the probe and status endpoints.
	Health *handlers.HealthHandler

	// Events serves the websocket decision stream.
	Events *handlers.WebSocketHandler

	// Metrics is the optional HTTP metrics recorder.
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a chi router with the middleware chain and routes.
func NewRouter(cfg *config.Config, log logger.Logger, h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
	}
	r.Use(middleware.CORS(cfg.Server.CORS))

	RegisterRoutes(r, cfg, h)
	return r
}

// RegisterRoutes registers all routes on r.
func RegisterRoutes(r chi.Router, cfg *config.Config, h *Handlers) {
	if h.Conversations != nil {
		r.Route("/api/v1/conversations", func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.Server.RateLimit))
			r.Use(middleware.Timeout(cfg.Server.HTTP.RequestTimeout))

			r.Get("/", h.Conversations.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Conversations.Get)
				r.Put("/", h.Conversations.SetScore)
				r.Post("/evaluate", h.Conversations.Evaluate)
				r.Post("/composing", h.Conversations.Composing)
				r.Post("/sent", h.Conversations.Sent)
			})
		})
	}

	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/ready", h.Health.Ready)
		r.Get("/status", h.Health.Status)
	}

	// The stream is long-lived, so it sits outside the request timeout.
	if h.Events != nil {
		r.Handle("/ws/events", h.Events)
	}
}
