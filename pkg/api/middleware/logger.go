// Package middleware provides HTTP middleware for the willingness API.
package middleware

import (
	"net/http"
	"time"

	"github.com/goclaw/willing/pkg/logger"
)

// Logger returns a middleware that logs one line per request. Server errors
// log at error level and client errors at warn.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			ctx := r.Context()
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", routePattern(r),
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", rec.size,
				"remote_addr", r.RemoteAddr,
				"request_id", GetRequestID(ctx),
			}
			switch {
			case rec.status >= http.StatusInternalServerError:
				log.ErrorContext(ctx, "http request", args...)
			case rec.status >= http.StatusBadRequest:
				log.WarnContext(ctx, "http request", args...)
			default:
				log.InfoContext(ctx, "http request", args...)
			}
		})
	}
}
