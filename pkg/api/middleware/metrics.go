package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// MetricsRecorder records HTTP request metrics.
type MetricsRecorder interface {
	RecordHTTPRequestContext(ctx context.Context, method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// Metrics returns a middleware that records request counts and latency
// labelled by chi route pattern, so conversation ids never become labels.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			rec := newStatusRecorder(w)
			defer func() {
				status := rec.status
				rv := recover()
				if rv != nil {
					status = http.StatusInternalServerError
				}
				recorder.RecordHTTPRequestContext(r.Context(), r.Method, metricsRoute(r), strconv.Itoa(status), time.Since(start))
				if rv != nil {
					panic(rv)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

func metricsRoute(r *http.Request) string {
	if route := routePattern(r); route != "" {
		return route
	}
	return "unmatched"
}
