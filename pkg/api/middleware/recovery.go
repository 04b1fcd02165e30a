package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/goclaw/willing/pkg/api/response"
	"github.com/goclaw/willing/pkg/logger"
)

// Recovery returns a middleware that turns handler panics into a 500
// envelope. The panic value is logged, never returned to the client.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rv := recover()
				if rv == nil {
					return
				}
				if rv == http.ErrAbortHandler {
					panic(rv)
				}

				requestID := GetRequestID(r.Context())
				log.ErrorContext(r.Context(), "panic recovered",
					"error", rv,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", requestID,
					"stack", string(debug.Stack()),
				)

				response.Error(w,
					http.StatusInternalServerError,
					response.ErrCodeInternalServer,
					"internal server error",
					requestID,
				)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
