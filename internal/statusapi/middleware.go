// Package statusapi exposes the engine's read-only status/log surface
// (spec §6 "consumed by the non-core HTTP API") plus a Prometheus
// /metrics endpoint. CRUD and auth are named non-goals; only Recovery and
// Logging are carried from the teacher's middleware package, adapted to
// zap since the rest of the engine logs structured.
package statusapi

import (
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// responseWriter wraps http.ResponseWriter to capture the status code for
// the Logging middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Recovery recovers from a panic in a handler, logs the stack trace, and
// returns 500 instead of crashing the process.
func Recovery(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Errorw("panic in status API handler", "err", err, "stack", string(debug.Stack()))
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs method, path, status, and latency for every request.
func Logging(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			log.Infow("status api request",
				"method", r.Method, "path", r.URL.Path,
				"status", wrapped.statusCode, "duration", time.Since(start), "remote", r.RemoteAddr)
		})
	}
}
