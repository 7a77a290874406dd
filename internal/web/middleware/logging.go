// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/hrimport/internal/logging"
)

// Logger writes one structured line per request: method, path, status,
// duration, client IP and user agent. Lines carry the request ID, and the
// actor once authenticated.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(withActorSink(r.Context(), ww)))

		logger := logging.FromContext(r.Context())
		if ww.actor != "" {
			logger = logger.With("actor", ww.actor)
		}

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

// responseWriter captures the status code, and the actor that inner
// middleware authenticated on a derived context.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	actor       string
}

type actorSinkKey struct{}

func withActorSink(ctx context.Context, ww *responseWriter) context.Context {
	return context.WithValue(ctx, actorSinkKey{}, ww)
}

// recordActor reports an authenticated actor back to Logger.
func recordActor(ctx context.Context, actor string) {
	if ww, ok := ctx.Value(actorSinkKey{}).(*responseWriter); ok {
		ww.actor = actor
	}
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
