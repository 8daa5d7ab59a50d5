package sentry

import (
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/recgen/recgen/internal/middleware"
)

// HTTPMiddleware gives each request its own hub and turns handler panics into
// a 500 plus a Sentry event.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}
		hub.Scope().SetRequest(r)
		if id, ok := middleware.GetSessionID(r.Context()); ok {
			hub.Scope().SetTag("session_id", id)
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		ctx := sentry.SetHubOnContext(r.Context(), hub)

		defer func() {
			if err := recover(); err != nil {
				hub.RecoverWithContext(ctx, err)
				slog.ErrorContext(ctx, "Panic in HTTP handler",
					"panic", err,
					"method", r.Method,
					"path", r.URL.Path,
				)
				if !wrapped.wroteHeader {
					http.Error(wrapped, "Internal Server Error", http.StatusInternalServerError)
				}
			}
		}()

		next.ServeHTTP(wrapped, r.WithContext(ctx))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.statusCode = statusCode
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
