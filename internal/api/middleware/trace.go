package middleware

import (
	"log/slog"
	"net/http"

	"github.com/examkit/practice-api/internal/api/shared"
)

// TraceMiddleware stamps a trace ID into the request context. Apply it ahead
// of every handler so error responses and logs correlate.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		slog.Debug("request started",
			slog.String("trace_id", traceID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
