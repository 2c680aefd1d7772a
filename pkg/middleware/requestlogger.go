package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront-validation/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, trace_id and
// span_id in the request context. Mount it after RequestLogging and Tracing.
// Handlers retrieve it with logger.FromContext.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSessionLogger tags the request context and its logger with a session id.
// Session-scoped routes call it once the id has been read from the path.
func WithSessionLogger(r *http.Request, sessionID string) *http.Request {
	ctx := logger.WithSessionID(r.Context(), sessionID)
	l := logger.FromContext(ctx).With(slog.String("session_id", sessionID))
	return r.WithContext(logger.NewContext(ctx, l))
}
