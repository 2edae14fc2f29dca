package logger

import (
	"context"
	"log/slog"
)

// loggerContextKey is the private context key type for request-scoped loggers.
// A private type prevents collisions with keys from other packages.
type loggerContextKey struct{}

// WithLogger returns a new context carrying the given logger. Middleware uses
// this to attach a request-scoped logger (with trace ID) that downstream
// services and stores retrieve via FromContext.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext retrieves the logger from the context, falling back to the
// process default logger when none is attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// FromContextOrDefault retrieves the logger from the context, falling back to
// the provided default. Components pass their own component-tagged logger as
// the fallback so log records always carry a component attribute.
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok {
		return logger
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
