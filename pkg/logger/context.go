package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

var loggerKey ctxKey

// With returns a new context whose logger carries the given fields.
func With(ctx context.Context, fields ...any) context.Context {
	return Into(ctx, From(ctx).With(fields...))
}

// Into stores l in the context.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// From returns the logger stored in context, or default if missing.
func From(ctx context.Context) *slog.Logger {
	if l, ok := Lookup(ctx); ok {
		return l
	}
	return LoggerWrapper()
}

// Lookup reports the context logger without falling back.
func Lookup(ctx context.Context) (*slog.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(loggerKey).(*slog.Logger)
	return l, ok && l != nil
}
