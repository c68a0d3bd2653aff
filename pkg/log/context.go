package log

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey struct{}

var loggerContextKey = contextKey{}

// SetContextLogger attaches lg to ctx. When ctx carries a valid OpenTelemetry
// span the logger is wrapped in a SpanLogger so entries also land on the span.
// A nil logger is replaced with a NoopLogger.
func SetContextLogger(ctx context.Context, lg Logger) context.Context {
	if lg == nil {
		lg = NewNoopLogger()
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return context.WithValue(ctx, loggerContextKey, lg)
	}

	// Avoid stacking span loggers when a call context is re-derived.
	if sl, ok := lg.(*SpanLogger); ok {
		lg = sl.lg.AddCallerSkip(-1)
	}

	return context.WithValue(ctx, loggerContextKey, NewSpanLogger(lg, NewOtelSpanEventRecorder(span)))
}

// FromContext returns the logger stored in ctx, or a NoopLogger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerContextKey).(Logger); ok {
		return l
	}
	return NewNoopLogger()
}
