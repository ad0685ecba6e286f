package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type handleKey struct{}

// Handle owns the tracer and its provider shutdown
type Handle struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// From returns nil when tracing is disabled
func From(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleKey{}).(*Handle)
	return h
}

// StartSpan starts a span on the context tracer. Without a handle the span is a no-op.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := trace.Tracer(noop.NewTracerProvider().Tracer(TracerName))
	if h := From(ctx); h != nil && h.Tracer != nil {
		tracer = h.Tracer
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
