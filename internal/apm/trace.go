// Package apm configures OpenTelemetry tracing and wraps tracer/span access.
package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans on the global provider, so spans are no-ops until
// NewTraceProvider installs an exporter.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span is the subset of trace.Span the pipeline stages use.
type Span interface {
	SetAttributes(values ...attribute.KeyValue)
	AddEvent(name string, values ...attribute.KeyValue)
	End()
}

type otelTracer struct {
	tracer trace.Tracer
}

func NewTracer(name string) Tracer {
	return &otelTracer{otel.Tracer(name)}
}

func (t *otelTracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, otelSpan{span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetAttributes(values ...attribute.KeyValue) { s.span.SetAttributes(values...) }
func (s otelSpan) End()                                       { s.span.End() }

func (s otelSpan) AddEvent(name string, values ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(values...))
}

// TraceID returns the active trace id, or "" outside a sampled span. It
// matches logger.TraceIDFn.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
