package apm

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "cycle")
	defer span.End()

	got := TraceID(ctx)
	if got == "" || got != span.SpanContext().TraceID().String() {
		t.Errorf("TraceID() = %q, want %q", got, span.SpanContext().TraceID().String())
	}
}
