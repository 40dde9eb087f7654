package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceSurvivesTheRecord(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "order.create")
	rec := Record{TraceContext: CaptureTrace(ctx)}
	span.End()
	require.Contains(t, rec.TraceContext, "traceparent")

	restored := trace.SpanContextFromContext(RestoreTrace(context.Background(), rec))
	assert.True(t, restored.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), restored.TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), restored.SpanID())
}

func TestCaptureWithoutSpanIsEmpty(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	assert.Empty(t, CaptureTrace(context.Background()))

	ctx := context.Background()
	assert.Equal(t, ctx, RestoreTrace(ctx, Record{}))
}
