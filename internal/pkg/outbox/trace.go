package outbox

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// CaptureTrace serializes the trace context of ctx so it can be stored with a
// record and picked up again by the relay in another goroutine.
func CaptureTrace(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// RestoreTrace returns ctx carrying the trace context stored on rec.
func RestoreTrace(ctx context.Context, rec Record) context.Context {
	if len(rec.TraceContext) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(rec.TraceContext))
}
