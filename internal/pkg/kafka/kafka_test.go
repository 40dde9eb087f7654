package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type sliceSource struct {
	mu      sync.Mutex
	pending []outbox.Record
	sent    []int64
}

func (s *sliceSource) FetchPending(_ context.Context, limit int) ([]outbox.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > limit {
		return append([]outbox.Record(nil), s.pending[:limit]...), nil
	}
	return append([]outbox.Record(nil), s.pending...), nil
}

func (s *sliceSource) MarkSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	for i, r := range s.pending {
		if r.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestNewClient(t *testing.T) {
	c := NewClient(" broker-1:9092, ,broker-2:9092 ")
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, c.Brokers)
	assert.True(t, c.Enabled())
	assert.False(t, NewClient("").Enabled())
}

func TestRelayedMessageContinuesTheRecordedTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	reqCtx, span := tp.Tracer("test").Start(context.Background(), "POST /orders")
	rec := outbox.Record{
		ID:           7,
		EventID:      "evt-1",
		Topic:        "order.events",
		Key:          "order-1",
		Payload:      json.RawMessage(`{"type":"order.created"}`),
		TraceContext: outbox.CaptureTrace(reqCtx),
	}
	span.End()

	src := &sliceSource{pending: []outbox.Record{rec}}
	w := &captureWriter{}
	n, err := outbox.NewRelay(src, NewPublisher(w), time.Second, 10).Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{7}, src.sent)

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "order.events", m.Topic)
	assert.Equal(t, "order-1", string(m.Key))
	assert.JSONEq(t, `{"type":"order.created"}`, string(m.Value))
	assert.Equal(t, "evt-1", header(m, "event_id"))
	assert.Contains(t, header(m, "traceparent"), span.SpanContext().TraceID().String())
}

func TestPublishWithoutRecordedTraceHasNoParent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	w := &captureWriter{}
	require.NoError(t, NewPublisher(w).Publish(context.Background(), outbox.Record{ID: 1, EventID: "evt-2", Topic: "t"}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "evt-2", header(w.msgs[0], "event_id"))
	assert.Empty(t, header(w.msgs[0], "traceparent"))
}

func TestPublishReturnsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	err := NewPublisher(&captureWriter{err: boom}).Publish(context.Background(), outbox.Record{Topic: "t"})
	assert.ErrorIs(t, err, boom)
}
