package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
)

// Client holds the broker list; an empty list disables publishing.
type Client struct {
	Brokers []string
}

// NewClient parses a comma separated broker list.
func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

// Enabled reports whether any broker is configured.
func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter returns a writer without a fixed topic; every message names its own.
func (c *Client) NewWriter() *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher sends outbox records to kafka, keyed by the record key so events
// of one order stay on one partition.
type Publisher struct {
	writer MessageWriter
}

var _ outbox.Publisher = (*Publisher)(nil)

// NewPublisher returns a Publisher writing through w.
func NewPublisher(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish writes one record. The message continues the trace of the request
// that recorded it, not the relay's own context.
func (p *Publisher) Publish(ctx context.Context, rec outbox.Record) error {
	ctx, span := otel.Tracer("order-service/outbox").Start(outbox.RestoreTrace(ctx, rec), "publish "+rec.Topic,
		trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []kafka.Header{{Key: "event_id", Value: []byte(rec.EventID)}}
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   rec.Topic,
		Key:     []byte(rec.Key),
		Value:   rec.Payload,
		Headers: headers,
		Time:    time.Now().UTC(),
	})
}
