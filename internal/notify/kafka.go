package notify

import (
	"context"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"catering/internal/config"
)

// KafkaTransport writes notifications to one topic keyed by entity, with
// trace context carried in the message headers
type KafkaTransport struct {
	writer *otelkafka.Writer
}

// NewKafkaTransport creates an instrumented writer for brokers/topic
func NewKafkaTransport(brokers []string, topic string, tp trace.TracerProvider) (*KafkaTransport, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", config.ServiceName),
			},
		),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaTransport{writer: writer}, nil
}

// Send writes body under the entity key so one entity's changes stay ordered
func (t *KafkaTransport) Send(ctx context.Context, n Notification, body []byte) error {
	return t.writer.WriteMessage(ctx, kafka.Message{
		Key:   []byte(n.Key()),
		Value: body,
		Time:  n.OccurredAt,
	})
}

// Close flushes and closes the writer
func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
