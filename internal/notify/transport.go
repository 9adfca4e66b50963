package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"catering/internal/config"
)

// Discard drops every notification
type Discard struct{}

func (Discard) Send(context.Context, Notification, []byte) error { return nil }
func (Discard) Close() error                                      { return nil }

// NewTransport builds the transport named by cfg.Driver
func NewTransport(cfg config.NotifyConfig, tp trace.TracerProvider) (Transport, error) {
	switch cfg.Driver {
	case "", "none":
		return Discard{}, nil
	case "amqp":
		t, err := DialAMQP(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "kafka":
		t, err := NewKafkaTransport(cfg.KafkaBrokers, cfg.KafkaTopic, tp)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported notify driver %q", cfg.Driver)
	}
}
