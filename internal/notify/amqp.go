package notify

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPTransport publishes to a durable topic exchange
type AMQPTransport struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

// DialAMQP connects and declares the exchange
func DialAMQP(url, exchange string) (*AMQPTransport, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}
	return &AMQPTransport{conn: conn, ch: ch, exchange: exchange}, nil
}

// Send publishes body as a persistent JSON message routed by entity and state
func (t *AMQPTransport) Send(ctx context.Context, n Notification, body []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch.PublishWithContext(ctx,
		t.exchange,
		n.RoutingKey(),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    n.OccurredAt,
			Body:         body,
		},
	)
}

// Close closes the channel and the connection
func (t *AMQPTransport) Close() error {
	if t.ch != nil {
		_ = t.ch.Close()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
