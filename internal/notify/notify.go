// Package notify publishes entity state changes to an outbound message
// channel. Delivery is asynchronous and best-effort: failures are logged and
// never retried.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"catering/internal/models"
	"catering/internal/monitoring"
	"catering/internal/observability"
)

const (
	queueSize   = 1024
	sendTimeout = 5 * time.Second
)

// Notification is the message sent for every committed change
type Notification struct {
	EntityType string    `json:"entity_type"`
	EntityID   uint      `json:"entity_id"`
	NewState   string    `json:"new_state"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey is "<entity>.<state>", e.g. "order.delivering"
func (n Notification) RoutingKey() string {
	return n.EntityType + "." + n.NewState
}

// Key identifies the entity, used as the Kafka partition key
func (n Notification) Key() string {
	return n.EntityType + "-" + strconv.FormatUint(uint64(n.EntityID), 10)
}

// Transport delivers one encoded notification
type Transport interface {
	Send(ctx context.Context, n Notification, body []byte) error
	Close() error
}

// Publisher queues notifications and sends them from a single worker.
// It implements events.Sink.
type Publisher struct {
	transport Transport
	queue     chan Notification
	logger    observability.Logger
	metrics   *monitoring.MetricsCollector
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewPublisher starts the worker that drains the queue into transport
func NewPublisher(transport Transport, logger observability.Logger, metrics *monitoring.MetricsCollector) *Publisher {
	p := &Publisher{
		transport: transport,
		queue:     make(chan Notification, queueSize),
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for n := range p.queue {
		p.send(n)
	}
}

func (p *Publisher) send(n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		p.metrics.RecordNotification("failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := p.transport.Send(ctx, n, body); err != nil {
		p.metrics.RecordNotification("failed")
		p.logger.Warn("Notification not delivered",
			zap.String("routing_key", n.RoutingKey()),
			zap.Uint("entity_id", n.EntityID),
			zap.Error(err),
		)
		return
	}
	p.metrics.RecordNotification("sent")
}

// Publish queues n without blocking. A full queue drops the notification.
func (p *Publisher) Publish(n Notification) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = p.now().UTC()
	}
	select {
	case p.queue <- n:
	default:
		p.metrics.RecordNotification("dropped")
		p.logger.Warn("Notification queue full, dropping", zap.String("routing_key", n.RoutingKey()))
	}
}

// OrderChanged publishes the order's current status
func (p *Publisher) OrderChanged(_ context.Context, o *models.Order) {
	n := Notification{EntityType: "order", EntityID: o.ID, NewState: string(o.Status)}
	if o.DriverStatus != models.DriverStatusNone {
		n.Detail = fmt.Sprintf("driver %s", o.DriverStatus)
	}
	p.Publish(n)
}

// ReservationChanged publishes a booking or the cancellation of one
func (p *Publisher) ReservationChanged(_ context.Context, r *models.Reservation) {
	id := r.ID
	if r.CancelsID != nil {
		id = *r.CancelsID
	}
	p.Publish(Notification{EntityType: "reservation", EntityID: id, NewState: string(r.Status)})
}

// Close stops accepting notifications, sends what is queued and closes the transport
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.transport.Close()
}
