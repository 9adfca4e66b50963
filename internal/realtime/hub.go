package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"catering/internal/models"
	"catering/internal/monitoring"
	"catering/internal/observability"
)

const sendBuffer = 256

// Role decides which records a subscriber may see
type Role string

const (
	// RoleKitchen sees every order on the live board
	RoleKitchen Role = "kitchen"
	// RoleDriver sees the unarchived orders assigned to one driver
	RoleDriver Role = "driver"
	// RoleCustomer sees the orders placed by one customer
	RoleCustomer Role = "customer"
	// RoleEvent sees the live reservations of one event
	RoleEvent Role = "event"
)

// Subscription is a role plus the driver, customer or event it is scoped to
type Subscription struct {
	Role      Role
	SubjectID uint
}

// Subscriber is one live view registered with the hub
type Subscriber struct {
	sub    Subscription
	send   chan Message
	known  map[key]struct{}
	closed bool
}

// Messages is closed when the subscriber is dropped
func (s *Subscriber) Messages() <-chan Message { return s.send }

// Subscription returns what the subscriber follows
func (s *Subscriber) Subscription() Subscription { return s.sub }

// Hub fans committed changes out to subscribers. It implements events.Sink.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscriber]struct{}
	logger  observability.Logger
	metrics *monitoring.MetricsCollector
	loc     *time.Location
	now     func() time.Time
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithLocation sets the business timezone used for the kitchen board
func WithLocation(loc *time.Location) HubOption { return func(h *Hub) { h.loc = loc } }

// WithClock replaces time.Now
func WithClock(now func() time.Time) HubOption { return func(h *Hub) { h.now = now } }

// WithMetrics counts subscribers per role
func WithMetrics(m *monitoring.MetricsCollector) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates an empty hub
func NewHub(logger observability.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[*Subscriber]struct{}),
		logger: logger,
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a view. Changes committed from now on are queued for it.
func (h *Hub) Subscribe(sub Subscription) *Subscriber {
	s := &Subscriber{
		sub:   sub,
		send:  make(chan Message, sendBuffer),
		known: make(map[key]struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	h.metrics.AddSubscribers(string(sub.Role), 1)
	return s
}

// Prime queues the connect snapshot followed by a synced marker
func (h *Hub) Prime(s *Subscriber, snapshot []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range snapshot {
		if !h.deliver(s, m) {
			return
		}
	}
	h.deliver(s, Message{Op: OpSynced})
}

// Unsubscribe drops a view. It is safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(s)
}

// Subscribers returns the number of registered views
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// drop removes s and closes its channel; h.mu must be held
func (h *Hub) drop(s *Subscriber) {
	if s.closed {
		return
	}
	s.closed = true
	delete(h.subs, s)
	close(s.send)
	h.metrics.AddSubscribers(string(s.sub.Role), -1)
}

// deliver queues m without blocking. A subscriber that cannot keep up is
// dropped and resyncs when it reconnects. h.mu must be held.
func (h *Hub) deliver(s *Subscriber, m Message) bool {
	if s.closed {
		return false
	}
	select {
	case s.send <- m:
	default:
		h.logger.Warn("Live view buffer full, disconnecting subscriber",
			zap.String("role", string(s.sub.Role)), zap.Uint("subject_id", s.sub.SubjectID))
		h.drop(s)
		return false
	}

	switch m.Op {
	case OpUpsert:
		s.known[m.key()] = struct{}{}
	case OpRemove:
		delete(s.known, m.key())
	}
	return true
}

// publish sends m to every subscriber that may see it and a removal to
// those that saw the entity before but no longer may
func (h *Hub) publish(m Message, visible func(Subscription) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		switch {
		case m.Op == OpUpsert && visible(s.sub):
			h.deliver(s, m)
		case hasKey(s.known, m.key()):
			h.deliver(s, removal(m))
		}
	}
}

func hasKey(known map[key]struct{}, k key) bool {
	_, ok := known[k]
	return ok
}

// OrderVisible reports whether a subscription may see o as of now
func OrderVisible(sub Subscription, o *models.Order, now time.Time, loc *time.Location) bool {
	switch sub.Role {
	case RoleKitchen:
		return o.IsActive(now, loc)
	case RoleDriver:
		return !o.Archived && o.AssignedTo(sub.SubjectID)
	case RoleCustomer:
		return o.CustomerID != nil && *o.CustomerID == sub.SubjectID
	}
	return false
}

// ReservationVisible reports whether a subscription may see r
func ReservationVisible(sub Subscription, r *models.Reservation) bool {
	return sub.Role == RoleEvent && sub.SubjectID == r.EventID
}

// OrderChanged pushes a committed order to the views allowed to see it
func (h *Hub) OrderChanged(_ context.Context, o *models.Order) {
	now := h.now()
	h.publish(OrderMessage(o), func(sub Subscription) bool {
		return OrderVisible(sub, o, now, h.loc)
	})
}

// ReservationChanged pushes a committed booking or cancellation to its event's views
func (h *Hub) ReservationChanged(_ context.Context, r *models.Reservation) {
	m := ReservationMessage(r)
	if m.Op == OpRemove {
		h.mu.Lock()
		defer h.mu.Unlock()
		for s := range h.subs {
			if ReservationVisible(s.sub, r) {
				h.deliver(s, m)
			}
		}
		return
	}
	h.publish(m, func(sub Subscription) bool {
		return ReservationVisible(sub, r)
	})
}
