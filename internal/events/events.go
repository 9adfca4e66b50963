// Package events carries committed entity changes to interested sinks.
package events

import (
	"context"
	"sync"

	"catering/internal/models"
)

// Sink receives every committed order or reservation change
type Sink interface {
	OrderChanged(ctx context.Context, order *models.Order)
	ReservationChanged(ctx context.Context, reservation *models.Reservation)
}

// Multi fans a change out to several sinks in order
type Multi []Sink

func (m Multi) OrderChanged(ctx context.Context, order *models.Order) {
	for _, s := range m {
		s.OrderChanged(ctx, order)
	}
}

func (m Multi) ReservationChanged(ctx context.Context, reservation *models.Reservation) {
	for _, s := range m {
		s.ReservationChanged(ctx, reservation)
	}
}

// Nop discards changes
type Nop struct{}

func (Nop) OrderChanged(context.Context, *models.Order)             {}
func (Nop) ReservationChanged(context.Context, *models.Reservation) {}

// Recorder keeps every change it sees. Useful in tests. Safe for
// concurrent use.
type Recorder struct {
	mu           sync.Mutex
	orders       []models.Order
	reservations []models.Reservation
}

func (r *Recorder) OrderChanged(_ context.Context, order *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, *order)
}

func (r *Recorder) ReservationChanged(_ context.Context, reservation *models.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations = append(r.reservations, *reservation)
}

// Orders returns a copy of the recorded order changes
func (r *Recorder) Orders() []models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Order(nil), r.orders...)
}

// Reservations returns a copy of the recorded reservation changes
func (r *Recorder) Reservations() []models.Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Reservation(nil), r.reservations...)
}
