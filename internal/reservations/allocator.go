// Package reservations allocates event table seats without ever letting the
// confirmed bookings on a table exceed its capacity.
package reservations

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"catering/internal/audit"
	"catering/internal/events"
	"catering/internal/models"
	"catering/internal/monitoring"
	"catering/internal/observability"
)

var phonePattern = regexp.MustCompile(`^07\d{8}$`)

// Store is the reservation persistence the allocator needs
type Store interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id uint) (*models.Event, error)
	GetEventByToken(ctx context.Context, token string) (*models.Event, error)
	GetReservation(ctx context.Context, id uint) (*models.Reservation, error)
	CommitReservation(ctx context.Context, r *models.Reservation, admit func(table *models.LayoutObject, occupied int) error) error
	CommitCancellation(ctx context.Context, reservationID uint) (*models.Reservation, bool, error)
	OccupiedByTable(ctx context.Context, eventID uint) (map[uint]int, error)
	ListReservations(ctx context.Context, eventID uint) ([]models.Reservation, error)
}

// AvailabilityCache holds computed seat balances per event
type AvailabilityCache interface {
	Get(ctx context.Context, eventID uint) ([]models.TableAvailability, bool)
	Set(ctx context.Context, eventID uint, tables []models.TableAvailability)
	Invalidate(ctx context.Context, eventID uint)
}

type noCache struct{}

func (noCache) Get(context.Context, uint) ([]models.TableAvailability, bool) { return nil, false }
func (noCache) Set(context.Context, uint, []models.TableAvailability)        {}
func (noCache) Invalidate(context.Context, uint)                             {}

// Guest is the person holding a reservation
type Guest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// NewGuest builds a guest from the booking form fields. Both names are required.
func NewGuest(firstName, lastName, phone string) (Guest, error) {
	first, last := strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if first == "" || last == "" {
		return Guest{}, models.Validationf("first and last name are required")
	}
	return Guest{Name: first + " " + last, Phone: strings.TrimSpace(phone)}, nil
}

// Validate checks the guest name and the mobile number format
func (g Guest) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return models.Validationf("guest name is required")
	}
	if !phonePattern.MatchString(g.Phone) {
		return models.Validationf("phone must be a mobile number in the form 07xxxxxxxx")
	}
	return nil
}

// Allocator commits reservations one table at a time
type Allocator struct {
	store   Store
	cache   AvailabilityCache
	locks   *tableLocks
	fills   *fillGuard
	sink    events.Sink
	audit   *audit.Recorder
	logger  observability.Logger
	tracer  observability.Tracer
	metrics *monitoring.MetricsCollector
}

// Option configures an Allocator
type Option func(*Allocator)

func WithCache(c AvailabilityCache) Option {
	return func(a *Allocator) {
		if c != nil {
			a.cache = c
		}
	}
}

func WithSink(sink events.Sink) Option   { return func(a *Allocator) { a.sink = sink } }
func WithAudit(r *audit.Recorder) Option { return func(a *Allocator) { a.audit = r } }

func WithMetrics(m *monitoring.MetricsCollector) Option {
	return func(a *Allocator) { a.metrics = m }
}

// NewAllocator creates an allocator over store
func NewAllocator(store Store, logger observability.Logger, opts ...Option) *Allocator {
	a := &Allocator{
		store:  store,
		cache:  noCache{},
		locks:  newTableLocks(),
		fills:  newFillGuard(),
		sink:   events.Nop{},
		logger: logger,
		tracer: otel.Tracer("catering/reservations"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateEvent stores an event and its floor plan under a fresh guest token
func (a *Allocator) CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	if strings.TrimSpace(event.Name) == "" {
		return nil, models.Validationf("event name is required")
	}
	if event.HallID == 0 {
		return nil, models.Validationf("event hall is required")
	}
	for _, obj := range event.Objects {
		if obj.Capacity < 0 {
			return nil, models.Validationf("object %q has a negative capacity", obj.Label)
		}
	}
	event.Token = uuid.New().String()

	if err := a.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}
	a.audit.Record(ctx, "event.create", "event", "event %d %q created with %d objects", event.ID, event.Name, len(event.Objects))
	return event, nil
}

// Event loads an event with its floor plan
func (a *Allocator) Event(ctx context.Context, id uint) (*models.Event, error) {
	return a.store.GetEvent(ctx, id)
}

// EventByToken resolves the event behind a guest link
func (a *Allocator) EventByToken(ctx context.Context, token string) (*models.Event, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, models.NotFoundf("event")
	}
	return a.store.GetEventByToken(ctx, token)
}

// Reserve books seatCount seats at a table. The capacity check and the
// insert run as one unit per table, so concurrent callers racing for the
// last seats confirm exactly the bookings that fit.
func (a *Allocator) Reserve(ctx context.Context, eventID, tableID uint, guest Guest, seatCount int) (*models.Reservation, error) {
	ctx, span := a.tracer.Start(ctx, "reservations.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("event.id", int(eventID)),
		attribute.Int("table.id", int(tableID)),
		attribute.Int("reservation.seats", seatCount),
	)

	if seatCount <= 0 {
		a.metrics.RecordReservation("invalid")
		return nil, models.Validationf("seat count must be positive")
	}
	if err := guest.Validate(); err != nil {
		a.metrics.RecordReservation("invalid")
		return nil, err
	}

	r := &models.Reservation{
		EventID:    eventID,
		TableID:    tableID,
		GuestName:  strings.TrimSpace(guest.Name),
		GuestPhone: guest.Phone,
		SeatCount:  seatCount,
		Status:     models.ReservationConfirmed,
	}

	release := a.locks.lock(tableID)
	err := a.store.CommitReservation(ctx, r, func(table *models.LayoutObject, occupied int) error {
		if !table.Reservable() {
			return models.Validationf("%s %q cannot be reserved", table.Kind, table.Label)
		}
		remaining := table.SeatCapacity() - occupied
		if seatCount > remaining {
			return &models.CapacityError{TableID: table.ID, Requested: seatCount, Remaining: remaining}
		}
		return nil
	})
	release()

	if err != nil {
		var capErr *models.CapacityError
		if errors.As(err, &capErr) {
			a.metrics.RecordReservation("capacity_exceeded")
			a.logger.Info("Reservation rejected, table full",
				zap.Uint("event_id", eventID), zap.Uint("table_id", tableID),
				zap.Int("requested", seatCount), zap.Int("remaining", capErr.Remaining))
		} else {
			a.metrics.RecordReservation("error")
		}
		return nil, err
	}

	a.metrics.RecordReservation("confirmed")
	a.invalidate(ctx, eventID)
	a.audit.Record(ctx, "reservation.create", "reservation", "reservation %d: %d seats at table %d for %s", r.ID, seatCount, tableID, r.GuestName)
	a.sink.ReservationChanged(ctx, r)
	return r, nil
}

// ReserveByToken books seats through an event's guest link
func (a *Allocator) ReserveByToken(ctx context.Context, token string, tableID uint, guest Guest, seatCount int) (*models.Reservation, error) {
	event, err := a.EventByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return a.Reserve(ctx, event.ID, tableID, guest, seatCount)
}

// Cancel frees the seats of a booking by recording a cancellation marker.
// Cancelling twice returns the marker written the first time.
func (a *Allocator) Cancel(ctx context.Context, reservationID uint) (*models.Reservation, error) {
	original, err := a.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	release := a.locks.lock(original.TableID)
	marker, created, err := a.store.CommitCancellation(ctx, reservationID)
	release()
	if err != nil {
		return nil, err
	}
	if !created {
		return marker, nil
	}

	a.metrics.RecordReservation("cancelled")
	a.invalidate(ctx, marker.EventID)
	a.audit.Record(ctx, "reservation.cancel", "reservation", "reservation %d cancelled", reservationID)
	a.sink.ReservationChanged(ctx, marker)
	return marker, nil
}

// Availability returns the seat balance of every reservable table in an event
func (a *Allocator) Availability(ctx context.Context, eventID uint) ([]models.TableAvailability, error) {
	if tables, ok := a.cache.Get(ctx, eventID); ok {
		return tables, nil
	}

	gen := a.fills.generation(eventID)
	event, err := a.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	occupied, err := a.store.OccupiedByTable(ctx, eventID)
	if err != nil {
		return nil, err
	}

	tables := make([]models.TableAvailability, 0, len(event.Objects))
	for i := range event.Objects {
		obj := &event.Objects[i]
		if !obj.Reservable() {
			continue
		}
		capacity := obj.SeatCapacity()
		reserved := occupied[obj.ID]
		tables = append(tables, models.TableAvailability{
			TableID:   obj.ID,
			Label:     obj.Label,
			Capacity:  capacity,
			Reserved:  reserved,
			Remaining: max(capacity-reserved, 0),
		})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].TableID < tables[j].TableID })

	a.fills.fill(eventID, gen, func() { a.cache.Set(ctx, eventID, tables) })
	return tables, nil
}

func (a *Allocator) invalidate(ctx context.Context, eventID uint) {
	a.fills.invalidate(eventID, func() { a.cache.Invalidate(ctx, eventID) })
}

// Remaining returns the free seats at one table
func (a *Allocator) Remaining(ctx context.Context, eventID, tableID uint) (int, error) {
	tables, err := a.Availability(ctx, eventID)
	if err != nil {
		return 0, err
	}
	for _, t := range tables {
		if t.TableID == tableID {
			return t.Remaining, nil
		}
	}
	return 0, models.NotFoundf("table %d in event %d", tableID, eventID)
}

// Reservations returns the live bookings of an event, cancellations applied
func (a *Allocator) Reservations(ctx context.Context, eventID uint) ([]models.Reservation, error) {
	rows, err := a.store.ListReservations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return Live(rows), nil
}

// Live drops cancellation markers and the bookings they void
func Live(rows []models.Reservation) []models.Reservation {
	cancelled := make(map[uint]bool)
	for _, r := range rows {
		if r.CancelsID != nil {
			cancelled[*r.CancelsID] = true
		}
	}
	live := make([]models.Reservation, 0, len(rows))
	for _, r := range rows {
		if r.Status == models.ReservationConfirmed && !cancelled[r.ID] {
			live = append(live, r)
		}
	}
	return live
}
