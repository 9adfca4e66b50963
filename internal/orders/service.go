package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"catering/internal/audit"
	"catering/internal/events"
	"catering/internal/models"
	"catering/internal/monitoring"
	"catering/internal/observability"
)

// maxAttempts bounds the read-validate-swap loop when writers race
const maxAttempts = 5

// Store is the order persistence the service needs
type Store interface {
	PricingStore
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	UpdateOrderIf(ctx context.Context, id uint, guard models.OrderGuard, update models.OrderUpdate) (bool, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
}

// ConsumptionRecorder records the stock used by a catering order in the background
type ConsumptionRecorder interface {
	ConsumeAsync(ctx context.Context, order *models.Order)
}

// Service owns every write to an order
type Service struct {
	store    Store
	consumer ConsumptionRecorder
	sink     events.Sink
	audit    *audit.Recorder
	logger   observability.Logger
	tracer   observability.Tracer
	metrics  *monitoring.MetricsCollector
	loc      *time.Location
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

func WithConsumer(c ConsumptionRecorder) Option { return func(s *Service) { s.consumer = c } }
func WithSink(sink events.Sink) Option          { return func(s *Service) { s.sink = sink } }
func WithAudit(r *audit.Recorder) Option        { return func(s *Service) { s.audit = r } }
func WithLocation(loc *time.Location) Option    { return func(s *Service) { s.loc = loc } }
func WithClock(now func() time.Time) Option     { return func(s *Service) { s.now = now } }

func WithMetrics(m *monitoring.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates an order service over store
func NewService(store Store, logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		sink:   events.Nop{},
		logger: logger,
		tracer: otel.Tracer("catering/orders"),
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the business timezone that decides where a day starts
func (s *Service) Location() *time.Location { return s.loc }

// Now is the service clock
func (s *Service) Now() time.Time { return s.now() }

// ItemInput is one requested line of a new order
type ItemInput struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Options     []string        `json:"options"`
	Notes       string          `json:"notes"`
}

// CreateOrderInput is a submitted basket
type CreateOrderInput struct {
	Items       []ItemInput              `json:"items"`
	Customer    models.Customer          `json:"customer"`
	CustomerID  *uint                    `json:"customer_id"`
	Fulfillment models.FulfillmentMethod `json:"fulfillment"`
	Catering    bool                     `json:"is_catering"`
	PromoCode   string                   `json:"promo_code"`
}

func (in *CreateOrderInput) validate() error {
	if len(in.Items) == 0 {
		return models.Validationf("order must contain at least one item")
	}
	for i, item := range in.Items {
		if item.ProductID == 0 {
			return models.Validationf("item %d has no product", i+1)
		}
		if item.Quantity <= 0 {
			return models.Validationf("item %d quantity must be positive", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return models.Validationf("item %d has a negative price", i+1)
		}
	}
	if !in.Fulfillment.Valid() {
		return models.Validationf("unknown fulfillment method %q", in.Fulfillment)
	}
	if strings.TrimSpace(in.Customer.Name) == "" {
		return models.Validationf("customer name is required")
	}
	if in.Fulfillment.RequiresTransport() && strings.TrimSpace(in.Customer.Address) == "" {
		return models.Validationf("a delivery address is required for %s orders", in.Fulfillment)
	}
	return nil
}

// CreateOrder validates, prices and stores a new pending order. Catering
// orders then have their ingredient usage recorded in the background; a
// failure there is logged and never fails the order.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.create")
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	promo, err := lookupPromo(ctx, s.store, in.PromoCode, now)
	if err != nil {
		return nil, err
	}
	zone, err := lookupZone(ctx, s.store, in.Fulfillment, in.Customer.City)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Options:     models.StringSlice(it.Options),
			Notes:       it.Notes,
		})
	}
	totals := ComputeTotals(items, in.Fulfillment, zone, promo)

	order := &models.Order{
		CreatedAt:    now.UTC(),
		Items:        items,
		Customer:     in.Customer,
		CustomerID:   in.CustomerID,
		Fulfillment:  in.Fulfillment,
		IsCatering:   in.Catering,
		Subtotal:     totals.Subtotal,
		Discount:     totals.Discount,
		DeliveryCost: totals.DeliveryCost,
		Total:        totals.Total,
		Status:       models.OrderStatusPending,
		Version:      1,
	}
	if promo != nil {
		order.PromoCode = promo.Code
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}
	span.SetAttributes(attribute.Int("order.id", int(order.ID)), attribute.Bool("order.catering", order.IsCatering))

	s.metrics.RecordOrderCreated(string(order.Fulfillment), order.IsCatering)
	s.audit.Record(ctx, "order.create", "order", "order %d placed, total %s", order.ID, order.Total)
	s.sink.OrderChanged(ctx, order)

	if order.IsCatering && s.consumer != nil {
		s.consumer.ConsumeAsync(ctx, order)
	}
	return order, nil
}

// Get loads one order
func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// plan inspects the current order and returns the write to make, or nil
// when the order is already in the requested state
type plan func(o *models.Order) (*models.OrderUpdate, models.OrderGuard, error)

// mutate runs plan against the latest row and applies it with a conditional
// update, retrying when another writer changed the row in between
func (s *Service) mutate(ctx context.Context, id uint, p plan) (before, after *models.Order, err error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := s.store.GetOrder(ctx, id)
		if err != nil {
			return nil, nil, err
		}

		update, guard, err := p(current)
		if err != nil {
			return nil, nil, err
		}
		if update == nil {
			return current, current, nil
		}

		ok, err := s.store.UpdateOrderIf(ctx, id, guard, *update)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			s.logger.Info("Order changed concurrently, retrying", zap.Uint("order_id", id), zap.Int("attempt", attempt+1))
			continue
		}

		updated, err := s.store.GetOrder(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		s.sink.OrderChanged(ctx, updated)
		return current, updated, nil
	}
	return nil, nil, fmt.Errorf("%w: order %d", models.ErrConflict, id)
}

func guardOf(o *models.Order) models.OrderGuard {
	return models.OrderGuard{Status: o.Status, Version: o.Version}
}

func changed(before, after *models.Order) bool {
	return before.Version != after.Version
}

// Transition moves an order to a new status. Asking for the status the order
// already has succeeds without writing.
func (s *Service) Transition(ctx context.Context, id uint, to models.OrderStatus) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.transition")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(id)), attribute.String("order.to", string(to)))

	if !to.Valid() {
		return nil, models.Validationf("unknown order status %q", to)
	}

	before, after, err := s.mutate(ctx, id, func(o *models.Order) (*models.OrderUpdate, models.OrderGuard, error) {
		if o.Status == to {
			return nil, models.OrderGuard{}, nil
		}
		if !CanTransition(o.Status, to) {
			return nil, models.OrderGuard{}, &models.TransitionError{OrderID: o.ID, From: o.Status, To: to}
		}

		update := &models.OrderUpdate{Status: &to}
		if o.DriverID != nil {
			switch to {
			case models.OrderStatusCompleted:
				ds := models.DriverStatusDelivered
				update.DriverStatus = &ds
			case models.OrderStatusPreparing:
				ds := models.DriverStatusAssigned
				update.DriverStatus = &ds
			}
		}
		return update, guardOf(o), nil
	})
	if err != nil {
		return nil, err
	}

	if changed(before, after) {
		s.recordTransition(ctx, before, after)
	}
	return after, nil
}

func (s *Service) recordTransition(ctx context.Context, before, after *models.Order) {
	s.metrics.RecordTransition(string(before.Status), string(after.Status))
	if after.Status == models.OrderStatusCompleted {
		s.metrics.RecordCompletion(string(after.Fulfillment), s.now().Sub(after.CreatedAt))
	}
	s.audit.Record(ctx, "order.transition", "order", "order %d: %s -> %s", after.ID, before.Status, after.Status)
}

// SendBack returns an order that is out for delivery to the kitchen
func (s *Service) SendBack(ctx context.Context, id uint) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDelivering && order.Status != models.OrderStatusPreparing {
		return nil, &models.TransitionError{
			OrderID: id,
			From:    order.Status,
			To:      models.OrderStatusPreparing,
			Reason:  "only orders out for delivery can be sent back",
		}
	}
	return s.Transition(ctx, id, models.OrderStatusPreparing)
}

// AssignDriver attaches a driver to an order in preparation or out for
// delivery and resets the driver sub-state to assigned
func (s *Service) AssignDriver(ctx context.Context, id, driverID uint) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.assign_driver")
	defer span.End()

	if driverID == 0 {
		return nil, models.Validationf("driver id is required")
	}

	before, after, err := s.mutate(ctx, id, func(o *models.Order) (*models.OrderUpdate, models.OrderGuard, error) {
		if !o.Fulfillment.RequiresTransport() {
			return nil, models.OrderGuard{}, models.Validationf("%s orders are not delivered by a driver", o.Fulfillment)
		}
		if o.Status != models.OrderStatusPreparing && o.Status != models.OrderStatusDelivering {
			return nil, models.OrderGuard{}, &models.TransitionError{
				OrderID: o.ID, From: o.Status, To: o.Status,
				Reason: "a driver can only be assigned while preparing or delivering",
			}
		}
		if o.AssignedTo(driverID) && o.DriverStatus == models.DriverStatusAssigned {
			return nil, models.OrderGuard{}, nil
		}
		ds := models.DriverStatusAssigned
		return &models.OrderUpdate{DriverID: &driverID, DriverStatus: &ds}, guardOf(o), nil
	})
	if err != nil {
		return nil, err
	}
	if changed(before, after) {
		s.audit.Record(ctx, "order.assign_driver", "order", "order %d assigned to driver %d", id, driverID)
	}
	return after, nil
}

// UpdateDriverStatus advances the driver sub-state on behalf of the assigned
// driver. Reaching delivered completes the order in the same write.
func (s *Service) UpdateDriverStatus(ctx context.Context, id, driverID uint, to models.DriverStatus) (*models.Order, error) {
	switch to {
	case models.DriverStatusDelivered:
		return s.CompleteDelivery(ctx, id, driverID)
	case models.DriverStatusEnRoute:
	default:
		return nil, models.Validationf("drivers cannot set status %q", to)
	}

	ctx, span := s.tracer.Start(ctx, "orders.driver_en_route")
	defer span.End()

	before, after, err := s.mutate(ctx, id, func(o *models.Order) (*models.OrderUpdate, models.OrderGuard, error) {
		if !o.AssignedTo(driverID) {
			return nil, models.OrderGuard{}, fmt.Errorf("%w: order %d is not assigned to driver %d", models.ErrForbidden, o.ID, driverID)
		}
		if o.DriverStatus == to {
			return nil, models.OrderGuard{}, nil
		}
		if o.Status != models.OrderStatusDelivering {
			return nil, models.OrderGuard{}, &models.TransitionError{
				OrderID: o.ID, From: o.Status, To: o.Status,
				Reason: "the order is not out for delivery",
			}
		}
		if !CanAdvanceDriver(o.DriverStatus, to) {
			return nil, models.OrderGuard{}, invalidDriverStep(o.ID, o.DriverStatus, to)
		}
		guard := guardOf(o)
		guard.DriverStatus = &o.DriverStatus
		return &models.OrderUpdate{DriverStatus: &to}, guard, nil
	})
	if err != nil {
		return nil, err
	}
	if changed(before, after) {
		s.audit.Record(ctx, "order.driver_status", "order", "order %d driver %d: %s -> %s", id, driverID, before.DriverStatus, to)
	}
	return after, nil
}

// CompleteDelivery marks the driver delivered and the order completed in a
// single conditional write, so neither half can land without the other
func (s *Service) CompleteDelivery(ctx context.Context, id, driverID uint) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.complete_delivery")
	defer span.End()

	before, after, err := s.mutate(ctx, id, func(o *models.Order) (*models.OrderUpdate, models.OrderGuard, error) {
		if !o.AssignedTo(driverID) {
			return nil, models.OrderGuard{}, fmt.Errorf("%w: order %d is not assigned to driver %d", models.ErrForbidden, o.ID, driverID)
		}
		if o.Status == models.OrderStatusCompleted && o.DriverStatus == models.DriverStatusDelivered {
			return nil, models.OrderGuard{}, nil
		}
		if o.Status != models.OrderStatusDelivering {
			return nil, models.OrderGuard{}, &models.TransitionError{OrderID: o.ID, From: o.Status, To: models.OrderStatusCompleted}
		}
		if !CanAdvanceDriver(o.DriverStatus, models.DriverStatusDelivered) {
			return nil, models.OrderGuard{}, invalidDriverStep(o.ID, o.DriverStatus, models.DriverStatusDelivered)
		}

		status := models.OrderStatusCompleted
		ds := models.DriverStatusDelivered
		guard := guardOf(o)
		guard.DriverStatus = &o.DriverStatus
		return &models.OrderUpdate{Status: &status, DriverStatus: &ds}, guard, nil
	})
	if err != nil {
		return nil, err
	}
	if changed(before, after) {
		s.recordTransition(ctx, before, after)
	}
	return after, nil
}

// Archive hides a completed or cancelled order from the live board
func (s *Service) Archive(ctx context.Context, id uint) (*models.Order, error) {
	_, after, err := s.mutate(ctx, id, archivePlan)
	if err != nil {
		return nil, err
	}
	return after, nil
}

func archivePlan(o *models.Order) (*models.OrderUpdate, models.OrderGuard, error) {
	if o.Archived {
		return nil, models.OrderGuard{}, nil
	}
	if !o.Status.Terminal() {
		return nil, models.OrderGuard{}, &models.TransitionError{
			OrderID: o.ID, From: o.Status, To: o.Status,
			Reason: "only completed or cancelled orders can be archived",
		}
	}
	archived := true
	return &models.OrderUpdate{Archived: &archived}, guardOf(o), nil
}

// ArchiveDay archives every finished order placed before the current
// operating day. It returns how many orders were archived.
func (s *Service) ArchiveDay(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "orders.archive_day")
	defer span.End()

	cutoff := models.StartOfDay(s.now(), s.loc)
	notArchived := false
	before := cutoff.UTC()
	candidates, err := s.store.ListOrders(ctx, models.OrderFilter{
		Archived:      &notArchived,
		Statuses:      []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled},
		CreatedBefore: &before,
	})
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, o := range candidates {
		if !o.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := s.Archive(ctx, o.ID); err != nil {
			s.logger.Warn("Failed to archive order", zap.Uint("order_id", o.ID), zap.Error(err))
			continue
		}
		archived++
	}
	if archived > 0 {
		s.audit.Record(ctx, "order.archive_day", "order", "archived %d orders placed before %s", archived, cutoff.Format(time.DateOnly))
	}
	span.SetAttributes(attribute.Int("orders.archived", archived))
	return archived, nil
}

// Partition splits orders into the live board and history as of now
func Partition(orders []models.Order, now time.Time, loc *time.Location) (active, history []models.Order) {
	for _, o := range orders {
		if o.IsActive(now, loc) {
			active = append(active, o)
		} else {
			history = append(history, o)
		}
	}
	return active, history
}

// Active returns the orders on the live board
func (s *Service) Active(ctx context.Context) ([]models.Order, error) {
	notArchived := false
	all, err := s.store.ListOrders(ctx, models.OrderFilter{Archived: &notArchived})
	if err != nil {
		return nil, err
	}
	active, _ := Partition(all, s.now(), s.loc)
	return active, nil
}

// History returns archived and past orders, newest first
func (s *Service) History(ctx context.Context, limit int) ([]models.Order, error) {
	all, err := s.store.ListOrders(ctx, models.OrderFilter{})
	if err != nil {
		return nil, err
	}
	_, history := Partition(all, s.now(), s.loc)
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// DriverOrders returns the unarchived orders assigned to a driver
func (s *Service) DriverOrders(ctx context.Context, driverID uint) ([]models.Order, error) {
	notArchived := false
	return s.store.ListOrders(ctx, models.OrderFilter{DriverID: &driverID, Archived: &notArchived})
}

// CustomerOrders returns every order a customer has placed
func (s *Service) CustomerOrders(ctx context.Context, customerID uint) ([]models.Order, error) {
	return s.store.ListOrders(ctx, models.OrderFilter{CustomerID: &customerID})
}
