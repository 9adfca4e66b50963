package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catering/internal/database/dbtest"
	"catering/internal/models"
)

func newOrder() *models.Order {
	return &models.Order{
		CreatedAt:   time.Now().UTC(),
		Customer:    models.Customer{Name: "Ana Pop", Phone: "0712345678", City: "Cluj-Napoca"},
		Fulfillment: models.FulfillmentDelivery,
		Status:      models.OrderStatusPending,
		Version:     1,
		Items: []models.OrderItem{
			{ProductID: 1, ProductName: "Tort", Quantity: 2, UnitPrice: decimal.NewFromInt(80), Options: models.StringSlice{"no nuts"}},
		},
	}
}

func TestStore_CreateAndGetOrder(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	order := newOrder()
	require.NoError(t, store.CreateOrder(ctx, order))
	require.NotZero(t, order.ID)

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Pop", got.Customer.Name)
	require.Len(t, got.Items, 1)
	assert.Equal(t, models.StringSlice{"no nuts"}, got.Items[0].Options)
	assert.True(t, decimal.NewFromInt(80).Equal(got.Items[0].UnitPrice))

	_, err = store.GetOrder(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_UpdateOrderIf(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	order := newOrder()
	require.NoError(t, store.CreateOrder(ctx, order))

	preparing := models.OrderStatusPreparing
	ok, err := store.UpdateOrderIf(ctx, order.ID,
		models.OrderGuard{Status: models.OrderStatusPending, Version: 1},
		models.OrderUpdate{Status: &preparing})
	require.NoError(t, err)
	assert.True(t, ok)

	// a second writer holding the stale version loses
	ok, err = store.UpdateOrderIf(ctx, order.ID,
		models.OrderGuard{Status: models.OrderStatusPending, Version: 1},
		models.OrderUpdate{Status: &preparing})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, got.Status)
	assert.Equal(t, uint(2), got.Version)
}

func TestStore_ListOrders(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	driver := uint(7)
	a, b := newOrder(), newOrder()
	b.DriverID = &driver
	require.NoError(t, store.CreateOrder(ctx, a))
	require.NoError(t, store.CreateOrder(ctx, b))

	all, err := store.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := store.ListOrders(ctx, models.OrderFilter{DriverID: &driver})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)

	pending, err := store.ListOrders(ctx, models.OrderFilter{Statuses: []models.OrderStatus{models.OrderStatusCompleted}})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_StockLevelFromLedger(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	flour := &models.InventoryItem{Name: "Flour", Unit: models.UnitKilogram, ReorderAt: decimal.NewFromInt(1)}
	require.NoError(t, store.CreateItem(ctx, flour))

	orderID := uint(3)
	entries := []models.InventoryTransaction{
		{Type: models.TransactionIn, ItemID: flour.ID, Quantity: decimal.NewFromInt(2), Reason: "delivery"},
		{Type: models.TransactionOut, ItemID: flour.ID, Quantity: decimal.RequireFromString("0.6"), Reason: "order", OrderID: &orderID},
		{Type: models.TransactionOut, ItemID: flour.ID, Quantity: decimal.RequireFromString("0.6"), Reason: "order", OrderID: &orderID},
	}
	for i := range entries {
		require.NoError(t, store.AppendTransaction(ctx, &entries[i]))
	}

	level, err := store.StockLevel(ctx, flour.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.8", level.OnHand.String())
	assert.True(t, level.BelowMin)

	txns, err := store.TransactionsForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestStore_CancellationFreesSeats(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	event := &models.Event{Name: "Gala", Token: "tok-1", Objects: []models.LayoutObject{
		{Kind: models.LayoutTable, Label: "T1", Capacity: 4},
	}}
	require.NoError(t, store.CreateEvent(ctx, event))
	table := event.Objects[0]

	booking := &models.Reservation{EventID: event.ID, TableID: table.ID, GuestName: "Ana Pop",
		GuestPhone: "0712345678", SeatCount: 3, Status: models.ReservationConfirmed}
	err := store.CommitReservation(ctx, booking, func(_ *models.LayoutObject, occupied int) error {
		assert.Equal(t, 0, occupied)
		return nil
	})
	require.NoError(t, err)

	occupied, err := store.OccupiedSeats(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, occupied)

	marker, created, err := store.CommitCancellation(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.ReservationCancelled, marker.Status)

	again, created, err := store.CommitCancellation(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, marker.ID, again.ID)

	occupied, err = store.OccupiedSeats(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, occupied)

	rows, err := store.ListReservations(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "the original booking is kept")
}

func TestStore_CommitReservationRejected(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	event := &models.Event{Name: "Gala", Token: "tok-2", Objects: []models.LayoutObject{{Kind: models.LayoutTable, Capacity: 2}}}
	require.NoError(t, store.CreateEvent(ctx, event))

	r := &models.Reservation{EventID: event.ID, TableID: event.Objects[0].ID, SeatCount: 5, Status: models.ReservationConfirmed}
	err := store.CommitReservation(ctx, r, func(table *models.LayoutObject, occupied int) error {
		return &models.CapacityError{TableID: table.ID, Requested: 5, Remaining: 2}
	})
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)

	rows, err := store.ListReservations(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = store.CommitReservation(ctx, &models.Reservation{EventID: event.ID, TableID: 12345}, func(*models.LayoutObject, int) error { return nil })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_PricingLookupsIgnoreCase(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDeliveryZone(ctx, &models.DeliveryZone{City: "Cluj-Napoca", Price: decimal.NewFromInt(10)}))
	require.NoError(t, store.CreatePromoCode(ctx, &models.PromoCode{Code: "SUMMER", Percent: decimal.NewFromInt(15), Active: true}))

	zone, err := store.DeliveryZoneForCity(ctx, " cluj-napoca ")
	require.NoError(t, err)
	assert.Equal(t, "Cluj-Napoca", zone.City)

	promo, err := store.PromoCode(ctx, "summer")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER", promo.Code)

	_, err = store.DeliveryZoneForCity(ctx, "Oradea")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_Seed(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	require.NoError(t, store.Seed(ctx))
	require.NoError(t, store.Seed(ctx))

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	recipe, err := store.RecipeForProduct(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recipe.Ingredients, 3)
}
