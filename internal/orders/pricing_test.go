package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catering/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotals(t *testing.T) {
	items := []models.OrderItem{
		{Quantity: 2, UnitPrice: dec("80")},
		{Quantity: 3, UnitPrice: dec("12.50")},
	}
	zone := &models.DeliveryZone{City: "Cluj-Napoca", Price: dec("10")}
	promo := &models.PromoCode{Code: "WELCOME10", Percent: dec("10"), Active: true}

	tests := []struct {
		name     string
		method   models.FulfillmentMethod
		zone     *models.DeliveryZone
		promo    *models.PromoCode
		discount string
		delivery string
		total    string
	}{
		{"pickup", models.FulfillmentPickup, nil, nil, "0", "0", "197.5"},
		{"delivery with zone", models.FulfillmentDelivery, zone, nil, "0", "10", "207.5"},
		{"pickup ignores zone", models.FulfillmentPickup, zone, nil, "0", "0", "197.5"},
		{"promo", models.FulfillmentEventLocation, zone, promo, "19.75", "10", "187.75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(items, tt.method, tt.zone, tt.promo)
			assert.True(t, dec("197.5").Equal(got.Subtotal), "subtotal %s", got.Subtotal)
			assert.True(t, dec(tt.discount).Equal(got.Discount), "discount %s", got.Discount)
			assert.True(t, dec(tt.delivery).Equal(got.DeliveryCost), "delivery %s", got.DeliveryCost)
			assert.True(t, dec(tt.total).Equal(got.Total), "total %s", got.Total)
		})
	}
}

type fakePricing struct {
	zones  map[string]*models.DeliveryZone
	promos map[string]*models.PromoCode
}

func (f fakePricing) DeliveryZoneForCity(_ context.Context, city string) (*models.DeliveryZone, error) {
	if z, ok := f.zones[city]; ok {
		return z, nil
	}
	return nil, models.NotFoundf("zone %s", city)
}

func (f fakePricing) PromoCode(_ context.Context, code string) (*models.PromoCode, error) {
	if p, ok := f.promos[code]; ok {
		return p, nil
	}
	return nil, models.NotFoundf("promo %s", code)
}

func TestLookupPromo(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	store := fakePricing{promos: map[string]*models.PromoCode{
		"OK":      {Code: "OK", Percent: dec("5"), Active: true},
		"OFF":     {Code: "OFF", Percent: dec("5")},
		"EXPIRED": {Code: "EXPIRED", Percent: dec("5"), Active: true, ExpiresAt: &expired},
	}}
	ctx := context.Background()

	promo, err := lookupPromo(ctx, store, "", now)
	require.NoError(t, err)
	assert.Nil(t, promo)

	promo, err = lookupPromo(ctx, store, "OK", now)
	require.NoError(t, err)
	assert.Equal(t, "OK", promo.Code)

	for _, code := range []string{"OFF", "EXPIRED", "MISSING"} {
		_, err = lookupPromo(ctx, store, code, now)
		assert.ErrorIs(t, err, models.ErrValidation, code)
	}
}

func TestLookupZone(t *testing.T) {
	store := fakePricing{zones: map[string]*models.DeliveryZone{"Floresti": {City: "Floresti", Price: dec("15")}}}
	ctx := context.Background()

	zone, err := lookupZone(ctx, store, models.FulfillmentDelivery, "Floresti")
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(zone.Price))

	zone, err = lookupZone(ctx, store, models.FulfillmentDelivery, "Dej")
	require.NoError(t, err)
	assert.Nil(t, zone)

	zone, err = lookupZone(ctx, store, models.FulfillmentPickup, "Floresti")
	require.NoError(t, err)
	assert.Nil(t, zone)
}
