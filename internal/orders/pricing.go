package orders

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"catering/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Totals are the money fields of an order
type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	DeliveryCost decimal.Decimal `json:"delivery_cost"`
	Total        decimal.Decimal `json:"total"`
}

// ComputeTotals prices a basket. zone and promo may be nil. The delivery
// fee only applies to orders that travel to the customer.
func ComputeTotals(items []models.OrderItem, method models.FulfillmentMethod, zone *models.DeliveryZone, promo *models.PromoCode) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	discount := decimal.Zero
	if promo != nil {
		discount = subtotal.Mul(promo.Percent).Div(hundred).Round(2)
	}

	delivery := decimal.Zero
	if zone != nil && method.RequiresTransport() {
		delivery = zone.Price
	}

	return Totals{
		Subtotal:     subtotal.Round(2),
		Discount:     discount,
		DeliveryCost: delivery.Round(2),
		Total:        subtotal.Sub(discount).Add(delivery).Round(2),
	}
}

// PricingStore looks up delivery zones and promo codes
type PricingStore interface {
	DeliveryZoneForCity(ctx context.Context, city string) (*models.DeliveryZone, error)
	PromoCode(ctx context.Context, code string) (*models.PromoCode, error)
}

func lookupZone(ctx context.Context, store PricingStore, method models.FulfillmentMethod, city string) (*models.DeliveryZone, error) {
	if !method.RequiresTransport() || city == "" {
		return nil, nil
	}
	zone, err := store.DeliveryZoneForCity(ctx, city)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return zone, err
}

func lookupPromo(ctx context.Context, store PricingStore, code string, now time.Time) (*models.PromoCode, error) {
	if code == "" {
		return nil, nil
	}
	promo, err := store.PromoCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.Validationf("unknown promo code %q", code)
	}
	if err != nil {
		return nil, err
	}
	if !promo.Usable(now) {
		return nil, models.Validationf("promo code %q is no longer valid", code)
	}
	return promo, nil
}
