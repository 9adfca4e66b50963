package database

import (
	"context"
	"strings"

	"catering/internal/models"
)

// DeliveryZoneForCity matches a zone by city name, ignoring case
func (s *Store) DeliveryZoneForCity(ctx context.Context, city string) (*models.DeliveryZone, error) {
	var zone models.DeliveryZone
	err := s.db.Where("LOWER(city) = ?", strings.ToLower(strings.TrimSpace(city))).First(&zone).Error
	if err != nil {
		return nil, notFound(err, "delivery zone %q", city)
	}
	return &zone, nil
}

// PromoCode looks up a promo code, ignoring case
func (s *Store) PromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.db.Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).First(&promo).Error
	if err != nil {
		return nil, notFound(err, "promo code %q", code)
	}
	return &promo, nil
}

// CreateDeliveryZone adds a priced city
func (s *Store) CreateDeliveryZone(ctx context.Context, zone *models.DeliveryZone) error {
	return s.db.Create(zone).Error
}

// CreatePromoCode adds a promo code
func (s *Store) CreatePromoCode(ctx context.Context, promo *models.PromoCode) error {
	return s.db.Create(promo).Error
}
