package models

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

// DeliveryZone prices transport to one city
type DeliveryZone struct {
	gorm.Model
	City  string          `gorm:"index"`
	Price decimal.Decimal `gorm:"type:numeric(12,2)"`
}

// PromoCode grants a percentage discount on the order subtotal
type PromoCode struct {
	gorm.Model
	Code      string          `gorm:"type:varchar(64);unique_index"`
	Percent   decimal.Decimal `gorm:"type:numeric(5,2)"`
	Active    bool
	ExpiresAt *time.Time
}

// Usable reports whether the code can be redeemed at now
func (p *PromoCode) Usable(now time.Time) bool {
	if !p.Active {
		return false
	}
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}
