package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusDelivering,
		OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// DriverStatus tracks the delivery sub-state of an order
type DriverStatus string

const (
	DriverStatusNone      DriverStatus = ""
	DriverStatusAssigned  DriverStatus = "assigned"
	DriverStatusEnRoute   DriverStatus = "en_route"
	DriverStatusDelivered DriverStatus = "delivered"
)

// FulfillmentMethod describes how an order reaches the customer
type FulfillmentMethod string

const (
	FulfillmentDelivery        FulfillmentMethod = "delivery"
	FulfillmentPickup          FulfillmentMethod = "pickup"
	FulfillmentDineIn          FulfillmentMethod = "dinein"
	FulfillmentEventRestaurant FulfillmentMethod = "event_restaurant"
	FulfillmentEventLocation   FulfillmentMethod = "event_location"
)

// Valid reports whether m is a known fulfillment method
func (m FulfillmentMethod) Valid() bool {
	switch m {
	case FulfillmentDelivery, FulfillmentPickup, FulfillmentDineIn,
		FulfillmentEventRestaurant, FulfillmentEventLocation:
		return true
	}
	return false
}

// RequiresTransport reports whether the order travels to the customer.
// Only these orders carry a driver and a delivery fee.
func (m FulfillmentMethod) RequiresTransport() bool {
	return m == FulfillmentDelivery || m == FulfillmentEventLocation
}

// Customer is the contact snapshot taken when the order is placed
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Value stores the snapshot as JSON
func (c Customer) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan restores the snapshot from its JSON column
func (c *Customer) Scan(value interface{}) error {
	if value == nil {
		*c = Customer{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("unsupported type for Customer")
	}
}

// Order is a customer order moving through the kitchen
type Order struct {
	ID           uint              `gorm:"primary_key" json:"id"`
	CreatedAt    time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Items        []OrderItem       `gorm:"foreignkey:OrderID" json:"items"`
	Customer     Customer          `gorm:"type:text" json:"customer"`
	CustomerID   *uint             `gorm:"index" json:"customer_id,omitempty"`
	Fulfillment  FulfillmentMethod `gorm:"type:varchar(32)" json:"fulfillment"`
	IsCatering   bool              `json:"is_catering"`
	Subtotal     decimal.Decimal   `gorm:"type:numeric(12,2)" json:"subtotal"`
	Discount     decimal.Decimal   `gorm:"type:numeric(12,2)" json:"discount"`
	DeliveryCost decimal.Decimal   `gorm:"type:numeric(12,2)" json:"delivery_cost"`
	Total        decimal.Decimal   `gorm:"type:numeric(12,2)" json:"total"`
	PromoCode    string            `gorm:"type:varchar(64)" json:"promo_code,omitempty"`
	Status       OrderStatus       `gorm:"type:varchar(16);index" json:"status"`
	Archived     bool              `gorm:"index" json:"archived"`
	DriverID     *uint             `gorm:"index" json:"driver_id,omitempty"`
	DriverStatus DriverStatus      `gorm:"type:varchar(16)" json:"driver_status,omitempty"`
	Version      uint              `gorm:"not null" json:"version"`
}

// OrderItem is one product line of an order
type OrderItem struct {
	ID          uint            `gorm:"primary_key" json:"id"`
	OrderID     uint            `gorm:"index" json:"order_id"`
	ProductID   uint            `gorm:"index" json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_price"`
	Options     StringSlice     `gorm:"type:text" json:"options,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// LineTotal is the unit price times the quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderGuard is the state a conditional update expects to find
type OrderGuard struct {
	Status       OrderStatus
	Version      uint
	DriverStatus *DriverStatus
}

// OrderUpdate lists the fields a conditional update writes. Nil fields are left alone.
type OrderUpdate struct {
	Status       *OrderStatus
	DriverID     *uint
	DriverStatus *DriverStatus
	Archived     *bool
}

// StartOfDay returns local midnight of t's calendar day in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// IsActive reports whether the order belongs on the live board:
// not archived, and either still pending or created during the current day.
func (o *Order) IsActive(now time.Time, loc *time.Location) bool {
	if o.Archived {
		return false
	}
	if o.Status == OrderStatusPending {
		return true
	}
	return !o.CreatedAt.Before(StartOfDay(now, loc))
}

// IsHistory is the complement of IsActive
func (o *Order) IsHistory(now time.Time, loc *time.Location) bool {
	return !o.IsActive(now, loc)
}

// AssignedTo reports whether driverID is the order's driver
func (o *Order) AssignedTo(driverID uint) bool {
	return o.DriverID != nil && *o.DriverID == driverID
}

// OrderFilter narrows an order listing. Zero fields match everything.
type OrderFilter struct {
	DriverID      *uint
	CustomerID    *uint
	Archived      *bool
	Statuses      []OrderStatus
	CreatedBefore *time.Time
	Limit         int
}
