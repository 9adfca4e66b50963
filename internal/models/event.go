package models

import (
	"time"
)

// DefaultTableCapacity applies to tables drawn without an explicit seat count
const DefaultTableCapacity = 10

// Hall is a room whose floor plan hosts events
type Hall struct {
	ID       uint   `gorm:"primary_key" json:"id"`
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Location string `json:"location,omitempty"`
}

// Event is a dated booking of a hall, reachable by guests through its token
type Event struct {
	ID       uint           `gorm:"primary_key" json:"id"`
	HallID   uint           `gorm:"index" json:"hall_id"`
	Name     string         `json:"name"`
	StartsAt time.Time      `json:"starts_at"`
	Token    string         `gorm:"type:varchar(36);unique_index" json:"token"`
	Objects  []LayoutObject `gorm:"foreignkey:EventID" json:"objects,omitempty"`
}

// LayoutKind classifies objects on a floor plan
type LayoutKind string

const (
	LayoutTable LayoutKind = "table"
	LayoutStage LayoutKind = "stage"
	LayoutDecor LayoutKind = "decor"
)

// LayoutObject is one shape on an event's floor plan
type LayoutObject struct {
	ID       uint       `gorm:"primary_key" json:"id"`
	EventID  uint       `gorm:"index" json:"event_id"`
	Kind     LayoutKind `gorm:"type:varchar(16)" json:"kind"`
	Label    string     `json:"label"`
	Shape    string     `json:"shape,omitempty"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Rotation float64    `json:"rotation"`
	Capacity int        `json:"capacity"`
}

// Reservable reports whether guests can book seats at the object
func (o *LayoutObject) Reservable() bool {
	return o.Kind == LayoutTable
}

// SeatCapacity is the configured capacity, or the default when none was set
func (o *LayoutObject) SeatCapacity() int {
	if o.Capacity <= 0 {
		return DefaultTableCapacity
	}
	return o.Capacity
}

// ReservationStatus marks whether a reservation row holds seats
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is an immutable booking row. A cancellation is a separate
// row with status cancelled pointing at the booking it voids.
type Reservation struct {
	ID         uint              `gorm:"primary_key" json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	EventID    uint              `gorm:"index" json:"event_id"`
	TableID    uint              `gorm:"index" json:"table_id"`
	GuestName  string            `json:"guest_name"`
	GuestPhone string            `gorm:"type:varchar(16)" json:"guest_phone"`
	SeatCount  int               `json:"seat_count"`
	Status     ReservationStatus `gorm:"type:varchar(16);index" json:"status"`
	CancelsID  *uint             `gorm:"unique_index" json:"cancels_id,omitempty"`
}

// TableAvailability is the seat balance of one table
type TableAvailability struct {
	TableID   uint   `json:"table_id"`
	Label     string `json:"label"`
	Capacity  int    `json:"capacity"`
	Reserved  int    `json:"reserved"`
	Remaining int    `json:"remaining"`
}
