// Package realtime keeps live views of orders and reservations converged.
// Every committed change is pushed to the subscribers allowed to see it and
// replicas reconcile by entity id, so duplicate or out-of-order delivery
// still ends in the same state.
package realtime

import (
	"encoding/json"
	"time"

	"catering/internal/models"
)

// Entity names the kind of record a message carries
type Entity string

const (
	EntityOrder       Entity = "order"
	EntityReservation Entity = "reservation"
)

// Op is what a replica does with a message
type Op string

const (
	OpUpsert Op = "upsert"
	OpRemove Op = "remove"
	// OpSynced follows the snapshot sent on connect
	OpSynced Op = "synced"
)

// Message is one frame on a live view
type Message struct {
	Entity  Entity          `json:"entity,omitempty"`
	ID      uint            `json:"id,omitempty"`
	Op      Op              `json:"op"`
	Version uint            `json:"version,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type key struct {
	entity Entity
	id     uint
}

func (m Message) key() key { return key{m.Entity, m.ID} }

// OrderMessage is an upsert of o at its current version
func OrderMessage(o *models.Order) Message {
	data, _ := json.Marshal(o)
	return Message{Entity: EntityOrder, ID: o.ID, Op: OpUpsert, Version: o.Version, Data: data}
}

// reservationVersion orders a booking before its cancellation
const (
	reservationBooked    uint = 1
	reservationCancelled uint = 2
)

// seatHold is the part of a booking a guest link may see: which seats are
// taken, never who took them
type seatHold struct {
	ID        uint                     `json:"id"`
	CreatedAt time.Time                `json:"created_at"`
	EventID   uint                     `json:"event_id"`
	TableID   uint                     `json:"table_id"`
	SeatCount int                      `json:"seat_count"`
	Status    models.ReservationStatus `json:"status"`
}

// ReservationMessage turns a committed reservation row into a frame without
// the guest's contact details. A cancellation marker removes the booking it
// voids.
func ReservationMessage(r *models.Reservation) Message {
	if r.CancelsID != nil {
		return Message{Entity: EntityReservation, ID: *r.CancelsID, Op: OpRemove, Version: reservationCancelled}
	}
	data, _ := json.Marshal(seatHold{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		EventID:   r.EventID,
		TableID:   r.TableID,
		SeatCount: r.SeatCount,
		Status:    r.Status,
	})
	return Message{Entity: EntityReservation, ID: r.ID, Op: OpUpsert, Version: reservationBooked, Data: data}
}

func removal(m Message) Message {
	return Message{Entity: m.Entity, ID: m.ID, Op: OpRemove, Version: m.Version}
}

// OrderMessages converts a snapshot listing
func OrderMessages(orders []models.Order) []Message {
	msgs := make([]Message, 0, len(orders))
	for i := range orders {
		msgs = append(msgs, OrderMessage(&orders[i]))
	}
	return msgs
}

// ReservationMessages converts a snapshot listing
func ReservationMessages(rs []models.Reservation) []Message {
	msgs := make([]Message, 0, len(rs))
	for i := range rs {
		msgs = append(msgs, ReservationMessage(&rs[i]))
	}
	return msgs
}
