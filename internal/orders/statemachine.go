// Package orders runs the order lifecycle: placement, pricing, status
// changes, driver hand-off and day-end archival.
package orders

import (
	"fmt"

	"catering/internal/models"
)

// transitions lists every allowed status edge. delivering -> preparing is the
// send-back edge used when an order went out by mistake.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusPreparing},
	models.OrderStatusPreparing:  {models.OrderStatusDelivering},
	models.OrderStatusDelivering: {models.OrderStatusPreparing, models.OrderStatusCompleted, models.OrderStatusCancelled},
}

var driverTransitions = map[models.DriverStatus][]models.DriverStatus{
	models.DriverStatusAssigned: {models.DriverStatusEnRoute},
	models.DriverStatusEnRoute:  {models.DriverStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable in one step from s
func NextStatuses(s models.OrderStatus) []models.OrderStatus {
	return append([]models.OrderStatus(nil), transitions[s]...)
}

// CanAdvanceDriver reports whether the driver sub-state may move from one value to another
func CanAdvanceDriver(from, to models.DriverStatus) bool {
	for _, next := range driverTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func invalidDriverStep(orderID uint, from, to models.DriverStatus) error {
	if from == models.DriverStatusNone {
		from = "unassigned"
	}
	return fmt.Errorf("%w: order %d driver cannot move from %s to %s", models.ErrInvalidTransition, orderID, from, to)
}
