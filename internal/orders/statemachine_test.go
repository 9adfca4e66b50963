package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"catering/internal/models"
)

var allStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusPreparing,
	models.OrderStatusDelivering,
	models.OrderStatusCompleted,
	models.OrderStatusCancelled,
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderStatusPending, models.OrderStatusPreparing}:    true,
		{models.OrderStatusPreparing, models.OrderStatusDelivering}: true,
		{models.OrderStatusDelivering, models.OrderStatusCompleted}: true,
		{models.OrderStatusDelivering, models.OrderStatusCancelled}: true,
		{models.OrderStatusDelivering, models.OrderStatusPreparing}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]models.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	assert.Empty(t, NextStatuses(models.OrderStatusCompleted))
	assert.Empty(t, NextStatuses(models.OrderStatusCancelled))
	assert.ElementsMatch(t,
		[]models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusCompleted, models.OrderStatusCancelled},
		NextStatuses(models.OrderStatusDelivering))
}

func TestCanAdvanceDriver(t *testing.T) {
	assert.True(t, CanAdvanceDriver(models.DriverStatusAssigned, models.DriverStatusEnRoute))
	assert.True(t, CanAdvanceDriver(models.DriverStatusEnRoute, models.DriverStatusDelivered))
	assert.False(t, CanAdvanceDriver(models.DriverStatusAssigned, models.DriverStatusDelivered))
	assert.False(t, CanAdvanceDriver(models.DriverStatusNone, models.DriverStatusEnRoute))
	assert.False(t, CanAdvanceDriver(models.DriverStatusDelivered, models.DriverStatusEnRoute))
}

func TestInvalidDriverStep(t *testing.T) {
	err := invalidDriverStep(3, models.DriverStatusNone, models.DriverStatusEnRoute)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "unassigned")
}
