package database

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"

	"catering/internal/models"
)

// CreateOrder inserts the order and its items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
}

// GetOrder loads an order with its items
func (s *Store) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err, "order %d", id)
	}
	return &order, nil
}

// UpdateOrderIf applies update only when the row still matches guard.
// It reports false when another writer got there first.
func (s *Store) UpdateOrderIf(ctx context.Context, id uint, guard models.OrderGuard, update models.OrderUpdate) (bool, error) {
	changes := map[string]interface{}{
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	}
	if update.Status != nil {
		changes["status"] = *update.Status
	}
	if update.DriverID != nil {
		changes["driver_id"] = *update.DriverID
	}
	if update.DriverStatus != nil {
		changes["driver_status"] = *update.DriverStatus
	}
	if update.Archived != nil {
		changes["archived"] = *update.Archived
	}

	q := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ? AND version = ?", id, guard.Status, guard.Version)
	if guard.DriverStatus != nil {
		q = q.Where("driver_status = ?", *guard.DriverStatus)
	}

	res := q.UpdateColumns(changes)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListOrders returns orders matching filter, newest first
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	q := s.db.Preload("Items").Order("created_at desc, id desc")
	if filter.DriverID != nil {
		q = q.Where("driver_id = ?", *filter.DriverID)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Archived != nil {
		q = q.Where("archived = ?", *filter.Archived)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN (?)", filter.Statuses)
	}
	if filter.CreatedBefore != nil {
		q = q.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
