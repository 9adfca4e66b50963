// Package inventory keeps the append-only stock ledger.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"catering/internal/models"
	"catering/internal/monitoring"
	"catering/internal/observability"
	"catering/internal/recipes"
)

// Store is the persistence the ledger appends to
type Store interface {
	GetItem(ctx context.Context, id uint) (*models.InventoryItem, error)
	AppendTransaction(ctx context.Context, txn *models.InventoryTransaction) error
}

// Ledger appends stock movements. It never reads a balance before writing
// and never rewrites an entry, so concurrent appends cannot lose updates.
type Ledger struct {
	store   Store
	logger  observability.Logger
	tracer  observability.Tracer
	metrics *monitoring.MetricsCollector
}

// NewLedger creates a ledger over store
func NewLedger(store Store, logger observability.Logger, metrics *monitoring.MetricsCollector) *Ledger {
	return &Ledger{
		store:   store,
		logger:  logger,
		tracer:  otel.Tracer("catering/inventory"),
		metrics: metrics,
	}
}

// ConsumptionReason is the audit text attached to an order's OUT entries
func ConsumptionReason(orderID uint, products []string) string {
	return fmt.Sprintf("Catering order #%d - %s", orderID, strings.Join(products, ", "))
}

// RecordConsumption appends one OUT entry for an ingredient used by an order
func (l *Ledger) RecordConsumption(ctx context.Context, orderID, ingredientID uint, quantity decimal.Decimal, productName string) (*models.InventoryTransaction, error) {
	return l.appendOut(ctx, orderID, ingredientID, quantity, ConsumptionReason(orderID, []string{productName}))
}

func (l *Ledger) appendOut(ctx context.Context, orderID, ingredientID uint, quantity decimal.Decimal, reason string) (*models.InventoryTransaction, error) {
	if !quantity.IsPositive() {
		return nil, models.Validationf("consumed quantity must be positive, got %s", quantity)
	}

	id := orderID
	txn := &models.InventoryTransaction{
		Type:     models.TransactionOut,
		ItemID:   ingredientID,
		Quantity: quantity,
		Reason:   reason,
		OrderID:  &id,
	}
	if err := l.store.AppendTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("%w: ingredient %d: %v", models.ErrLedgerWrite, ingredientID, err)
	}
	return txn, nil
}

// RecordReceipt appends one IN entry for delivered stock
func (l *Ledger) RecordReceipt(ctx context.Context, itemID uint, quantity decimal.Decimal, reason string) (*models.InventoryTransaction, error) {
	if !quantity.IsPositive() {
		return nil, models.Validationf("received quantity must be positive, got %s", quantity)
	}
	if _, err := l.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	txn := &models.InventoryTransaction{
		Type:     models.TransactionIn,
		ItemID:   itemID,
		Quantity: quantity,
		Reason:   reason,
	}
	if err := l.store.AppendTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("%w: item %d: %v", models.ErrLedgerWrite, itemID, err)
	}
	return txn, nil
}

// Report summarizes one order's consumption pass
type Report struct {
	Written []models.InventoryTransaction
	Skipped []uint
	Failed  []uint
}

// ConsumeForOrder writes one OUT entry per requirement. An ingredient that
// cannot be looked up is skipped; a failed append is logged. Either way the
// remaining ingredients are still recorded.
func (l *Ledger) ConsumeForOrder(ctx context.Context, orderID uint, reqs []recipes.Requirement) Report {
	ctx, span := l.tracer.Start(ctx, "inventory.consume")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(orderID)), attribute.Int("ingredients", len(reqs)))

	var report Report
	for _, req := range reqs {
		log := l.logger.With(zap.Uint("order_id", orderID), zap.Uint("ingredient_id", req.IngredientID))

		if _, err := l.store.GetItem(ctx, req.IngredientID); err != nil {
			log.Warn("Skipping unknown ingredient", zap.Error(err))
			l.metrics.RecordLedgerEntry("skipped")
			report.Skipped = append(report.Skipped, req.IngredientID)
			continue
		}

		txn, err := l.appendOut(ctx, orderID, req.IngredientID, req.Quantity, ConsumptionReason(orderID, req.Products))
		if err != nil {
			log.Warn("Ledger write failed", zap.Error(err))
			l.metrics.RecordLedgerEntry("failed")
			report.Failed = append(report.Failed, req.IngredientID)
			continue
		}
		l.metrics.RecordLedgerEntry("written")
		report.Written = append(report.Written, *txn)
	}
	return report
}
