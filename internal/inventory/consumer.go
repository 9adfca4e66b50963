package inventory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"catering/internal/models"
	"catering/internal/observability"
	"catering/internal/recipes"
)

const consumeTimeout = 30 * time.Second

// Consumer records the ingredient usage of catering orders off the request
// path. Failures are logged and never reach the caller.
type Consumer struct {
	catalog recipes.Catalog
	ledger  *Ledger
	logger  observability.Logger
	wg      sync.WaitGroup
}

// NewConsumer creates a consumer that expands recipes from catalog into ledger
func NewConsumer(catalog recipes.Catalog, ledger *Ledger, logger observability.Logger) *Consumer {
	return &Consumer{catalog: catalog, ledger: ledger, logger: logger}
}

// Consume expands the order's recipes and appends the ledger entries
func (c *Consumer) Consume(ctx context.Context, order *models.Order) (Report, error) {
	reqs, err := recipes.Resolve(ctx, c.catalog, recipes.LinesFromOrder(order))
	if err != nil {
		return Report{}, err
	}
	return c.ledger.ConsumeForOrder(ctx, order.ID, reqs), nil
}

// ConsumeAsync runs Consume in the background, detached from the caller's
// cancellation
func (c *Consumer) ConsumeAsync(ctx context.Context, order *models.Order) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Consumption panicked", zap.Uint("order_id", order.ID), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, consumeTimeout)
		defer cancel()

		report, err := c.Consume(ctx, order)
		if err != nil {
			c.logger.Warn("Recipe lookup failed, no stock recorded", zap.Uint("order_id", order.ID), zap.Error(err))
			return
		}
		c.logger.Info("Recorded catering consumption",
			zap.Uint("order_id", order.ID),
			zap.Int("written", len(report.Written)),
			zap.Int("skipped", len(report.Skipped)),
			zap.Int("failed", len(report.Failed)),
		)
	}()
}

// Wait blocks until every background consumption has finished
func (c *Consumer) Wait() {
	c.wg.Wait()
}
