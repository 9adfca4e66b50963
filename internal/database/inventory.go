package database

import (
	"context"

	"github.com/shopspring/decimal"

	"catering/internal/models"
)

// RecipeForProduct loads the recipe attached to a product
func (s *Store) RecipeForProduct(ctx context.Context, productID uint) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.Preload("Ingredients").Where("product_id = ?", productID).First(&recipe).Error
	if err != nil {
		return nil, notFound(err, "recipe for product %d", productID)
	}
	return &recipe, nil
}

// CreateRecipe stores a recipe with its ingredient lines
func (s *Store) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	return s.db.Create(recipe).Error
}

// GetItem loads an inventory item
func (s *Store) GetItem(ctx context.Context, id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := s.db.Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err, "inventory item %d", id)
	}
	return &item, nil
}

// CreateItem adds an inventory item
func (s *Store) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	return s.db.Create(item).Error
}

// ListItems returns every inventory item by name
func (s *Store) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := s.db.Order("name").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AppendTransaction inserts one ledger entry. Entries are never updated or deleted.
func (s *Store) AppendTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	return s.db.Create(txn).Error
}

// TransactionsForOrder lists the ledger entries written for an order
func (s *Store) TransactionsForOrder(ctx context.Context, orderID uint) ([]models.InventoryTransaction, error) {
	var txns []models.InventoryTransaction
	if err := s.db.Where("order_id = ?", orderID).Order("id").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// StockLevel derives an item's balance from its ledger entries
func (s *Store) StockLevel(ctx context.Context, itemID uint) (*models.StockLevel, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var txns []models.InventoryTransaction
	if err := s.db.Where("item_id = ?", itemID).Find(&txns).Error; err != nil {
		return nil, err
	}

	level := &models.StockLevel{Item: *item, In: decimal.Zero, Out: decimal.Zero}
	for _, t := range txns {
		switch t.Type {
		case models.TransactionIn:
			level.In = level.In.Add(t.Quantity)
		case models.TransactionOut:
			level.Out = level.Out.Add(t.Quantity)
		}
	}
	level.OnHand = level.In.Sub(level.Out)
	level.BelowMin = level.OnHand.LessThanOrEqual(item.ReorderAt)
	return level, nil
}
