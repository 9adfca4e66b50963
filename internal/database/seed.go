package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"catering/internal/models"
)

// Seed loads demo data into an empty database
func (s *Store) Seed(ctx context.Context) error {
	var count int
	if err := s.db.Model(&models.InventoryItem{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	flour := &models.InventoryItem{Name: "Flour", Unit: models.UnitKilogram, ReorderAt: decimal.NewFromInt(5)}
	sugar := &models.InventoryItem{Name: "Sugar", Unit: models.UnitKilogram, ReorderAt: decimal.NewFromInt(2)}
	eggs := &models.InventoryItem{Name: "Eggs", Unit: models.UnitPiece, ReorderAt: decimal.NewFromInt(30)}
	for _, item := range []*models.InventoryItem{flour, sugar, eggs} {
		if err := s.CreateItem(ctx, item); err != nil {
			return err
		}
		receipt := &models.InventoryTransaction{
			Type:     models.TransactionIn,
			ItemID:   item.ID,
			Quantity: decimal.NewFromInt(50),
			Reason:   "Opening stock",
		}
		if err := s.AppendTransaction(ctx, receipt); err != nil {
			return err
		}
	}

	cake := &models.Recipe{
		Name:      "Tort",
		ProductID: 1,
		Ingredients: []models.RecipeIngredient{
			{IngredientID: flour.ID, QuantityPerUnit: decimal.RequireFromString("0.2")},
			{IngredientID: sugar.ID, QuantityPerUnit: decimal.RequireFromString("0.1")},
			{IngredientID: eggs.ID, QuantityPerUnit: decimal.NewFromInt(3)},
		},
	}
	if err := s.CreateRecipe(ctx, cake); err != nil {
		return err
	}

	zones := []models.DeliveryZone{
		{City: "Cluj-Napoca", Price: decimal.NewFromInt(10)},
		{City: "Floresti", Price: decimal.NewFromInt(15)},
	}
	for i := range zones {
		if err := s.CreateDeliveryZone(ctx, &zones[i]); err != nil {
			return err
		}
	}
	if err := s.CreatePromoCode(ctx, &models.PromoCode{Code: "WELCOME10", Percent: decimal.NewFromInt(10), Active: true}); err != nil {
		return err
	}

	hall := &models.Hall{Name: "Main hall", Width: 800, Height: 600}
	if err := s.CreateHall(ctx, hall); err != nil {
		return err
	}
	event := &models.Event{
		HallID:   hall.ID,
		Name:     "Opening night",
		StartsAt: time.Now().Add(7 * 24 * time.Hour).UTC(),
		Token:    uuid.New().String(),
		Objects: []models.LayoutObject{
			{Kind: models.LayoutStage, Label: "Stage", X: 300, Y: 20, Width: 200, Height: 80},
			{Kind: models.LayoutTable, Label: "T1", Shape: "round", X: 100, Y: 200, Width: 80, Height: 80, Capacity: 4},
			{Kind: models.LayoutTable, Label: "T2", Shape: "round", X: 250, Y: 200, Width: 80, Height: 80, Capacity: 6},
			{Kind: models.LayoutTable, Label: "T3", Shape: "rect", X: 400, Y: 200, Width: 160, Height: 80},
		},
	}
	return s.CreateEvent(ctx, event)
}
