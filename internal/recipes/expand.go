// Package recipes turns sold product quantities into raw ingredient quantities.
package recipes

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"catering/internal/models"
)

// Line is one ordered product and how many units were sold
type Line struct {
	ProductID   uint
	ProductName string
	Quantity    int
}

// Requirement is the total amount of one ingredient an order consumes
type Requirement struct {
	IngredientID uint
	Quantity     decimal.Decimal
	// Products names the products that contributed, in first-seen order
	Products []string
}

// Expand multiplies each product's recipe by its ordered quantity and sums
// the results per ingredient. Products without a recipe contribute nothing.
// The output is sorted by ingredient id.
func Expand(lines []Line, recipes map[uint]*models.Recipe) []Requirement {
	byIngredient := make(map[uint]*Requirement)

	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		recipe, ok := recipes[line.ProductID]
		if !ok || recipe == nil {
			continue
		}
		units := decimal.NewFromInt(int64(line.Quantity))
		for _, ing := range recipe.Ingredients {
			req, ok := byIngredient[ing.IngredientID]
			if !ok {
				req = &Requirement{IngredientID: ing.IngredientID, Quantity: decimal.Zero}
				byIngredient[ing.IngredientID] = req
			}
			req.Quantity = req.Quantity.Add(ing.QuantityPerUnit.Mul(units))
			req.Products = appendUnique(req.Products, productName(line, recipe))
		}
	}

	out := make([]Requirement, 0, len(byIngredient))
	for _, req := range byIngredient {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out
}

func productName(line Line, recipe *models.Recipe) string {
	if line.ProductName != "" {
		return line.ProductName
	}
	return recipe.Name
}

func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

// Catalog looks up the recipe attached to a product.
// It returns an error wrapping models.ErrNotFound when there is none.
type Catalog interface {
	RecipeForProduct(ctx context.Context, productID uint) (*models.Recipe, error)
}

// Resolve fetches the recipe of every distinct product in lines and expands them.
// Missing recipes are skipped; any other lookup error aborts.
func Resolve(ctx context.Context, catalog Catalog, lines []Line) ([]Requirement, error) {
	recipes := make(map[uint]*models.Recipe)
	for _, line := range lines {
		if _, seen := recipes[line.ProductID]; seen {
			continue
		}
		recipe, err := catalog.RecipeForProduct(ctx, line.ProductID)
		switch {
		case err == nil:
			recipes[line.ProductID] = recipe
		case errors.Is(err, models.ErrNotFound):
			recipes[line.ProductID] = nil
		default:
			return nil, err
		}
	}
	return Expand(lines, recipes), nil
}

// LinesFromOrder converts order items into expansion lines
func LinesFromOrder(order *models.Order) []Line {
	lines := make([]Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, Line{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
		})
	}
	return lines
}
