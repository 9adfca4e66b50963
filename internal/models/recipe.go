package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// StringSlice represents a slice of strings that can be stored in the database
type StringSlice []string

// Value converts the slice to a JSON string for storage
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan converts the database value back to a slice
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for StringSlice")
	}
}

// Recipe is the bill of materials for one sellable product
type Recipe struct {
	ID          uint               `gorm:"primary_key" json:"id"`
	Name        string             `json:"name"`
	ProductID   uint               `gorm:"unique_index" json:"product_id"`
	Ingredients []RecipeIngredient `gorm:"foreignkey:RecipeID" json:"ingredients"`
}

// TableName sets the table name for Recipe
func (Recipe) TableName() string {
	return "defined_recipes"
}

// RecipeIngredient is the quantity of one ingredient needed per unit of product
type RecipeIngredient struct {
	ID              uint            `gorm:"primary_key" json:"id"`
	RecipeID        uint            `gorm:"index" json:"recipe_id"`
	IngredientID    uint            `gorm:"index" json:"ingredient_id"`
	QuantityPerUnit decimal.Decimal `gorm:"type:numeric(14,4)" json:"quantity_per_unit"`
}
