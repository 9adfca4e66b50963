package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a stocked raw ingredient
type InventoryItem struct {
	ID        uint            `gorm:"primary_key" json:"id"`
	Name      string          `json:"name"`
	Unit      InventoryUnit   `gorm:"type:varchar(16)" json:"unit"`
	ReorderAt decimal.Decimal `gorm:"type:numeric(14,4)" json:"reorder_at"`
}

// InventoryUnit represents the unit of measurement for an inventory item
type InventoryUnit string

const (
	UnitGram       InventoryUnit = "g"
	UnitKilogram   InventoryUnit = "kg"
	UnitMilliliter InventoryUnit = "ml"
	UnitLiter      InventoryUnit = "l"
	UnitPiece      InventoryUnit = "pc"
)

// TransactionType is the direction of a stock movement
type TransactionType string

const (
	TransactionIn  TransactionType = "IN"
	TransactionOut TransactionType = "OUT"
)

// InventoryTransaction is one immutable ledger entry
type InventoryTransaction struct {
	ID        uint            `gorm:"primary_key" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Type      TransactionType `gorm:"type:varchar(3);index" json:"type"`
	ItemID    uint            `gorm:"index" json:"item_id"`
	Quantity  decimal.Decimal `gorm:"type:numeric(14,4)" json:"quantity"`
	Reason    string          `json:"reason"`
	OrderID   *uint           `gorm:"index" json:"order_id,omitempty"`
}

// StockLevel is the derived balance of one item
type StockLevel struct {
	Item     InventoryItem   `json:"item"`
	In       decimal.Decimal `json:"in"`
	Out      decimal.Decimal `json:"out"`
	OnHand   decimal.Decimal `json:"on_hand"`
	BelowMin bool            `json:"below_min"`
}
