package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// InventoryItem is a mutable counter of goods on hand. Stock and consumable
// items share the shape and differ only in their category set.
type InventoryItem[C Category] struct {
	ID                string          `bson:"_id,omitempty" json:"id"`
	Name              string          `bson:"name" json:"name"`
	Category          C               `bson:"category" json:"category"`
	CurrentQuantity   float64         `bson:"currentQuantity" json:"currentQuantity"`
	Unit              string          `bson:"unit" json:"unit"`
	MinLevel          float64         `bson:"minLevel" json:"minLevel"`
	LastPurchased     string          `bson:"lastPurchased" json:"lastPurchased"`
	LastPurchasePrice decimal.Decimal `bson:"lastPurchasePrice" json:"lastPurchasePrice"`
	Notes             string          `bson:"notes,omitempty" json:"notes,omitempty"`
	UserID            string          `bson:"userId" json:"userId"`
}

type (
	StockItem      = InventoryItem[StockCategory]
	ConsumableItem = InventoryItem[ConsumableCategory]
)

// QuantityField is the document field touched by quantity adjustments.
const QuantityField = "currentQuantity"

// IsLow reports whether the item needs restocking. A MinLevel of zero
// disables alerting for the item.
func (i InventoryItem[C]) IsLow() bool {
	return IsLowLevel(i.CurrentQuantity, i.MinLevel)
}

// IsLowLevel is the low-stock predicate: quantity at or below a positive minimum.
func IsLowLevel(quantity, minLevel float64) bool {
	return quantity <= minLevel && minLevel > 0
}

// CheckQuantity rejects NaN and infinite quantities, reporting them on field.
func CheckQuantity(field string, q float64) error {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return &ValidationError{Fields: map[string]string{field: "finite"}}
	}
	return nil
}

// ClampQuantity floors a quantity at zero.
func ClampQuantity(q float64) float64 {
	if q < 0 {
		return 0
	}
	return q
}
