package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultUnit = "pcs"

// ExpenseInput is the caller-supplied part of a new expense.
type ExpenseInput struct {
	Date     string           `json:"date" validate:"required,isodate"`
	Category ExpenseCategory  `json:"category" validate:"required,closedset"`
	Item     string           `json:"item" validate:"notblank"`
	Quantity *float64         `json:"quantity" validate:"omitempty,gte=0,finite"`
	Unit     string           `json:"unit"`
	Amount   *decimal.Decimal `json:"amount" validate:"required,gte=0"`
	Notes    string           `json:"notes"`
}

// Expense builds the record to store. Quantity defaults to 1 and unit to pcs.
func (in ExpenseInput) Expense() Expense {
	quantity := 1.0
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = defaultUnit
	}
	return Expense{
		Date:     in.Date,
		Category: in.Category,
		Item:     strings.TrimSpace(in.Item),
		Quantity: quantity,
		Unit:     unit,
		Amount:   *in.Amount,
		Notes:    strings.TrimSpace(in.Notes),
	}
}

// RevenueInput is the caller-supplied part of a new revenue entry.
type RevenueInput struct {
	Date   string           `json:"date" validate:"required,isodate"`
	Amount *decimal.Decimal `json:"amount" validate:"required,gte=0"`
	Source RevenueSource    `json:"source" validate:"omitempty,closedset"`
	Notes  string           `json:"notes"`
}

// Revenue builds the record to store. Source defaults to online.
func (in RevenueInput) Revenue() RevenueEntry {
	source := in.Source
	if source == "" {
		source = RevenueOnline
	}
	return RevenueEntry{
		Date:   in.Date,
		Amount: *in.Amount,
		Source: source,
		Notes:  strings.TrimSpace(in.Notes),
	}
}

// InventoryInput is the caller-supplied part of a new stock or consumable item.
type InventoryInput[C Category] struct {
	Name              string           `json:"name" validate:"notblank"`
	Category          C                `json:"category" validate:"required,closedset"`
	Quantity          *float64         `json:"currentQuantity" validate:"required,gte=0,finite"`
	Unit              string           `json:"unit"`
	MinLevel          float64          `json:"minLevel" validate:"gte=0,finite"`
	LastPurchased     string           `json:"lastPurchased" validate:"omitempty,isodate"`
	LastPurchasePrice *decimal.Decimal `json:"lastPurchasePrice" validate:"omitempty,gte=0"`
	Notes             string           `json:"notes"`
}

type (
	StockInput      = InventoryInput[StockCategory]
	ConsumableInput = InventoryInput[ConsumableCategory]
)

// Item builds the record to store. LastPurchased defaults to the day of now.
func (in InventoryInput[C]) Item(now time.Time) InventoryItem[C] {
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = defaultUnit
	}
	lastPurchased := in.LastPurchased
	if lastPurchased == "" {
		lastPurchased = FormatDate(now)
	}
	price := decimal.Zero
	if in.LastPurchasePrice != nil {
		price = *in.LastPurchasePrice
	}
	return InventoryItem[C]{
		Name:              strings.TrimSpace(in.Name),
		Category:          in.Category,
		CurrentQuantity:   ClampQuantity(*in.Quantity),
		Unit:              unit,
		MinLevel:          in.MinLevel,
		LastPurchased:     lastPurchased,
		LastPurchasePrice: price,
		Notes:             strings.TrimSpace(in.Notes),
	}
}
