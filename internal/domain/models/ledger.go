package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an immutable cost entry. It is only ever created or deleted.
type Expense struct {
	ID        string          `bson:"_id,omitempty" json:"id"`
	Date      string          `bson:"date" json:"date"`
	Category  ExpenseCategory `bson:"category" json:"category"`
	Item      string          `bson:"item" json:"item"`
	Quantity  float64         `bson:"quantity" json:"quantity"`
	Unit      string          `bson:"unit" json:"unit"`
	Amount    decimal.Decimal `bson:"amount" json:"amount"`
	Notes     string          `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"`
	UserID    string          `bson:"userId" json:"userId"`
	UserName  string          `bson:"userName,omitempty" json:"userName,omitempty"`
	UserEmail string          `bson:"userEmail,omitempty" json:"userEmail,omitempty"`
}

// RevenueEntry is an immutable sales entry.
type RevenueEntry struct {
	ID        string          `bson:"_id,omitempty" json:"id"`
	Date      string          `bson:"date" json:"date"`
	Amount    decimal.Decimal `bson:"amount" json:"amount"`
	Source    RevenueSource   `bson:"source" json:"source"`
	Notes     string          `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"`
	UserID    string          `bson:"userId" json:"userId"`
	UserName  string          `bson:"userName,omitempty" json:"userName,omitempty"`
	UserEmail string          `bson:"userEmail,omitempty" json:"userEmail,omitempty"`
}

// RecordDate lets the filter engine sort and group both entry kinds alike.
func (e Expense) RecordDate() string      { return e.Date }
func (r RevenueEntry) RecordDate() string { return r.Date }
