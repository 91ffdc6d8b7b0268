package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyReport is the end-of-day P&L snapshot persisted by the scheduler.
type DailyReport struct {
	Date               string                              `bson:"date" json:"date"`
	TotalRevenue       decimal.Decimal                     `bson:"total_revenue" json:"total_revenue"`
	TotalExpenses      decimal.Decimal                     `bson:"total_expenses" json:"total_expenses"`
	NetProfit          decimal.Decimal                     `bson:"net_profit" json:"net_profit"`
	ExpensesByCategory map[ExpenseCategory]decimal.Decimal `bson:"expenses_by_category" json:"expenses_by_category"`
	LowStockItems      []string                            `bson:"low_stock_items,omitempty" json:"low_stock_items,omitempty"`
	CreatedAt          time.Time                           `bson:"created_at" json:"created_at"`
}
