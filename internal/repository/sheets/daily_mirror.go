package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/mamadbah2/shopledger/internal/domain/models"
)

const (
	dailySheet     = "Daily"
	dailyRange     = dailySheet + "!A:E"
	dailyDateRange = dailySheet + "!A:A"
)

var dailyHeader = []interface{}{"Date", "Revenue", "Expenses", "Net Profit", "Low Stock Items"}

// DailyMirror keeps one spreadsheet row per reported day:
// date, revenue, expenses, net profit, low stock count.
type DailyMirror struct {
	repo Repository

	mu         sync.Mutex
	sheetReady bool
}

func NewDailyMirror(repo Repository) *DailyMirror {
	return &DailyMirror{repo: repo}
}

// AppendDailyReport writes the report row unless the date is already present.
// It reports whether a row was written.
func (m *DailyMirror) AppendDailyReport(ctx context.Context, report models.DailyReport) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sheetReady {
		if err := m.repo.EnsureSheet(ctx, dailySheet, dailyHeader); err != nil {
			return false, fmt.Errorf("prepare daily sheet: %w", err)
		}
		m.sheetReady = true
	}

	rows, err := m.repo.ReadRange(ctx, dailyDateRange)
	if err != nil {
		return false, fmt.Errorf("read reported dates: %w", err)
	}
	for _, row := range rows {
		if len(row) > 0 && fmt.Sprint(row[0]) == report.Date {
			return false, nil
		}
	}

	values := []interface{}{
		report.Date,
		report.TotalRevenue.StringFixed(2),
		report.TotalExpenses.StringFixed(2),
		report.NetProfit.StringFixed(2),
		len(report.LowStockItems),
	}
	if err := m.repo.WriteRow(ctx, dailyRange, values); err != nil {
		return false, err
	}
	return true, nil
}
