// Package reporting derives profit-and-loss views from ledger snapshots.
// The aggregation functions are pure; Service binds them to a live session.
package reporting

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/service/ledger"
)

// SnapshotSource provides the current ledger view.
type SnapshotSource interface {
	Snapshot() ledger.Snapshot
}

// Service exposes ready-made summaries for chat replies and scheduled reports.
type Service struct {
	source   SnapshotSource
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires a new reporting service instance.
func NewService(source SnapshotSource, location *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{source: source, location: location, logger: logger, now: time.Now}
}

// Today is the current date in the reporting time zone.
func (s *Service) Today() string {
	return models.FormatDate(s.now().In(s.location))
}

// CurrentMonth is the current year and month in the reporting time zone.
func (s *Service) CurrentMonth() (int, int) {
	now := s.now().In(s.location)
	return now.Year(), int(now.Month())
}

func (s *Service) Daily(date string) DailySummary {
	snap := s.source.Snapshot()
	return Daily(date, snap.Expenses, snap.Revenue)
}

func (s *Service) Monthly(year, month int) MonthlySummary {
	snap := s.source.Snapshot()
	return Monthly(year, month, snap.Expenses, snap.Revenue)
}

// DailyReport builds the persisted end-of-day record for date.
func (s *Service) DailyReport(date string) models.DailyReport {
	snap := s.source.Snapshot()
	summary := Daily(date, snap.Expenses, snap.Revenue)

	var low []string
	for _, item := range LowItems(snap.Stock) {
		low = append(low, item.Name)
	}
	for _, item := range LowItems(snap.Consumables) {
		low = append(low, item.Name)
	}

	s.logger.Debug("daily report built",
		zap.String("date", date),
		zap.String("net_profit", summary.NetProfit.String()),
		zap.Int("low_items", len(low)),
	)

	return models.DailyReport{
		Date:               date,
		TotalRevenue:       summary.TotalRevenue,
		TotalExpenses:      summary.TotalExpenses,
		NetProfit:          summary.NetProfit,
		ExpensesByCategory: summary.ExpensesByCategory,
		LowStockItems:      low,
		CreatedAt:          s.now().UTC(),
	}
}

func (s *Service) DailyText(date string) string {
	return FormatDaily(s.Daily(date))
}

func (s *Service) MonthlyText(year, month int) string {
	return FormatMonthly(s.Monthly(year, month))
}

// LowStockText returns the alert text, or "" when nothing is low.
func (s *Service) LowStockText() string {
	snap := s.source.Snapshot()
	return FormatLowStock(snap.Stock, snap.Consumables)
}

// MonthlyWorkbook writes the xlsx export of one month.
func (s *Service) MonthlyWorkbook(w io.Writer, year, month int) error {
	return WriteMonthlyWorkbook(w, s.Monthly(year, month))
}
