package reporting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/shopledger/internal/domain/models"
)

// CalendarDay is one row of the month grid.
type CalendarDay struct {
	Date     string          `json:"date"`
	Day      int             `json:"day"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

// Calendar expands a monthly summary into one row per day of the month,
// filling days without records with zeros.
func Calendar(summary MonthlySummary) []CalendarDay {
	if summary.Month < 1 || summary.Month > 12 {
		return []CalendarDay{}
	}

	n := daysIn(summary.Year, summary.Month)
	days := make([]CalendarDay, 0, n)
	for d := 1; d <= n; d++ {
		date := fmt.Sprintf("%s-%02d", models.MonthPrefix(summary.Year, summary.Month), d)
		totals, ok := summary.Days[date]
		if !ok {
			totals = DayTotals{Revenue: decimal.Zero, Expenses: decimal.Zero}
		}
		days = append(days, CalendarDay{
			Date:     date,
			Day:      d,
			Revenue:  totals.Revenue.Add(decimal.Zero),
			Expenses: totals.Expenses.Add(decimal.Zero),
			Profit:   totals.Profit(),
		})
	}
	return days
}
