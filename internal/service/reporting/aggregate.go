package reporting

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/shopledger/internal/domain/models"
)

// CategoryTotalsMap maps expense categories to summed amounts. Only
// categories with at least one expense are present.
type CategoryTotalsMap map[models.ExpenseCategory]decimal.Decimal

// DailySummary is the P&L of one calendar day.
type DailySummary struct {
	Date               string            `json:"date"`
	TotalRevenue       decimal.Decimal   `json:"totalRevenue"`
	TotalExpenses      decimal.Decimal   `json:"totalExpenses"`
	NetProfit          decimal.Decimal   `json:"netProfit"`
	ExpensesByCategory CategoryTotalsMap `json:"expensesByCategory"`
}

// DayTotals holds one day's revenue and expenses inside a month.
type DayTotals struct {
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
}

func (d DayTotals) Profit() decimal.Decimal { return d.Revenue.Sub(d.Expenses) }

// MonthlySummary is the P&L of one calendar month. Days only contains dates
// with at least one record.
type MonthlySummary struct {
	Year               int                  `json:"year"`
	Month              int                  `json:"month"`
	TotalRevenue       decimal.Decimal      `json:"totalRevenue"`
	TotalExpenses      decimal.Decimal      `json:"totalExpenses"`
	NetProfit          decimal.Decimal      `json:"netProfit"`
	ExpensesByCategory CategoryTotalsMap    `json:"expensesByCategory"`
	Days               map[string]DayTotals `json:"days"`
}

// DateRange bounds are inclusive YYYY-MM-DD strings; empty means open.
type DateRange struct {
	From string
	To   string
}

// Bounded reports whether both ends are set.
func (r DateRange) Bounded() bool { return r.From != "" && r.To != "" }

// Contains reports whether date lies inside the set bounds.
func (r DateRange) Contains(date string) bool {
	if r.From != "" && date < r.From {
		return false
	}
	if r.To != "" && date > r.To {
		return false
	}
	return true
}

// Totals are all-time sums.
type Totals struct {
	Revenue   decimal.Decimal `json:"revenue"`
	Expenses  decimal.Decimal `json:"expenses"`
	NetProfit decimal.Decimal `json:"netProfit"`
}

// Daily summarises the records dated exactly date.
func Daily(date string, expenses []models.Expense, revenue []models.RevenueEntry) DailySummary {
	summary := DailySummary{
		Date:               date,
		TotalRevenue:       decimal.Zero,
		TotalExpenses:      decimal.Zero,
		ExpensesByCategory: CategoryTotalsMap{},
	}
	for _, r := range revenue {
		if r.Date == date {
			summary.TotalRevenue = summary.TotalRevenue.Add(r.Amount)
		}
	}
	for _, e := range expenses {
		if e.Date != date {
			continue
		}
		summary.TotalExpenses = summary.TotalExpenses.Add(e.Amount)
		summary.ExpensesByCategory.add(e.Category, e.Amount)
	}
	summary.NetProfit = summary.TotalRevenue.Sub(summary.TotalExpenses)
	return summary
}

// Monthly summarises the records whose date starts with the month prefix.
// A month outside 1..12 matches nothing.
func Monthly(year, month int, expenses []models.Expense, revenue []models.RevenueEntry) MonthlySummary {
	summary := MonthlySummary{
		Year:               year,
		Month:              month,
		TotalRevenue:       decimal.Zero,
		TotalExpenses:      decimal.Zero,
		NetProfit:          decimal.Zero,
		ExpensesByCategory: CategoryTotalsMap{},
		Days:               map[string]DayTotals{},
	}
	if month < 1 || month > 12 {
		return summary
	}

	prefix := models.MonthPrefix(year, month)
	for _, r := range revenue {
		if !strings.HasPrefix(r.Date, prefix) {
			continue
		}
		summary.TotalRevenue = summary.TotalRevenue.Add(r.Amount)
		day := summary.Days[r.Date]
		day.Revenue = day.Revenue.Add(r.Amount)
		summary.Days[r.Date] = day
	}
	for _, e := range expenses {
		if !strings.HasPrefix(e.Date, prefix) {
			continue
		}
		summary.TotalExpenses = summary.TotalExpenses.Add(e.Amount)
		summary.ExpensesByCategory.add(e.Category, e.Amount)
		day := summary.Days[e.Date]
		day.Expenses = day.Expenses.Add(e.Amount)
		summary.Days[e.Date] = day
	}
	summary.NetProfit = summary.TotalRevenue.Sub(summary.TotalExpenses)
	return summary
}

// CategoryTotals sums expenses per category. The range only applies when
// both of its bounds are set.
func CategoryTotals(expenses []models.Expense, r DateRange) CategoryTotalsMap {
	totals := CategoryTotalsMap{}
	for _, e := range expenses {
		if r.Bounded() && !r.Contains(e.Date) {
			continue
		}
		totals.add(e.Category, e.Amount)
	}
	return totals
}

// AllTime sums every record.
func AllTime(expenses []models.Expense, revenue []models.RevenueEntry) Totals {
	t := Totals{Revenue: decimal.Zero, Expenses: decimal.Zero}
	for _, r := range revenue {
		t.Revenue = t.Revenue.Add(r.Amount)
	}
	for _, e := range expenses {
		t.Expenses = t.Expenses.Add(e.Amount)
	}
	t.NetProfit = t.Revenue.Sub(t.Expenses)
	return t
}

// IsLow is the low-stock predicate.
func IsLow(quantity, minLevel float64) bool {
	return models.IsLowLevel(quantity, minLevel)
}

// LowItems returns the items that need restocking, in input order.
func LowItems[C models.Category](items []models.InventoryItem[C]) []models.InventoryItem[C] {
	low := make([]models.InventoryItem[C], 0)
	for _, item := range items {
		if item.IsLow() {
			low = append(low, item)
		}
	}
	return low
}

// ProfitMargin is net profit as a percentage of revenue, rounded to one
// decimal place. It is zero when there is no revenue.
func ProfitMargin(revenue, netProfit decimal.Decimal) decimal.Decimal {
	if !revenue.IsPositive() {
		return decimal.Zero
	}
	return netProfit.Div(revenue).Mul(decimal.NewFromInt(100)).Round(1)
}

// CategoryAmount is one row of a category breakdown.
type CategoryAmount struct {
	Category models.ExpenseCategory `json:"category"`
	Label    string                 `json:"label"`
	Amount   decimal.Decimal        `json:"amount"`
	// Share is the percentage of the total, one decimal place.
	Share decimal.Decimal `json:"share"`
}

// Breakdown lists every expense category in display order, zero-filled.
func Breakdown(totals CategoryTotalsMap) []CategoryAmount {
	total := totals.Sum()
	rows := make([]CategoryAmount, 0, len(models.ExpenseCategories))
	for _, c := range models.ExpenseCategories {
		amount := totals[c]
		if amount.IsZero() {
			amount = decimal.Zero
		}
		rows = append(rows, CategoryAmount{
			Category: c,
			Label:    c.Label(),
			Amount:   amount,
			Share:    share(amount, total),
		})
	}
	return rows
}

// Ranked lists the categories present in totals, largest amount first.
// Ties keep display order.
func Ranked(totals CategoryTotalsMap) []CategoryAmount {
	rows := make([]CategoryAmount, 0, len(totals))
	for _, row := range Breakdown(totals) {
		if _, ok := totals[row.Category]; ok {
			rows = append(rows, row)
		}
	}
	slices.SortStableFunc(rows, func(a, b CategoryAmount) int {
		return b.Amount.Cmp(a.Amount)
	})
	return rows
}

// Recent returns up to n expenses, most recently created first.
func Recent(expenses []models.Expense, n int) []models.Expense {
	out := slices.Clone(expenses)
	slices.SortStableFunc(out, func(a, b models.Expense) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []models.Expense{}
	}
	return out
}

// Sum adds every category amount.
func (m CategoryTotalsMap) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range m {
		total = total.Add(amount)
	}
	return total
}

func (m CategoryTotalsMap) add(c models.ExpenseCategory, amount decimal.Decimal) {
	current, ok := m[c]
	if !ok {
		current = decimal.Zero
	}
	m[c] = current.Add(amount)
}

func share(amount, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(total).Mul(decimal.NewFromInt(100)).Round(1)
}

// daysIn returns the number of days of the given month.
func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
