package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/shopledger/internal/domain/models"
)

const currencySymbol = "৳"

// Money renders an amount with the currency symbol and two decimals.
func Money(d decimal.Decimal) string {
	return currencySymbol + d.StringFixed(2)
}

// FormatDaily renders a daily summary as a chat message.
func FormatDaily(s DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily P&L %s\n", s.Date)
	fmt.Fprintf(&b, "Revenue: %s\n", Money(s.TotalRevenue))
	fmt.Fprintf(&b, "Expenses: %s\n", Money(s.TotalExpenses))
	fmt.Fprintf(&b, "Net profit: %s", Money(s.NetProfit))

	rows := Ranked(s.ExpensesByCategory)
	if len(rows) > 0 {
		b.WriteString("\n\nBy category:")
		for _, row := range rows {
			fmt.Fprintf(&b, "\n- %s: %s", row.Label, Money(row.Amount))
		}
	}
	return b.String()
}

// FormatMonthly renders a monthly summary with margin and ranked categories.
func FormatMonthly(s MonthlySummary) string {
	var b strings.Builder
	title := fmt.Sprintf("%d-%02d", s.Year, s.Month)
	if s.Month >= 1 && s.Month <= 12 {
		title = time.Date(s.Year, time.Month(s.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	}
	fmt.Fprintf(&b, "📅 Monthly P&L %s\n", title)
	fmt.Fprintf(&b, "Revenue: %s\n", Money(s.TotalRevenue))
	fmt.Fprintf(&b, "Expenses: %s\n", Money(s.TotalExpenses))
	fmt.Fprintf(&b, "Net profit: %s\n", Money(s.NetProfit))
	fmt.Fprintf(&b, "Margin: %s%%\n", ProfitMargin(s.TotalRevenue, s.NetProfit).StringFixed(1))
	fmt.Fprintf(&b, "Active days: %d", len(s.Days))

	rows := Ranked(s.ExpensesByCategory)
	if len(rows) == 0 {
		b.WriteString("\n\nNo expenses this month")
		return b.String()
	}
	b.WriteString("\n\nCategory breakdown:")
	for _, row := range rows {
		fmt.Fprintf(&b, "\n- %s: %s (%s%%)", row.Label, Money(row.Amount), row.Share.StringFixed(1))
	}
	return b.String()
}

// FormatLowStock lists low stock and consumable items. It returns an empty
// string when nothing is low.
func FormatLowStock(stock []models.StockItem, consumables []models.ConsumableItem) string {
	lowStock := LowItems(stock)
	lowConsumables := LowItems(consumables)
	if len(lowStock) == 0 && len(lowConsumables) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("⚠️ Low stock alert")
	if len(lowStock) > 0 {
		b.WriteString("\n\nStock:")
		writeLowItems(&b, lowStock)
	}
	if len(lowConsumables) > 0 {
		b.WriteString("\n\nConsumables:")
		writeLowItems(&b, lowConsumables)
	}
	return b.String()
}

func writeLowItems[C models.Category](b *strings.Builder, items []models.InventoryItem[C]) {
	for _, item := range items {
		fmt.Fprintf(b, "\n- %s (%s): %s %s left, min %s",
			item.Name,
			item.Category.Label(),
			formatQuantity(item.CurrentQuantity),
			item.Unit,
			formatQuantity(item.MinLevel),
		)
	}
}

func formatQuantity(q float64) string {
	return decimal.NewFromFloat(q).String()
}
