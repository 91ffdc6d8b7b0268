package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	dailySheet      = "Daily"
	categoriesSheet = "Categories"
)

// WriteMonthlyWorkbook renders a monthly summary as an xlsx workbook with a
// day-by-day sheet and a category sheet.
func WriteMonthlyWorkbook(w io.Writer, summary MonthlySummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dailySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(categoriesSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeRows(f, dailySheet, []interface{}{"Date", "Revenue", "Expenses", "Profit"}, dailyRows(summary)); err != nil {
		return err
	}
	if err := writeRows(f, categoriesSheet, []interface{}{"Category", "Amount", "Share %"}, categoryRows(summary)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func dailyRows(summary MonthlySummary) [][]interface{} {
	days := Calendar(summary)
	rows := make([][]interface{}, 0, len(days)+1)
	for _, d := range days {
		rows = append(rows, []interface{}{d.Date, d.Revenue.InexactFloat64(), d.Expenses.InexactFloat64(), d.Profit.InexactFloat64()})
	}
	rows = append(rows, []interface{}{
		"Total",
		summary.TotalRevenue.InexactFloat64(),
		summary.TotalExpenses.InexactFloat64(),
		summary.NetProfit.InexactFloat64(),
	})
	return rows
}

func categoryRows(summary MonthlySummary) [][]interface{} {
	breakdown := Breakdown(summary.ExpensesByCategory)
	rows := make([][]interface{}, 0, len(breakdown))
	for _, row := range breakdown {
		rows = append(rows, []interface{}{row.Label, row.Amount.InexactFloat64(), row.Share.InexactFloat64()})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
