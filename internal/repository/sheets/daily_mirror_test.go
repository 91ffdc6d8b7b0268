package sheets

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/shopledger/internal/domain/models"
)

type fakeSheet struct {
	rows      [][]interface{}
	written   [][]interface{}
	ensured   int
	ensureErr error
}

func (f *fakeSheet) EnsureSheet(_ context.Context, _ string, header []interface{}) error {
	f.ensured++
	if f.ensureErr != nil {
		return f.ensureErr
	}
	if len(f.rows) == 0 {
		f.rows = append(f.rows, header)
	}
	return nil
}

func (f *fakeSheet) WriteRow(_ context.Context, _ string, values []interface{}) error {
	f.written = append(f.written, values)
	f.rows = append(f.rows, values)
	return nil
}

func (f *fakeSheet) ReadRange(context.Context, string) ([][]interface{}, error) {
	return f.rows, nil
}

func TestDailyMirrorWritesOncePerDate(t *testing.T) {
	sheet := &fakeSheet{rows: [][]interface{}{{"Date"}}}
	mirror := NewDailyMirror(sheet)
	report := models.DailyReport{
		Date:          "2024-03-05",
		TotalRevenue:  decimal.RequireFromString("120.5"),
		TotalExpenses: decimal.NewFromInt(20),
		NetProfit:     decimal.RequireFromString("100.5"),
	}

	written, err := mirror.AppendDailyReport(context.Background(), report)
	if err != nil || !written {
		t.Fatalf("first append = (%v, %v), want (true, nil)", written, err)
	}
	written, err = mirror.AppendDailyReport(context.Background(), report)
	if err != nil || written {
		t.Fatalf("second append = (%v, %v), want (false, nil)", written, err)
	}

	if len(sheet.written) != 1 {
		t.Fatalf("rows written = %d, want 1", len(sheet.written))
	}
	if got := sheet.written[0][1]; got != "120.50" {
		t.Errorf("revenue cell = %v, want 120.50", got)
	}
	if sheet.ensured != 1 {
		t.Errorf("sheet prepared %d times, want 1", sheet.ensured)
	}
}

func TestDailyMirrorRetriesSheetSetup(t *testing.T) {
	sheet := &fakeSheet{ensureErr: errors.New("quota exceeded")}
	mirror := NewDailyMirror(sheet)
	report := models.DailyReport{Date: "2024-03-06"}

	if _, err := mirror.AppendDailyReport(context.Background(), report); err == nil {
		t.Fatal("expected setup failure")
	}
	if len(sheet.written) != 0 {
		t.Fatalf("rows written after failed setup: %v", sheet.written)
	}

	sheet.ensureErr = nil
	written, err := mirror.AppendDailyReport(context.Background(), report)
	if err != nil || !written {
		t.Fatalf("append after recovery = (%v, %v)", written, err)
	}
	if sheet.rows[0][0] != "Date" {
		t.Errorf("header row = %v", sheet.rows[0])
	}
}
