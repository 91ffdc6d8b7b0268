package models

import (
	"fmt"
	"time"
)

// DateLayout is the zero-padded calendar date format used by every record.
// Range and prefix filters rely on its lexicographic order matching
// chronological order.
const DateLayout = "2006-01-02"

// FormatDate renders t as a record date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate validates a record date string.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// MonthPrefix returns the YYYY-MM prefix shared by every date of the month.
// Months outside 1..12 yield a prefix no valid date starts with.
func MonthPrefix(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
