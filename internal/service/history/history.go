// Package history filters, sorts and groups expense and revenue records for
// browsing.
package history

import (
	"slices"
	"strings"

	"github.com/mamadbah2/shopledger/internal/domain/models"
)

// AllCategories disables the category filter.
const AllCategories = "all"

// ExpenseFilter narrows an expense list. Zero values disable each criterion.
type ExpenseFilter struct {
	// Search is matched case-insensitively against the item and the notes.
	// A whitespace-only search matches everything.
	Search string
	// Category is an ExpenseCategory value or AllCategories.
	Category string
	From     string
	To       string
}

// RevenueFilter narrows a revenue list. Search is matched against the notes.
type RevenueFilter struct {
	Search string
	From   string
	To     string
}

// Dated is implemented by every record the engine can sort and group.
type Dated interface {
	RecordDate() string
}

// FilterExpenses applies search, then category, then date range, and returns
// a new slice sorted by date, newest first. Records sharing a date keep their
// input order.
func FilterExpenses(expenses []models.Expense, f ExpenseFilter) []models.Expense {
	needle := searchNeedle(f.Search)
	out := make([]models.Expense, 0, len(expenses))
	for _, e := range expenses {
		if needle != "" && !contains(e.Item, needle) && !contains(e.Notes, needle) {
			continue
		}
		if f.Category != "" && f.Category != AllCategories && string(e.Category) != f.Category {
			continue
		}
		if !inRange(e.Date, f.From, f.To) {
			continue
		}
		out = append(out, e)
	}
	sortByDateDesc(out)
	return out
}

// FilterRevenue is FilterExpenses for revenue entries.
func FilterRevenue(revenue []models.RevenueEntry, f RevenueFilter) []models.RevenueEntry {
	needle := searchNeedle(f.Search)
	out := make([]models.RevenueEntry, 0, len(revenue))
	for _, r := range revenue {
		if needle != "" && !contains(r.Notes, needle) {
			continue
		}
		if !inRange(r.Date, f.From, f.To) {
			continue
		}
		out = append(out, r)
	}
	sortByDateDesc(out)
	return out
}

// GroupByDate buckets records by date, keeping each bucket in input order.
func GroupByDate[T Dated](records []T) map[string][]T {
	groups := make(map[string][]T)
	for _, r := range records {
		groups[r.RecordDate()] = append(groups[r.RecordDate()], r)
	}
	return groups
}

// SortedDates returns the group keys, newest first.
func SortedDates[T any](groups map[string][]T) []string {
	dates := make([]string, 0, len(groups))
	for date := range groups {
		dates = append(dates, date)
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	return dates
}

// DateGroup is one bucket of GroupByDate in display order.
type DateGroup[T any] struct {
	Date    string `json:"date"`
	Records []T    `json:"records"`
}

// Grouped returns the date buckets of records, newest date first.
func Grouped[T Dated](records []T) []DateGroup[T] {
	groups := GroupByDate(records)
	out := make([]DateGroup[T], 0, len(groups))
	for _, date := range SortedDates(groups) {
		out = append(out, DateGroup[T]{Date: date, Records: groups[date]})
	}
	return out
}

func sortByDateDesc[T Dated](records []T) {
	slices.SortStableFunc(records, func(a, b T) int {
		return strings.Compare(b.RecordDate(), a.RecordDate())
	})
}

// searchNeedle returns the lowercased query, or "" when it is only
// whitespace. Surrounding spaces are part of the match.
func searchNeedle(search string) string {
	if strings.TrimSpace(search) == "" {
		return ""
	}
	return strings.ToLower(search)
}

func contains(field, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(field), lowerNeedle)
}

func inRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}
