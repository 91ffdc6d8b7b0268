// Package repository defines the record store contract shared by the MongoDB
// and in-memory backends.
package repository

import (
	"context"
	"errors"
	"time"
)

// Collection names as stored in the document database.
const (
	CollectionExpenses     = "expenses"
	CollectionRevenue      = "revenue"
	CollectionStock        = "stock"
	CollectionConsumables  = "consumables"
	CollectionDailyReports = "daily_reports"
)

// Document fields used by queries.
const (
	FieldID        = "_id"
	FieldOwner     = "userId"
	FieldCreatedAt = "createdAt"
	FieldName      = "name"
)

// ErrNotFound is returned when an update targets a record that does not exist.
var ErrNotFound = errors.New("record not found")

// Collection is a push-subscribable document collection holding records of type T.
type Collection[T any] interface {
	// Create stores record and returns the identity assigned by the store.
	Create(ctx context.Context, record T) (string, error)
	// Delete removes the record. Deleting a missing record succeeds.
	Delete(ctx context.Context, id string) error
	// Update sets the given document fields on an existing record.
	Update(ctx context.Context, id string, fields map[string]any) error
	// Increment adds delta to a numeric field in one atomic step, flooring the
	// result at zero, and returns the stored value.
	Increment(ctx context.Context, id, field string, delta float64) (float64, error)
	// Subscribe delivers an initial snapshot and a fresh one after every change.
	Subscribe(ctx context.Context, q Query) (*Subscription[T], error)
}

// Query shapes a subscription.
type Query struct {
	OrderBy    string
	Descending bool
	// Owner restricts the snapshot to records created by this user when set.
	Owner string
}

// RetryPolicy bounds the backoff between subscription reconnect attempts.
type RetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultRetryPolicy is used when a backend is built without one.
var DefaultRetryPolicy = RetryPolicy{Initial: time.Second, Max: 30 * time.Second}

// Next doubles d without exceeding the policy maximum.
func (p RetryPolicy) Next(d time.Duration) time.Duration {
	if d <= 0 {
		return p.Initial
	}
	d *= 2
	if d > p.Max {
		return p.Max
	}
	return d
}

// AsFloat reads a BSON numeric value as float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
