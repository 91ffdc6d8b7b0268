package ledger

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned for mutations without a live session.
var ErrNotAuthenticated = errors.New("user not authenticated")

// StoreError wraps a failure reported by the record store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
