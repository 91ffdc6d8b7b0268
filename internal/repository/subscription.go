package repository

import (
	"context"
	"sync"
	"time"
)

// Snapshot is a complete, point-in-time copy of a collection.
type Snapshot[T any] struct {
	Records []T
	At      time.Time
}

// Subscription streams snapshots of one collection until closed. Only the
// latest undelivered snapshot is kept: a slow consumer skips intermediate
// states but never sees a stale one after a newer one. Errors travel on a
// separate channel and do not end the subscription.
type Subscription[T any] struct {
	snapshots chan Snapshot[T]
	errs      chan error
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// NewSubscription is used by backends. cancel must stop the producer, which
// in turn calls Finish.
func NewSubscription[T any](cancel context.CancelFunc) *Subscription[T] {
	return &Subscription[T]{
		snapshots: make(chan Snapshot[T], 1),
		errs:      make(chan error, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Snapshots yields full collection snapshots. It is closed after Close.
func (s *Subscription[T]) Snapshots() <-chan Snapshot[T] { return s.snapshots }

// Errors yields read-path failures. It is closed after Close.
func (s *Subscription[T]) Errors() <-chan error { return s.errs }

// Publish replaces any undelivered snapshot with snap.
func (s *Subscription[T]) Publish(snap Snapshot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case <-s.snapshots:
	default:
	}
	s.snapshots <- snap
}

// Fail reports err on the error channel, dropping it if the previous error
// has not been consumed yet.
func (s *Subscription[T]) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.errs <- err:
	default:
	}
}

// Finish closes both channels. Backends call it once their producer exits.
func (s *Subscription[T]) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	close(s.snapshots)
	close(s.errs)
}

// Close stops the producer and waits for it to finish.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }
