// Package ledger holds the per-user session: live snapshots of every
// collection and the mutations that write back to the record store.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/events"
	"github.com/mamadbah2/shopledger/internal/repository"
)

// Principal is the authenticated identity a session acts for.
type Principal struct {
	UserID      string
	DisplayName string
	Email       string
}

// Stores groups the four collections a session subscribes to.
type Stores struct {
	Expenses    repository.Collection[models.Expense]
	Revenue     repository.Collection[models.RevenueEntry]
	Stock       repository.Collection[models.StockItem]
	Consumables repository.Collection[models.ConsumableItem]
}

// Options tunes a session.
type Options struct {
	// Private limits snapshots to records owned by the principal.
	Private   bool
	Publisher events.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
	// OnError receives read-path failures. The subscription keeps running.
	OnError func(collection string, err error)
}

// Snapshot is an immutable view of all collections. Expenses and revenue are
// ordered by creation time, newest first; inventory by name.
type Snapshot struct {
	Expenses    []models.Expense
	Revenue     []models.RevenueEntry
	Stock       []models.StockItem
	Consumables []models.ConsumableItem
	UpdatedAt   time.Time
}

const collectionCount = 4

type closer interface{ Close() }

// Session is the live state of one signed-in user.
type Session struct {
	id        string
	principal Principal
	stores    Stores
	opts      Options
	logger    *zap.Logger

	mu     sync.RWMutex
	snap   Snapshot
	closed bool
	loaded map[string]bool

	ready     chan struct{}
	readyOnce sync.Once
	subs      []closer
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open subscribes to every collection for principal. If any subscription
// cannot be established the others are released and the error returned.
// Subscriptions outlive ctx; they end with Close.
func Open(ctx context.Context, principal Principal, stores Stores, opts Options) (*Session, error) {
	if principal.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		id:        uuid.NewString(),
		principal: principal,
		stores:    stores,
		opts:      opts,
		loaded:    make(map[string]bool, collectionCount),
		ready:     make(chan struct{}),
	}
	s.logger = opts.Logger.With(zap.String("session", s.id), zap.String("user", principal.UserID))

	owner := ""
	if opts.Private {
		owner = principal.UserID
	}
	byCreated := repository.Query{OrderBy: repository.FieldCreatedAt, Descending: true, Owner: owner}
	byName := repository.Query{OrderBy: repository.FieldName, Owner: owner}

	var (
		expenseSub    *repository.Subscription[models.Expense]
		revenueSub    *repository.Subscription[models.RevenueEntry]
		stockSub      *repository.Subscription[models.StockItem]
		consumableSub *repository.Subscription[models.ConsumableItem]
	)

	subCtx := context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		expenseSub, err = subscribe(gctx, subCtx, stores.Expenses, byCreated, repository.CollectionExpenses)
		return err
	})
	g.Go(func() (err error) {
		revenueSub, err = subscribe(gctx, subCtx, stores.Revenue, byCreated, repository.CollectionRevenue)
		return err
	})
	g.Go(func() (err error) {
		stockSub, err = subscribe(gctx, subCtx, stores.Stock, byName, repository.CollectionStock)
		return err
	})
	g.Go(func() (err error) {
		consumableSub, err = subscribe(gctx, subCtx, stores.Consumables, byName, repository.CollectionConsumables)
		return err
	})

	err := g.Wait()
	if expenseSub != nil {
		s.subs = append(s.subs, expenseSub)
	}
	if revenueSub != nil {
		s.subs = append(s.subs, revenueSub)
	}
	if stockSub != nil {
		s.subs = append(s.subs, stockSub)
	}
	if consumableSub != nil {
		s.subs = append(s.subs, consumableSub)
	}
	if err != nil {
		for _, sub := range s.subs {
			sub.Close()
		}
		return nil, err
	}

	s.wg.Add(collectionCount)
	go pump(s, repository.CollectionExpenses, expenseSub, func(snap *Snapshot, r []models.Expense) { snap.Expenses = r })
	go pump(s, repository.CollectionRevenue, revenueSub, func(snap *Snapshot, r []models.RevenueEntry) { snap.Revenue = r })
	go pump(s, repository.CollectionStock, stockSub, func(snap *Snapshot, r []models.StockItem) { snap.Stock = r })
	go pump(s, repository.CollectionConsumables, consumableSub, func(snap *Snapshot, r []models.ConsumableItem) { snap.Consumables = r })

	s.logger.Info("session opened")
	return s, nil
}

func subscribe[T any](ctx, subCtx context.Context, coll repository.Collection[T], q repository.Query, name string) (*repository.Subscription[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, err := coll.Subscribe(subCtx, q)
	if err != nil {
		return nil, &StoreError{Op: "subscribe " + name, Err: err}
	}
	return sub, nil
}

// pump applies every snapshot of one subscription to the session cache and
// forwards its errors. Nothing is applied after Close.
func pump[T any](s *Session, name string, sub *repository.Subscription[T], apply func(*Snapshot, []T)) {
	defer s.wg.Done()

	snapshots, errs := sub.Snapshots(), sub.Errors()
	for snapshots != nil || errs != nil {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			s.apply(name, func(next *Snapshot) {
				apply(next, snap.Records)
				next.UpdatedAt = snap.At
			})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("subscription error", zap.String("collection", name), zap.Error(err))
			if s.opts.OnError != nil {
				s.opts.OnError(name, err)
			}
		}
	}
}

func (s *Session) apply(name string, update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	next := s.snap
	update(&next)
	s.snap = next

	s.loaded[name] = true
	if len(s.loaded) == collectionCount {
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Principal returns the identity the session acts for.
func (s *Session) Principal() Principal { return s.principal }

// Snapshot returns the latest view. Callers must not modify its slices.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// WaitReady blocks until every collection has delivered its first snapshot
// or ctx is done.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close releases every subscription and waits for the pumps to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		for _, sub := range s.subs {
			sub.Close()
		}
		s.wg.Wait()
		s.logger.Info("session closed")
	})
}

func (s *Session) checkOpen() error {
	if s == nil || s.Closed() {
		return ErrNotAuthenticated
	}
	return nil
}

func (s *Session) publish(ctx context.Context, typ events.Type, collection, id string) {
	event := events.Event{
		Type:       typ,
		Collection: collection,
		RecordID:   id,
		UserID:     s.principal.UserID,
		At:         s.opts.Now().UTC(),
	}
	if err := s.opts.Publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("routing_key", event.RoutingKey()), zap.Error(err))
	}
}

func requireID(id string) error {
	if id == "" {
		return &models.ValidationError{Fields: map[string]string{"id": "required"}}
	}
	return nil
}

func findItem[C models.Category](items []models.InventoryItem[C], id string) (models.InventoryItem[C], bool) {
	idx := slices.IndexFunc(items, func(item models.InventoryItem[C]) bool { return item.ID == id })
	if idx < 0 {
		return models.InventoryItem[C]{}, false
	}
	return items[idx], true
}

func opName(verb, collection string) string {
	return fmt.Sprintf("%s %s", verb, collection)
}
