// Package memory is an in-process document store with the same push
// semantics as the MongoDB backend. Documents are kept as BSON so records
// round-trip through the same codec as in production.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/repository"
)

// Store holds every collection of the in-memory backend.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collectionState
	logger      *zap.Logger
}

type collectionState struct {
	docs        []bson.Raw
	watchers    map[int]chan struct{}
	nextWatcher int
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{collections: make(map[string]*collectionState), logger: logger}
}

// collection returns the named state. Callers must hold s.mu for writing.
func (s *Store) collection(name string) *collectionState {
	c, ok := s.collections[name]
	if !ok {
		c = &collectionState{watchers: make(map[int]chan struct{})}
		s.collections[name] = c
	}
	return c
}

// notify wakes every watcher without blocking. Callers must hold s.mu.
func (c *collectionState) notify() {
	for _, w := range c.watchers {
		select {
		case w <- struct{}{}:
		default:
		}
	}
}

func (c *collectionState) indexOf(id string) int {
	for i, doc := range c.docs {
		if v, ok := doc.Lookup(repository.FieldID).StringValueOK(); ok && v == id {
			return i
		}
	}
	return -1
}

// Collection is a typed view over one named collection of a Store.
type Collection[T any] struct {
	store *Store
	name  string
}

// NewCollection binds name in store to records of type T.
func NewCollection[T any](store *Store, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name}
}

func (c *Collection[T]) Create(_ context.Context, record T) (string, error) {
	doc, err := toDocument(record)
	if err != nil {
		return "", fmt.Errorf("encode %s record: %w", c.name, err)
	}

	id := uuid.NewString()
	doc = slices.DeleteFunc(doc, func(e bson.E) bool { return e.Key == repository.FieldID })
	doc = append(bson.D{{Key: repository.FieldID, Value: id}}, doc...)

	raw, err := bson.MarshalWithRegistry(repository.Registry, doc)
	if err != nil {
		return "", fmt.Errorf("encode %s record: %w", c.name, err)
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	state := c.store.collection(c.name)
	state.docs = append(state.docs, raw)
	state.notify()

	c.store.logger.Debug("record created", zap.String("collection", c.name), zap.String("id", id))
	return id, nil
}

func (c *Collection[T]) Delete(_ context.Context, id string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	state := c.store.collection(c.name)
	idx := state.indexOf(id)
	if idx < 0 {
		c.store.logger.Debug("delete of missing record ignored", zap.String("collection", c.name), zap.String("id", id))
		return nil
	}
	state.docs = slices.Delete(state.docs, idx, idx+1)
	state.notify()
	return nil
}

func (c *Collection[T]) Update(_ context.Context, id string, fields map[string]any) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	state := c.store.collection(c.name)
	idx := state.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("update %s/%s: %w", c.name, id, repository.ErrNotFound)
	}

	var doc bson.D
	if err := bson.UnmarshalWithRegistry(repository.Registry, state.docs[idx], &doc); err != nil {
		return fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	for key, value := range fields {
		pos := slices.IndexFunc(doc, func(e bson.E) bool { return e.Key == key })
		if pos < 0 {
			doc = append(doc, bson.E{Key: key, Value: value})
			continue
		}
		doc[pos].Value = value
	}

	raw, err := bson.MarshalWithRegistry(repository.Registry, doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	state.docs[idx] = raw
	state.notify()
	return nil
}

func (c *Collection[T]) Increment(_ context.Context, id, field string, delta float64) (float64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	state := c.store.collection(c.name)
	idx := state.indexOf(id)
	if idx < 0 {
		return 0, fmt.Errorf("increment %s/%s: %w", c.name, id, repository.ErrNotFound)
	}

	var doc bson.D
	if err := bson.UnmarshalWithRegistry(repository.Registry, state.docs[idx], &doc); err != nil {
		return 0, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	pos := slices.IndexFunc(doc, func(e bson.E) bool { return e.Key == field })
	var current float64
	if pos >= 0 {
		v, ok := repository.AsFloat(doc[pos].Value)
		if !ok {
			return 0, fmt.Errorf("increment %s/%s: field %s is %T", c.name, id, field, doc[pos].Value)
		}
		current = v
	}

	next := max(0, current+delta)
	if pos < 0 {
		doc = append(doc, bson.E{Key: field, Value: next})
	} else {
		doc[pos].Value = next
	}

	raw, err := bson.MarshalWithRegistry(repository.Registry, doc)
	if err != nil {
		return 0, fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	state.docs[idx] = raw
	state.notify()
	return next, nil
}

func (c *Collection[T]) Subscribe(ctx context.Context, q repository.Query) (*repository.Subscription[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := repository.NewSubscription[T](cancel)

	wake := make(chan struct{}, 1)
	c.store.mu.Lock()
	state := c.store.collection(c.name)
	watcherID := state.nextWatcher
	state.nextWatcher++
	state.watchers[watcherID] = wake
	c.store.mu.Unlock()

	go func() {
		defer sub.Finish()
		defer func() {
			c.store.mu.Lock()
			delete(c.store.collection(c.name).watchers, watcherID)
			c.store.mu.Unlock()
		}()

		for {
			records, err := c.load(q)
			if err != nil {
				sub.Fail(err)
			} else {
				sub.Publish(repository.Snapshot[T]{Records: records, At: time.Now().UTC()})
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

func (c *Collection[T]) load(q repository.Query) ([]T, error) {
	c.store.mu.RLock()
	state, ok := c.store.collections[c.name]
	var docs []bson.Raw
	if ok {
		docs = make([]bson.Raw, 0, len(state.docs))
		for _, doc := range state.docs {
			if q.Owner != "" {
				if owner, _ := doc.Lookup(repository.FieldOwner).StringValueOK(); owner != q.Owner {
					continue
				}
			}
			docs = append(docs, doc)
		}
	}
	c.store.mu.RUnlock()

	if q.OrderBy != "" {
		slices.SortStableFunc(docs, func(a, b bson.Raw) int {
			cmp := compareValues(a.Lookup(q.OrderBy), b.Lookup(q.OrderBy))
			if q.Descending {
				return -cmp
			}
			return cmp
		})
	}

	records := make([]T, 0, len(docs))
	for _, doc := range docs {
		var record T
		if err := bson.UnmarshalWithRegistry(repository.Registry, doc, &record); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", c.name, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func toDocument(v any) (bson.D, error) {
	raw, err := bson.MarshalWithRegistry(repository.Registry, v)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.UnmarshalWithRegistry(repository.Registry, raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// compareValues orders two field values the way the document database sorts
// scalars: missing first, then by type, then by value.
func compareValues(a, b bson.RawValue) int {
	if a.Type != b.Type {
		if an, ok := number(a); ok {
			if bn, ok := number(b); ok {
				return an.Cmp(bn)
			}
		}
		return int(a.Type) - int(b.Type)
	}

	switch a.Type {
	case bson.TypeString:
		return strings.Compare(a.StringValue(), b.StringValue())
	case bson.TypeDateTime:
		return cmpInt64(a.DateTime(), b.DateTime())
	case bson.TypeBoolean:
		return cmpInt64(boolInt(a.Boolean()), boolInt(b.Boolean()))
	}
	if an, ok := number(a); ok {
		bn, _ := number(b)
		return an.Cmp(bn)
	}
	return bytes.Compare(a.Value, b.Value)
}

func number(v bson.RawValue) (decimal.Decimal, bool) {
	switch v.Type {
	case bson.TypeDouble:
		return decimal.NewFromFloat(v.Double()), true
	case bson.TypeInt32:
		return decimal.NewFromInt32(v.Int32()), true
	case bson.TypeInt64:
		return decimal.NewFromInt(v.Int64()), true
	case bson.TypeDecimal128:
		d, err := decimal.NewFromString(v.Decimal128().String())
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
