package ledger

import (
	"context"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/events"
	"github.com/mamadbah2/shopledger/internal/repository"
)

// Every mutation validates its input, checks the session, calls the store and
// only then announces the change. The cache is never touched here: it
// changes when the store pushes the next snapshot.

// AddExpense records a new expense for the session user.
func (s *Session) AddExpense(ctx context.Context, in models.ExpenseInput) (models.Expense, error) {
	if err := models.Validate(in); err != nil {
		return models.Expense{}, err
	}
	if err := s.checkOpen(); err != nil {
		return models.Expense{}, err
	}

	record := in.Expense()
	record.CreatedAt = s.opts.Now().UTC()
	record.UserID = s.principal.UserID
	record.UserName = s.principal.DisplayName
	record.UserEmail = s.principal.Email

	id, err := s.stores.Expenses.Create(ctx, record)
	if err != nil {
		return models.Expense{}, &StoreError{Op: opName("add", repository.CollectionExpenses), Err: err}
	}
	record.ID = id
	s.publish(ctx, events.RecordCreated, repository.CollectionExpenses, id)
	return record, nil
}

// DeleteExpense removes an expense. Removing an unknown id succeeds.
func (s *Session) DeleteExpense(ctx context.Context, id string) error {
	return deleteRecord(ctx, s, s.stores.Expenses, repository.CollectionExpenses, id)
}

// AddRevenue records a new revenue entry for the session user.
func (s *Session) AddRevenue(ctx context.Context, in models.RevenueInput) (models.RevenueEntry, error) {
	if err := models.Validate(in); err != nil {
		return models.RevenueEntry{}, err
	}
	if err := s.checkOpen(); err != nil {
		return models.RevenueEntry{}, err
	}

	record := in.Revenue()
	record.CreatedAt = s.opts.Now().UTC()
	record.UserID = s.principal.UserID
	record.UserName = s.principal.DisplayName
	record.UserEmail = s.principal.Email

	id, err := s.stores.Revenue.Create(ctx, record)
	if err != nil {
		return models.RevenueEntry{}, &StoreError{Op: opName("add", repository.CollectionRevenue), Err: err}
	}
	record.ID = id
	s.publish(ctx, events.RecordCreated, repository.CollectionRevenue, id)
	return record, nil
}

// DeleteRevenue removes a revenue entry.
func (s *Session) DeleteRevenue(ctx context.Context, id string) error {
	return deleteRecord(ctx, s, s.stores.Revenue, repository.CollectionRevenue, id)
}

func (s *Session) AddStockItem(ctx context.Context, in models.StockInput) (models.StockItem, error) {
	return addItem(ctx, s, s.stores.Stock, repository.CollectionStock, in)
}

// AdjustStockQuantity adds delta to the cached quantity, flooring at zero,
// and returns the stored value.
func (s *Session) AdjustStockQuantity(ctx context.Context, id string, delta float64) (float64, error) {
	return adjustQuantity(ctx, s, s.stores.Stock, repository.CollectionStock, s.Snapshot().Stock, id, delta)
}

// SetStockQuantity stores quantity, floored at zero.
func (s *Session) SetStockQuantity(ctx context.Context, id string, quantity float64) (float64, error) {
	return setQuantity(ctx, s, s.stores.Stock, repository.CollectionStock, id, quantity)
}

func (s *Session) DeleteStockItem(ctx context.Context, id string) error {
	return deleteRecord(ctx, s, s.stores.Stock, repository.CollectionStock, id)
}

func (s *Session) AddConsumableItem(ctx context.Context, in models.ConsumableInput) (models.ConsumableItem, error) {
	return addItem(ctx, s, s.stores.Consumables, repository.CollectionConsumables, in)
}

func (s *Session) AdjustConsumableQuantity(ctx context.Context, id string, delta float64) (float64, error) {
	return adjustQuantity(ctx, s, s.stores.Consumables, repository.CollectionConsumables, s.Snapshot().Consumables, id, delta)
}

func (s *Session) SetConsumableQuantity(ctx context.Context, id string, quantity float64) (float64, error) {
	return setQuantity(ctx, s, s.stores.Consumables, repository.CollectionConsumables, id, quantity)
}

func (s *Session) DeleteConsumableItem(ctx context.Context, id string) error {
	return deleteRecord(ctx, s, s.stores.Consumables, repository.CollectionConsumables, id)
}

func addItem[C models.Category](ctx context.Context, s *Session, coll repository.Collection[models.InventoryItem[C]], name string, in models.InventoryInput[C]) (models.InventoryItem[C], error) {
	if err := models.Validate(in); err != nil {
		return models.InventoryItem[C]{}, err
	}
	if err := s.checkOpen(); err != nil {
		return models.InventoryItem[C]{}, err
	}

	item := in.Item(s.opts.Now())
	item.UserID = s.principal.UserID

	id, err := coll.Create(ctx, item)
	if err != nil {
		return models.InventoryItem[C]{}, &StoreError{Op: opName("add", name), Err: err}
	}
	item.ID = id
	s.publish(ctx, events.RecordCreated, name, id)
	return item, nil
}

func adjustQuantity[C models.Category](ctx context.Context, s *Session, coll repository.Collection[models.InventoryItem[C]], name string, cached []models.InventoryItem[C], id string, delta float64) (float64, error) {
	if err := requireID(id); err != nil {
		return 0, err
	}
	if err := models.CheckQuantity("delta", delta); err != nil {
		return 0, err
	}
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	if _, ok := findItem(cached, id); !ok {
		return 0, &StoreError{Op: opName("adjust", name), Err: repository.ErrNotFound}
	}
	quantity, err := coll.Increment(ctx, id, models.QuantityField, delta)
	if err != nil {
		return 0, &StoreError{Op: opName("adjust", name), Err: err}
	}
	s.publish(ctx, events.QuantityChanged, name, id)
	return quantity, nil
}

func setQuantity[C models.Category](ctx context.Context, s *Session, coll repository.Collection[models.InventoryItem[C]], name, id string, quantity float64) (float64, error) {
	if err := requireID(id); err != nil {
		return 0, err
	}
	if err := models.CheckQuantity(models.QuantityField, quantity); err != nil {
		return 0, err
	}
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	quantity = models.ClampQuantity(quantity)
	if err := coll.Update(ctx, id, map[string]any{models.QuantityField: quantity}); err != nil {
		return 0, &StoreError{Op: opName("update quantity", name), Err: err}
	}
	s.publish(ctx, events.QuantityChanged, name, id)
	return quantity, nil
}

func deleteRecord[T any](ctx context.Context, s *Session, coll repository.Collection[T], name, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := coll.Delete(ctx, id); err != nil {
		return &StoreError{Op: opName("delete", name), Err: err}
	}
	s.publish(ctx, events.RecordDeleted, name, id)
	return nil
}
