package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/events"
	"github.com/mamadbah2/shopledger/internal/repository"
	"github.com/mamadbah2/shopledger/internal/repository/memory"
)

var (
	alice = Principal{UserID: "alice", DisplayName: "Alice", Email: "alice@example.com"}
	bob   = Principal{UserID: "bob", DisplayName: "Bob"}
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }

func memoryStores() Stores {
	store := memory.NewStore(nil)
	return Stores{
		Expenses:    memory.NewCollection[models.Expense](store, repository.CollectionExpenses),
		Revenue:     memory.NewCollection[models.RevenueEntry](store, repository.CollectionRevenue),
		Stock:       memory.NewCollection[models.StockItem](store, repository.CollectionStock),
		Consumables: memory.NewCollection[models.ConsumableItem](store, repository.CollectionConsumables),
	}
}

func openSession(t *testing.T, stores Stores, opts Options) *Session {
	t.Helper()
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	s, err := Open(context.Background(), alice, stores, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitReady(ctx); err != nil {
		t.Fatalf("session never became ready: %v", err)
	}
	return s
}

func eventually(t *testing.T, s *Session, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := s.Snapshot(); cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
	return Snapshot{}
}

func ptr[T any](v T) *T { return &v }

// stubCollection wraps a real collection and can fail any call.
type stubCollection[T any] struct {
	repository.Collection[T]
	writeErr     error
	subscribeErr error
	writes       atomic.Int32

	mu   sync.Mutex
	subs []*repository.Subscription[T]
}

func (c *stubCollection[T]) Create(ctx context.Context, record T) (string, error) {
	c.writes.Add(1)
	if c.writeErr != nil {
		return "", c.writeErr
	}
	return c.Collection.Create(ctx, record)
}

func (c *stubCollection[T]) Delete(ctx context.Context, id string) error {
	c.writes.Add(1)
	if c.writeErr != nil {
		return c.writeErr
	}
	return c.Collection.Delete(ctx, id)
}

func (c *stubCollection[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	c.writes.Add(1)
	if c.writeErr != nil {
		return c.writeErr
	}
	return c.Collection.Update(ctx, id, fields)
}

func (c *stubCollection[T]) Increment(ctx context.Context, id, field string, delta float64) (float64, error) {
	c.writes.Add(1)
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.Collection.Increment(ctx, id, field, delta)
}

func (c *stubCollection[T]) Subscribe(ctx context.Context, q repository.Query) (*repository.Subscription[T], error) {
	if c.subscribeErr != nil {
		return nil, c.subscribeErr
	}
	sub, err := c.Collection.Subscribe(ctx, q)
	if err == nil {
		c.mu.Lock()
		c.subs = append(c.subs, sub)
		c.mu.Unlock()
	}
	return sub, err
}

// manualCollection hands the test full control over the subscription feed.
type manualCollection[T any] struct {
	repository.Collection[T]

	mu  sync.Mutex
	sub *repository.Subscription[T]
}

func (c *manualCollection[T]) Subscribe(context.Context, repository.Query) (*repository.Subscription[T], error) {
	var sub *repository.Subscription[T]
	sub = repository.NewSubscription[T](func() { sub.Finish() })
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	return sub, nil
}

func (c *manualCollection[T]) feed() *repository.Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func validExpense() models.ExpenseInput {
	return models.ExpenseInput{
		Date:     "2024-03-05",
		Category: models.ExpenseStockPurchase,
		Item:     "  Beef  ",
		Amount:   ptr(decimal.RequireFromString("1250.50")),
	}
}

func TestAddExpenseReachesSnapshot(t *testing.T) {
	publisher := &recordingPublisher{}
	s := openSession(t, memoryStores(), Options{Publisher: publisher})

	created, err := s.AddExpense(context.Background(), validExpense())
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if created.ID == "" || created.Item != "Beef" || created.Quantity != 1 || created.Unit != "pcs" {
		t.Errorf("unexpected record %+v", created)
	}

	snap := eventually(t, s, func(s Snapshot) bool { return len(s.Expenses) == 1 })
	got := snap.Expenses[0]
	if got.UserID != "alice" || got.UserName != "Alice" || got.UserEmail != "alice@example.com" {
		t.Errorf("identity not stamped: %+v", got)
	}
	if !got.CreatedAt.Equal(fixedNow()) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, fixedNow())
	}
	if !got.Amount.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("amount = %s", got.Amount)
	}

	if len(publisher.events) != 1 || publisher.events[0].RoutingKey() != "expenses.created" {
		t.Errorf("events = %+v, want one expenses.created", publisher.events)
	}
}

func TestInvalidInputNeverReachesStore(t *testing.T) {
	stores := memoryStores()
	stub := &stubCollection[models.Expense]{Collection: stores.Expenses}
	stores.Expenses = stub
	s := openSession(t, stores, Options{})

	in := validExpense()
	in.Amount = ptr(decimal.NewFromInt(-1))
	_, err := s.AddExpense(context.Background(), in)

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["amount"]; !ok {
		t.Errorf("fields = %v, want amount", verr.Fields)
	}
	if n := stub.writes.Load(); n != 0 {
		t.Errorf("store called %d times", n)
	}
}

func TestStoreFailureLeavesCacheUntouched(t *testing.T) {
	stores := memoryStores()
	boom := errors.New("unavailable")
	stores.Revenue = &stubCollection[models.RevenueEntry]{Collection: stores.Revenue, writeErr: boom}
	s := openSession(t, stores, Options{})

	_, err := s.AddRevenue(context.Background(), models.RevenueInput{Date: "2024-03-05", Amount: ptr(decimal.NewFromInt(10))})

	var serr *StoreError
	if !errors.As(err, &serr) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want StoreError wrapping %v", err, boom)
	}
	if len(s.Snapshot().Revenue) != 0 {
		t.Error("failed mutation changed the cache")
	}
}

func TestAdjustQuantityFloorsAtZero(t *testing.T) {
	s := openSession(t, memoryStores(), Options{})
	ctx := context.Background()

	item, err := s.AddStockItem(ctx, models.StockInput{Name: "Onions", Category: models.StockVegetable, Quantity: ptr(3.0), Unit: "kg", MinLevel: 2})
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	eventually(t, s, func(s Snapshot) bool { return len(s.Stock) == 1 })

	got, err := s.AdjustStockQuantity(ctx, item.ID, -5)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got != 0 {
		t.Errorf("adjusted quantity = %v, want 0", got)
	}
	snap := eventually(t, s, func(s Snapshot) bool { return len(s.Stock) == 1 && s.Stock[0].CurrentQuantity == 0 })
	if !snap.Stock[0].IsLow() {
		t.Error("item at zero with minLevel 2 should be low")
	}

	if _, err := s.SetStockQuantity(ctx, item.ID, 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	eventually(t, s, func(s Snapshot) bool { return s.Stock[0].CurrentQuantity == 7 })

	if _, err := s.AdjustStockQuantity(ctx, "missing", 1); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("adjust missing: err = %v, want ErrNotFound", err)
	}
	if _, err := s.SetConsumableQuantity(ctx, "missing", 1); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("set missing consumable: err = %v, want ErrNotFound", err)
	}
}

func TestNonFiniteQuantityNeverReachesStore(t *testing.T) {
	stores := memoryStores()
	stock := &stubCollection[models.StockItem]{Collection: stores.Stock}
	stores.Stock = stock
	s := openSession(t, stores, Options{})
	ctx := context.Background()

	item, err := s.AddStockItem(ctx, models.StockInput{Name: "Flour", Category: models.StockGrocery, Quantity: ptr(4.0), Unit: "kg"})
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	eventually(t, s, func(s Snapshot) bool { return len(s.Stock) == 1 })
	before := stock.writes.Load()

	tests := []struct {
		name string
		call func() (float64, error)
	}{
		{name: "set NaN", call: func() (float64, error) { return s.SetStockQuantity(ctx, item.ID, math.NaN()) }},
		{name: "set +Inf", call: func() (float64, error) { return s.SetStockQuantity(ctx, item.ID, math.Inf(1)) }},
		{name: "adjust NaN", call: func() (float64, error) { return s.AdjustStockQuantity(ctx, item.ID, math.NaN()) }},
		{name: "adjust -Inf", call: func() (float64, error) { return s.AdjustStockQuantity(ctx, item.ID, math.Inf(-1)) }},
		{name: "consumable +Inf", call: func() (float64, error) { return s.SetConsumableQuantity(ctx, "any", math.Inf(1)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.call()
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}

	if got := stock.writes.Load(); got != before {
		t.Errorf("store saw %d writes for rejected quantities", got-before)
	}
	if q := s.Snapshot().Stock[0].CurrentQuantity; q != 4 {
		t.Errorf("quantity = %v, want 4", q)
	}
}

func TestReadErrorKeepsSubscriptionAlive(t *testing.T) {
	stores := memoryStores()
	expenses := &manualCollection[models.Expense]{Collection: stores.Expenses}
	stores.Expenses = expenses

	type failure struct {
		collection string
		err        error
	}
	failures := make(chan failure, 4)
	s, err := Open(context.Background(), alice, stores, Options{
		Now: fixedNow,
		OnError: func(collection string, err error) {
			failures <- failure{collection, err}
		},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)

	feed := expenses.feed()
	feed.Publish(repository.Snapshot[models.Expense]{At: fixedNow()})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitReady(ctx); err != nil {
		t.Fatalf("session never became ready: %v", err)
	}

	boom := errors.New("listener dropped")
	feed.Fail(boom)
	select {
	case f := <-failures:
		if f.collection != repository.CollectionExpenses || !errors.Is(f.err, boom) {
			t.Errorf("OnError(%q, %v), want (%q, %v)", f.collection, f.err, repository.CollectionExpenses, boom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read error never reported")
	}

	feed.Publish(repository.Snapshot[models.Expense]{
		Records: []models.Expense{{ID: "e1", Date: "2024-03-05", Category: models.ExpenseOther, Item: "Tape"}},
		At:      fixedNow(),
	})
	eventually(t, s, func(s Snapshot) bool { return len(s.Expenses) == 1 && s.Expenses[0].ID == "e1" })
}

func TestConcurrentAdjustmentsAllLand(t *testing.T) {
	s := openSession(t, memoryStores(), Options{})
	ctx := context.Background()

	item, err := s.AddConsumableItem(ctx, models.ConsumableInput{Name: "Boxes", Category: models.ConsumablePackaging, Quantity: ptr(0.0), Unit: "pcs"})
	if err != nil {
		t.Fatalf("add consumable: %v", err)
	}
	eventually(t, s, func(s Snapshot) bool { return len(s.Consumables) == 1 })

	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdjustConsumableQuantity(ctx, item.ID, 2); err != nil {
				t.Errorf("adjust: %v", err)
			}
		}()
	}
	wg.Wait()

	eventually(t, s, func(s Snapshot) bool { return s.Consumables[0].CurrentQuantity == 50 })
}

func TestDeleteMissingRecordSucceeds(t *testing.T) {
	s := openSession(t, memoryStores(), Options{})
	if err := s.DeleteExpense(context.Background(), "nope"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
	var verr *models.ValidationError
	if err := s.DeleteRevenue(context.Background(), ""); !errors.As(err, &verr) {
		t.Errorf("delete empty id: err = %v, want ValidationError", err)
	}
}

func TestClosedSessionRejectsMutations(t *testing.T) {
	s := openSession(t, memoryStores(), Options{})
	s.Close()

	if _, err := s.AddExpense(context.Background(), validExpense()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
	if err := s.DeleteConsumableItem(context.Background(), "x"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestOpenWithoutUser(t *testing.T) {
	if _, err := Open(context.Background(), Principal{}, memoryStores(), Options{}); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestOpenFailureReleasesSubscriptions(t *testing.T) {
	stores := memoryStores()
	expenses := &stubCollection[models.Expense]{Collection: stores.Expenses}
	stores.Expenses = expenses
	stores.Consumables = &stubCollection[models.ConsumableItem]{Collection: stores.Consumables, subscribeErr: errors.New("denied")}

	_, err := Open(context.Background(), alice, stores, Options{})
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want StoreError", err)
	}

	expenses.mu.Lock()
	defer expenses.mu.Unlock()
	for _, sub := range expenses.subs {
		select {
		case <-sub.Done():
		default:
			t.Error("expense subscription left open")
		}
	}
}

func TestPrivateSessionSeesOwnRecords(t *testing.T) {
	stores := memoryStores()
	other, err := Open(context.Background(), bob, stores, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("open bob: %v", err)
	}
	defer other.Close()
	if _, err := other.AddExpense(context.Background(), validExpense()); err != nil {
		t.Fatalf("bob add: %v", err)
	}

	s := openSession(t, stores, Options{Private: true})
	if _, err := s.AddExpense(context.Background(), validExpense()); err != nil {
		t.Fatalf("alice add: %v", err)
	}

	snap := eventually(t, s, func(s Snapshot) bool { return len(s.Expenses) == 1 })
	if snap.Expenses[0].UserID != "alice" {
		t.Errorf("private session saw %q's expense", snap.Expenses[0].UserID)
	}
}

func TestSignInReplacesPreviousSession(t *testing.T) {
	stores := memoryStores()
	m := NewManager(stores, Options{Now: fixedNow})
	defer m.Close()
	ctx := context.Background()

	first, err := m.SignIn(ctx, alice)
	if err != nil {
		t.Fatalf("first sign in: %v", err)
	}
	second, err := m.SignIn(ctx, alice)
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}

	if !first.Closed() {
		t.Fatal("previous session still open after switch")
	}
	current, err := m.Session("alice")
	if err != nil || current != second {
		t.Fatalf("Session = %v, %v; want second session", current, err)
	}

	before := first.Snapshot()
	if _, err := second.AddExpense(ctx, validExpense()); err != nil {
		t.Fatalf("add: %v", err)
	}
	eventually(t, second, func(s Snapshot) bool { return len(s.Expenses) == 1 })
	if len(first.Snapshot().Expenses) != len(before.Expenses) {
		t.Error("closed session received a snapshot")
	}
}

func TestAcquireReusesSession(t *testing.T) {
	m := NewManager(memoryStores(), Options{})
	defer m.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Acquire(ctx, alice)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			got[i] = s
		}(i)
	}
	wg.Wait()

	current, err := m.Session("alice")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if current.Closed() {
		t.Fatal("current session closed")
	}

	m.SignOut("alice")
	if _, err := m.Session("alice"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("after sign out: err = %v, want ErrNotAuthenticated", err)
	}
	if !current.Closed() {
		t.Error("sign out left the session open")
	}
}

func TestManagerClosedRejectsSignIn(t *testing.T) {
	m := NewManager(memoryStores(), Options{})
	m.Close()
	if _, err := m.SignIn(context.Background(), alice); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("err = %v, want ErrManagerClosed", err)
	}
}
