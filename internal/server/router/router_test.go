package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/repository"
	"github.com/mamadbah2/shopledger/internal/repository/memory"
	"github.com/mamadbah2/shopledger/internal/server/handlers"
	"github.com/mamadbah2/shopledger/internal/service/ledger"
)

const userID = "owner-1"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewStore(nil)
	manager := ledger.NewManager(ledger.Stores{
		Expenses:    memory.NewCollection[models.Expense](store, repository.CollectionExpenses),
		Revenue:     memory.NewCollection[models.RevenueEntry](store, repository.CollectionRevenue),
		Stock:       memory.NewCollection[models.StockItem](store, repository.CollectionStock),
		Consumables: memory.NewCollection[models.ConsumableItem](store, repository.CollectionConsumables),
	}, ledger.Options{})
	t.Cleanup(manager.Close)

	return New(handlers.NewLedgerHandler(manager, time.UTC, nil), nil, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set(handlers.HeaderUserID, userID)
		req.Header.Set(handlers.HeaderUserName, "Owner")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func signIn(t *testing.T, h http.Handler) {
	t.Helper()
	if rec := do(t, h, http.MethodPost, "/api/session", nil, true); rec.Code != http.StatusCreated {
		t.Fatalf("sign in: status %d body %s", rec.Code, rec.Body.String())
	}
}

// poll retries a GET until cond accepts the body.
func poll(t *testing.T, h http.Handler, path string, cond func(string) bool) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(t, h, http.MethodGet, path, nil, true)
		if rec.Code == http.StatusOK && cond(rec.Body.String()) {
			return rec.Body.String()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("GET %s never satisfied condition", path)
	return ""
}

func TestAPIRequiresIdentityAndSession(t *testing.T) {
	h := newTestRouter(t)

	if rec := do(t, h, http.MethodGet, "/api/expenses", nil, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no identity: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/expenses", nil, true); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no session: status %d", rec.Code)
	}

	signIn(t, h)
	if rec := do(t, h, http.MethodGet, "/api/expenses", nil, true); rec.Code != http.StatusOK {
		t.Fatalf("signed in: status %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/api/session", nil, true); rec.Code != http.StatusNoContent {
		t.Fatalf("sign out: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/expenses", nil, true); rec.Code != http.StatusUnauthorized {
		t.Fatalf("after sign out: status %d", rec.Code)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	h := newTestRouter(t)
	signIn(t, h)

	rec := do(t, h, http.MethodPost, "/api/expenses", map[string]any{
		"date":     "2024-03-05",
		"category": "stock_purchase",
		"item":     "Rice",
		"amount":   500,
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	created := decode[models.Expense](t, rec)
	if created.ID == "" || created.UserID != userID || created.Unit != "pcs" {
		t.Fatalf("unexpected record %+v", created)
	}

	poll(t, h, "/api/expenses?search=rice", func(body string) bool { return strings.Contains(body, created.ID) })

	summary := decode[struct {
		TotalExpenses decimal.Decimal `json:"totalExpenses"`
	}](t, do(t, h, http.MethodGet, "/api/summary/daily?date=2024-03-05", nil, true))
	if !summary.TotalExpenses.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("daily expenses = %s, want 500", summary.TotalExpenses)
	}

	grouped := do(t, h, http.MethodGet, "/api/expenses?grouped=true", nil, true)
	if !strings.Contains(grouped.Body.String(), `"date":"2024-03-05"`) {
		t.Fatalf("grouped body %s", grouped.Body.String())
	}

	if rec := do(t, h, http.MethodDelete, "/api/expenses/"+created.ID, nil, true); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	poll(t, h, "/api/expenses", func(body string) bool { return !strings.Contains(body, created.ID) })

	if rec := do(t, h, http.MethodDelete, "/api/expenses/"+created.ID, nil, true); rec.Code != http.StatusNoContent {
		t.Fatalf("second delete: status %d", rec.Code)
	}
}

func TestValidationErrors(t *testing.T) {
	h := newTestRouter(t)
	signIn(t, h)

	rec := do(t, h, http.MethodPost, "/api/expenses", map[string]any{
		"date":     "2024-03-05",
		"category": "stock_purchase",
		"item":     "Rice",
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing amount: status %d", rec.Code)
	}
	body := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, rec)
	if _, ok := body.Fields["amount"]; !ok {
		t.Fatalf("expected amount field error, got %v", body.Fields)
	}

	cases := []string{
		"/api/expenses?category=bogus",
		"/api/expenses?from=2024-13-01",
		"/api/revenue?to=yesterday",
		"/api/summary/daily?date=05-03-2024",
		"/api/summary/monthly?month=13",
	}
	for _, path := range cases {
		if rec := do(t, h, http.MethodGet, path, nil, true); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", path, rec.Code)
		}
	}

	if rec := do(t, h, http.MethodGet, "/api/expenses?category=all", nil, true); rec.Code != http.StatusOK {
		t.Fatalf("all categories: status %d", rec.Code)
	}
}

func TestStockQuantity(t *testing.T) {
	h := newTestRouter(t)
	signIn(t, h)

	rec := do(t, h, http.MethodPost, "/api/stock", map[string]any{
		"name":            "Onion",
		"category":        "vegetable",
		"currentQuantity": 3,
		"unit":            "kg",
		"minLevel":        2,
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	item := decode[models.StockItem](t, rec)
	poll(t, h, "/api/stock", func(body string) bool { return strings.Contains(body, item.ID) })

	path := "/api/stock/" + item.ID + "/quantity"
	result := decode[struct {
		CurrentQuantity float64 `json:"currentQuantity"`
	}](t, do(t, h, http.MethodPatch, path, map[string]any{"delta": -10}, true))
	if result.CurrentQuantity != 0 {
		t.Fatalf("adjusted quantity = %v, want 0", result.CurrentQuantity)
	}

	poll(t, h, "/api/stock?low=true", func(body string) bool { return strings.Contains(body, item.ID) })

	if rec := do(t, h, http.MethodPatch, path, map[string]any{"delta": 1, "quantity": 4}, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("both fields: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPatch, "/api/stock/missing/quantity", map[string]any{"delta": 1}, true); rec.Code != http.StatusNotFound {
		t.Fatalf("missing item: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPatch, "/api/stock/missing/quantity", map[string]any{"quantity": 4}, true); rec.Code != http.StatusNotFound {
		t.Fatalf("missing item set: status %d", rec.Code)
	}
}

func TestMetaAndWorkbook(t *testing.T) {
	h := newTestRouter(t)

	meta := decode[struct {
		ExpenseCategories []struct {
			Value string `json:"value"`
			Label string `json:"label"`
		} `json:"expenseCategories"`
		Units []string `json:"units"`
	}](t, do(t, h, http.MethodGet, "/api/meta", nil, false))
	if len(meta.ExpenseCategories) != len(models.ExpenseCategories) || meta.ExpenseCategories[1].Label != "Uber/Delivery" {
		t.Fatalf("unexpected categories %+v", meta.ExpenseCategories)
	}
	if len(meta.Units) == 0 {
		t.Fatal("expected unit suggestions")
	}

	signIn(t, h)
	rec := do(t, h, http.MethodGet, "/api/reports/monthly.xlsx?year=2024&month=2", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("workbook: status %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "shopledger-2024-02.xlsx") {
		t.Fatalf("disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty workbook")
	}
}

func TestRequestID(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(handlers.HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(handlers.HeaderRequestID); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get(handlers.HeaderRequestID) == "" {
		t.Fatal("expected generated request id")
	}
}
