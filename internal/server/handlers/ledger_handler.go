package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/service/history"
	"github.com/mamadbah2/shopledger/internal/service/ledger"
	"github.com/mamadbah2/shopledger/internal/service/reporting"
)

const readyTimeout = 5 * time.Second

// SessionManager owns the per-user ledger sessions.
type SessionManager interface {
	SignIn(ctx context.Context, principal ledger.Principal) (*ledger.Session, error)
	Session(userID string) (*ledger.Session, error)
	SignOut(userID string)
}

// LedgerHandler serves the JSON API over the signed-in user's ledger.
type LedgerHandler struct {
	sessions SessionManager
	location *time.Location
	logger   *zap.Logger
}

// NewLedgerHandler builds the ledger API handler.
func NewLedgerHandler(sessions SessionManager, location *time.Location, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &LedgerHandler{sessions: sessions, location: location, logger: logger}
}

// SignIn opens a fresh session for the caller, replacing any previous one.
func (h *LedgerHandler) SignIn(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		respondError(c, h.logger, ledger.ErrNotAuthenticated)
		return
	}
	session, err := h.sessions.SignIn(c.Request.Context(), principal)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("user signed in", zap.String("user_id", principal.UserID), zap.String("session_id", session.ID()))
	c.JSON(http.StatusCreated, gin.H{"sessionId": session.ID(), "userId": principal.UserID})
}

// SignOut releases the caller's session.
func (h *LedgerHandler) SignOut(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		respondError(c, h.logger, ledger.ErrNotAuthenticated)
		return
	}
	h.sessions.SignOut(principal.UserID)
	c.Status(http.StatusNoContent)
}

// RequireSession resolves the caller's session and waits for its first snapshot.
func (h *LedgerHandler) RequireSession(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		respondError(c, h.logger, ledger.ErrNotAuthenticated)
		c.Abort()
		return
	}
	session, err := h.sessions.Session(principal.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		c.Abort()
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if err := session.WaitReady(ctx); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "ledger is still loading"})
		return
	}

	c.Set(sessionKey, session)
	c.Next()
}

func (h *LedgerHandler) ListExpenses(c *gin.Context) {
	filter := history.ExpenseFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		From:     c.Query("from"),
		To:       c.Query("to"),
	}
	if !h.checkRange(c, filter.From, filter.To) {
		return
	}
	if filter.Category != "" && filter.Category != history.AllCategories && !models.ExpenseCategory(filter.Category).Valid() {
		badRequest(c, "category", "closedset")
		return
	}

	expenses := history.FilterExpenses(sessionFrom(c).Snapshot().Expenses, filter)
	if c.Query("grouped") == "true" {
		c.JSON(http.StatusOK, gin.H{"groups": history.Grouped(expenses)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expenses": expenses})
}

func (h *LedgerHandler) CreateExpense(c *gin.Context) {
	var in models.ExpenseInput
	if !h.bind(c, &in) {
		return
	}
	expense, err := sessionFrom(c).AddExpense(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func (h *LedgerHandler) DeleteExpense(c *gin.Context) {
	h.remove(c, sessionFrom(c).DeleteExpense)
}

func (h *LedgerHandler) ListRevenue(c *gin.Context) {
	filter := history.RevenueFilter{
		Search: c.Query("search"),
		From:   c.Query("from"),
		To:     c.Query("to"),
	}
	if !h.checkRange(c, filter.From, filter.To) {
		return
	}

	revenue := history.FilterRevenue(sessionFrom(c).Snapshot().Revenue, filter)
	if c.Query("grouped") == "true" {
		c.JSON(http.StatusOK, gin.H{"groups": history.Grouped(revenue)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"revenue": revenue})
}

func (h *LedgerHandler) CreateRevenue(c *gin.Context) {
	var in models.RevenueInput
	if !h.bind(c, &in) {
		return
	}
	entry, err := sessionFrom(c).AddRevenue(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *LedgerHandler) DeleteRevenue(c *gin.Context) {
	h.remove(c, sessionFrom(c).DeleteRevenue)
}

func (h *LedgerHandler) ListStock(c *gin.Context) {
	items := sessionFrom(c).Snapshot().Stock
	if c.Query("low") == "true" {
		items = reporting.LowItems(items)
	}
	c.JSON(http.StatusOK, gin.H{"items": nonNil(items)})
}

func (h *LedgerHandler) CreateStockItem(c *gin.Context) {
	var in models.StockInput
	if !h.bind(c, &in) {
		return
	}
	item, err := sessionFrom(c).AddStockItem(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *LedgerHandler) UpdateStockQuantity(c *gin.Context) {
	session := sessionFrom(c)
	h.quantity(c, session.AdjustStockQuantity, session.SetStockQuantity)
}

func (h *LedgerHandler) DeleteStockItem(c *gin.Context) {
	h.remove(c, sessionFrom(c).DeleteStockItem)
}

func (h *LedgerHandler) ListConsumables(c *gin.Context) {
	items := sessionFrom(c).Snapshot().Consumables
	if c.Query("low") == "true" {
		items = reporting.LowItems(items)
	}
	c.JSON(http.StatusOK, gin.H{"items": nonNil(items)})
}

func (h *LedgerHandler) CreateConsumableItem(c *gin.Context) {
	var in models.ConsumableInput
	if !h.bind(c, &in) {
		return
	}
	item, err := sessionFrom(c).AddConsumableItem(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *LedgerHandler) UpdateConsumableQuantity(c *gin.Context) {
	session := sessionFrom(c)
	h.quantity(c, session.AdjustConsumableQuantity, session.SetConsumableQuantity)
}

func (h *LedgerHandler) DeleteConsumableItem(c *gin.Context) {
	h.remove(c, sessionFrom(c).DeleteConsumableItem)
}

// DailySummary defaults to today in the reporting time zone.
func (h *LedgerHandler) DailySummary(c *gin.Context) {
	reports := h.reports(c)
	date := c.DefaultQuery("date", reports.Today())
	if _, err := models.ParseDate(date); err != nil {
		badRequest(c, "date", "isodate")
		return
	}
	c.JSON(http.StatusOK, reports.Daily(date))
}

// MonthlySummary defaults to the current month.
func (h *LedgerHandler) MonthlySummary(c *gin.Context) {
	reports := h.reports(c)
	year, month, ok := h.month(c, reports)
	if !ok {
		return
	}
	summary := reports.Monthly(year, month)
	c.JSON(http.StatusOK, gin.H{
		"summary":   summary,
		"margin":    reporting.ProfitMargin(summary.TotalRevenue, summary.NetProfit),
		"breakdown": reporting.Breakdown(summary.ExpensesByCategory),
		"calendar":  reporting.Calendar(summary),
	})
}

func (h *LedgerHandler) CategorySummary(c *gin.Context) {
	r := reporting.DateRange{From: c.Query("from"), To: c.Query("to")}
	if !h.checkRange(c, r.From, r.To) {
		return
	}
	totals := reporting.CategoryTotals(sessionFrom(c).Snapshot().Expenses, r)
	c.JSON(http.StatusOK, gin.H{
		"total":      totals.Sum(),
		"categories": reporting.Ranked(totals),
	})
}

func (h *LedgerHandler) TotalsSummary(c *gin.Context) {
	snap := sessionFrom(c).Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"totals":         reporting.AllTime(snap.Expenses, snap.Revenue),
		"recentExpenses": nonNil(reporting.Recent(snap.Expenses, 5)),
		"lowStock":       len(reporting.LowItems(snap.Stock)) + len(reporting.LowItems(snap.Consumables)),
	})
}

// MonthlyWorkbook streams the month as an xlsx download.
func (h *LedgerHandler) MonthlyWorkbook(c *gin.Context) {
	reports := h.reports(c)
	year, month, ok := h.month(c, reports)
	if !ok {
		return
	}
	filename := fmt.Sprintf("shopledger-%s.xlsx", models.MonthPrefix(year, month))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := reports.MonthlyWorkbook(c.Writer, year, month); err != nil {
		respondError(c, h.logger, err)
	}
}

type categoryOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func options[C models.Category](values []C) []categoryOption {
	out := make([]categoryOption, 0, len(values))
	for _, v := range values {
		out = append(out, categoryOption{Value: string(v), Label: v.Label()})
	}
	return out
}

// Meta lists the closed enumerations for form pickers.
func (h *LedgerHandler) Meta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"expenseCategories":    options(models.ExpenseCategories),
		"stockCategories":      options(models.StockCategories),
		"consumableCategories": options(models.ConsumableCategories),
		"revenueSources":       options(models.RevenueSources),
		"units":                models.CommonUnits,
	})
}

func (h *LedgerHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return false
	}
	return true
}

func (h *LedgerHandler) remove(c *gin.Context, del func(context.Context, string) error) {
	if err := del(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type quantityRequest struct {
	Delta    *float64 `json:"delta"`
	Quantity *float64 `json:"quantity"`
}

func (h *LedgerHandler) quantity(c *gin.Context, adjust, set func(context.Context, string, float64) (float64, error)) {
	var req quantityRequest
	if !h.bind(c, &req) {
		return
	}

	var (
		result float64
		err    error
	)
	switch {
	case req.Delta != nil && req.Quantity == nil:
		result, err = adjust(c.Request.Context(), c.Param("id"), *req.Delta)
	case req.Quantity != nil && req.Delta == nil:
		result, err = set(c.Request.Context(), c.Param("id"), *req.Quantity)
	default:
		badRequest(c, "delta", "exactly one of delta or quantity")
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "currentQuantity": result})
}

func (h *LedgerHandler) reports(c *gin.Context) *reporting.Service {
	return reporting.NewService(sessionFrom(c), h.location, h.logger)
}

func (h *LedgerHandler) month(c *gin.Context, reports *reporting.Service) (int, int, bool) {
	year, month := reports.CurrentMonth()
	if raw := c.Query("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "year", "numeric")
			return 0, 0, false
		}
		year = v
	}
	if raw := c.Query("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 12 {
			badRequest(c, "month", "1..12")
			return 0, 0, false
		}
		month = v
	}
	return year, month, true
}

func (h *LedgerHandler) checkRange(c *gin.Context, from, to string) bool {
	if from != "" {
		if _, err := models.ParseDate(from); err != nil {
			badRequest(c, "from", "isodate")
			return false
		}
	}
	if to != "" {
		if _, err := models.ParseDate(to); err != nil {
			badRequest(c, "to", "isodate")
			return false
		}
	}
	return true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
