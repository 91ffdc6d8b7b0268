package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
// A nil webhook handler leaves the WhatsApp routes unregistered.
func New(ledgerHandler *handlers.LedgerHandler, webhook *handlers.WebhookHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))

	if webhook != nil {
		r.GET("/webhook", webhook.Verify)
		r.POST("/webhook", webhook.Receive)
		r.POST("/send-message", webhook.SendMessage)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/session", ledgerHandler.SignIn)
	api.DELETE("/session", ledgerHandler.SignOut)
	api.GET("/meta", ledgerHandler.Meta)

	authed := api.Group("", ledgerHandler.RequireSession)
	authed.GET("/expenses", ledgerHandler.ListExpenses)
	authed.POST("/expenses", ledgerHandler.CreateExpense)
	authed.DELETE("/expenses/:id", ledgerHandler.DeleteExpense)

	authed.GET("/revenue", ledgerHandler.ListRevenue)
	authed.POST("/revenue", ledgerHandler.CreateRevenue)
	authed.DELETE("/revenue/:id", ledgerHandler.DeleteRevenue)

	authed.GET("/stock", ledgerHandler.ListStock)
	authed.POST("/stock", ledgerHandler.CreateStockItem)
	authed.PATCH("/stock/:id/quantity", ledgerHandler.UpdateStockQuantity)
	authed.DELETE("/stock/:id", ledgerHandler.DeleteStockItem)

	authed.GET("/consumables", ledgerHandler.ListConsumables)
	authed.POST("/consumables", ledgerHandler.CreateConsumableItem)
	authed.PATCH("/consumables/:id/quantity", ledgerHandler.UpdateConsumableQuantity)
	authed.DELETE("/consumables/:id", ledgerHandler.DeleteConsumableItem)

	authed.GET("/summary/daily", ledgerHandler.DailySummary)
	authed.GET("/summary/monthly", ledgerHandler.MonthlySummary)
	authed.GET("/summary/categories", ledgerHandler.CategorySummary)
	authed.GET("/summary/totals", ledgerHandler.TotalsSummary)
	authed.GET("/reports/monthly.xlsx", ledgerHandler.MonthlyWorkbook)

	if logger != nil {
		logger.Info("router initialized", zap.Bool("whatsapp", webhook != nil))
	}

	return r
}

// requestIDMiddleware keeps an inbound X-Request-ID or assigns a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(handlers.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		handlers.SetRequestID(c, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("request_id", handlers.RequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
