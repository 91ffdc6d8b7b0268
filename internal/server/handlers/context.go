package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/repository"
	"github.com/mamadbah2/shopledger/internal/service/ledger"
)

// Identity headers set by the upstream authentication proxy.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
	HeaderRequestID = "X-Request-ID"
)

const (
	requestIDKey = "request_id"
	sessionKey   = "ledger_session"
)

// RequestID returns the id assigned to the request by the router.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// SetRequestID stores the request id for handlers and logs.
func SetRequestID(c *gin.Context, id string) {
	c.Set(requestIDKey, id)
	c.Header(HeaderRequestID, id)
}

func principalFrom(c *gin.Context) (ledger.Principal, bool) {
	p := ledger.Principal{
		UserID:      c.GetHeader(HeaderUserID),
		DisplayName: c.GetHeader(HeaderUserName),
		Email:       c.GetHeader(HeaderUserEmail),
	}
	return p, p.UserID != ""
}

func sessionFrom(c *gin.Context) *ledger.Session {
	return c.MustGet(sessionKey).(*ledger.Session)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *models.ValidationError
	var serr *ledger.StoreError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, ledger.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.As(err, &serr):
		logger.Error("record store failure", zap.String("op", serr.Op), zap.Error(serr.Err), zap.String("request_id", RequestID(c)))
		c.JSON(http.StatusBadGateway, gin.H{"error": "record store unavailable"})
	default:
		logger.Error("request failed", zap.Error(err), zap.String("request_id", RequestID(c)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, field, rule string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": map[string]string{field: rule}})
}
