package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/shopledger/internal/domain/models"
)

type fakeMessaging struct {
	webhookErr error
	sendErr    error
	sent       []models.OutboundMessageRequest
}

func (f *fakeMessaging) VerifyWebhookToken(mode, token, challenge string) (string, error) {
	if mode == "subscribe" && token == "secret" {
		return challenge, nil
	}
	return "", errors.New("token mismatch")
}

func (f *fakeMessaging) HandleWebhook(context.Context, models.WebhookPayload) error {
	return f.webhookErr
}

func (f *fakeMessaging) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	f.sent = append(f.sent, req)
	return f.sendErr
}

func webhookEngine(svc *fakeMessaging) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(svc, nil)
	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	r.POST("/send-message", h.SendMessage)
	return r
}

func TestVerify(t *testing.T) {
	r := webhookEngine(&fakeMessaging{})

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"valid token", "hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", http.StatusOK, "42"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", http.StatusForbidden, "verification failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?"+tc.query, nil))
			if rec.Code != tc.status || rec.Body.String() != tc.body {
				t.Fatalf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tc.status, tc.body)
			}
		})
	}
}

func TestReceiveAcknowledgesFailures(t *testing.T) {
	r := webhookEngine(&fakeMessaging{webhookErr: errors.New("dispatch failed")})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed payload: status %d", rec.Code)
	}
}

func TestSendMessage(t *testing.T) {
	svc := &fakeMessaging{}
	r := webhookEngine(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(`{"to":"2246","message":"hi"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d", rec.Code)
	}
	if len(svc.sent) != 1 || svc.sent[0].To != "2246" {
		t.Fatalf("sent %+v", svc.sent)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(`{"to":"2246"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing message: status %d", rec.Code)
	}

	svc.sendErr = errors.New("upstream down")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(`{"to":"2246","message":"hi"}`)))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("send failure: status %d", rec.Code)
	}
}

func TestSendMessageRejectsBadRecipient(t *testing.T) {
	svc := &fakeMessaging{}
	r := webhookEngine(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(`{"to":"manager","message":"hi"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if len(svc.sent) != 0 {
		t.Fatalf("message sent to invalid recipient: %+v", svc.sent)
	}
}

func TestCountMessages(t *testing.T) {
	payload := models.WebhookPayload{Entry: []models.WebhookEntry{
		{Changes: []models.WebhookChange{{Value: models.WebhookValue{Messages: make([]models.InboundMessage, 2)}}}},
		{Changes: []models.WebhookChange{{}, {Value: models.WebhookValue{Messages: make([]models.InboundMessage, 1)}}}},
	}}
	if got := countMessages(payload); got != 3 {
		t.Fatalf("countMessages = %d, want 3", got)
	}
}
