package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/dto"
	"github.com/ignatzorin/escrow-market/internal/http/middleware"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/payment"
	"github.com/ignatzorin/escrow-market/internal/service"
)

const testWebhookSecret = "whsec_test_secret"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Silence()
}

func newWebhookRouter() *gin.Engine {
	gateway := payment.NewStripeGateway("", testWebhookSecret)
	deals := service.NewDealService(nil, nil, nil, gateway, nil, config.DefaultBilling())

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.POST("/api/stripe/webhook", NewWebhookHandler(deals).Stripe)
	return r
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	r := newWebhookRouter()

	req, _ := http.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewBufferString(`{"id":"evt_1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTEGRITY_FAILURE", resp.Code)
}

func TestWebhookHandler_WrongSignature(t *testing.T) {
	r := newWebhookRouter()
	payload := []byte(`{"id":"evt_1","object":"event","type":"charge.refunded","data":{"object":{}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_other",
		Timestamp: time.Now(),
	})

	req, _ := http.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_IgnoredEventAcknowledged(t *testing.T) {
	r := newWebhookRouter()
	payload := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	req, _ := http.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
}

func TestHandlers_Unauthorized(t *testing.T) {
	r := gin.New()
	deals := &DealHandler{}
	disputes := &DisputeHandler{}
	payouts := &PayoutHandler{}
	wallets := &WalletHandler{}
	projects := &ProjectHandler{}

	r.POST("/api/deals", deals.CreateDeal)
	r.GET("/api/deals/my", deals.ListMyDeals)
	r.POST("/api/deals/:id/confirm", deals.ConfirmDeal)
	r.POST("/api/deals/:id/dispute", disputes.CreateDispute)
	r.PATCH("/api/disputes/:disputeId/resolve", disputes.ResolveDispute)
	r.POST("/api/payouts", payouts.CreatePayout)
	r.POST("/api/payouts/:id/process", payouts.ProcessPayout)
	r.GET("/api/wallet", wallets.GetWallet)
	r.POST("/api/profile/boost", wallets.PurchaseBoost)
	r.POST("/api/projects", projects.CreateProject)
	r.POST("/api/projects/:id/invites", projects.InviteFreelancer)

	id := uuid.New().String()
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/deals"},
		{http.MethodGet, "/api/deals/my"},
		{http.MethodPost, "/api/deals/" + id + "/confirm"},
		{http.MethodPost, "/api/deals/" + id + "/dispute"},
		{http.MethodPatch, "/api/disputes/" + id + "/resolve"},
		{http.MethodPost, "/api/payouts"},
		{http.MethodPost, "/api/payouts/" + id + "/process"},
		{http.MethodGet, "/api/wallet"},
		{http.MethodPost, "/api/profile/boost"},
		{http.MethodPost, "/api/projects"},
		{http.MethodPost, "/api/projects/" + id + "/invites"},
	}

	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Next()
	}
}

func TestDealHandler_InvalidInput(t *testing.T) {
	r := gin.New()
	r.Use(withUser(uuid.New()))
	h := &DealHandler{}
	r.POST("/api/deals", h.CreateDeal)
	r.GET("/api/deals/:id", h.GetDeal)

	req, _ := http.NewRequest(http.MethodGet, "/api/deals/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req, _ = http.NewRequest(http.MethodPost, "/api/deals", bytes.NewBufferString(`{"amount": 0}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_ResolveRejectsUnknownResolution(t *testing.T) {
	r := gin.New()
	r.Use(withUser(uuid.New()))
	h := &DisputeHandler{}
	r.PATCH("/api/disputes/:disputeId/resolve", h.ResolveDispute)

	req, _ := http.NewRequest(http.MethodPatch, "/api/disputes/"+uuid.New().String()+"/resolve", bytes.NewBufferString(`{"resolution":"split"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletHandler_BoostOffer(t *testing.T) {
	r := gin.New()
	h := NewWalletHandler(nil, service.NewBoostService(nil, nil, config.DefaultBilling()))
	r.GET("/api/profile/boost", h.GetBoostOffer)

	req, _ := http.NewRequest(http.MethodGet, "/api/profile/boost", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"price":15,"days":14,"currency":"USD"}`, w.Body.String())
}
