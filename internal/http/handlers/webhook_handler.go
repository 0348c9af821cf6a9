package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/dto"
	"github.com/ignatzorin/escrow-market/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-market/internal/service"
)

// maxWebhookBody предел тела события платёжного шлюза.
const maxWebhookBody = 64 << 10

// WebhookHandler принимает события Stripe. Подпись проверяется по сырому телу,
// поэтому тело читается до любого JSON-биндинга.
type WebhookHandler struct {
	deals *service.DealService
}

func NewWebhookHandler(deals *service.DealService) *WebhookHandler {
	return &WebhookHandler{deals: deals}
}

// Stripe POST /api/stripe/webhook
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	if err := h.deals.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
}
