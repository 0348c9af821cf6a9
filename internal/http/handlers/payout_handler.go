package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/dto"
	"github.com/ignatzorin/escrow-market/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-market/internal/service"
)

type PayoutHandler struct {
	payouts *service.PayoutService
}

func NewPayoutHandler(payouts *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// CreatePayout POST /api/payouts
func (h *PayoutHandler) CreatePayout(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreatePayoutRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payout, err := h.payouts.CreatePayoutRequest(c.Request.Context(), userID, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payout)
}

// ListMyPayouts GET /api/payouts
func (h *PayoutHandler) ListMyPayouts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	payouts, err := h.payouts.ListMyPayouts(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: payouts, Limit: limit, Offset: offset})
}

// ProcessPayout POST /api/payouts/:id/process
func (h *PayoutHandler) ProcessPayout(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	payoutID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payout, err := h.payouts.ProcessPayout(c.Request.Context(), payoutID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, payout)
}
