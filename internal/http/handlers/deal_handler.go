package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/dto"
	"github.com/ignatzorin/escrow-market/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-market/internal/service"
)

type DealHandler struct {
	deals *service.DealService
}

func NewDealHandler(deals *service.DealService) *DealHandler {
	return &DealHandler{deals: deals}
}

// CreateDeal POST /api/deals
func (h *DealHandler) CreateDeal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateDealRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	created, err := h.deals.CreateDeal(c.Request.Context(), userID, service.CreateDealInput{
		ProposalID: req.ProposalID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListMyDeals GET /api/deals/my
func (h *DealHandler) ListMyDeals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	deals, err := h.deals.ListMyDeals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: deals, Limit: limit, Offset: offset})
}

// GetDeal GET /api/deals/:id
func (h *DealHandler) GetDeal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	dealID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	deal, err := h.deals.GetDeal(c.Request.Context(), dealID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, deal)
}

// ConfirmDeal POST /api/deals/:id/confirm
func (h *DealHandler) ConfirmDeal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	dealID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	released, err := h.deals.ConfirmDeal(c.Request.Context(), dealID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, released)
}
