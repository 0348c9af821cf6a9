package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/dto"
	"github.com/ignatzorin/escrow-market/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-market/internal/service"
)

type DisputeHandler struct {
	disputes *service.DisputeService
}

func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// CreateDispute POST /api/deals/:id/dispute
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
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

	var req dto.CreateDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.CreateDispute(c.Request.Context(), dealID, userID, req.Title, req.Description)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// ListDealDisputes GET /api/deals/:id/disputes
func (h *DisputeHandler) ListDealDisputes(c *gin.Context) {
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

	disputes, err := h.disputes.ListDealDisputes(c.Request.Context(), dealID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// GetDispute GET /api/disputes/:disputeId
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "disputeId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.GetDispute(c.Request.Context(), disputeID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ResolveDispute PATCH /api/disputes/:disputeId/resolve
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "disputeId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	resolved, err := h.disputes.ResolveDispute(c.Request.Context(), disputeID, userID, service.ResolveDisputeInput{
		Resolution: req.Resolution,
		Amount:     req.Amount,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolved)
}
