package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/dto"
	"github.com/ignatzorin/escrow-market/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-market/internal/service"
)

// WalletHandler кошелёк, журнал операций и продвижение профиля.
type WalletHandler struct {
	wallets *service.WalletService
	boosts  *service.BoostService
}

func NewWalletHandler(wallets *service.WalletService, boosts *service.BoostService) *WalletHandler {
	return &WalletHandler{wallets: wallets, boosts: boosts}
}

// GetWallet GET /api/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	wallet, err := h.wallets.GetWallet(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, wallet)
}

// ListTransactions GET /api/wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	txs, err := h.wallets.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: txs, Limit: limit, Offset: offset})
}

// GetBoostOffer GET /api/profile/boost
func (h *WalletHandler) GetBoostOffer(c *gin.Context) {
	c.JSON(http.StatusOK, h.boosts.Offer())
}

// PurchaseBoost POST /api/profile/boost
func (h *WalletHandler) PurchaseBoost(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	purchase, err := h.boosts.PurchaseBoost(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, purchase)
}
