package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/http/handlers"
	"github.com/ignatzorin/escrow-market/internal/http/middleware"
	"github.com/ignatzorin/escrow-market/internal/service"
)

// Handlers набор хэндлеров HTTP API.
type Handlers struct {
	Health  *handlers.HealthHandler
	WS      *handlers.WSHandler
	Webhook *handlers.WebhookHandler
	Deal    *handlers.DealHandler
	Dispute *handlers.DisputeHandler
	Payout  *handlers.PayoutHandler
	Wallet  *handlers.WalletHandler
	Project *handlers.ProjectHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")

	// Публичные маршруты
	api.GET("/ws", h.WS.Handle)
	api.POST("/stripe/webhook", h.Webhook.Stripe)
	api.GET("/projects/:id", middleware.UUIDValidator("id"), h.Project.GetProject)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	deals := protected.Group("/deals")
	{
		deals.POST("", h.Deal.CreateDeal)
		deals.GET("/my", h.Deal.ListMyDeals)
		deals.GET("/:id", middleware.UUIDValidator("id"), h.Deal.GetDeal)
		deals.POST("/:id/confirm", middleware.UUIDValidator("id"), h.Deal.ConfirmDeal)
		deals.POST("/:id/dispute", middleware.UUIDValidator("id"), h.Dispute.CreateDispute)
		deals.GET("/:id/disputes", middleware.UUIDValidator("id"), h.Dispute.ListDealDisputes)
	}

	disputes := protected.Group("/disputes")
	{
		disputes.GET("/:disputeId", middleware.UUIDValidator("disputeId"), h.Dispute.GetDispute)
		disputes.PATCH("/:disputeId/resolve", middleware.UUIDValidator("disputeId"), h.Dispute.ResolveDispute)
	}

	payouts := protected.Group("/payouts")
	{
		payouts.POST("", h.Payout.CreatePayout)
		payouts.GET("", h.Payout.ListMyPayouts)
		payouts.POST("/:id/process", middleware.UUIDValidator("id"), h.Payout.ProcessPayout)
	}

	wallet := protected.Group("/wallet")
	{
		wallet.GET("", h.Wallet.GetWallet)
		wallet.GET("/transactions", h.Wallet.ListTransactions)
	}

	boost := protected.Group("/profile/boost")
	{
		boost.GET("", h.Wallet.GetBoostOffer)
		boost.POST("", h.Wallet.PurchaseBoost)
	}

	projects := protected.Group("/projects")
	{
		projects.POST("", h.Project.CreateProject)
		projects.POST("/:id/proposals", middleware.UUIDValidator("id"), h.Project.CreateProposal)
		projects.GET("/:id/proposals", middleware.UUIDValidator("id"), h.Project.ListProposals)
		projects.GET("/:id/top-executors", middleware.UUIDValidator("id"), h.Project.GetTopExecutors)
		projects.GET("/:id/invites", middleware.UUIDValidator("id"), h.Project.ListInvites)
		projects.POST("/:id/invites", middleware.UUIDValidator("id"), h.Project.InviteFreelancer)
	}

	return r
}
