package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/db"
	"github.com/ignatzorin/escrow-market/internal/goroutine"
	httpHandlers "github.com/ignatzorin/escrow-market/internal/http/handlers"
	httpRouter "github.com/ignatzorin/escrow-market/internal/http/router"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/payment"
	"github.com/ignatzorin/escrow-market/internal/queue"
	"github.com/ignatzorin/escrow-market/internal/repository"
	"github.com/ignatzorin/escrow-market/internal/service"
	"github.com/ignatzorin/escrow-market/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "info"
		if cfg.Env == "development" {
			logLevel = "debug"
		}
	}
	logger.Init(logLevel, cfg.Env == "development")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if cfg.StripeSecretKey == "" {
		logger.Log.Warn("main: STRIPE_SECRET_KEY не задан, создание сделок недоступно")
	}

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	goroutine.SafeGo(hub.Run)

	// Очередь уведомлений.
	var (
		rdb      *redis.Client
		notifier service.Notifier = queue.Disabled{}
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Log.Fatalf("main: некорректный REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		notifier = queue.NewRedisQueue(rdb)
		worker := queue.NewWorker(rdb, hub)
		goroutine.SafeGoWithContext(ctx, worker.Run)
	} else {
		logger.Log.Warn("main: REDIS_URL не задан, уведомления отключены")
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	dealRepo := repository.NewDealRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	payoutRepo := repository.NewPayoutRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)

	// Сервисы.
	admins := service.AdminContacts{Email: cfg.AdminEmail}
	if cfg.AdminUserID != "" {
		if id, err := uuid.Parse(cfg.AdminUserID); err == nil {
			admins.UserID = &id
		} else {
			logger.Log.WithError(err).Warn("main: ADMIN_USER_ID не является UUID, игнорируем")
		}
	}

	dealService := service.NewDealService(userRepo, dealRepo, projectRepo, gateway, notifier, cfg.Billing)
	disputeService := service.NewDisputeService(userRepo, dealRepo, disputeRepo, notifier, cfg.Billing, admins)
	payoutService := service.NewPayoutService(userRepo, walletRepo, payoutRepo, notifier, cfg.Billing)
	walletService := service.NewWalletService(walletRepo)
	boostService := service.NewBoostService(userRepo, walletRepo, cfg.Billing)
	projectService := service.NewProjectService(userRepo, projectRepo, dealRepo, notifier, cfg.Billing)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health:  httpHandlers.NewHealthHandler(dbConn, rdb),
		WS:      httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Webhook: httpHandlers.NewWebhookHandler(dealService),
		Deal:    httpHandlers.NewDealHandler(dealService),
		Dispute: httpHandlers.NewDisputeHandler(disputeService),
		Payout:  httpHandlers.NewPayoutHandler(payoutService),
		Wallet:  httpHandlers.NewWalletHandler(walletService, boostService),
		Project: httpHandlers.NewProjectHandler(projectService),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
