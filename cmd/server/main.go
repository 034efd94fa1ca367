package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auctionapp "github.com/resell/backend/internal/application/auction"
	syncapp "github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/pricing"
	"github.com/resell/backend/internal/infrastructure/cache"
	"github.com/resell/backend/internal/infrastructure/config"
	"github.com/resell/backend/internal/infrastructure/logger"
	"github.com/resell/backend/internal/infrastructure/marketplaces"
	"github.com/resell/backend/internal/infrastructure/persistence"
	"github.com/resell/backend/internal/infrastructure/scheduler"
	"github.com/resell/backend/internal/infrastructure/telemetry"
	"github.com/resell/backend/internal/interfaces/http/handler"
	"github.com/resell/backend/internal/interfaces/http/middleware"
	"github.com/resell/backend/internal/interfaces/http/router"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting resell backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Tracing; a no-op provider when disabled
	tracerProvider, err := telemetry.NewTracerProvider(
		context.Background(),
		telemetry.TracerConfigFromApp(cfg.Telemetry, version),
		log,
	)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracing", zap.Error(err))
		}
	}()

	// Database connection with zap-backed GORM logging
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracing(cfg.Telemetry.DBLogFullSQL, log)
		if err := dbTracing.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Idempotency store: Redis in production, in-memory fallback elsewhere
	allowInMemory := cfg.App.Env != "production"
	idempotencyStore, err := cache.NewIdempotencyStore(cfg.Redis, allowInMemory, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Repositories
	listingRepo := persistence.NewGormListingRepository(db.DB)
	syncRecordRepo := persistence.NewGormSyncRecordRepository(db.DB)

	// Marketplace adapters, one per enabled marketplace
	adapters, err := marketplaces.NewRegistryFromConfig(cfg.Marketplaces, log)
	if err != nil {
		log.Fatal("Failed to build marketplace adapters", zap.Error(err))
	}
	if len(adapters.ListAdapters()) == 0 {
		log.Warn("No marketplace adapters enabled, sync operations will find no targets")
	}

	// Sync engine
	converter := pricing.NewDefaultCurrencyConverter()
	syncService, err := syncapp.NewInventorySyncService(listingRepo, adapters, converter, syncapp.Config{
		MaxConcurrentTargets: cfg.Sync.MaxConcurrentTargets,
		AdapterTimeout:       cfg.Sync.AdapterTimeout,
		EventTTL:             cfg.Sync.EventTTL,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize sync engine", zap.Error(err))
	}
	syncService.SetSyncRecordRepository(syncRecordRepo)
	syncService.SetIdempotencyStore(idempotencyStore)

	// Auction lifecycle
	auctionService := auctionapp.NewAuctionCycleService(adapters, listingRepo, syncService, log)

	// Periodic consistency sweep
	reconcileConfig := scheduler.ReconcileSchedulerConfigFromApp(cfg.Reconcile)
	reconcileExecutor := scheduler.NewReconcileExecutor(syncService, log)
	reconcileScheduler, err := scheduler.NewReconcileScheduler(reconcileConfig, reconcileExecutor, listingRepo, log)
	if err != nil {
		log.Fatal("Failed to initialize reconcile scheduler", zap.Error(err))
	}
	if err := reconcileScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start reconcile scheduler", zap.Error(err))
	}
	defer func() {
		if err := reconcileScheduler.Stop(context.Background()); err != nil {
			log.Error("Error stopping reconcile scheduler", zap.Error(err))
		}
	}()

	// Auction poll loop
	auctionSchedulerConfig := scheduler.AuctionCycleSchedulerConfigFromApp(cfg.Auction)
	auctionScheduler, err := scheduler.NewAuctionCycleScheduler(auctionSchedulerConfig, auctionService, log)
	if err != nil {
		log.Fatal("Failed to initialize auction scheduler", zap.Error(err))
	}
	if err := auctionScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start auction scheduler", zap.Error(err))
	}
	defer func() {
		if err := auctionScheduler.Stop(context.Background()); err != nil {
			log.Error("Error stopping auction scheduler", zap.Error(err))
		}
	}()

	// HTTP handlers
	var webhookGuards []gin.HandlerFunc
	if cfg.HTTP.WebhookSecret != "" {
		webhookGuards = append(webhookGuards, middleware.WebhookSignature(cfg.HTTP.WebhookSecret))
		log.Info("Webhook signature verification enabled")
	}
	webhookHandler := handler.NewWebhookHandler(syncService, auctionService, log, webhookGuards...)
	listingsHandler := handler.NewListingsHandler(listingRepo, syncRecordRepo, syncService, log)
	auctionHandler := handler.NewAuctionHandler(auctionService, log)
	systemHandler := handler.NewSystemHandler(version, map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error { return db.Ping() },
		"idempotency_store": func(ctx context.Context) error {
			_, err := idempotencyStore.IsProcessed(ctx, "healthcheck")
			return err
		},
	})

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	router.NewRouter(engine).
		Register(systemHandler).
		Register(webhookHandler).
		Register(listingsHandler).
		Register(auctionHandler).
		Setup()

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
