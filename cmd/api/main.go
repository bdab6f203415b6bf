package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relief-offline-ledger/config"
	apidocs "relief-offline-ledger/docs/api"
	"relief-offline-ledger/internal/adapter/chain"
	httpHandler "relief-offline-ledger/internal/adapter/http/handler"
	"relief-offline-ledger/internal/adapter/http/middleware"
	"relief-offline-ledger/internal/adapter/metrics"
	"relief-offline-ledger/internal/adapter/storage/memory"
	pgStorage "relief-offline-ledger/internal/adapter/storage/postgres"
	redisStorage "relief-offline-ledger/internal/adapter/storage/redis"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/internal/service"
	"relief-offline-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("RLF_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("reconcile_mode", cfg.Reconcile.Mode).
		Msg("Starting Relief Offline Ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		iouRepo   ports.IOURepository
		auditRepo ports.AuditRepository
		checkers  []ports.HealthChecker
	)

	// Ledger store
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database, log); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate PostgreSQL schema")
			}
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		iouRepo = pgStorage.NewIOURepo(pool)
		auditRepo = pgStorage.NewAuditRepo(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	default:
		log.Warn().Msg("Using in-memory IOU store, data is lost on restart")
		iouRepo = memory.NewIOURepo()
	}

	// Redis-backed coordination, with in-process fallbacks
	var (
		locks       ports.LockStore   = memory.NewLockStore()
		reports     ports.ReportStore = memory.NewReportStore()
		replayCache ports.ReplayCache
		rateLimiter middleware.Limiter
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		locks = redisStorage.NewLockStore(rdb)
		reports = redisStorage.NewReportStore(rdb)
		replayCache = redisStorage.NewReplayCache(rdb)
		rateLimiter = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: locks and reports are process-local, rate limiting off")
	}

	// Relief contract
	var (
		settlement ports.SettlementClient
		directory  ports.MerchantDirectory
	)
	if cfg.Chain.Enabled() {
		contract, client, err := chain.Dial(ctx, cfg.Chain, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to blockchain")
		}
		defer client.Close()

		settlement = contract
		directory = contract
		checkers = append(checkers, contract)
	} else {
		log.Warn().Msg("Blockchain not configured, bulk-sync will leave IOUs synced")
	}

	// Services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(cfg.Admin, hashSvc, tokenSvc)
	auditSvc := service.NewAuditService(auditRepo, log)
	m := metrics.New()
	webhook := service.NewSettlementNotifier(cfg.Notify, sigSvc, &http.Client{Timeout: cfg.Notify.Timeout}, log)
	notifier := m.WrapNotifier(webhook)

	iouSvc := service.NewIOUService(iouRepo, replayCache, directory, cfg.Chain.RequireVerifiedMerchant, log)
	reconcileSvc := service.NewReconcileService(iouSvc, iouRepo, settlement, locks, reports, notifier, cfg.Reconcile, log)

	go reconcileSvc.RunSweeper(ctx)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		IOUSvc:         iouSvc,
		ReconcileSvc:   reconcileSvc,
		AuthSvc:        authSvc,
		TokenSvc:       tokenSvc,
		RateLimiter:    rateLimiter,
		HealthCheckers: checkers,
		AuditSvc:       auditSvc,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
		OpenAPIDoc:     apidocs.OpenAPI,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Async batches outlive their requests; let them record outcomes.
	reconcileSvc.Wait()
	if err := webhook.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Settlement notifications still in flight")
	}

	log.Info().Msg("Server exited")
}
