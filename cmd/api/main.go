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

	"micro-savings-wallet/config"
	httpHandler "micro-savings-wallet/internal/adapter/http/handler"
	"micro-savings-wallet/internal/adapter/http/middleware"
	"micro-savings-wallet/internal/adapter/messaging/rabbitmq"
	"micro-savings-wallet/internal/adapter/metrics"
	memStorage "micro-savings-wallet/internal/adapter/storage/memory"
	pgStorage "micro-savings-wallet/internal/adapter/storage/postgres"
	redisStorage "micro-savings-wallet/internal/adapter/storage/redis"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/internal/seed"
	"micro-savings-wallet/internal/service"
	"micro-savings-wallet/pkg/logger"

	"github.com/rs/zerolog"
)

// repositories is the storage backend selected by storage.driver.
type repositories struct {
	users       ports.UserRepository
	wallets     ports.WalletRepository
	txns        ports.TransactionRepository
	withdrawals ports.WithdrawalRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting Micro-Savings Wallet")

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}
	defer repos.close()

	if cfg.Storage.Seed {
		created, err := seed.Run(ctx, repos.users, repos.wallets, repos.transactor, seed.DemoAccounts, logger.Component(log, "seed"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed demo accounts")
		}
		log.Info().Int("created", created).Msg("Demo accounts ready")
	}

	healthCheckers := []ports.HealthChecker{repos.health}

	// Redis is optional: without it the ledger falls back to the database
	// for idempotency and rate limiting is off.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   middleware.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing without cache and rate limiting")
		} else {
			defer rdb.Close()
			log.Info().Msg("Redis connected")
			idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
			rateLimitStore = redisStorage.NewRateLimitStore(rdb)
			healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
		}
	}

	// Settlement rail
	var publisher ports.SettlementPublisher = rabbitmq.NewNoopPublisher(logger.Component(log, "settlement"))
	if cfg.RabbitMQ.Enabled {
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQ, logger.Component(log, "settlement"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		publisher = p
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("RabbitMQ connected")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close settlement publisher")
		}
	}()

	// Metrics
	var (
		ledgerMetrics  ports.LedgerMetrics = metrics.Nop{}
		httpMetrics    middleware.HTTPObserver
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus()
		ledgerMetrics, httpMetrics, metricsHandler = prom, prom, prom.Handler()
	}

	// Business services
	ledgerLog := logger.Component(log, "ledger")
	guard := service.NewIdempotencyGuard(repos.txns, idempotencyCache, cfg.Ledger.IdempotencyTTL, ledgerLog)
	ledgerSvc := service.NewLedgerService(
		repos.txns,
		repos.wallets,
		repos.withdrawals,
		repos.audit,
		repos.transactor,
		guard,
		publisher,
		ledgerMetrics,
		cfg.Ledger,
		ledgerLog,
	)
	reportingSvc := service.NewReportingService(repos.users, repos.wallets, repos.txns, cfg.Ledger.DefaultCurrency)
	auditSvc := service.NewAuditService(repos.audit)
	userSvc := service.NewUserService(repos.users, repos.wallets, repos.transactor, cfg.Ledger.DefaultCurrency, logger.Component(log, "users"))

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		ReportingSvc:   reportingSvc,
		AuditSvc:       auditSvc,
		UserSvc:        userSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		Mode:           cfg.Server.Mode,
		Logger:         logger.Component(log, "http"),
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		store := memStorage.NewStore()
		return &repositories{
			users:       memStorage.NewUserRepo(store),
			wallets:     memStorage.NewWalletRepo(store),
			txns:        memStorage.NewTransactionRepo(store),
			withdrawals: memStorage.NewWithdrawalRepo(store),
			audit:       memStorage.NewAuditRepo(store),
			transactor:  store,
			health:      store,
			close:       func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	return &repositories{
		users:       pgStorage.NewUserRepo(pool),
		wallets:     pgStorage.NewWalletRepo(pool),
		txns:        pgStorage.NewTransactionRepo(pool),
		withdrawals: pgStorage.NewWithdrawalRepo(pool),
		audit:       pgStorage.NewAuditRepo(pool),
		transactor:  pgStorage.NewTransactor(pool),
		health:      pgStorage.NewHealthCheck(pool),
		close:       pool.Close,
	}, nil
}
