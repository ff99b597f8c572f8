package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/api"
	"github.com/gashop/shop-ledger/internal/api/handler"
	"github.com/gashop/shop-ledger/internal/auth"
	"github.com/gashop/shop-ledger/internal/catalog"
	"github.com/gashop/shop-ledger/internal/config"
	"github.com/gashop/shop-ledger/internal/db"
	"github.com/gashop/shop-ledger/internal/idempotency"
	"github.com/gashop/shop-ledger/internal/observability"
	"github.com/gashop/shop-ledger/internal/repository"
	"github.com/gashop/shop-ledger/internal/service"
	"github.com/gashop/shop-ledger/internal/worker"
)

// Run bootstraps the HTTP server and reconciliation worker, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, db.Config{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		ConnectTimeout:  cfg.DBConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgres(pool).
		WithRetryPolicy(cfg.StorageRetryAttempts, cfg.StorageRetryBackoff)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	cat := catalog.New(cfg.Catalog)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL)
	sessions := auth.NewSessionStore(redisClient)
	idemStore := idempotency.NewStore(redisClient, cfg.IdempotencyTTL)

	accountSvc := service.NewAccountService(store, logger)
	topUpSvc := service.NewTopUpService(store, service.TopUpPolicy{
		CardDenominations: cfg.CardDenominations,
		Fees:              cfg.FeeSchedule,
		BankMinAmount:     cfg.BankMinAmount,
		BankFeeRate:       cfg.BankFeeRate,
	}, logger)
	orderSvc := service.NewOrderService(store, cat, logger)
	auditSvc := service.NewReconciliationService(store, logger)

	auditWorker := worker.NewReconciliationWorker(auditSvc).
		WithInterval(cfg.ReconcileInterval)
	stopWorker := auditWorker.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconcileInterval))

	router := api.NewRouter(api.Deps{
		Logger:      logger,
		DB:          pool,
		Redis:       redisClient,
		Catalog:     cat,
		Accounts:    accountSvc,
		TopUps:      topUpSvc,
		Orders:      orderSvc,
		Audit:       auditSvc,
		Issuer:      issuer,
		Sessions:    sessions,
		Idempotency: idemStore,
		Admin: handler.AdminCredentials{
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
		},
		Bank: handler.BankDetails{
			BankName:      cfg.BankName,
			AccountName:   cfg.BankAccountName,
			AccountNumber: cfg.BankAccountNumber,
		},
		PublicRateLimitRPS: cfg.PublicRateLimitRPS,
		AuthRateLimitRPS:   cfg.AuthRateLimitRPS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping reconciliation worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
