package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/grantline/grantline/internal/app"
	"github.com/grantline/grantline/internal/identity"
	"github.com/grantline/grantline/internal/observability"
	"github.com/grantline/grantline/internal/platform/cache"
	"github.com/grantline/grantline/internal/platform/db"
	"github.com/grantline/grantline/internal/rbac"
	"github.com/grantline/grantline/internal/seed"
	"github.com/grantline/grantline/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	seedCfg := seed.Config{SuperAdminEmail: cfg.SuperAdminEmail}
	if cfg.SeedConfigPath != "" {
		loaded, err := seed.LoadFile(cfg.SeedConfigPath)
		if err != nil {
			logger.Error("load seed config", slog.Any("error", err))
			os.Exit(1)
		}
		if cfg.SuperAdminEmail != "" {
			loaded.SuperAdminEmail = cfg.SuperAdminEmail
		}
		seedCfg = loaded
	}

	metrics := observability.NewMetrics()
	identityStore := identity.NewPGStore(pool)
	rbacRepo := rbac.NewRepository(pool)
	rbacCache := rbac.NewCache(redisClient, cfg.ResolverCacheTTL)
	rbacService := rbac.NewService(rbacRepo, identityStore, rbacCache, metrics)
	seeder := seed.NewSeeder(identityStore, rbacService, seedCfg, logger, metrics)

	reconcile := jobs.NewReconcileJob(seeder, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReconcileSuperAdmin, Handler: reconcile.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: jobs.NewReconcileSuperAdminTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("configure worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
