package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grantline/grantline/internal/app"
	"github.com/grantline/grantline/internal/identity"
	"github.com/grantline/grantline/internal/observability"
	"github.com/grantline/grantline/internal/platform/db"
	"github.com/grantline/grantline/internal/rbac"
	"github.com/grantline/grantline/internal/seed"
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

	var redisClient *redis.Client
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, resolver cache disabled", slog.Any("error", err))
		_ = client.Close()
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	identityStore := identity.NewPGStore(pool)
	rbacRepo := rbac.NewRepository(pool)
	rbacCache := rbac.NewCache(redisClient, cfg.ResolverCacheTTL)
	rbacService := rbac.NewService(rbacRepo, identityStore, rbacCache, metrics)

	if cfg.SeedConfigPath != "" {
		seedCfg, err := seed.LoadFile(cfg.SeedConfigPath)
		if err != nil {
			logger.Error("load seed config", slog.Any("error", err))
			os.Exit(1)
		}
		if cfg.SuperAdminEmail != "" {
			seedCfg.SuperAdminEmail = cfg.SuperAdminEmail
		}
		seeder := seed.NewSeeder(identityStore, rbacService, seedCfg, logger, metrics)
		if err := seeder.Run(ctx); err != nil {
			if cfg.SeedStrict {
				logger.Error("bootstrap seeding failed", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Warn("bootstrap seeding incomplete, continuing startup", slog.Any("error", err))
		}
	} else {
		logger.Info("no seed config provided, skipping bootstrap seeding")
	}

	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}
	rbacHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		RBACHandler: rbacHandler,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
