package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aishitdharwal/text2sql/internal/api"
	"github.com/aishitdharwal/text2sql/internal/cache"
	cacheredis "github.com/aishitdharwal/text2sql/internal/cache/redis"
	"github.com/aishitdharwal/text2sql/internal/config"
	"github.com/aishitdharwal/text2sql/internal/observability"
	"github.com/aishitdharwal/text2sql/internal/query"
	"github.com/aishitdharwal/text2sql/internal/session"
	"github.com/aishitdharwal/text2sql/internal/sqlgen"
	"github.com/aishitdharwal/text2sql/internal/tenant"
	"github.com/aishitdharwal/text2sql/internal/tenantdb"
)

func main() {
	cfg, err := config.LoadFromEnv("text2sql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	directory, err := tenant.NewStaticDirectory(cfg.Tenants.Static)
	if err != nil {
		logger.Error("failed to parse tenant directory", slog.Any("error", err))
		os.Exit(1)
	}

	var store cache.Store
	if cfg.Cache.Enabled {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		store, err = cacheredis.New(cacheredis.Config{
			Client:    redisClient,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			logger.Error("failed to initialize cache store", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Info("query cache disabled")
	}
	cacheClient := cache.NewClient(store, logger)

	generator, err := sqlgen.NewAnthropicGenerator(sqlgen.AnthropicConfig{
		BaseURL:   cfg.AI.BaseURL,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
		Timeout:   cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize sql generator", slog.Any("error", err))
		os.Exit(1)
	}

	opener := func(ctx context.Context, database string) (*tenantdb.Conn, error) {
		return tenantdb.Open(ctx, tenantdb.Config{
			Host:           cfg.TenantDB.Host,
			Port:           cfg.TenantDB.Port,
			User:           cfg.TenantDB.User,
			Password:       cfg.TenantDB.Password,
			Database:       database,
			SSLMode:        cfg.TenantDB.SSLMode,
			ConnectTimeout: cfg.TenantDB.ConnectTimeout,
		})
	}
	registry := session.NewRegistry(directory, opener, logger)

	ttl := time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour
	queryService := query.NewService(registry, cacheClient, generator, ttl, logger)

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:   logger,
		Registry: registry,
		Query:    queryService,
		Readiness: api.CombineReadinessChecks(
			api.CheckTenantDirectory(directory),
			api.CheckCacheStore(cacheClient),
		),
		DependencyTimeout: time.Second,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}

	registry.Shutdown(shutdownCtx)
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("cache store close failed", slog.Any("error", err))
		}
	}
}
