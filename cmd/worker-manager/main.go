// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"matching-workers/internal/bootstrap"
	"matching-workers/internal/common/camunda"
	"matching-workers/internal/common/config"
	"matching-workers/internal/common/database"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/common/metrics"
	"matching-workers/internal/common/observability"
	"matching-workers/internal/server"
	"matching-workers/internal/store/postgres"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	_ = bootLog.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("poolSource", cfg.Matching.PoolSource),
	)

	ctx := context.Background()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability setup failed", zap.Error(err))
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()
	metrics.SetJobObserver(obs)

	// --- Init Zeebe Client (topology check retries internally) ---
	zeebe, err := camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := postgres.Migrate(ctx, pg.DB, log); err != nil {
			zapLog.Fatal("migration failed", zap.Error(err))
		}
	}

	deps := []database.Dependency{zeebe, pg}
	backends := bootstrap.Backends{DB: pg.DB}

	// --- Init Redis with retry (shared cache level only) ---
	if cfg.Matching.Cache.Remote {
		rdb := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		deps = append(deps, rdb)
		backends.Redis = rdb.Client
		zapLog.Info("Redis connected successfully")
	}

	// --- Init Elasticsearch with retry (search-backed pool only) ---
	if cfg.Matching.PoolSource == config.PoolSourceElasticsearch {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		deps = append(deps, esClient)
		backends.Search = esClient.Client
		zapLog.Info("Elasticsearch connected successfully")
	}

	matching, err := bootstrap.NewMatching(ctx, cfg, backends, bootstrap.Telemetry{
		Recorder: obs,
		Tracer:   obs.Tracer(),
	}, log)
	if err != nil {
		zapLog.Fatal("matching setup failed", zap.Error(err))
	}
	zapLog.Info("Matching engine ready", zap.Any("modes", matching.Engine.Modes()))

	registry := camunda.NewRegistry(zeebe.GetClient(), log)
	taskTypes := matching.RegisterWorkers(registry, cfg, log)
	zapLog.Info("Workers registered", zap.Strings("taskTypes", taskTypes))

	// --- Health & Metrics Server ---
	ops := server.New(server.Options{
		Port:         cfg.App.HealthPort,
		Dependencies: deps,
		CacheStats:   matching.Engine.CacheStats,
		TaskTypes:    registry.TaskTypes,
		Logger:       log,
	})
	ops.Start()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	registry.Close(shutdownCtx)
	if err := ops.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := database.CloseAll(deps...); err != nil {
		zapLog.Error("Error closing connections", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
