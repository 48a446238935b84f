package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/forgeline-erp/forgeline-erp/internal/app"
	"github.com/forgeline-erp/forgeline-erp/internal/masterdata"
	"github.com/forgeline-erp/forgeline-erp/internal/platform/cache"
	"github.com/forgeline-erp/forgeline-erp/internal/platform/db"
	"github.com/forgeline-erp/forgeline-erp/internal/shared"
	"github.com/forgeline-erp/forgeline-erp/jobs"
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
		logger.Warn("redis connect", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	masterdataRepo := masterdata.NewRepository(pool)
	materialCache := masterdata.NewMaterialCache(redisClient, cfg.CacheTTL)
	masterdataService := masterdata.NewService(masterdataRepo, materialCache, nil)
	idempotency := shared.NewIdempotencyStore(pool)

	workerCfg := jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReceiptCompleted, Handler: jobs.NewReceiptCompletedHandler(logger)},
			{Type: jobs.TaskLowStockScan, Handler: jobs.NewLowStockScanHandler(masterdataService, logger)},
			{Type: jobs.TaskIdempotencySweep, Handler: jobs.NewIdempotencySweepHandler(idempotency, cfg.IdempotencyRetention, logger)},
		},
	}
	if cfg.LowStockCron != "" {
		workerCfg.Cron = append(workerCfg.Cron, jobs.CronRegistration{
			Spec: cfg.LowStockCron,
			Task: jobs.NewLowStockScanTask(),
		})
	}
	if cfg.IdempotencySweepCron != "" {
		workerCfg.Cron = append(workerCfg.Cron, jobs.CronRegistration{
			Spec: cfg.IdempotencySweepCron,
			Task: jobs.NewIdempotencySweepTask(),
		})
	}

	worker, err := jobs.NewWorker(workerCfg)
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
