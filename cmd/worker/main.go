package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/scanix-pos/scanix/internal/app"
	"github.com/scanix-pos/scanix/internal/inventory"
	jobmetrics "github.com/scanix-pos/scanix/internal/jobs"
	"github.com/scanix-pos/scanix/internal/platform/db"
	"github.com/scanix-pos/scanix/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.DBMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	inventoryService := inventory.NewService(inventory.NewRepository(pool, cfg.DBLockTimeout), nil, nil, nil)
	lowStock := jobs.NewLowStockHandler(inventoryService, logger, jobmetrics.NewMetrics(nil))

	sweepTask, err := jobs.NewStockSweepTask(cfg.LowStockThreshold)
	if err != nil {
		logger.Error("build stock sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  lowStock.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.StockSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
