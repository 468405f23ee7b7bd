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

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/scanix-pos/scanix/cmd/scanix/cli"
	"github.com/scanix-pos/scanix/internal/app"
	"github.com/scanix-pos/scanix/internal/auth"
	"github.com/scanix-pos/scanix/internal/catalog"
	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/observability"
	"github.com/scanix-pos/scanix/internal/platform/cache"
	"github.com/scanix-pos/scanix/internal/platform/db"
	"github.com/scanix-pos/scanix/internal/shared"
	"github.com/scanix-pos/scanix/internal/tickets"
	"github.com/scanix-pos/scanix/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		code := jobsCLI.Run(ctx, os.Args[2:], os.Stdout, os.Stderr)
		_ = jobsCLI.Close()
		os.Exit(code)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("scanix", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	validate := validator.New()
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, logger)

	auditLogger := shared.NewAuditLogger(dbpool)
	catalogCache := cache.NewVersioned(redisClient, "catalog", cfg.CatalogCacheTTL)
	ticketGuard := shared.NewIdempotencyStore(redisClient, cfg.TicketGuardTTL)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewLowStockNotifier(jobClient, cfg.LowStockThreshold, logger)

	inventoryRepo := inventory.NewRepository(dbpool, cfg.DBLockTimeout)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, catalogCache, notifier)

	catalogRepo := catalog.NewRepository(dbpool, cfg.DBLockTimeout)
	catalogService := catalog.NewService(catalogRepo, auditLogger, catalogCache)

	ticketRepo := tickets.NewRepository(dbpool, cfg.DBLockTimeout)
	ticketService := tickets.NewService(ticketRepo, tickets.ServiceConfig{
		RepriceFromRules: cfg.TicketsReprice,
		Location:         loc,
	}, tickets.Dependencies{
		Audit:       auditLogger,
		Guard:       ticketGuard,
		Cache:       catalogCache,
		Metrics:     metrics,
		Integration: notifier,
		Logger:      logger,
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CatalogHandler:   catalog.NewHandler(logger, catalogService, validate, authMiddleware.RequireBearer, cfg.ScanMaxUpload),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, validate, authMiddleware.RequireBearer, cfg.LowStockThreshold),
		TicketsHandler:   tickets.NewHandler(logger, ticketService, validate, authMiddleware.RequireBearer),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		HealthChecks: map[string]app.HealthCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	return nil
}
