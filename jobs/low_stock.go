package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/scanix-pos/scanix/internal/inventory"
	jobmetrics "github.com/scanix-pos/scanix/internal/jobs"
)

// LowStockHandler processes TaskLowStock and TaskStockSweep tasks.
type LowStockHandler struct {
	stock   StockReader
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// StockReader lists low stock levels for the sweep.
type StockReader interface {
	LowStock(ctx context.Context, threshold int) ([]inventory.StockLevel, error)
}

// NewLowStockHandler constructs the handler. stock may be nil when the
// sweep is not scheduled.
func NewLowStockHandler(stock StockReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockHandler{stock: stock, logger: logger, metrics: metrics}
}

// Handlers returns the task registrations for the worker.
func (h *LowStockHandler) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLowStock, Handler: h.HandleLowStock},
		{Type: TaskStockSweep, Handler: h.HandleStockSweep},
	}
}

// HandleLowStock logs the alert and records it.
func (h *LowStockHandler) HandleLowStock(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskLowStock)
	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return fmt.Errorf("decode low stock payload: %v: %w", err, asynq.SkipRetry)
	}
	h.logger.WarnContext(ctx, "low stock",
		slog.String("sku", payload.SKU),
		slog.String("product_id", payload.ProductID),
		slog.String("warehouse_id", payload.WarehouseID),
		slog.Int("remaining", payload.Remaining),
		slog.String("ticket_id", payload.TicketID),
		slog.String("movement_id", payload.MovementID),
	)
	h.metrics.AddLowStock(payload.WarehouseID)
	return tracker.End(nil)
}

// HandleStockSweep logs every level at or below the payload threshold.
func (h *LowStockHandler) HandleStockSweep(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskStockSweep)
	var payload StockSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return fmt.Errorf("decode stock sweep payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.stock == nil {
		return tracker.End(fmt.Errorf("stock sweep: no stock reader: %w", asynq.SkipRetry))
	}
	levels, err := h.stock.LowStock(ctx, payload.Threshold)
	if err != nil {
		return tracker.End(err)
	}
	for _, lvl := range levels {
		h.logger.WarnContext(ctx, "low stock",
			slog.String("sku", lvl.SKU),
			slog.String("product_id", lvl.ProductID),
			slog.String("warehouse_id", lvl.WarehouseID),
			slog.Int("remaining", lvl.Quantity),
		)
		h.metrics.AddLowStock(lvl.WarehouseID)
	}
	h.logger.InfoContext(ctx, "stock sweep finished", slog.Int("low", len(levels)), slog.Int("threshold", payload.Threshold))
	return tracker.End(nil)
}
