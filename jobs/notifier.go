package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/tickets"
)

// Enqueuer submits low-stock tasks.
type Enqueuer interface {
	EnqueueLowStock(ctx context.Context, payload LowStockPayload) error
}

// LowStockNotifier turns committed sales and outbound adjustments into
// low-stock tasks when the remaining quantity is at or below the threshold.
type LowStockNotifier struct {
	enqueuer  Enqueuer
	threshold int
	logger    *slog.Logger
}

// NewLowStockNotifier constructs the notifier.
func NewLowStockNotifier(enqueuer Enqueuer, threshold int, logger *slog.Logger) *LowStockNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockNotifier{enqueuer: enqueuer, threshold: threshold, logger: logger}
}

// HandleTicketConfirmed implements tickets.IntegrationHandler.
func (n *LowStockNotifier) HandleTicketConfirmed(ctx context.Context, evt tickets.ConfirmedEvent) error {
	var errs []error
	for _, st := range evt.Stock {
		if st.Remaining > n.threshold {
			continue
		}
		errs = append(errs, n.enqueue(ctx, LowStockPayload{
			TicketID:    evt.Ticket.ID,
			WarehouseID: st.WarehouseID,
			ProductID:   st.ProductID,
			SKU:         st.SKU,
			Remaining:   st.Remaining,
		}))
	}
	return errors.Join(errs...)
}

// HandleAdjustmentPosted implements inventory.IntegrationHandler. Inbound
// adjustments never raise an alert.
func (n *LowStockNotifier) HandleAdjustmentPosted(ctx context.Context, evt inventory.AdjustmentPostedEvent) error {
	if evt.Type != inventory.MovementOut || evt.NewQty > n.threshold {
		return nil
	}
	return n.enqueue(ctx, LowStockPayload{
		MovementID:  evt.MovementID,
		WarehouseID: evt.WarehouseID,
		ProductID:   evt.ProductID,
		SKU:         evt.SKU,
		Remaining:   evt.NewQty,
	})
}

func (n *LowStockNotifier) enqueue(ctx context.Context, payload LowStockPayload) error {
	if n.enqueuer == nil {
		return nil
	}
	if err := n.enqueuer.EnqueueLowStock(ctx, payload); err != nil {
		n.logger.Warn("enqueue low stock", slog.String("sku", payload.SKU), slog.Any("error", err))
		return err
	}
	return nil
}
