package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStock reports a product whose stock dropped to the threshold.
	TaskLowStock = "inventory:low_stock"
	// TaskStockSweep periodically lists every low stock level.
	TaskStockSweep = "inventory:stock_sweep"
)

// LowStockPayload describes one product running out in one warehouse.
// TicketID or MovementID names what caused the drop.
type LowStockPayload struct {
	TicketID    string `json:"ticket_id,omitempty"`
	MovementID  string `json:"movement_id,omitempty"`
	WarehouseID string `json:"warehouse_id"`
	ProductID   string `json:"product_id"`
	SKU         string `json:"sku"`
	Remaining   int    `json:"remaining"`
}

// NewLowStockTask constructs an Asynq task for a low-stock alert.
func NewLowStockTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStock, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// StockSweepPayload carries the sweep threshold. The cron registration
// reuses one payload for every run, so it holds nothing time dependent.
type StockSweepPayload struct {
	Threshold int `json:"threshold"`
}

// NewStockSweepTask constructs an Asynq task for the periodic sweep.
func NewStockSweepTask(threshold int) (*asynq.Task, error) {
	body, err := json.Marshal(StockSweepPayload{Threshold: threshold})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockSweep, body, asynq.Queue(QueueDefault)), nil
}
