package inventory

import "time"

// AdjustmentPostedEvent describes a committed stock adjustment.
type AdjustmentPostedEvent struct {
	MovementID  string
	ProductID   string
	SKU         string
	WarehouseID string
	Type        MovementType
	Quantity    int
	NewQty      int
	PostedAt    time.Time
}
