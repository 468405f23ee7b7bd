package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/scanix-pos/scanix/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound adjustment.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound adjustment.
	MovementOut MovementType = "OUT"
	// MovementSale is written by ticket confirmation.
	MovementSale MovementType = "SALE"
)

// Warehouse is a stock location.
type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StockLevel is the quantity of one product held in one warehouse.
type StockLevel struct {
	ProductID     string    `json:"product_id"`
	WarehouseID   string    `json:"warehouse_id"`
	WarehouseName string    `json:"warehouse_name,omitempty"`
	SKU           string    `json:"sku,omitempty"`
	ProductName   string    `json:"product_name,omitempty"`
	Quantity      int       `json:"quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Movement is an append-only record of one stock mutation.
type Movement struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"product_id"`
	WarehouseID string       `json:"warehouse_id"`
	Type        MovementType `json:"type"`
	Quantity    int          `json:"quantity"`
	PreviousQty int          `json:"previous_qty"`
	NewQty      int          `json:"new_qty"`
	Reason      string       `json:"reason"`
	Notes       string       `json:"notes,omitempty"`
	RefID       string       `json:"ref_id,omitempty"`
	ActorID     string       `json:"actor_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// AdjustmentInput describes request to adjust stock. Warehouse accepts an id
// or an exact name.
type AdjustmentInput struct {
	ProductID string
	Warehouse string
	Type      MovementType
	Quantity  int
	Reason    string
	Notes     string
	ActorID   string
}

// MovementFilter filters movement history.
type MovementFilter struct {
	ProductID string
	Warehouse string
	Limit     int
}

var (
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = fmt.Errorf("inventory: negative stock not allowed: %w", shared.ErrConflict)
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be greater than zero: %w", shared.ErrValidation)
	// ErrInvalidMovementType indicates an adjustment type other than IN or OUT.
	ErrInvalidMovementType = fmt.Errorf("inventory: adjustment type must be IN or OUT: %w", shared.ErrValidation)
	// ErrReasonRequired indicates a missing adjustment reason.
	ErrReasonRequired = fmt.Errorf("inventory: reason is required: %w", shared.ErrValidation)
	// ErrWarehouseNotFound indicates an unknown warehouse id or name.
	ErrWarehouseNotFound = fmt.Errorf("inventory: warehouse %w", shared.ErrNotFound)
	// ErrProductNotFound indicates an unknown product id.
	ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)
	// ErrLevelNotFound is returned by TxRepository when no stock row exists yet.
	ErrLevelNotFound = errors.New("inventory: stock level not found")
)
