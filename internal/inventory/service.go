package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scanix-pos/scanix/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	FindWarehouse(ctx context.Context, idOrName string) (Warehouse, error)
	EnsureWarehouse(ctx context.Context, name string) (Warehouse, error)
	ListStock(ctx context.Context, warehouseID string) ([]StockLevel, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListLowStock(ctx context.Context, threshold int) ([]StockLevel, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached catalog views that embed stock levels.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// IntegrationHandler receives committed adjustments.
type IntegrationHandler interface {
	HandleAdjustmentPosted(ctx context.Context, evt AdjustmentPostedEvent) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	cache       CacheInvalidator
	integration IntegrationHandler
	now         func() time.Time
}

// NewService builds Service. audit, cache and integration are optional.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheInvalidator, integration IntegrationHandler) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, integration: integration, now: time.Now}
}

// ListWarehouses returns every warehouse ordered by name.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

// FindWarehouse resolves a warehouse by id or exact name.
func (s *Service) FindWarehouse(ctx context.Context, idOrName string) (Warehouse, error) {
	idOrName = strings.TrimSpace(idOrName)
	if idOrName == "" {
		return Warehouse{}, fmt.Errorf("inventory: warehouse required: %w", shared.ErrValidation)
	}
	return s.repo.FindWarehouse(ctx, idOrName)
}

// EnsureWarehouse returns the warehouse with the given name, creating it when
// missing.
func (s *Service) EnsureWarehouse(ctx context.Context, name string) (Warehouse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Warehouse{}, fmt.Errorf("inventory: warehouse name required: %w", shared.ErrValidation)
	}
	return s.repo.EnsureWarehouse(ctx, name)
}

// ListStock lists stock levels held in one warehouse.
func (s *Service) ListStock(ctx context.Context, warehouse string) ([]StockLevel, error) {
	wh, err := s.FindWarehouse(ctx, warehouse)
	if err != nil {
		return nil, err
	}
	levels, err := s.repo.ListStock(ctx, wh.ID)
	if err != nil {
		return nil, err
	}
	for i := range levels {
		levels[i].WarehouseName = wh.Name
	}
	return levels, nil
}

// LowStock lists stock levels at or below threshold across warehouses.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]StockLevel, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("inventory: threshold must not be negative: %w", shared.ErrValidation)
	}
	return s.repo.ListLowStock(ctx, threshold)
}

// Movements lists stock movement history, newest first.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if strings.TrimSpace(filter.Warehouse) != "" {
		wh, err := s.FindWarehouse(ctx, filter.Warehouse)
		if err != nil {
			return nil, err
		}
		filter.Warehouse = wh.ID
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 200
	}
	return s.repo.ListMovements(ctx, filter)
}

// Adjust posts a manual IN or OUT movement. OUT movements may not take the
// level below zero.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Movement, error) {
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.Warehouse = strings.TrimSpace(input.Warehouse)
	input.Reason = strings.TrimSpace(input.Reason)
	if input.ProductID == "" || input.Warehouse == "" {
		return Movement{}, fmt.Errorf("inventory: warehouse and product required: %w", shared.ErrValidation)
	}
	var sign int
	switch input.Type {
	case MovementIn:
		sign = 1
	case MovementOut:
		sign = -1
	default:
		return Movement{}, ErrInvalidMovementType
	}
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if input.Reason == "" {
		return Movement{}, ErrReasonRequired
	}

	var movement Movement
	var sku string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		wh, err := tx.FindWarehouse(ctx, input.Warehouse)
		if err != nil {
			return err
		}
		sku, err = tx.ProductSKU(ctx, input.ProductID)
		if err != nil {
			return err
		}
		level, err := tx.GetLevelForUpdate(ctx, input.ProductID, wh.ID)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return err
		}
		if errors.Is(err, ErrLevelNotFound) {
			level = StockLevel{ProductID: input.ProductID, WarehouseID: wh.ID}
		}
		previous := level.Quantity
		level.Quantity += sign * input.Quantity
		if level.Quantity < 0 {
			return fmt.Errorf("%w (available %d, requested %d)", ErrNegativeStock, previous, input.Quantity)
		}
		if err := tx.UpsertLevel(ctx, level); err != nil {
			return err
		}
		movement = Movement{
			ID:          uuid.NewString(),
			ProductID:   input.ProductID,
			WarehouseID: wh.ID,
			Type:        input.Type,
			Quantity:    input.Quantity,
			PreviousQty: previous,
			NewQty:      level.Quantity,
			Reason:      input.Reason,
			Notes:       strings.TrimSpace(input.Notes),
			ActorID:     input.ActorID,
			CreatedAt:   s.now().UTC(),
		}
		return tx.InsertMovement(ctx, movement)
	})
	if err != nil {
		return Movement{}, err
	}

	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("inventory:%s", input.Type),
			Entity:   "stock_movement",
			EntityID: movement.ID,
			Meta: map[string]any{
				"product_id":   movement.ProductID,
				"warehouse_id": movement.WarehouseID,
				"qty":          movement.Quantity,
				"reason":       movement.Reason,
			},
		})
	}
	if s.integration != nil {
		evt := AdjustmentPostedEvent{
			MovementID:  movement.ID,
			ProductID:   movement.ProductID,
			SKU:         sku,
			WarehouseID: movement.WarehouseID,
			Type:        movement.Type,
			Quantity:    movement.Quantity,
			NewQty:      movement.NewQty,
			PostedAt:    movement.CreatedAt,
		}
		_ = s.integration.HandleAdjustmentPosted(ctx, evt)
	}
	return movement, nil
}
