package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scanix-pos/scanix/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs Repository. lockTimeout bounds row-lock waits
// inside WithTx.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	FindWarehouse(ctx context.Context, idOrName string) (Warehouse, error)
	ProductSKU(ctx context.Context, productID string) (string, error)
	GetLevelForUpdate(ctx context.Context, productID, warehouseID string) (StockLevel, error)
	UpsertLevel(ctx context.Context, level StockLevel) error
	InsertMovement(ctx context.Context, m Movement) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	q querier
}

// NewTxRepository wraps an open transaction. Other packages use it to post
// stock changes inside their own transactions.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{q: tx}
}

// WithTx executes the callback inside a serializable transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.TxOptions{LockTimeout: r.lockTimeout}, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// ListWarehouses returns all warehouses ordered by name.
func (r *Repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM warehouses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Warehouse
	for rows.Next() {
		var wh Warehouse
		if err := rows.Scan(&wh.ID, &wh.Name); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

// FindWarehouse resolves a warehouse by id, falling back to exact name.
func (r *Repository) FindWarehouse(ctx context.Context, idOrName string) (Warehouse, error) {
	return findWarehouse(ctx, r.pool, idOrName)
}

// EnsureWarehouse inserts the warehouse when no row carries the name.
func (r *Repository) EnsureWarehouse(ctx context.Context, name string) (Warehouse, error) {
	var wh Warehouse
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (id, name) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name`, uuid.NewString(), name).Scan(&wh.ID, &wh.Name)
	return wh, err
}

// ListStock returns stock levels for a warehouse joined with product data.
func (r *Repository) ListStock(ctx context.Context, warehouseID string) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.product_id, s.warehouse_id, p.sku, p.name, s.quantity, s.updated_at
FROM stock_levels s
JOIN products p ON p.id = s.product_id
WHERE s.warehouse_id = $1
ORDER BY p.name`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockLevel
	for rows.Next() {
		var lvl StockLevel
		if err := rows.Scan(&lvl.ProductID, &lvl.WarehouseID, &lvl.SKU, &lvl.ProductName, &lvl.Quantity, &lvl.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}

// ListLowStock returns levels at or below threshold, lowest first.
func (r *Repository) ListLowStock(ctx context.Context, threshold int) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.product_id, s.warehouse_id, w.name, p.sku, p.name, s.quantity, s.updated_at
FROM stock_levels s
JOIN products p ON p.id = s.product_id
JOIN warehouses w ON w.id = s.warehouse_id
WHERE s.quantity <= $1
ORDER BY s.quantity, p.sku`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockLevel
	for rows.Next() {
		var lvl StockLevel
		if err := rows.Scan(&lvl.ProductID, &lvl.WarehouseID, &lvl.WarehouseName, &lvl.SKU, &lvl.ProductName, &lvl.Quantity, &lvl.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}

// ListMovements returns movements newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, movement_type, quantity, previous_qty, new_qty,
       reason, notes, ref_id, actor_id, created_at
FROM stock_movements
WHERE ($1 = '' OR product_id = $1)
  AND ($2 = '' OR warehouse_id = $2)
ORDER BY created_at DESC, id
LIMIT $3`, filter.ProductID, filter.Warehouse, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &kind, &m.Quantity, &m.PreviousQty, &m.NewQty,
			&m.Reason, &m.Notes, &m.RefID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

func findWarehouse(ctx context.Context, q querier, idOrName string) (Warehouse, error) {
	var wh Warehouse
	err := q.QueryRow(ctx, `SELECT id, name FROM warehouses
WHERE id = $1 OR name = $1
ORDER BY (id = $1) DESC
LIMIT 1`, idOrName).Scan(&wh.ID, &wh.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, fmt.Errorf("%w: %s", ErrWarehouseNotFound, idOrName)
	}
	return wh, err
}

func (r *txRepo) FindWarehouse(ctx context.Context, idOrName string) (Warehouse, error) {
	return findWarehouse(ctx, r.q, idOrName)
}

func (r *txRepo) ProductSKU(ctx context.Context, productID string) (string, error) {
	var sku string
	err := r.q.QueryRow(ctx, `SELECT sku FROM products WHERE id = $1`, productID).Scan(&sku)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return sku, err
}

func (r *txRepo) GetLevelForUpdate(ctx context.Context, productID, warehouseID string) (StockLevel, error) {
	lvl := StockLevel{ProductID: productID, WarehouseID: warehouseID}
	err := r.q.QueryRow(ctx, `SELECT quantity, updated_at FROM stock_levels
WHERE product_id = $1 AND warehouse_id = $2
FOR UPDATE`, productID, warehouseID).Scan(&lvl.Quantity, &lvl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, ErrLevelNotFound
	}
	return lvl, err
}

func (r *txRepo) UpsertLevel(ctx context.Context, level StockLevel) error {
	_, err := r.q.Exec(ctx, `INSERT INTO stock_levels (product_id, warehouse_id, quantity, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`,
		level.ProductID, level.WarehouseID, level.Quantity)
	return err
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.q.Exec(ctx, `INSERT INTO stock_movements
    (id, product_id, warehouse_id, movement_type, quantity, previous_qty, new_qty, reason, notes, ref_id, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.ProductID, m.WarehouseID, string(m.Type), m.Quantity, m.PreviousQty, m.NewQty,
		m.Reason, m.Notes, m.RefID, m.ActorID, m.CreatedAt)
	return err
}
