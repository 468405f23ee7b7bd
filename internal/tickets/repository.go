package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scanix-pos/scanix/internal/catalog"
	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/platform/db"
)

const ticketColumns = `id, ticket_date, ticket_time, vendor, warehouse_id, warehouse_name, total, status, COALESCE(photo, ''), actor_id, created_at`

// Repository persists tickets in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs Repository. lockTimeout makes the confirmation
// transaction fail fast when stock rows stay locked.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

type txRepo struct {
	catalog catalog.TxRepository
	tx      pgx.Tx
}

// WithTx executes the callback inside a serializable transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.TxOptions{IsoLevel: pgx.Serializable, LockTimeout: r.lockTimeout}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{catalog: catalog.NewTxRepository(tx), tx: tx})
	})
}

// List returns tickets newest first with their items.
func (r *Repository) List(ctx context.Context) ([]Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// Get returns one ticket.
func (r *Repository) Get(ctx context.Context, id string) (Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	if err != nil {
		return Ticket{}, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return Ticket{}, err
	}
	if len(tickets) == 0 {
		return Ticket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, id)
	}
	if err := r.loadItems(ctx, tickets); err != nil {
		return Ticket{}, err
	}
	return tickets[0], nil
}

func (r *Repository) loadItems(ctx context.Context, tickets []Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	index := make(map[string]int, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		index[tickets[i].ID] = i
		tickets[i].Items = []Item{}
	}
	rows, err := r.pool.Query(ctx, `SELECT ticket_id, line_no, product_id, name, sku, quantity, unit_price, subtotal, rule_from, rule_to
FROM ticket_items
WHERE ticket_id = ANY($1)
ORDER BY ticket_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ticketID string
		var item Item
		if err := rows.Scan(&ticketID, &item.LineNo, &item.ProductID, &item.Name, &item.SKU, &item.Quantity,
			&item.UnitPrice, &item.Subtotal, &item.RuleFrom, &item.RuleTo); err != nil {
			return err
		}
		t := &tickets[index[ticketID]]
		t.Items = append(t.Items, item)
	}
	return rows.Err()
}

func scanTickets(rows pgx.Rows) ([]Ticket, error) {
	defer rows.Close()
	var out []Ticket
	for rows.Next() {
		var t Ticket
		var status string
		if err := rows.Scan(&t.ID, &t.Date, &t.Time, &t.Vendor, &t.WarehouseID, &t.WarehouseName, &t.Total,
			&status, &t.Photo, &t.ActorID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Status = Status(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *txRepo) FindWarehouse(ctx context.Context, idOrName string) (inventory.Warehouse, error) {
	return r.catalog.FindWarehouse(ctx, idOrName)
}

func (r *txRepo) FindProductBySKU(ctx context.Context, sku string) (catalog.Product, error) {
	return r.catalog.FindBySKU(ctx, sku)
}

func (r *txRepo) GetStock(ctx context.Context, productID, warehouseID string) (int, error) {
	level, err := r.catalog.GetLevelForUpdate(ctx, productID, warehouseID)
	if errors.Is(err, inventory.ErrLevelNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return level.Quantity, nil
}

func (r *txRepo) DecrementStock(ctx context.Context, productID, warehouseID string, amount int) (int, error) {
	var remaining int
	err := r.tx.QueryRow(ctx, `UPDATE stock_levels
SET quantity = quantity - $3, updated_at = NOW()
WHERE product_id = $1 AND warehouse_id = $2 AND quantity >= $3
RETURNING quantity`, productID, warehouseID, amount).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, inventory.ErrNegativeStock
	}
	return remaining, err
}

func (r *txRepo) InsertMovement(ctx context.Context, m inventory.Movement) error {
	return r.catalog.InsertMovement(ctx, m)
}

func (r *txRepo) TicketExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepo) CreateTicket(ctx context.Context, t Ticket) error {
	var photo any
	if t.Photo != "" {
		photo = t.Photo
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO tickets (id, ticket_date, ticket_time, vendor, warehouse_id, warehouse_name, total, status, photo, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Date, t.Time, t.Vendor, t.WarehouseID, t.WarehouseName, t.Total, string(t.Status), photo, t.ActorID, t.CreatedAt)
	if db.IsUniqueViolation(err, "tickets_pkey") {
		return fmt.Errorf("%w: %s", ErrDuplicateTicket, t.ID)
	}
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, item := range t.Items {
		batch.Queue(`INSERT INTO ticket_items (id, ticket_id, line_no, product_id, name, sku, quantity, unit_price, subtotal, rule_from, rule_to)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			uuid.NewString(), t.ID, item.LineNo, item.ProductID, item.Name, item.SKU, item.Quantity,
			item.UnitPrice, item.Subtotal, item.RuleFrom, item.RuleTo)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}
