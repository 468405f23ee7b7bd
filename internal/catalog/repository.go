package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/platform/db"
	"github.com/scanix-pos/scanix/internal/pricing"
)

const productColumns = `id, name, sku, category, description, base_price, created_at, updated_at`

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	inventory.TxRepository
	q querier
}

// NewTxRepository wraps an open transaction for catalog and stock writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{TxRepository: inventory.NewTxRepository(tx), q: tx}
}

// WithTx executes the callback inside a serializable transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.TxOptions{LockTimeout: r.lockTimeout}, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// List returns all products ordered by name.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, sku`)
	if err != nil {
		return nil, err
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := hydrate(ctx, r.pool, products); err != nil {
		return nil, err
	}
	return products, nil
}

// Get returns one product by id.
func (r *Repository) Get(ctx context.Context, id string) (Product, error) {
	return getOne(ctx, r.pool, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// FindBySKU returns one product by exact SKU.
func (r *Repository) FindBySKU(ctx context.Context, sku string) (Product, error) {
	return getOne(ctx, r.pool, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
}

func (r *txRepo) FindBySKU(ctx context.Context, sku string) (Product, error) {
	return getOne(ctx, r.q, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
}

func (r *txRepo) SKUTaken(ctx context.Context, sku, exceptID string) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1 AND id <> $2)`, sku, exceptID).Scan(&taken)
	return taken, err
}

func (r *txRepo) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.q.Exec(ctx, `INSERT INTO products (`+productColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.SKU, p.Category, p.Description, p.BasePrice, p.CreatedAt, p.UpdatedAt)
	if db.IsUniqueViolation(err, "products_sku_key") {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, p.SKU)
	}
	return err
}

func (r *txRepo) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.q.Exec(ctx, `UPDATE products
SET name = $2, sku = $3, category = $4, description = $5, base_price = $6, updated_at = $7
WHERE id = $1`,
		p.ID, p.Name, p.SKU, p.Category, p.Description, p.BasePrice, p.UpdatedAt)
	if db.IsUniqueViolation(err, "products_sku_key") {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, p.SKU)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *txRepo) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *txRepo) ReplaceImages(ctx context.Context, productID string, images []string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM product_images WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for i, url := range images {
		if _, err := r.q.Exec(ctx, `INSERT INTO product_images (id, product_id, position, url) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), productID, i, url); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) ReplaceRules(ctx context.Context, productID string, rules []pricing.PriceRule) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM price_rules WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for _, rule := range rules {
		if _, err := r.q.Exec(ctx, `INSERT INTO price_rules (id, product_id, from_qty, to_qty, price) VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), productID, rule.FromQty, rule.ToQty, rule.Price); err != nil {
			return err
		}
	}
	return nil
}

func getOne(ctx context.Context, q querier, query string, arg string) (Product, error) {
	rows, err := q.Query(ctx, query, arg)
	if err != nil {
		return Product{}, err
	}
	products, err := scanProducts(rows)
	if err != nil {
		return Product{}, err
	}
	if len(products) == 0 {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, arg)
	}
	if err := hydrate(ctx, q, products); err != nil {
		return Product{}, err
	}
	return products[0], nil
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Description, &p.BasePrice, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// hydrate loads images, tiers and stock for products with one query each.
func hydrate(ctx context.Context, q querier, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		products[i].Images = []string{}
		products[i].PriceRules = []pricing.PriceRule{}
		products[i].Stock = []inventory.StockLevel{}
	}

	rows, err := q.Query(ctx, `SELECT product_id, url FROM product_images WHERE product_id = ANY($1) ORDER BY product_id, position`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var productID, url string
		if err := rows.Scan(&productID, &url); err != nil {
			rows.Close()
			return err
		}
		p := &products[index[productID]]
		p.Images = append(p.Images, url)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `SELECT product_id, from_qty, to_qty, price FROM price_rules WHERE product_id = ANY($1) ORDER BY product_id, from_qty`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var productID string
		var rule pricing.PriceRule
		if err := rows.Scan(&productID, &rule.FromQty, &rule.ToQty, &rule.Price); err != nil {
			rows.Close()
			return err
		}
		p := &products[index[productID]]
		p.PriceRules = append(p.PriceRules, rule)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `SELECT s.product_id, s.warehouse_id, w.name, s.quantity, s.updated_at
FROM stock_levels s
JOIN warehouses w ON w.id = s.warehouse_id
WHERE s.product_id = ANY($1)
ORDER BY s.product_id, w.name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var lvl inventory.StockLevel
		if err := rows.Scan(&lvl.ProductID, &lvl.WarehouseID, &lvl.WarehouseName, &lvl.Quantity, &lvl.UpdatedAt); err != nil {
			return err
		}
		p := &products[index[lvl.ProductID]]
		lvl.SKU = p.SKU
		lvl.ProductName = p.Name
		p.Stock = append(p.Stock, lvl)
	}
	return rows.Err()
}

