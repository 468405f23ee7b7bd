package catalog

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/platform/cache"
	"github.com/scanix-pos/scanix/internal/pricing"
	"github.com/scanix-pos/scanix/internal/shared"
)

type memoryRepo struct {
	products   map[string]Product
	warehouses []inventory.Warehouse
	levels     map[string]int
	movements  []inventory.Movement
	lists      int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:   make(map[string]Product),
		warehouses: []inventory.Warehouse{{ID: "wh-central", Name: "Deposito Central"}, {ID: "wh-norte", Name: "Deposito Norte"}},
		levels:     make(map[string]int),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	products := make(map[string]Product, len(r.products))
	for k, v := range r.products {
		products[k] = v
	}
	levels := make(map[string]int, len(r.levels))
	for k, v := range r.levels {
		levels[k] = v
	}
	movements := append([]inventory.Movement(nil), r.movements...)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.products, r.levels, r.movements = products, levels, movements
		return err
	}
	return nil
}

func (r *memoryRepo) hydrate(p Product) Product {
	p.Stock = []inventory.StockLevel{}
	for _, wh := range r.warehouses {
		if qty, ok := r.levels[p.ID+":"+wh.ID]; ok {
			p.Stock = append(p.Stock, inventory.StockLevel{ProductID: p.ID, WarehouseID: wh.ID, WarehouseName: wh.Name, Quantity: qty})
		}
	}
	p.PriceRules = pricing.Sorted(p.PriceRules)
	return p
}

func (r *memoryRepo) List(context.Context) ([]Product, error) {
	r.lists++
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, r.hydrate(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return r.hydrate(p), nil
}

func (r *memoryRepo) FindBySKU(_ context.Context, sku string) (Product, error) {
	for _, p := range r.products {
		if p.SKU == sku {
			return r.hydrate(p), nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (tx *memoryTx) FindWarehouse(_ context.Context, idOrName string) (inventory.Warehouse, error) {
	for _, wh := range tx.repo.warehouses {
		if wh.ID == idOrName || wh.Name == idOrName {
			return wh, nil
		}
	}
	return inventory.Warehouse{}, inventory.ErrWarehouseNotFound
}

func (tx *memoryTx) ProductSKU(_ context.Context, productID string) (string, error) {
	p, ok := tx.repo.products[productID]
	if !ok {
		return "", inventory.ErrProductNotFound
	}
	return p.SKU, nil
}

func (tx *memoryTx) GetLevelForUpdate(_ context.Context, productID, warehouseID string) (inventory.StockLevel, error) {
	qty, ok := tx.repo.levels[productID+":"+warehouseID]
	if !ok {
		return inventory.StockLevel{}, inventory.ErrLevelNotFound
	}
	return inventory.StockLevel{ProductID: productID, WarehouseID: warehouseID, Quantity: qty}, nil
}

func (tx *memoryTx) UpsertLevel(_ context.Context, level inventory.StockLevel) error {
	tx.repo.levels[level.ProductID+":"+level.WarehouseID] = level.Quantity
	return nil
}

func (tx *memoryTx) InsertMovement(_ context.Context, m inventory.Movement) error {
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func (tx *memoryTx) SKUTaken(_ context.Context, sku, exceptID string) (bool, error) {
	for id, p := range tx.repo.products {
		if p.SKU == sku && id != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) InsertProduct(_ context.Context, p Product) error {
	tx.repo.products[p.ID] = p
	return nil
}

func (tx *memoryTx) UpdateProduct(_ context.Context, p Product) error {
	current, ok := tx.repo.products[p.ID]
	if !ok {
		return ErrProductNotFound
	}
	p.CreatedAt = current.CreatedAt
	p.Images, p.PriceRules = current.Images, current.PriceRules
	tx.repo.products[p.ID] = p
	return nil
}

func (tx *memoryTx) DeleteProduct(_ context.Context, id string) error {
	if _, ok := tx.repo.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(tx.repo.products, id)
	for k := range tx.repo.levels {
		if len(k) > len(id) && k[:len(id)+1] == id+":" {
			delete(tx.repo.levels, k)
		}
	}
	return nil
}

func (tx *memoryTx) ReplaceImages(_ context.Context, productID string, images []string) error {
	p := tx.repo.products[productID]
	p.Images = append([]string{}, images...)
	tx.repo.products[productID] = p
	return nil
}

func (tx *memoryTx) ReplaceRules(_ context.Context, productID string, rules []pricing.PriceRule) error {
	p := tx.repo.products[productID]
	p.PriceRules = append([]pricing.PriceRule{}, rules...)
	tx.repo.products[productID] = p
	return nil
}

func (tx *memoryTx) FindBySKU(ctx context.Context, sku string) (Product, error) {
	return tx.repo.FindBySKU(ctx, sku)
}

func rule(from, to int, price string) pricing.PriceRule {
	return pricing.PriceRule{FromQty: from, ToQty: to, Price: decimal.RequireFromString(price)}
}

func aceiteInput() ProductInput {
	return ProductInput{
		Name:      "Aceite de girasol 500ml",
		SKU:       "AOL-500",
		Category:  "Almacen",
		BasePrice: decimal.RequireFromString("8.5"),
		Images:    []string{" https://img.example/aol.png ", ""},
		PriceRules: []pricing.PriceRule{
			rule(50, 999, "7.2"),
			rule(1, 9, "8.5"),
			rule(10, 49, "7.8"),
		},
		InitialStock: []InitialStock{{Warehouse: "Deposito Central", Quantity: 45}},
	}
}

func TestCreateProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, aceiteInput())
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, []string{"https://img.example/aol.png"}, p.Images)
	require.Len(t, p.PriceRules, 3)
	require.Equal(t, 1, p.PriceRules[0].FromQty)
	require.Equal(t, 45, p.TotalStock())
	require.Len(t, repo.movements, 1)
	require.Equal(t, "initial stock", repo.movements[0].Reason)

	found, err := svc.FindBySKU(ctx, "AOL-500")
	require.NoError(t, err)
	require.Equal(t, p.ID, found.ID)

	_, err = svc.FindBySKU(ctx, "aol-500")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateRejectsDuplicateSKUAndBadRules(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, aceiteInput())
	require.NoError(t, err)

	_, err = svc.Create(ctx, aceiteInput())
	require.ErrorIs(t, err, ErrDuplicateSKU)
	require.ErrorIs(t, err, shared.ErrConflict)

	in := aceiteInput()
	in.SKU = "AOL-1000"
	in.PriceRules = []pricing.PriceRule{rule(1, 10, "8"), rule(5, 20, "7")}
	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "overlap")
	require.Len(t, repo.products, 1)

	in = aceiteInput()
	in.SKU = "AOL-2000"
	in.InitialStock = []InitialStock{{Warehouse: "Deposito Sur", Quantity: 3}}
	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, repo.products, 1)
	require.Len(t, repo.movements, 1)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	in := aceiteInput()
	in.Name, in.Category = " ", ""
	_, err := svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "name, category required")

	in = aceiteInput()
	in.BasePrice = decimal.Zero
	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = aceiteInput()
	in.InitialStock = []InitialStock{{Warehouse: "Deposito Central", Quantity: -1}}
	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateAndDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, aceiteInput())
	require.NoError(t, err)
	other := aceiteInput()
	other.SKU, other.Name = "ARR-1000", "Arroz 1kg"
	other.InitialStock = nil
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)

	in := aceiteInput()
	in.BasePrice = decimal.RequireFromString("9")
	in.PriceRules = []pricing.PriceRule{rule(12, 24, "8")}
	updated, err := svc.Update(ctx, p.ID, in)
	require.NoError(t, err)
	require.True(t, updated.BasePrice.Equal(decimal.RequireFromString("9")))
	require.Len(t, updated.PriceRules, 1)
	require.Equal(t, 45, updated.TotalStock())

	in.SKU = "ARR-1000"
	_, err = svc.Update(ctx, p.ID, in)
	require.ErrorIs(t, err, ErrDuplicateSKU)

	missing := aceiteInput()
	missing.SKU = "ZZZ-1"
	_, err = svc.Update(ctx, "missing", missing)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, p.ID, "u-1"))
	_, err = svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, ErrProductNotFound)
	require.Empty(t, repo.levels)
	require.ErrorIs(t, svc.Delete(ctx, p.ID, "u-1"), shared.ErrNotFound)
}

func TestQuote(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, aceiteInput())
	require.NoError(t, err)

	q, err := svc.Quote(ctx, p.ID, 12)
	require.NoError(t, err)
	require.Equal(t, "7.8", q.UnitPrice.String())
	require.Equal(t, "93.6", q.Subtotal.String())
	require.NotNil(t, q.Rule)
	require.Equal(t, 10, q.Rule.FromQty)

	q, err = svc.Quote(ctx, p.ID, 1000)
	require.NoError(t, err)
	require.Equal(t, "8.5", q.UnitPrice.String())
	require.Nil(t, q.Rule)

	_, err = svc.Quote(ctx, p.ID, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestScanReturnsFirstThree(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	matches, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, matches)

	for _, sku := range []string{"A-1", "B-2", "C-3", "D-4"} {
		in := aceiteInput()
		in.SKU, in.Name, in.InitialStock = sku, "Producto "+sku, nil
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}
	matches, err = svc.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.Equal(t, "A-1", matches[0].SKU)
	require.Equal(t, 1, matches[0].Quantity)
	require.Equal(t, 90, matches[0].Confidence)
	require.Equal(t, 3, matches[2].Quantity)
	require.Equal(t, 70, matches[2].Confidence)
}

func TestListIsCachedUntilWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	svc := NewService(repo, nil, cache.NewVersioned(client, "catalog", time.Minute))
	ctx := context.Background()

	_, err := svc.Create(ctx, aceiteInput())
	require.NoError(t, err)

	first, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, repo.lists)
	require.True(t, second[0].BasePrice.Equal(first[0].BasePrice))

	in := aceiteInput()
	in.SKU, in.InitialStock = "ARR-1000", nil
	_, err = svc.Create(ctx, in)
	require.NoError(t, err)

	third, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, third, 2)
	require.Equal(t, 2, repo.lists)
}
