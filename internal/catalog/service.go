package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/platform/cache"
	"github.com/scanix-pos/scanix/internal/pricing"
	"github.com/scanix-pos/scanix/internal/shared"
)

// scanLimit caps how many products the recognition stub reports.
const scanLimit = 3

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	FindBySKU(ctx context.Context, sku string) (Product, error)
}

// TxRepository exposes transactional catalog writes. Stock operations come
// from the inventory transaction so initial stock lands in the same unit.
type TxRepository interface {
	inventory.TxRepository
	SKUTaken(ctx context.Context, sku, exceptID string) (bool, error)
	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error
	ReplaceImages(ctx context.Context, productID string, images []string) error
	ReplaceRules(ctx context.Context, productID string, rules []pricing.PriceRule) error
	FindBySKU(ctx context.Context, sku string) (Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements catalog use cases.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *cache.Versioned
	now   func() time.Time
}

// NewService builds Service. A nil cache reads straight from the repository.
func NewService(repo RepositoryPort, audit AuditPort, cache *cache.Versioned) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, now: time.Now}
}

// List returns every product with rules, images and stock.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	key, err := s.cache.BuildKey(ctx, "products")
	if err != nil {
		return s.repo.List(ctx)
	}
	var products []Product
	err = s.cache.FetchJSON(ctx, key, &products, func(ctx context.Context) (any, error) {
		return s.repo.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, fmt.Errorf("catalog: product id required: %w", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, "product", id)
	if err != nil {
		return s.repo.Get(ctx, id)
	}
	var product Product
	err = s.cache.FetchJSON(ctx, key, &product, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	return product, err
}

// FindBySKU looks a product up by exact SKU.
func (s *Service) FindBySKU(ctx context.Context, sku string) (Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return Product{}, fmt.Errorf("catalog: sku required: %w", shared.ErrValidation)
	}
	return s.repo.FindBySKU(ctx, sku)
}

// Quote prices quantity units of a product against its tiers.
func (s *Service) Quote(ctx context.Context, id string, quantity int) (pricing.Quote, error) {
	if quantity <= 0 {
		return pricing.Quote{}, fmt.Errorf("catalog: quantity must be greater than zero: %w", shared.ErrValidation)
	}
	product, err := s.Get(ctx, id)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.NewQuote(quantity, product.BasePrice, product.PriceRules), nil
}

// Scan pretends to recognise products in a photo: it reports the first
// catalog entries with increasing quantities and falling confidence.
func (s *Service) Scan(ctx context.Context) ([]ScanMatch, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]ScanMatch, 0, scanLimit)
	for idx, p := range products {
		if idx == scanLimit {
			break
		}
		matches = append(matches, ScanMatch{
			ID:         p.ID,
			SKU:        p.SKU,
			Name:       p.Name,
			Quantity:   idx + 1,
			Confidence: 90 - idx*10,
		})
	}
	return matches, nil
}

// Create validates and stores a new product with its tiers, images and
// optional initial stock in one transaction.
func (s *Service) Create(ctx context.Context, input ProductInput) (Product, error) {
	input = normalize(input)
	if err := validate(input); err != nil {
		return Product{}, err
	}
	for _, st := range input.InitialStock {
		if strings.TrimSpace(st.Warehouse) == "" || st.Quantity < 0 {
			return Product{}, fmt.Errorf("catalog: initial stock needs a warehouse and a non-negative quantity: %w", shared.ErrValidation)
		}
	}
	now := s.now().UTC()
	product := Product{
		ID:          uuid.NewString(),
		Name:        input.Name,
		SKU:         input.SKU,
		Category:    input.Category,
		Description: input.Description,
		BasePrice:   input.BasePrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.SKUTaken(ctx, product.SKU, "")
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrDuplicateSKU, product.SKU)
		}
		if err := tx.InsertProduct(ctx, product); err != nil {
			return err
		}
		if err := tx.ReplaceImages(ctx, product.ID, input.Images); err != nil {
			return err
		}
		if err := tx.ReplaceRules(ctx, product.ID, input.PriceRules); err != nil {
			return err
		}
		for _, st := range input.InitialStock {
			if err := seedStock(ctx, tx, product.ID, st, input.ActorID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.afterWrite(ctx, input.ActorID, "catalog:create", product.ID, map[string]any{"sku": product.SKU})
	return s.repo.Get(ctx, product.ID)
}

// Update replaces a product's fields, tiers and images. Stock is not
// touched; use inventory adjustments for that.
func (s *Service) Update(ctx context.Context, id string, input ProductInput) (Product, error) {
	id = strings.TrimSpace(id)
	input = normalize(input)
	if err := validate(input); err != nil {
		return Product{}, err
	}
	product := Product{
		ID:          id,
		Name:        input.Name,
		SKU:         input.SKU,
		Category:    input.Category,
		Description: input.Description,
		BasePrice:   input.BasePrice,
		UpdatedAt:   s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.SKUTaken(ctx, product.SKU, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrDuplicateSKU, product.SKU)
		}
		if err := tx.UpdateProduct(ctx, product); err != nil {
			return err
		}
		if err := tx.ReplaceImages(ctx, id, input.Images); err != nil {
			return err
		}
		return tx.ReplaceRules(ctx, id, input.PriceRules)
	})
	if err != nil {
		return Product{}, err
	}
	s.afterWrite(ctx, input.ActorID, "catalog:update", id, map[string]any{"sku": product.SKU})
	return s.repo.Get(ctx, id)
}

// Delete removes a product together with its tiers, images and stock rows.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("catalog: product id required: %w", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}
	s.afterWrite(ctx, actorID, "catalog:delete", id, nil)
	return nil
}

func (s *Service) afterWrite(ctx context.Context, actorID, action, productID string, meta map[string]any) {
	_ = s.cache.Bump(ctx)
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: productID,
		Meta:     meta,
	})
}

func seedStock(ctx context.Context, tx TxRepository, productID string, st InitialStock, actorID string, at time.Time) error {
	wh, err := tx.FindWarehouse(ctx, strings.TrimSpace(st.Warehouse))
	if err != nil {
		return err
	}
	level, err := tx.GetLevelForUpdate(ctx, productID, wh.ID)
	if errors.Is(err, inventory.ErrLevelNotFound) {
		level = inventory.StockLevel{ProductID: productID, WarehouseID: wh.ID}
	} else if err != nil {
		return err
	}
	previous := level.Quantity
	level.Quantity += st.Quantity
	if err := tx.UpsertLevel(ctx, level); err != nil {
		return err
	}
	if st.Quantity == 0 {
		return nil
	}
	return tx.InsertMovement(ctx, inventory.Movement{
		ID:          uuid.NewString(),
		ProductID:   productID,
		WarehouseID: wh.ID,
		Type:        inventory.MovementIn,
		Quantity:    st.Quantity,
		PreviousQty: previous,
		NewQty:      level.Quantity,
		Reason:      "initial stock",
		ActorID:     actorID,
		CreatedAt:   at,
	})
}

func normalize(input ProductInput) ProductInput {
	input.Name = strings.TrimSpace(input.Name)
	input.SKU = strings.TrimSpace(input.SKU)
	input.Category = strings.TrimSpace(input.Category)
	input.Description = strings.TrimSpace(input.Description)
	images := make([]string, 0, len(input.Images))
	for _, url := range input.Images {
		if url = strings.TrimSpace(url); url != "" {
			images = append(images, url)
		}
	}
	input.Images = images
	return input
}

func validate(input ProductInput) error {
	var missing []string
	if input.Name == "" {
		missing = append(missing, "name")
	}
	if input.SKU == "" {
		missing = append(missing, "sku")
	}
	if input.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: catalog: %s required", shared.ErrValidation, strings.Join(missing, ", "))
	}
	if !input.BasePrice.IsPositive() {
		return fmt.Errorf("%w: catalog: base price must be greater than 0", shared.ErrValidation)
	}
	return pricing.ValidatePriceRules(input.PriceRules).Err()
}
