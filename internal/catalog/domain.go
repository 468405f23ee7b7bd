// Package catalog manages products, their price tiers and images.
package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/pricing"
	"github.com/scanix-pos/scanix/internal/shared"
)

// Product is a sellable catalog item.
type Product struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	SKU         string                 `json:"sku"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	BasePrice   decimal.Decimal        `json:"base_price"`
	Images      []string               `json:"images"`
	PriceRules  []pricing.PriceRule    `json:"price_rules"`
	Stock       []inventory.StockLevel `json:"stock"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// TotalStock sums the product's quantity over every warehouse.
func (p Product) TotalStock() int {
	total := 0
	for _, lvl := range p.Stock {
		total += lvl.Quantity
	}
	return total
}

// InitialStock seeds one warehouse when a product is created.
type InitialStock struct {
	Warehouse string
	Quantity  int
}

// ProductInput carries writable product fields.
type ProductInput struct {
	Name         string
	SKU          string
	Category     string
	Description  string
	BasePrice    decimal.Decimal
	Images       []string
	PriceRules   []pricing.PriceRule
	InitialStock []InitialStock
	ActorID      string
}

// ScanMatch is one product the recognition stub claims to see.
type ScanMatch struct {
	ID         string `json:"id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Confidence int    `json:"confidence"`
}

var (
	// ErrProductNotFound indicates an unknown product id or SKU.
	ErrProductNotFound = fmt.Errorf("catalog: product %w", shared.ErrNotFound)
	// ErrDuplicateSKU indicates another product already uses the SKU.
	ErrDuplicateSKU = fmt.Errorf("catalog: sku already exists: %w", shared.ErrConflict)
)
