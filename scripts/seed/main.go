package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scanix-pos/scanix/internal/app"
	"github.com/scanix-pos/scanix/internal/auth"
	"github.com/scanix-pos/scanix/internal/catalog"
	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/platform/db"
	"github.com/scanix-pos/scanix/internal/pricing"
)

const (
	centralWarehouse = "Deposito Central"
	northWarehouse   = "Deposito Norte"
	seedActor        = "seed"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	inventoryService := inventory.NewService(inventory.NewRepository(pool, cfg.DBLockTimeout), nil, nil, nil)
	catalogService := catalog.NewService(catalog.NewRepository(pool, cfg.DBLockTimeout), nil, nil)

	fmt.Println("→ Seeding warehouses...")
	for _, name := range []string{centralWarehouse, northWarehouse} {
		if _, err := inventoryService.EnsureWarehouse(ctx, name); err != nil {
			log.Fatalf("seed warehouse %s: %v", name, err)
		}
	}

	fmt.Println("→ Seeding products...")
	for _, input := range seedProducts() {
		if err := seedProduct(ctx, catalogService, input); err != nil {
			log.Fatalf("seed product %s: %v", input.SKU, err)
		}
	}

	token, err := auth.MintToken(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		"admin", "Admin", "admin", time.Now(), 30*24*time.Hour)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Println("→ Dev bearer token (30 days):")
	fmt.Println(token)

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedProduct(ctx context.Context, svc *catalog.Service, input catalog.ProductInput) error {
	_, err := svc.FindBySKU(ctx, input.SKU)
	if err == nil {
		fmt.Printf("  %s already present\n", input.SKU)
		return nil
	}
	if !errors.Is(err, catalog.ErrProductNotFound) {
		return err
	}
	product, err := svc.Create(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("  %s created (%s, %d units)\n", product.SKU, product.ID, product.TotalStock())
	return nil
}

func seedProducts() []catalog.ProductInput {
	return []catalog.ProductInput{
		{
			Name:      "Aceite de Oliva Extra Virgen 500ml",
			SKU:       "AOL-500",
			Category:  "Aceites",
			BasePrice: decimal.RequireFromString("8.50"),
			Images:    []string{"/placeholder.svg"},
			PriceRules: []pricing.PriceRule{
				{FromQty: 1, ToQty: 9, Price: decimal.RequireFromString("8.50")},
				{FromQty: 10, ToQty: 49, Price: decimal.RequireFromString("7.80")},
				{FromQty: 50, ToQty: 999, Price: decimal.RequireFromString("7.20")},
			},
			InitialStock: []catalog.InitialStock{{Warehouse: centralWarehouse, Quantity: 45}},
			ActorID:      seedActor,
		},
		{
			Name:      "Arroz Integral 1kg",
			SKU:       "ARR-1000",
			Category:  "Granos",
			BasePrice: decimal.RequireFromString("3.20"),
			Images:    []string{"/placeholder.svg"},
			PriceRules: []pricing.PriceRule{
				{FromQty: 1, ToQty: 19, Price: decimal.RequireFromString("3.20")},
				{FromQty: 20, ToQty: 99, Price: decimal.RequireFromString("2.90")},
			},
			InitialStock: []catalog.InitialStock{{Warehouse: centralWarehouse, Quantity: 23}},
			ActorID:      seedActor,
		},
		{
			Name:      "Pasta Italiana 500g",
			SKU:       "PAS-500",
			Category:  "Pastas",
			BasePrice: decimal.RequireFromString("2.90"),
			Images:    []string{"/placeholder.svg"},
			PriceRules: []pricing.PriceRule{
				{FromQty: 1, ToQty: 9, Price: decimal.RequireFromString("2.90")},
				{FromQty: 10, ToQty: 49, Price: decimal.RequireFromString("2.60")},
			},
			InitialStock: []catalog.InitialStock{{Warehouse: northWarehouse, Quantity: 100}},
			ActorID:      seedActor,
		},
	}
}
