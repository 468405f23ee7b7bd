package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/scanix-pos/scanix/internal/catalog"
	"github.com/scanix-pos/scanix/internal/inventory"
	"github.com/scanix-pos/scanix/internal/pricing"
	"github.com/scanix-pos/scanix/internal/shared"
)

const guardModule = "tickets"

// MaxLineQuantity is the largest quantity one line may carry, the range of
// the INT stock columns.
const MaxLineQuantity = math.MaxInt32

// RepositoryPort abstracts ticket persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Ticket, error)
	Get(ctx context.Context, id string) (Ticket, error)
}

// TxRepository is the store contract the confirmation transaction runs
// against. Every call happens inside one serializable transaction.
type TxRepository interface {
	FindWarehouse(ctx context.Context, idOrName string) (inventory.Warehouse, error)
	FindProductBySKU(ctx context.Context, sku string) (catalog.Product, error)
	// GetStock locks the stock row and returns 0 when it does not exist.
	GetStock(ctx context.Context, productID, warehouseID string) (int, error)
	// DecrementStock returns the remaining quantity or
	// inventory.ErrNegativeStock.
	DecrementStock(ctx context.Context, productID, warehouseID string, amount int) (int, error)
	InsertMovement(ctx context.Context, m inventory.Movement) error
	TicketExists(ctx context.Context, id string) (bool, error)
	CreateTicket(ctx context.Context, ticket Ticket) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SubmissionGuard rejects concurrent resubmissions of one ticket id.
type SubmissionGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// CacheInvalidator drops cached catalog views that embed stock levels.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// MetricsRecorder counts confirmation outcomes.
type MetricsRecorder interface {
	ObserveTicket(outcome string, units int)
}

// IntegrationHandler receives committed tickets.
type IntegrationHandler interface {
	HandleTicketConfirmed(ctx context.Context, evt ConfirmedEvent) error
}

// Dependencies groups optional collaborators.
type Dependencies struct {
	Audit       AuditPort
	Guard       SubmissionGuard
	Cache       CacheInvalidator
	Metrics     MetricsRecorder
	Integration IntegrationHandler
	Logger      *slog.Logger
}

// ServiceConfig tunes confirmation.
type ServiceConfig struct {
	// RepriceFromRules re-derives every unit price from the product's tiers
	// instead of trusting the submitted price.
	RepriceFromRules bool
	// Location is used for the ticket date and time. Defaults to time.Local.
	Location *time.Location
}

// Service confirms and reads tickets.
type Service struct {
	repo RepositoryPort
	cfg  ServiceConfig
	deps Dependencies
	now  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig, deps Dependencies) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{repo: repo, cfg: cfg, deps: deps, now: time.Now}
}

// List returns tickets newest first.
func (s *Service) List(ctx context.Context) ([]Ticket, error) {
	return s.repo.List(ctx)
}

// Get returns one ticket with its lines.
func (s *Service) Get(ctx context.Context, id string) (Ticket, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Ticket{}, fmt.Errorf("tickets: id required: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Confirm checks stock for every line, decrements it and records the ticket.
// Either everything commits or nothing does; the first failure is returned.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (Ticket, error) {
	ticket, err := s.confirm(ctx, input)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveTicket(outcome(err), ticket.Units())
	}
	return ticket, err
}

func (s *Service) confirm(ctx context.Context, input ConfirmInput) (Ticket, error) {
	now := s.now().In(s.cfg.Location)
	input = normalize(input)
	if err := validate(input, !s.cfg.RepriceFromRules); err != nil {
		return Ticket{}, err
	}
	if input.ID == "" {
		input.ID = NewTicketID(now)
	}

	if s.deps.Guard != nil {
		err := s.deps.Guard.CheckAndInsert(ctx, input.ID, guardModule)
		switch {
		case errors.Is(err, shared.ErrIdempotencyConflict):
			return Ticket{}, fmt.Errorf("%w: %s", ErrDuplicateTicket, input.ID)
		case err != nil:
			s.deps.Logger.Warn("ticket submission guard unavailable", slog.String("ticket_id", input.ID), slog.Any("error", err))
		}
	}

	var ticket Ticket
	var stock []StockAfterSale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ticket, stock, err = s.apply(ctx, tx, input, now)
		return err
	})
	if err != nil {
		if s.deps.Guard != nil && !errors.Is(err, ErrDuplicateTicket) {
			// The request context may already be canceled; the key must still go.
			if delErr := s.deps.Guard.Delete(context.WithoutCancel(ctx), input.ID, guardModule); delErr != nil {
				s.deps.Logger.Warn("ticket submission guard release failed", slog.String("ticket_id", input.ID), slog.Any("error", delErr))
			}
		}
		return Ticket{}, err
	}

	s.afterCommit(context.WithoutCancel(ctx), ticket, stock)
	return ticket, nil
}

// apply runs inside the transaction. All lookups and stock checks finish
// before the first write.
func (s *Service) apply(ctx context.Context, tx TxRepository, input ConfirmInput, now time.Time) (Ticket, []StockAfterSale, error) {
	exists, err := tx.TicketExists(ctx, input.ID)
	if err != nil {
		return Ticket{}, nil, err
	}
	if exists {
		return Ticket{}, nil, fmt.Errorf("%w: %s", ErrDuplicateTicket, input.ID)
	}

	wh, err := tx.FindWarehouse(ctx, input.Warehouse)
	if errors.Is(err, shared.ErrNotFound) {
		return Ticket{}, nil, fmt.Errorf("%w: %s", ErrInvalidWarehouse, input.Warehouse)
	}
	if err != nil {
		return Ticket{}, nil, err
	}

	products := make([]catalog.Product, len(input.Items))
	bySKU := make(map[string]catalog.Product, len(input.Items))
	for i, line := range input.Items {
		product, ok := bySKU[line.SKU]
		if !ok {
			product, err = tx.FindProductBySKU(ctx, line.SKU)
			if errors.Is(err, shared.ErrNotFound) {
				return Ticket{}, nil, &ProductNotFoundError{SKU: line.SKU}
			}
			if err != nil {
				return Ticket{}, nil, err
			}
			bySKU[line.SKU] = product
		}
		products[i] = product
	}

	// Lines sharing a product are checked against their combined quantity.
	demand := make(map[string]int, len(bySKU))
	for i, line := range input.Items {
		demand[products[i].ID] += line.Quantity
	}
	available := make(map[string]int, len(bySKU))
	for i := range input.Items {
		product := products[i]
		if _, seen := available[product.ID]; seen {
			continue
		}
		qty, err := tx.GetStock(ctx, product.ID, wh.ID)
		if err != nil {
			return Ticket{}, nil, err
		}
		available[product.ID] = qty
		if demand[product.ID] > qty {
			return Ticket{}, nil, &InsufficientStockError{SKU: product.SKU, Requested: demand[product.ID], Available: qty}
		}
	}

	ticket := Ticket{
		ID:            input.ID,
		Date:          now.Format("2006-01-02"),
		Time:          now.Format("15:04"),
		Vendor:        input.Vendor,
		WarehouseID:   wh.ID,
		WarehouseName: wh.Name,
		Total:         decimal.Zero,
		Status:        StatusConfirmed,
		Photo:         input.Photo,
		ActorID:       input.ActorID,
		CreatedAt:     now.UTC(),
		Items:         make([]Item, 0, len(input.Items)),
	}
	remaining := make(map[string]int, len(bySKU))
	for i, line := range input.Items {
		product := products[i]
		left, err := tx.DecrementStock(ctx, product.ID, wh.ID, line.Quantity)
		if err != nil {
			return Ticket{}, nil, err
		}
		remaining[product.ID] = left
		if err := tx.InsertMovement(ctx, inventory.Movement{
			ID:          uuid.NewString(),
			ProductID:   product.ID,
			WarehouseID: wh.ID,
			Type:        inventory.MovementSale,
			Quantity:    line.Quantity,
			PreviousQty: left + line.Quantity,
			NewQty:      left,
			Reason:      "ticket",
			RefID:       ticket.ID,
			ActorID:     input.ActorID,
			CreatedAt:   ticket.CreatedAt,
		}); err != nil {
			return Ticket{}, nil, err
		}

		item := Item{
			LineNo:    i + 1,
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		if rule, ok := pricing.MatchRule(line.Quantity, product.PriceRules); ok {
			from, to := rule.FromQty, rule.ToQty
			item.RuleFrom, item.RuleTo = &from, &to
		}
		if s.cfg.RepriceFromRules {
			item.UnitPrice = pricing.ResolveUnitPrice(line.Quantity, product.BasePrice, product.PriceRules)
		}
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		ticket.Total = ticket.Total.Add(item.Subtotal)
		ticket.Items = append(ticket.Items, item)
	}

	if err := tx.CreateTicket(ctx, ticket); err != nil {
		return Ticket{}, nil, err
	}

	stock := make([]StockAfterSale, 0, len(remaining))
	for _, product := range products {
		left, ok := remaining[product.ID]
		if !ok {
			continue
		}
		stock = append(stock, StockAfterSale{ProductID: product.ID, SKU: product.SKU, WarehouseID: wh.ID, Remaining: left})
		delete(remaining, product.ID)
	}
	return ticket, stock, nil
}

// afterCommit runs side effects that must not undo a committed sale.
func (s *Service) afterCommit(ctx context.Context, ticket Ticket, stock []StockAfterSale) {
	logger := s.deps.Logger.With(slog.String("ticket_id", ticket.ID))
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Bump(ctx); err != nil {
			logger.Warn("catalog cache bump failed", slog.Any("error", err))
		}
	}
	if s.deps.Audit != nil {
		err := s.deps.Audit.Record(ctx, shared.AuditLog{
			ActorID:  ticket.ActorID,
			Action:   "tickets:confirm",
			Entity:   "ticket",
			EntityID: ticket.ID,
			Meta: map[string]any{
				"warehouse_id": ticket.WarehouseID,
				"total":        ticket.Total.String(),
				"lines":        len(ticket.Items),
			},
		})
		if err != nil {
			logger.Warn("ticket audit failed", slog.Any("error", err))
		}
	}
	if s.deps.Integration != nil {
		if err := s.deps.Integration.HandleTicketConfirmed(ctx, ConfirmedEvent{Ticket: ticket, Stock: stock}); err != nil {
			logger.Warn("ticket integration failed", slog.Any("error", err))
		}
	}
	logger.Info("ticket confirmed", slog.String("total", ticket.Total.String()), slog.Int("lines", len(ticket.Items)))
}

// NewTicketID generates an id of the form VTA-YYYYMMDD-XXXXXXXX.
func NewTicketID(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("VTA-%s-%s", at.Format("20060102"), suffix)
}

func normalize(input ConfirmInput) ConfirmInput {
	input.ID = strings.TrimSpace(input.ID)
	input.Vendor = strings.TrimSpace(input.Vendor)
	input.Warehouse = strings.TrimSpace(input.Warehouse)
	items := make([]LineInput, len(input.Items))
	for i, line := range input.Items {
		line.SKU = strings.TrimSpace(line.SKU)
		items[i] = line
	}
	input.Items = items
	return input
}

// validate checks the submitted lines. Unit prices may be left zero when
// they are re-derived at commit.
func validate(input ConfirmInput, requirePrice bool) error {
	if input.Vendor == "" {
		return fmt.Errorf("%w: tickets: vendor required", shared.ErrValidation)
	}
	if input.Warehouse == "" {
		return fmt.Errorf("%w: tickets: warehouse required", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: tickets: at least one item required", shared.ErrValidation)
	}
	for i, line := range input.Items {
		switch {
		case line.SKU == "":
			return fmt.Errorf("%w: tickets: item %d: sku required", shared.ErrValidation, i+1)
		case line.Quantity <= 0:
			return fmt.Errorf("%w: tickets: item %d: quantity must be greater than 0", shared.ErrValidation, i+1)
		case line.Quantity > MaxLineQuantity:
			return fmt.Errorf("%w: tickets: item %d: quantity must not exceed %d", shared.ErrValidation, i+1, MaxLineQuantity)
		case line.UnitPrice.IsNegative(), requirePrice && line.UnitPrice.IsZero():
			return fmt.Errorf("%w: tickets: item %d: unit price must be greater than 0", shared.ErrValidation, i+1)
		}
	}
	return nil
}
