package tickets

import (
	"errors"
	"fmt"

	"github.com/scanix-pos/scanix/internal/shared"
)

var (
	// ErrInvalidWarehouse indicates the warehouse matched no id or name.
	ErrInvalidWarehouse = fmt.Errorf("tickets: invalid warehouse: %w", shared.ErrNotFound)
	// ErrDuplicateTicket indicates the ticket id was already used.
	ErrDuplicateTicket = fmt.Errorf("tickets: ticket id already exists: %w", shared.ErrConflict)
	// ErrTicketNotFound indicates an unknown ticket id.
	ErrTicketNotFound = fmt.Errorf("tickets: ticket %w", shared.ErrNotFound)
)

// ProductNotFoundError reports a line whose SKU matches no product.
type ProductNotFoundError struct {
	SKU string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("tickets: product not found: %s", e.SKU)
}

// Is matches shared.ErrNotFound.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == shared.ErrNotFound
}

// InsufficientStockError reports a SKU whose stock cannot cover the request.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("tickets: insufficient stock for %s (requested %d, available %d)", e.SKU, e.Requested, e.Available)
}

// Is matches shared.ErrConflict.
func (e *InsufficientStockError) Is(target error) bool {
	return target == shared.ErrConflict
}

func outcome(err error) string {
	var stockErr *InsufficientStockError
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, ErrDuplicateTicket):
		return "duplicate"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrNotFound):
		return "rejected"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
