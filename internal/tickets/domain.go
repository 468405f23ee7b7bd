// Package tickets confirms sales: it checks stock for every line, decrements
// it and records the ticket in one transaction.
package tickets

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	// StatusConfirmed is the only state produced by Confirm.
	StatusConfirmed Status = "confirmada"
	// StatusPending is shown by clients for drafts; never stored by Confirm.
	StatusPending Status = "pendiente"
	// StatusVoided is terminal.
	StatusVoided Status = "anulada"
)

// Ticket is a recorded sale.
type Ticket struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Time          string          `json:"time"`
	Vendor        string          `json:"vendor"`
	WarehouseID   string          `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	Photo         string          `json:"photo,omitempty"`
	ActorID       string          `json:"actor_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []Item          `json:"items"`
}

// Units sums the quantities of every line.
func (t Ticket) Units() int {
	units := 0
	for _, item := range t.Items {
		units += item.Quantity
	}
	return units
}

// Item is one line of a ticket. RuleFrom and RuleTo name the price tier that
// matched the quantity, when one did.
type Item struct {
	LineNo    int             `json:"line_no"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	RuleFrom  *int            `json:"rule_from,omitempty"`
	RuleTo    *int            `json:"rule_to,omitempty"`
}

// LineInput is one requested line.
type LineInput struct {
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal
}

// ConfirmInput describes a ticket submission. ID is generated when empty.
// Warehouse accepts an id or an exact name.
type ConfirmInput struct {
	ID        string
	Vendor    string
	Warehouse string
	Photo     string
	Items     []LineInput
	ActorID   string
}
