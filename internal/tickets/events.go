package tickets

// StockAfterSale is the remaining quantity of one product after a ticket.
type StockAfterSale struct {
	ProductID   string
	SKU         string
	WarehouseID string
	Remaining   int
}

// ConfirmedEvent describes a committed ticket.
type ConfirmedEvent struct {
	Ticket Ticket
	Stock  []StockAfterSale
}
