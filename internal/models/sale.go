package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleLine is the quantity sold for one catalog category.
type SaleLine struct {
	CategoryID   CategoryID      `json:"category_id"`
	CategoryName string          `json:"category_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
}

func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SaleRecord is the snapshot of a completed sale handed to the ledger.
// Lines always carry every catalog category, in catalog order.
type SaleRecord struct {
	ID            string          `json:"id"`
	SoldAt        time.Time       `json:"sold_at"`
	EventID       EventID         `json:"event_id"`
	EventName     string          `json:"event_name"`
	Lines         []SaleLine      `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
}

// TicketCount sums the quantities of all lines.
func (r SaleRecord) TicketCount() int {
	n := 0
	for _, l := range r.Lines {
		n += l.Quantity
	}
	return n
}
