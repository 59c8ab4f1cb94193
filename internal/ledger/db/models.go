package db

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Sale struct {
	bun.BaseModel `bun:"table:sales"`

	ID            string          `bun:"id,pk" json:"id"`
	SoldAt        time.Time       `bun:"sold_at,notnull" json:"sold_at"`
	SaleDate      string          `bun:"sale_date,notnull" json:"sale_date"`
	SaleTime      string          `bun:"sale_time,notnull" json:"sale_time"`
	EventID       string          `bun:"event_id,notnull" json:"event_id"`
	EventName     string          `bun:"event_name,notnull" json:"event_name"`
	TicketCount   int             `bun:"ticket_count,notnull" json:"ticket_count"`
	Total         decimal.Decimal `bun:"total,type:numeric(12,2),notnull" json:"total"`
	PaymentMethod string          `bun:"payment_method,notnull" json:"payment_method"`

	Lines []SaleLine `bun:"rel:has-many,join:id=sale_id" json:"lines"`
}

type SaleLine struct {
	bun.BaseModel `bun:"table:sale_lines"`

	ID           int64           `bun:"id,pk,autoincrement" json:"-"`
	SaleID       string          `bun:"sale_id,notnull" json:"sale_id"`
	Position     int             `bun:"position,notnull" json:"position"`
	CategoryID   string          `bun:"category_id,notnull" json:"category_id"`
	CategoryName string          `bun:"category_name,notnull" json:"category_name"`
	UnitPrice    decimal.Decimal `bun:"unit_price,type:numeric(12,2),notnull" json:"unit_price"`
	Quantity     int             `bun:"quantity,notnull" json:"quantity"`
}
