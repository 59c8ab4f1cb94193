package models

import "github.com/shopspring/decimal"

// EventID identifies an event of the active catalog.
type EventID string

// CategoryID identifies a ticket category of the active catalog.
type CategoryID string

type Event struct {
	ID   EventID `json:"id"`
	Name string  `json:"name"`
}

type TicketCategory struct {
	ID    CategoryID      `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	// MaxQuantity caps the quantity per sale; 0 falls back to the catalog default.
	MaxQuantity int `json:"max_quantity,omitempty"`
}

type PaymentMethod struct {
	Label string `json:"label"`
}
