// Package pricing derives line subtotals and order totals from a cart.
// Nothing here is cached: callers recompute on every render.
package pricing

import (
	"club-pos/internal/catalog"
	"club-pos/internal/models"

	"github.com/shopspring/decimal"
)

// Line is one non-empty row of an order summary.
type Line struct {
	Category models.TicketCategory
	Quantity int
	Subtotal decimal.Decimal
}

// LineSubtotal is quantity × unit price, or zero when the quantity is missing or not positive.
func LineSubtotal(category models.TicketCategory, cart models.Cart) decimal.Decimal {
	q := cart.Quantity(category.ID)
	if q == 0 {
		return decimal.Zero
	}
	return category.Price.Mul(decimal.NewFromInt(int64(q)))
}

// Total sums the subtotals of every catalog category in the cart. Keys unknown
// to the catalog contribute nothing.
func Total(cat *catalog.Catalog, cart models.Cart) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cat.Categories() {
		total = total.Add(LineSubtotal(c, cart))
	}
	return total
}

// Lines returns the categories with a positive quantity, in catalog order.
func Lines(cat *catalog.Catalog, cart models.Cart) []Line {
	var lines []Line
	for _, c := range cat.Categories() {
		q := cart.Quantity(c.ID)
		if q == 0 {
			continue
		}
		lines = append(lines, Line{Category: c, Quantity: q, Subtotal: LineSubtotal(c, cart)})
	}
	return lines
}

// FormatEUR renders an amount the way receipts and the ledger show it, e.g. "€24.00".
func FormatEUR(amount decimal.Decimal) string {
	return "€" + amount.StringFixed(2)
}
