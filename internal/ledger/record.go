// Package ledger shapes completed sales into the positional row layout shared
// by every external store, and fans records out to the configured sinks.
package ledger

import (
	"strconv"

	"club-pos/internal/catalog"
	"club-pos/internal/models"
	"club-pos/internal/pricing"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Row is the wire contract of one sale:
// date, time, event, one quantity column per category in catalog order, total, payment.
func Row(record models.SaleRecord) []string {
	row := make([]string, 0, len(record.Lines)+5)
	row = append(row,
		record.SoldAt.Format(DateLayout),
		record.SoldAt.Format(TimeLayout),
		record.EventName,
	)
	for _, l := range record.Lines {
		row = append(row, strconv.Itoa(l.Quantity))
	}
	return append(row, pricing.FormatEUR(record.Total), record.PaymentMethod)
}

// Header returns the column titles matching Row for the given catalog.
func Header(cat *catalog.Catalog) []string {
	categories := cat.Categories()
	header := make([]string, 0, len(categories)+5)
	header = append(header, "Date", "Time", "Event")
	for _, c := range categories {
		header = append(header, c.Name)
	}
	return append(header, "Total", "Payment Method")
}
