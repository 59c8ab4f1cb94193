package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"club-pos/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultMaxQuantity is the per-category cap used when neither the category
// nor the configuration sets one.
const DefaultMaxQuantity = 50

var ErrEmptyCatalog = errors.New("catalog must define at least one event, ticket category and payment method")

// Catalog is the validated, read-only reference data of one deployment.
type Catalog struct {
	events     []models.Event
	categories []models.TicketCategory
	payments   []models.PaymentMethod
	defaultMax int

	eventIndex    map[models.EventID]int
	categoryIndex map[models.CategoryID]int
	paymentIndex  map[string]int
}

// New validates the given lists and builds a Catalog. A defaultMax of 0 or less
// selects DefaultMaxQuantity.
func New(events []models.Event, categories []models.TicketCategory, payments []models.PaymentMethod, defaultMax int) (*Catalog, error) {
	if len(events) == 0 || len(categories) == 0 || len(payments) == 0 {
		return nil, ErrEmptyCatalog
	}
	if defaultMax <= 0 {
		defaultMax = DefaultMaxQuantity
	}

	c := &Catalog{
		events:        append([]models.Event(nil), events...),
		categories:    append([]models.TicketCategory(nil), categories...),
		payments:      append([]models.PaymentMethod(nil), payments...),
		defaultMax:    defaultMax,
		eventIndex:    make(map[models.EventID]int, len(events)),
		categoryIndex: make(map[models.CategoryID]int, len(categories)),
		paymentIndex:  make(map[string]int, len(payments)),
	}

	for i, e := range c.events {
		if strings.TrimSpace(string(e.ID)) == "" {
			return nil, fmt.Errorf("event #%d: empty id", i+1)
		}
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("event %q: empty name", e.ID)
		}
		if _, dup := c.eventIndex[e.ID]; dup {
			return nil, fmt.Errorf("event %q: duplicate id", e.ID)
		}
		c.eventIndex[e.ID] = i
	}

	for i, tc := range c.categories {
		if strings.TrimSpace(string(tc.ID)) == "" {
			return nil, fmt.Errorf("ticket category #%d: empty id", i+1)
		}
		if strings.TrimSpace(tc.Name) == "" {
			return nil, fmt.Errorf("ticket category %q: empty name", tc.ID)
		}
		if tc.Price.IsNegative() {
			return nil, fmt.Errorf("ticket category %q: negative price %s", tc.ID, tc.Price)
		}
		if tc.MaxQuantity < 0 {
			return nil, fmt.Errorf("ticket category %q: negative max quantity", tc.ID)
		}
		if _, dup := c.categoryIndex[tc.ID]; dup {
			return nil, fmt.Errorf("ticket category %q: duplicate id", tc.ID)
		}
		c.categoryIndex[tc.ID] = i
	}

	for i, p := range c.payments {
		if strings.TrimSpace(p.Label) == "" {
			return nil, fmt.Errorf("payment method #%d: empty label", i+1)
		}
		if _, dup := c.paymentIndex[p.Label]; dup {
			return nil, fmt.Errorf("payment method %q: duplicate label", p.Label)
		}
		c.paymentIndex[p.Label] = i
	}

	return c, nil
}

type fileCategory struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	MaxQuantity int             `json:"max_quantity"`
}

type fileCatalog struct {
	Events         []models.Event `json:"events"`
	Categories     []fileCategory `json:"categories"`
	PaymentMethods []string       `json:"payment_methods"`
}

// Load reads a JSON catalog file:
//
//	{"events": [{"id": "sat", "name": "Samstag"}],
//	 "categories": [{"id": "kind", "name": "Kind", "price": "6.00"}],
//	 "payment_methods": ["Bar", "Karte"]}
func Load(path string, defaultMax int) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var fc fileCatalog
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	categories := make([]models.TicketCategory, 0, len(fc.Categories))
	for _, c := range fc.Categories {
		categories = append(categories, models.TicketCategory{
			ID:          models.CategoryID(c.ID),
			Name:        c.Name,
			Price:       c.Price,
			MaxQuantity: c.MaxQuantity,
		})
	}
	payments := make([]models.PaymentMethod, 0, len(fc.PaymentMethods))
	for _, label := range fc.PaymentMethods {
		payments = append(payments, models.PaymentMethod{Label: label})
	}

	cat, err := New(fc.Events, categories, payments, defaultMax)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return cat, nil
}

// Default returns the club's built-in catalog.
func Default(defaultMax int) *Catalog {
	cat, err := New(
		[]models.Event{
			{ID: "Friday-Day", Name: "Friday Day Event"},
			{ID: "Saturday-Event", Name: "Saturday Main Event"},
			{ID: "Sunday-Family", Name: "Sunday Family Day"},
			{ID: "VIP-Experience", Name: "VIP Experience Package"},
		},
		[]models.TicketCategory{
			{ID: "kids", Name: "Kids (Under 12)", Price: decimal.RequireFromString("8.00")},
			{ID: "young_adults", Name: "Young Adults (12-17)", Price: decimal.RequireFromString("12.00")},
			{ID: "adults", Name: "Adults (18+)", Price: decimal.RequireFromString("18.00")},
			{ID: "seniors", Name: "Seniors (65+)", Price: decimal.RequireFromString("15.00")},
		},
		[]models.PaymentMethod{
			{Label: "Credit Card"},
			{Label: "Cash"},
			{Label: "Mobile Payment"},
			{Label: "Bank Transfer"},
			{Label: "Voucher"},
		},
		defaultMax,
	)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return cat
}

func (c *Catalog) Event(id models.EventID) (models.Event, bool) {
	i, ok := c.eventIndex[id]
	if !ok {
		return models.Event{}, false
	}
	return c.events[i], true
}

func (c *Catalog) Category(id models.CategoryID) (models.TicketCategory, bool) {
	i, ok := c.categoryIndex[id]
	if !ok {
		return models.TicketCategory{}, false
	}
	return c.categories[i], true
}

func (c *Catalog) PaymentMethod(label string) (models.PaymentMethod, bool) {
	i, ok := c.paymentIndex[label]
	if !ok {
		return models.PaymentMethod{}, false
	}
	return c.payments[i], true
}

// Events returns the events in presentation order.
func (c *Catalog) Events() []models.Event {
	return append([]models.Event(nil), c.events...)
}

// Categories returns the ticket categories in presentation (and ledger column) order.
func (c *Catalog) Categories() []models.TicketCategory {
	return append([]models.TicketCategory(nil), c.categories...)
}

func (c *Catalog) PaymentMethods() []models.PaymentMethod {
	return append([]models.PaymentMethod(nil), c.payments...)
}

// MaxQuantity resolves the quantity cap of a category.
func (c *Catalog) MaxQuantity(tc models.TicketCategory) int {
	if tc.MaxQuantity > 0 {
		return tc.MaxQuantity
	}
	return c.defaultMax
}
