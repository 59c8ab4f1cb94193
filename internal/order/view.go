package order

import (
	"club-pos/internal/models"
	"club-pos/internal/pricing"
)

type TicketView struct {
	CategoryID  models.CategoryID `json:"category_id"`
	Name        string            `json:"name"`
	UnitPrice   string            `json:"unit_price"`
	Quantity    int               `json:"quantity"`
	MaxQuantity int               `json:"max_quantity"`
	Subtotal    string            `json:"subtotal"`
}

// View is everything a renderer needs, re-derived from State on every call.
type View struct {
	Step          Step          `json:"step"`
	Authenticated bool          `json:"authenticated"`
	Event         *models.Event `json:"event,omitempty"`
	Tickets       []TicketView  `json:"tickets,omitempty"`
	Summary       []TicketView  `json:"summary,omitempty"`
	Total         string        `json:"total"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	CanPay        bool          `json:"can_pay"`
	CanComplete   bool          `json:"can_complete"`
}

func (s *OrderService) View(st *State) View {
	total := s.Total(st)
	step := s.Step(st)

	v := View{
		Step:          step,
		Authenticated: st.Authenticated,
		Total:         pricing.FormatEUR(total),
		PaymentMethod: st.PaymentMethod,
		CanPay:        total.IsPositive(),
		CanComplete:   step == StepReadyToConfirm,
	}
	if !st.HasEvent() {
		return v
	}

	if event, ok := s.Catalog.Event(st.EventID); ok {
		v.Event = &event
	}
	for _, c := range s.Catalog.Categories() {
		v.Tickets = append(v.Tickets, TicketView{
			CategoryID:  c.ID,
			Name:        c.Name,
			UnitPrice:   pricing.FormatEUR(c.Price),
			Quantity:    st.Cart.Quantity(c.ID),
			MaxQuantity: s.Catalog.MaxQuantity(c),
			Subtotal:    pricing.FormatEUR(pricing.LineSubtotal(c, st.Cart)),
		})
	}
	for _, l := range pricing.Lines(s.Catalog, st.Cart) {
		v.Summary = append(v.Summary, TicketView{
			CategoryID:  l.Category.ID,
			Name:        l.Category.Name,
			UnitPrice:   pricing.FormatEUR(l.Category.Price),
			Quantity:    l.Quantity,
			MaxQuantity: s.Catalog.MaxQuantity(l.Category),
			Subtotal:    pricing.FormatEUR(l.Subtotal),
		})
	}
	return v
}
