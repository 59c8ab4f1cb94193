package order

import "club-pos/internal/models"

// Step is the workflow position derived from a State; it is never stored.
type Step string

const (
	StepUnauthenticated  Step = "unauthenticated"
	StepEventSelection   Step = "event_selection"
	StepTicketSelection  Step = "ticket_selection"
	StepPaymentSelection Step = "payment_selection"
	StepReadyToConfirm   Step = "ready_to_confirm"
)

// State is the mutable record of one operator session. Only OrderService
// mutates it; an empty EventID or PaymentMethod means "not chosen yet".
type State struct {
	Authenticated bool
	EventID       models.EventID
	Cart          models.Cart
	PaymentMethod string
}

func NewState() *State {
	return &State{Cart: models.Cart{}}
}

func (s *State) HasEvent() bool {
	return s.EventID != ""
}

func (s *State) HasPayment() bool {
	return s.PaymentMethod != ""
}

// Snapshot returns a deep copy, safe to hand to a renderer.
func (s *State) Snapshot() State {
	out := *s
	out.Cart = s.Cart.Clone()
	return out
}

func (s *State) clearOrder() {
	s.Cart = models.Cart{}
	s.PaymentMethod = ""
}
