package order

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"club-pos/internal/catalog"
	"club-pos/internal/logger"
	"club-pos/internal/models"
	"club-pos/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerSink persists completed sales. Failures never undo a sale.
type LedgerSink interface {
	Append(ctx context.Context, record models.SaleRecord) error
}

// AttemptLimiter throttles failed logins per client key.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type LedgerStatus string

const (
	LedgerRecorded LedgerStatus = "recorded"
	LedgerFailed   LedgerStatus = "failed"
	LedgerDisabled LedgerStatus = "disabled"
)

// SaleOutcome is what the operator sees after CompleteSale. Warning is set
// when the sale went through but the ledger could not record it.
type SaleOutcome struct {
	Record  models.SaleRecord
	Ledger  LedgerStatus
	Warning error
}

const DefaultLedgerTimeout = 5 * time.Second

type Options struct {
	AccessSecret string
	// RetainEventAfterSale keeps the selected event for the next customer.
	RetainEventAfterSale bool
	LedgerTimeout        time.Duration
}

type OrderService struct {
	Catalog *catalog.Catalog
	Sink    LedgerSink
	Limiter AttemptLimiter
	Logger  *logger.Logger

	opts  Options
	now   func() time.Time
	newID func() string
}

// NewOrderService wires the controller. sink and limiter may be nil.
func NewOrderService(cat *catalog.Catalog, sink LedgerSink, limiter AttemptLimiter, log *logger.Logger, opts Options) *OrderService {
	if opts.LedgerTimeout <= 0 {
		opts.LedgerTimeout = DefaultLedgerTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &OrderService{
		Catalog: cat,
		Sink:    sink,
		Limiter: limiter,
		Logger:  log,
		opts:    opts,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// ---------------- AUTHENTICATION ----------------

func (s *OrderService) Authenticate(ctx context.Context, st *State, password, clientKey string) error {
	if st.Authenticated {
		return nil
	}

	if s.Limiter != nil {
		allowed, err := s.Limiter.Allow(ctx, clientKey)
		if err != nil {
			s.Logger.Warn("AUTH", fmt.Sprintf("Attempt limiter unavailable, allowing login: %v", err))
		} else if !allowed {
			s.Logger.LogSecurity("LOGIN", fmt.Sprintf("Blocked login for %s: too many failed attempts", clientKey))
			return ErrTooManyAttempts
		}
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(s.opts.AccessSecret)) != 1 {
		if s.Limiter != nil {
			if err := s.Limiter.Fail(ctx, clientKey); err != nil {
				s.Logger.Warn("AUTH", fmt.Sprintf("Failed to count login attempt: %v", err))
			}
		}
		s.Logger.LogSecurity("LOGIN", fmt.Sprintf("Incorrect password from %s", clientKey))
		return ErrInvalidPassword
	}

	if s.Limiter != nil {
		if err := s.Limiter.Reset(ctx, clientKey); err != nil {
			s.Logger.Warn("AUTH", fmt.Sprintf("Failed to reset login attempts: %v", err))
		}
	}
	st.Authenticated = true
	s.Logger.Info("AUTH", fmt.Sprintf("Access granted to %s", clientKey))
	return nil
}

// ---------------- EVENT ----------------

// SelectEvent switches the session to another event, discarding the order in
// progress. Re-selecting the current event keeps the cart.
func (s *OrderService) SelectEvent(st *State, id models.EventID) error {
	if !st.Authenticated {
		return ErrNotAuthenticated
	}
	if _, ok := s.Catalog.Event(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}
	if st.EventID == id {
		return nil
	}

	st.EventID = id
	st.clearOrder()
	s.Logger.Debug("ORDER", fmt.Sprintf("Event selected: %s", id))
	return nil
}

// ---------------- TICKETS ----------------

func (s *OrderService) editableCategory(st *State, id models.CategoryID) (models.TicketCategory, error) {
	if !st.Authenticated {
		return models.TicketCategory{}, ErrNotAuthenticated
	}
	if !st.HasEvent() {
		return models.TicketCategory{}, ErrNoEventSelected
	}
	category, ok := s.Catalog.Category(id)
	if !ok {
		return models.TicketCategory{}, fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	return category, nil
}

// SetQuantity sets the quantity of a category, clamped to [0, cap].
func (s *OrderService) SetQuantity(st *State, id models.CategoryID, qty int) error {
	category, err := s.editableCategory(st, id)
	if err != nil {
		return err
	}
	s.setQuantity(st, category, qty)
	return nil
}

func (s *OrderService) Increment(st *State, id models.CategoryID) error {
	category, err := s.editableCategory(st, id)
	if err != nil {
		return err
	}
	s.setQuantity(st, category, st.Cart.Quantity(id)+1)
	return nil
}

// Decrement lowers the quantity by one; at zero it does nothing.
func (s *OrderService) Decrement(st *State, id models.CategoryID) error {
	category, err := s.editableCategory(st, id)
	if err != nil {
		return err
	}
	q := st.Cart.Quantity(id)
	if q == 0 {
		return nil
	}
	s.setQuantity(st, category, q-1)
	return nil
}

func (s *OrderService) setQuantity(st *State, category models.TicketCategory, qty int) {
	if limit := s.Catalog.MaxQuantity(category); qty > limit {
		qty = limit
	}
	if st.Cart == nil {
		st.Cart = models.Cart{}
	}
	if qty <= 0 {
		delete(st.Cart, category.ID)
	} else {
		st.Cart[category.ID] = qty
	}

	// A payment method only makes sense for a non-empty order.
	if st.HasPayment() && !s.Total(st).IsPositive() {
		st.PaymentMethod = ""
	}
}

// ---------------- PAYMENT ----------------

func (s *OrderService) SelectPayment(st *State, label string) error {
	if !st.Authenticated {
		return ErrNotAuthenticated
	}
	if !s.Total(st).IsPositive() {
		return ErrEmptyOrder
	}
	if _, ok := s.Catalog.PaymentMethod(label); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPaymentMethod, label)
	}
	st.PaymentMethod = label
	return nil
}

// EditOrder drops the chosen payment method and keeps the cart.
func (s *OrderService) EditOrder(st *State) error {
	if !st.HasPayment() {
		return ErrNoPaymentMethod
	}
	st.PaymentMethod = ""
	return nil
}

// ---------------- SALE ----------------

func (s *OrderService) buildRecord(st *State, event models.Event, total decimal.Decimal) models.SaleRecord {
	categories := s.Catalog.Categories()
	lines := make([]models.SaleLine, 0, len(categories))
	for _, c := range categories {
		lines = append(lines, models.SaleLine{
			CategoryID:   c.ID,
			CategoryName: c.Name,
			UnitPrice:    c.Price,
			Quantity:     st.Cart.Quantity(c.ID),
		})
	}
	return models.SaleRecord{
		ID:            s.newID(),
		SoldAt:        s.now(),
		EventID:       event.ID,
		EventName:     event.Name,
		Lines:         lines,
		Total:         total,
		PaymentMethod: st.PaymentMethod,
	}
}

// CompleteSale closes the current order. The session is reset before the
// ledger is called, so a slow or failing ledger only yields a warning.
func (s *OrderService) CompleteSale(ctx context.Context, st *State) (*SaleOutcome, error) {
	total := s.Total(st)
	switch {
	case !st.Authenticated:
		return nil, ErrNotAuthenticated
	case !st.HasEvent():
		return nil, fmt.Errorf("%w: %v", ErrSaleNotReady, ErrNoEventSelected)
	case !total.IsPositive():
		return nil, fmt.Errorf("%w: %v", ErrSaleNotReady, ErrEmptyOrder)
	case !st.HasPayment():
		return nil, fmt.Errorf("%w: %v", ErrSaleNotReady, ErrNoPaymentMethod)
	}
	event, ok := s.Catalog.Event(st.EventID)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrSaleNotReady, ErrUnknownEvent)
	}

	record := s.buildRecord(st, event, total)

	st.clearOrder()
	if !s.opts.RetainEventAfterSale {
		st.EventID = ""
	}
	s.Logger.LogSale("COMPLETE", record.ID, fmt.Sprintf("%s: %d tickets, %s via %s",
		record.EventName, record.TicketCount(), pricing.FormatEUR(record.Total), record.PaymentMethod))

	outcome := &SaleOutcome{Record: record, Ledger: LedgerDisabled}
	if s.Sink == nil {
		return outcome, nil
	}

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.LedgerTimeout)
	defer cancel()

	if err := s.Sink.Append(sinkCtx, record); err != nil {
		outcome.Ledger = LedgerFailed
		outcome.Warning = fmt.Errorf("sale %s completed but not recorded: %w", record.ID, err)
		s.Logger.Warn("LEDGER", outcome.Warning.Error())
		return outcome, nil
	}

	outcome.Ledger = LedgerRecorded
	s.Logger.LogLedger("APPEND", fmt.Sprintf("Sale %s recorded", record.ID))
	return outcome, nil
}

// ---------------- RESET ----------------

// ResetAll empties the cart and payment method; the event stays selected.
func (s *OrderService) ResetAll(st *State) {
	st.clearOrder()
}

// StartNewOrder also forgets the selected event.
func (s *OrderService) StartNewOrder(st *State) {
	st.clearOrder()
	st.EventID = ""
}

func (s *OrderService) Logout(st *State) {
	*st = *NewState()
}

// ---------------- DERIVED ----------------

func (s *OrderService) Total(st *State) decimal.Decimal {
	return pricing.Total(s.Catalog, st.Cart)
}

func (s *OrderService) Step(st *State) Step {
	switch {
	case !st.Authenticated:
		return StepUnauthenticated
	case !st.HasEvent():
		return StepEventSelection
	case !s.Total(st).IsPositive():
		return StepTicketSelection
	case !st.HasPayment():
		return StepPaymentSelection
	default:
		return StepReadyToConfirm
	}
}
