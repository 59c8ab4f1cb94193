package pos_api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"club-pos/internal/auth"
	"club-pos/internal/ledger"
	"club-pos/internal/logger"
	"club-pos/internal/models"
	"club-pos/internal/order"
	"club-pos/internal/pricing"
	"club-pos/internal/receipt"
	"club-pos/internal/session"
	"club-pos/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	OrderService *order.OrderService
	Sessions     *session.Store
	Tokens       *auth.TokenIssuer
	Receipts     *receipt.Generator // nil disables receipts
	Logger       *logger.Logger

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

func NewHandler(svc *order.OrderService, sessions *session.Store, tokens *auth.TokenIssuer, receipts *receipt.Generator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		OrderService: svc,
		Sessions:     sessions,
		Tokens:       tokens,
		Receipts:     receipts,
		Logger:       log,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Order     order.View `json:"order"`
}

type eventRequest struct {
	EventID models.EventID `json:"event_id"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

type paymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type receiptRequest struct {
	Token string `json:"token"`
}

type categoryView struct {
	ID          models.CategoryID `json:"id"`
	Name        string            `json:"name"`
	Price       string            `json:"price"`
	MaxQuantity int               `json:"max_quantity"`
}

type catalogResponse struct {
	Events         []models.Event `json:"events"`
	Categories     []categoryView `json:"categories"`
	PaymentMethods []string       `json:"payment_methods"`
	LedgerColumns  []string       `json:"ledger_columns"`
}

type saleLineView struct {
	CategoryID models.CategoryID `json:"category_id"`
	Name       string            `json:"name"`
	UnitPrice  string            `json:"unit_price"`
	Quantity   int               `json:"quantity"`
	Subtotal   string            `json:"subtotal"`
}

type saleView struct {
	ID            string         `json:"id"`
	SoldAt        time.Time      `json:"sold_at"`
	Event         string         `json:"event"`
	Lines         []saleLineView `json:"lines"`
	Tickets       int            `json:"tickets"`
	Total         string         `json:"total"`
	PaymentMethod string         `json:"payment_method"`
}

type receiptView struct {
	Token  string `json:"token"`
	QRCode string `json:"qr_code_png"`
}

type saleResponse struct {
	Sale    saleView           `json:"sale"`
	Ledger  order.LedgerStatus `json:"ledger"`
	Warning string             `json:"warning,omitempty"`
	Receipt *receiptView       `json:"receipt,omitempty"`
	Order   order.View         `json:"order"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "ok", map[string]int{"sessions": h.Sessions.Len()})
}

// ---------------- SESSION ----------------

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	st := order.NewState()
	if err := h.OrderService.Authenticate(r.Context(), st, req.Password, clientKey(r)); err != nil {
		h.writeOrderError(w, err)
		return
	}

	sess := h.Sessions.Create(st)
	token, expiresAt, err := h.Tokens.Issue(sess.ID)
	if err != nil {
		h.Sessions.Delete(sess.ID)
		h.Logger.Error("AUTH", fmt.Sprintf("Failed to issue session token: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Could not start session", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Access granted", loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Order:     h.OrderService.View(st),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id := auth.SessionID(r.Context())
	if sess, ok := h.Sessions.Get(id); ok {
		_ = sess.Do(func(st *order.State) error {
			h.OrderService.Logout(st)
			return nil
		})
	}
	h.Sessions.Delete(id)
	utils.WriteSuccess(w, http.StatusOK, "Logged out", nil)
}

// ---------------- CATALOG ----------------

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	cat := h.OrderService.Catalog
	resp := catalogResponse{
		Events:        cat.Events(),
		LedgerColumns: ledger.Header(cat),
	}
	for _, c := range cat.Categories() {
		resp.Categories = append(resp.Categories, categoryView{
			ID:          c.ID,
			Name:        c.Name,
			Price:       pricing.FormatEUR(c.Price),
			MaxQuantity: cat.MaxQuantity(c),
		})
	}
	for _, p := range cat.PaymentMethods() {
		resp.PaymentMethods = append(resp.PaymentMethods, p.Label)
	}
	utils.WriteSuccess(w, http.StatusOK, "Catalog", resp)
}

// ---------------- ORDER ----------------

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Current order", func(*order.State) error { return nil })
}

func (h *Handler) SelectEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.act(w, r, "Event selected", func(st *order.State) error {
		return h.OrderService.SelectEvent(st, req.EventID)
	})
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Quantity == nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", errors.New("quantity is required"))
		return
	}
	id := models.CategoryID(chi.URLParam(r, "categoryId"))
	h.act(w, r, "Quantity updated", func(st *order.State) error {
		return h.OrderService.SetQuantity(st, id, *req.Quantity)
	})
}

func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	id := models.CategoryID(chi.URLParam(r, "categoryId"))
	h.act(w, r, "Quantity updated", func(st *order.State) error {
		return h.OrderService.Increment(st, id)
	})
}

func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	id := models.CategoryID(chi.URLParam(r, "categoryId"))
	h.act(w, r, "Quantity updated", func(st *order.State) error {
		return h.OrderService.Decrement(st, id)
	})
}

func (h *Handler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.act(w, r, "Payment method selected", func(st *order.State) error {
		return h.OrderService.SelectPayment(st, req.PaymentMethod)
	})
}

func (h *Handler) EditOrder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Order reopened", h.OrderService.EditOrder)
}

func (h *Handler) ResetAll(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Order reset", func(st *order.State) error {
		h.OrderService.ResetAll(st)
		return nil
	})
}

func (h *Handler) StartNewOrder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "New order started", func(st *order.State) error {
		h.OrderService.StartNewOrder(st)
		return nil
	})
}

// ---------------- SALE ----------------

func (h *Handler) CompleteSale(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var resp saleResponse
	err := sess.Do(func(st *order.State) error {
		outcome, err := h.OrderService.CompleteSale(r.Context(), st)
		if err != nil {
			return err
		}
		resp.Sale = newSaleView(outcome.Record)
		resp.Ledger = outcome.Ledger
		if outcome.Warning != nil {
			resp.Warning = outcome.Warning.Error()
		}
		resp.Receipt = h.receiptFor(outcome.Record)
		resp.Order = h.OrderService.View(st)
		return nil
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	message := "Sale completed"
	if resp.Warning != "" {
		message = "Sale completed but not recorded in the ledger"
	}
	utils.WriteSuccess(w, http.StatusCreated, message, resp)
}

func (h *Handler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	if h.Receipts == nil {
		utils.WriteError(w, http.StatusNotFound, "Receipts are disabled", nil)
		return
	}
	var req receiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := h.Receipts.Open(req.Token)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid receipt", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Receipt valid", rec)
}

func (h *Handler) receiptFor(record models.SaleRecord) *receiptView {
	if h.Receipts == nil {
		return nil
	}
	token, png, err := h.Receipts.QR(record)
	if err != nil {
		h.Logger.Warn("RECEIPT", fmt.Sprintf("Failed to render receipt for sale %s: %v", record.ID, err))
		return nil
	}
	return &receiptView{Token: token, QRCode: base64.StdEncoding.EncodeToString(png)}
}

func newSaleView(record models.SaleRecord) saleView {
	v := saleView{
		ID:            record.ID,
		SoldAt:        record.SoldAt,
		Event:         record.EventName,
		Tickets:       record.TicketCount(),
		Total:         pricing.FormatEUR(record.Total),
		PaymentMethod: record.PaymentMethod,
	}
	for _, l := range record.Lines {
		if l.Quantity == 0 {
			continue
		}
		v.Lines = append(v.Lines, saleLineView{
			CategoryID: l.CategoryID,
			Name:       l.CategoryName,
			UnitPrice:  pricing.FormatEUR(l.UnitPrice),
			Quantity:   l.Quantity,
			Subtotal:   pricing.FormatEUR(l.Subtotal()),
		})
	}
	return v
}

// ---------------- HELPERS ----------------

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := h.Sessions.Get(auth.SessionID(r.Context()))
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, order.Kind(order.ErrNotAuthenticated), order.ErrNotAuthenticated)
		return nil, false
	}
	return sess, true
}

// act runs fn on the caller's session and answers with the resulting view.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, message string, fn func(st *order.State) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var view order.View
	err := sess.Do(func(st *order.State) error {
		if err := fn(st); err != nil {
			return err
		}
		view = h.OrderService.View(st)
		return nil
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, message, view)
}

func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	status := order.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", err.Error())
	}
	utils.WriteError(w, status, order.Kind(err), err)
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
