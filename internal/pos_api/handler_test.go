package pos_api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"club-pos/internal/auth"
	"club-pos/internal/catalog"
	"club-pos/internal/models"
	"club-pos/internal/order"
	"club-pos/internal/receipt"
	"club-pos/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "vereinsheim"

type recordingSink struct {
	mu      sync.Mutex
	records []models.SaleRecord
	err     error
}

func (s *recordingSink) Append(_ context.Context, record models.SaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	sink    *recordingSink
}

func newTestServer(t *testing.T, retainEvent bool, limiter order.AttemptLimiter) *testServer {
	return newTestServerWith(t, retainEvent, limiter, false)
}

func newTestServerWith(t *testing.T, retainEvent bool, limiter order.AttemptLimiter, trustProxy bool) *testServer {
	t.Helper()
	sink := &recordingSink{}
	svc := order.NewOrderService(catalog.Default(catalog.DefaultMaxQuantity), sink, limiter, nil, order.Options{
		AccessSecret:         testPassword,
		RetainEventAfterSale: retainEvent,
	})
	tokens, err := auth.NewTokenIssuer([]byte("test-signing-key"), time.Hour)
	require.NoError(t, err)
	receipts, err := receipt.NewGenerator("receipt-secret")
	require.NoError(t, err)

	h := NewHandler(svc, session.NewStore(time.Hour), tokens, receipts, nil)
	h.TrustProxyHeaders = trustProxy
	return &testServer{t: t, handler: h.Router(), sink: sink}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:51234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (s *testServer) login() string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/login", "", map[string]string{"password": testPassword})
	require.Equal(s.t, http.StatusOK, code, env.Error)

	var resp loginResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &resp))
	require.NotEmpty(s.t, resp.Token)
	assert.Equal(s.t, order.StepEventSelection, resp.Order.Step)
	return resp.Token
}

func decodeView(t *testing.T, env envelope) order.View {
	t.Helper()
	var v order.View
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, true, nil)
	code, env := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestFullSaleFlow(t *testing.T) {
	s := newTestServer(t, true, nil)
	token := s.login()

	code, env := s.do(http.MethodPut, "/api/order/event", token, map[string]string{"event_id": "Saturday-Event"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, order.StepTicketSelection, decodeView(t, env).Step)

	code, env = s.do(http.MethodPut, "/api/order/tickets/kids", token, map[string]int{"quantity": 2})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = s.do(http.MethodPost, "/api/order/tickets/adults/increment", token, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	view := decodeView(t, env)
	assert.Equal(t, "€34.00", view.Total)
	assert.True(t, view.CanPay)
	require.Len(t, view.Summary, 2)

	code, env = s.do(http.MethodPut, "/api/order/payment", token, map[string]string{"payment_method": "Cash"})
	require.Equal(t, http.StatusOK, code, env.Error)
	view = decodeView(t, env)
	assert.Equal(t, order.StepReadyToConfirm, view.Step)
	assert.True(t, view.CanComplete)

	code, env = s.do(http.MethodPost, "/api/order/complete", token, nil)
	require.Equal(t, http.StatusCreated, code, env.Error)

	var sale saleResponse
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	assert.Equal(t, order.LedgerRecorded, sale.Ledger)
	assert.Empty(t, sale.Warning)
	assert.Equal(t, "Saturday Main Event", sale.Sale.Event)
	assert.Equal(t, "€34.00", sale.Sale.Total)
	assert.Equal(t, 3, sale.Sale.Tickets)
	assert.Equal(t, "Cash", sale.Sale.PaymentMethod)
	require.Len(t, sale.Sale.Lines, 2)
	require.NotNil(t, sale.Receipt)
	assert.NotEmpty(t, sale.Receipt.QRCode)

	// the event stays selected for the next customer
	assert.Equal(t, order.StepTicketSelection, sale.Order.Step)
	require.NotNil(t, sale.Order.Event)
	assert.Equal(t, models.EventID("Saturday-Event"), sale.Order.Event.ID)
	assert.Equal(t, "€0.00", sale.Order.Total)
	assert.Empty(t, sale.Order.PaymentMethod)

	require.Len(t, s.sink.records, 1)
	assert.Equal(t, sale.Sale.ID, s.sink.records[0].ID)

	code, env = s.do(http.MethodPost, "/api/receipt/verify", "", map[string]string{"token": sale.Receipt.Token})
	require.Equal(t, http.StatusOK, code, env.Error)
	var rec receipt.Receipt
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, sale.Sale.ID, rec.SaleID)
	assert.Equal(t, "€34.00", rec.Total)
}

func TestSaleWithoutRetainedEvent(t *testing.T) {
	s := newTestServer(t, false, nil)
	token := s.login()

	s.do(http.MethodPut, "/api/order/event", token, map[string]string{"event_id": "Friday-Day"})
	s.do(http.MethodPut, "/api/order/tickets/seniors", token, map[string]int{"quantity": 1})
	s.do(http.MethodPut, "/api/order/payment", token, map[string]string{"payment_method": "Voucher"})

	code, env := s.do(http.MethodPost, "/api/order/complete", token, nil)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var sale saleResponse
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	assert.Equal(t, order.StepEventSelection, sale.Order.Step)
	assert.Nil(t, sale.Order.Event)
}

func TestLedgerFailureStillCompletes(t *testing.T) {
	s := newTestServer(t, true, nil)
	s.sink.err = errors.New("sheet unavailable")
	token := s.login()

	s.do(http.MethodPut, "/api/order/event", token, map[string]string{"event_id": "Friday-Day"})
	s.do(http.MethodPut, "/api/order/tickets/kids", token, map[string]int{"quantity": 1})
	s.do(http.MethodPut, "/api/order/payment", token, map[string]string{"payment_method": "Cash"})

	code, env := s.do(http.MethodPost, "/api/order/complete", token, nil)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var sale saleResponse
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	assert.Equal(t, order.LedgerFailed, sale.Ledger)
	assert.Contains(t, sale.Warning, "sheet unavailable")
	assert.Equal(t, "€0.00", sale.Order.Total)
}

func TestRejectedActions(t *testing.T) {
	s := newTestServer(t, true, nil)
	token := s.login()

	code, env := s.do(http.MethodPut, "/api/order/tickets/kids", token, map[string]int{"quantity": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "no_event_selected", env.Message)

	code, env = s.do(http.MethodPut, "/api/order/event", token, map[string]string{"event_id": "Monday"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "unknown_event", env.Message)

	s.do(http.MethodPut, "/api/order/event", token, map[string]string{"event_id": "Friday-Day"})

	code, env = s.do(http.MethodPut, "/api/order/payment", token, map[string]string{"payment_method": "Cash"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "empty_order", env.Message)

	code, env = s.do(http.MethodPost, "/api/order/complete", token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "sale_not_ready", env.Message)
	assert.Empty(t, s.sink.records)

	code, _ = s.do(http.MethodPut, "/api/order/tickets/kids", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code, "quantity is required")

	code, env = s.do(http.MethodPut, "/api/order/tickets/kids", token, map[string]int{"quantity": 500})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, catalog.DefaultMaxQuantity, decodeView(t, env).Summary[0].Quantity)
}

func TestEditResetAndNewOrder(t *testing.T) {
	s := newTestServer(t, true, nil)
	token := s.login()

	s.do(http.MethodPut, "/api/order/event", token, map[string]string{"event_id": "Sunday-Family"})
	s.do(http.MethodPut, "/api/order/tickets/adults", token, map[string]int{"quantity": 2})
	s.do(http.MethodPut, "/api/order/payment", token, map[string]string{"payment_method": "Cash"})

	code, env := s.do(http.MethodPost, "/api/order/edit", token, nil)
	require.Equal(t, http.StatusOK, code)
	view := decodeView(t, env)
	assert.Empty(t, view.PaymentMethod)
	assert.Equal(t, "€36.00", view.Total)

	code, env = s.do(http.MethodPost, "/api/order/reset", token, nil)
	require.Equal(t, http.StatusOK, code)
	view = decodeView(t, env)
	assert.Equal(t, "€0.00", view.Total)
	require.NotNil(t, view.Event)

	code, env = s.do(http.MethodPost, "/api/order/new", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, decodeView(t, env).Event)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, true, nil)

	code, env := s.do(http.MethodPost, "/api/login", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_password", env.Message)

	code, _ = s.do(http.MethodGet, "/api/order", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	token := s.login()
	code, env = s.do(http.MethodGet, "/api/catalog", token, nil)
	require.Equal(t, http.StatusOK, code)
	var cat catalogResponse
	require.NoError(t, json.Unmarshal(env.Data, &cat))
	assert.Len(t, cat.Events, 4)
	assert.Len(t, cat.PaymentMethods, 5)
	assert.Equal(t, "Date", cat.LedgerColumns[0])

	code, _ = s.do(http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, "/api/order", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code, "session is gone after logout")
	assert.Equal(t, "not_authenticated", env.Message)
}

func TestLoginAttemptLimit(t *testing.T) {
	s := newTestServer(t, true, auth.NewMemoryLimiter(2, time.Minute))

	for i := 0; i < 2; i++ {
		code, _ := s.do(http.MethodPost, "/api/login", "", map[string]string{"password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, code)
	}
	code, env := s.do(http.MethodPost, "/api/login", "", map[string]string{"password": testPassword})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "too_many_attempts", env.Message)
}

func (s *testServer) loginFrom(password, forwardedFor string) int {
	s.t.Helper()
	body, err := json.Marshal(map[string]string{"password": password})
	require.NoError(s.t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:51234"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestLoginAttemptLimitIgnoresForwardedHeaders(t *testing.T) {
	s := newTestServer(t, true, auth.NewMemoryLimiter(2, time.Minute))

	assert.Equal(t, http.StatusUnauthorized, s.loginFrom("wrong", "203.0.113.1"))
	assert.Equal(t, http.StatusUnauthorized, s.loginFrom("wrong", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, s.loginFrom(testPassword, "203.0.113.3"),
		"rotating X-Forwarded-For must not reset the attempt count")
}

func TestLoginAttemptLimitBehindTrustedProxy(t *testing.T) {
	s := newTestServerWith(t, true, auth.NewMemoryLimiter(2, time.Minute), true)

	assert.Equal(t, http.StatusUnauthorized, s.loginFrom("wrong", "203.0.113.1"))
	assert.Equal(t, http.StatusUnauthorized, s.loginFrom("wrong", "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, s.loginFrom(testPassword, "203.0.113.1"))
	assert.Equal(t, http.StatusOK, s.loginFrom(testPassword, "203.0.113.2"),
		"clients behind the proxy are counted separately")
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestServer(t, true, nil)
	a := s.login()
	b := s.login()

	s.do(http.MethodPut, "/api/order/event", a, map[string]string{"event_id": "Friday-Day"})

	_, env := s.do(http.MethodGet, "/api/order", b, nil)
	assert.Nil(t, decodeView(t, env).Event)
}
