package order

import (
	"errors"
	"net/http"
)

// Rejected actions leave the state untouched and return one of these.
var (
	ErrInvalidPassword      = errors.New("incorrect password")
	ErrTooManyAttempts      = errors.New("too many failed login attempts, try again later")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrUnknownEvent         = errors.New("unknown event")
	ErrNoEventSelected      = errors.New("no event selected")
	ErrUnknownCategory      = errors.New("unknown ticket category")
	ErrEmptyOrder           = errors.New("no tickets selected")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrNoPaymentMethod      = errors.New("no payment method selected")
	ErrSaleNotReady         = errors.New("sale is not ready to be completed")
)

// Kind is a stable machine-readable name for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPassword):
		return "invalid_password"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown_event"
	case errors.Is(err, ErrNoEventSelected):
		return "no_event_selected"
	case errors.Is(err, ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, ErrEmptyOrder):
		return "empty_order"
	case errors.Is(err, ErrUnknownPaymentMethod):
		return "unknown_payment_method"
	case errors.Is(err, ErrNoPaymentMethod):
		return "no_payment_method"
	case errors.Is(err, ErrSaleNotReady):
		return "sale_not_ready"
	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrUnknownCategory), errors.Is(err, ErrUnknownPaymentMethod):
		return http.StatusNotFound
	case errors.Is(err, ErrNoEventSelected), errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrNoPaymentMethod), errors.Is(err, ErrSaleNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
