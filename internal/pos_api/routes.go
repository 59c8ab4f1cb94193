package pos_api

import (
	"net/http"
	"strconv"
	"time"

	"club-pos/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the chi router for the point of sale API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	if h.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	// --- Public Routes ---
	r.Get("/api/health", h.Health)
	r.Post("/api/login", h.Login)
	r.Post("/api/receipt/verify", h.VerifyReceipt)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.Tokens, h.Logger))

		r.Post("/api/logout", h.Logout)
		r.Get("/api/catalog", h.Catalog)
		r.Route("/api/order", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Put("/event", h.SelectEvent)
			r.Put("/tickets/{categoryId}", h.SetQuantity)
			r.Post("/tickets/{categoryId}/increment", h.Increment)
			r.Post("/tickets/{categoryId}/decrement", h.Decrement)
			r.Put("/payment", h.SelectPayment)
			r.Post("/edit", h.EditOrder)
			r.Post("/complete", h.CompleteSale)
			r.Post("/reset", h.ResetAll)
			r.Post("/new", h.StartNewOrder)
		})
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Logger.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
	})
}
