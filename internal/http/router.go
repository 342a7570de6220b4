package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
}

type Handlers struct {
	Cart         *CartHandler
	Checkout     *CheckoutHandler
	Verification *VerificationHandler
}

// NewRouter wires every route behind the shared middleware chain and wraps the
// result in an OpenTelemetry server handler.
func NewRouter(h Handlers, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(NewRateLimiter(cfg.RateLimit, cfg.RateBurst).Middleware)
		}

		r.Group(func(r chi.Router) {
			r.Use(CustomerMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{item_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{item_id}", h.Cart.RemoveItem)
			})
			r.Post("/delivery/quote", h.Checkout.DeliveryQuote)
			r.Post("/checkout/quote", h.Checkout.Quote)
			r.Get("/coupons", h.Checkout.ListCoupons)
			r.Post("/coupons/apply", h.Checkout.ApplyCoupon)
		})

		r.Post("/orders/{order_id}/delivered", h.Verification.Delivered)
		r.Route("/orders/{order_id}/verification", func(r chi.Router) {
			r.Get("/", h.Verification.Status)
			r.Post("/", h.Verification.Open)
			r.Post("/verify", h.Verification.Verify)
			r.Post("/dispute", h.Verification.Dispute)
		})
	})

	return otelhttp.NewHandler(r, "checkout-http")
}
