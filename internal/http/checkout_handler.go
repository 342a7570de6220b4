package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/coupon"
	"github.com/Ugender2729/F1-Mart-sub001/internal/delivery"
	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/service"
)

type CheckoutAPI interface {
	DeliveryQuote(ctx context.Context, key string, loc delivery.Locator) (*service.CartView, domain.DeliveryQuote, error)
	Quote(ctx context.Context, req service.QuoteRequest) (*service.CheckoutQuote, error)
	Coupons(ctx context.Context, key string, cust coupon.Customer) (*service.CouponList, error)
	ApplyCoupon(ctx context.Context, key, code string, cust coupon.Customer) (*domain.CouponApplication, error)
}

type CheckoutHandler struct {
	checkout CheckoutAPI
	timeout  time.Duration
	logger   *slog.Logger
}

func NewCheckoutHandler(checkout CheckoutAPI, timeout time.Duration, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{checkout: checkout, timeout: timeout, logger: logger}
}

// LocationDTO carries either a device position or the failure the device reported.
type LocationDTO struct {
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	LocationError string   `json:"location_error,omitempty"`
}

var errInvalidLocation = errors.New("latitude and longitude are required unless location_error is set")

func (l LocationDTO) locator() (delivery.Locator, error) {
	if l.LocationError != "" {
		failure, ok := delivery.ParseFailure(l.LocationError)
		if !ok {
			return nil, errors.New("unknown location_error " + l.LocationError)
		}
		return delivery.StaticLocator{Failure: failure}, nil
	}
	if l.Latitude == nil || l.Longitude == nil {
		return nil, errInvalidLocation
	}
	p := domain.GeoPoint{Latitude: *l.Latitude, Longitude: *l.Longitude}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return delivery.StaticLocator{Point: p}, nil
}

type DeliveryQuoteResponseDTO struct {
	Cart     *service.CartView    `json:"cart"`
	Delivery domain.DeliveryQuote `json:"delivery"`
}

type CheckoutQuoteRequestDTO struct {
	LocationDTO
	CouponCode string `json:"coupon_code,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type ApplyCouponRequestDTO struct {
	Code  string `json:"code"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// POST /api/v1/delivery/quote
func (h *CheckoutHandler) DeliveryQuote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LocationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	loc, err := req.locator()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_location", err.Error())
		return
	}

	view, dq, err := h.checkout.DeliveryQuote(ctx, getCustomerKey(r.Context()), loc)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, DeliveryQuoteResponseDTO{Cart: view, Delivery: dq})
}

// POST /api/v1/checkout/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutQuoteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	loc, err := req.locator()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_location", err.Error())
		return
	}

	q, err := h.checkout.Quote(ctx, service.QuoteRequest{
		CustomerKey: getCustomerKey(r.Context()),
		Customer:    coupon.Customer{Email: req.Email, Phone: req.Phone},
		Location:    loc,
		CouponCode:  req.CouponCode,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// GET /api/v1/coupons?email=&phone=
func (h *CheckoutHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	cust := coupon.Customer{Email: q.Get("email"), Phone: q.Get("phone")}
	list, err := h.checkout.Coupons(ctx, getCustomerKey(r.Context()), cust)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// POST /api/v1/coupons/apply
func (h *CheckoutHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ApplyCouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_coupon_code", "code is required")
		return
	}

	app, err := h.checkout.ApplyCoupon(ctx, getCustomerKey(r.Context()), req.Code,
		coupon.Customer{Email: req.Email, Phone: req.Phone})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}
