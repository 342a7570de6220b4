package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/coupon"
	"github.com/Ugender2729/F1-Mart-sub001/internal/delivery"
	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/pricing"
)

// RejectResolverUnavailable is reported when the coupon service could not be reached.
const RejectResolverUnavailable pricing.CouponRejection = "resolver_unavailable"

type QuoteRequest struct {
	CustomerKey string
	Customer    coupon.Customer
	Location    delivery.Locator
	CouponCode  string
}

// CouponNotice tells the customer why their code was not used.
type CouponNotice struct {
	Code    string                  `json:"code"`
	Reason  pricing.CouponRejection `json:"reason"`
	Message string                  `json:"message"`
}

type CheckoutQuote struct {
	Cart        *CartView               `json:"cart"`
	Delivery    domain.DeliveryQuote    `json:"delivery"`
	Deliverable bool                    `json:"deliverable"`
	Breakdown   *domain.PriceBreakdown  `json:"breakdown,omitempty"`
	Coupon      *CouponNotice           `json:"coupon_rejection,omitempty"`
	Suggestion  *domain.FirstOrderOffer `json:"suggestion,omitempty"`
}

// CheckoutService assembles a priced quote: cart, location, delivery tier, coupon, pricing.
type CheckoutService struct {
	carts    *CartService
	acquirer *delivery.Acquirer
	delivery delivery.Config
	engine   *pricing.Engine
	coupons  coupon.Resolver
	now      func() time.Time
	logger   *slog.Logger
}

func NewCheckoutService(
	carts *CartService,
	acquirer *delivery.Acquirer,
	deliveryCfg delivery.Config,
	engine *pricing.Engine,
	coupons coupon.Resolver,
	logger *slog.Logger,
) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{
		carts:    carts,
		acquirer: acquirer,
		delivery: deliveryCfg,
		engine:   engine,
		coupons:  coupons,
		now:      time.Now,
		logger:   logger,
	}
}

// DeliveryQuote locates the customer and quotes delivery for their current cart.
// Location failures come back as *delivery.LocationError.
func (s *CheckoutService) DeliveryQuote(ctx context.Context, key string, loc delivery.Locator) (*CartView, domain.DeliveryQuote, error) {
	view, err := s.carts.GetCart(ctx, key)
	if err != nil {
		return nil, domain.DeliveryQuote{}, err
	}

	dq, err := s.quoteDelivery(ctx, key, view, loc)
	if err != nil {
		return view, domain.DeliveryQuote{}, err
	}
	return view, dq, nil
}

func (s *CheckoutService) quoteDelivery(ctx context.Context, key string, view *CartView, loc delivery.Locator) (domain.DeliveryQuote, error) {
	point, err := s.acquirer.Acquire(ctx, key, loc)
	if err != nil {
		return domain.DeliveryQuote{}, err
	}
	return delivery.Quote(s.delivery, point, view.Subtotal), nil
}

func (s *CheckoutService) Quote(ctx context.Context, req QuoteRequest) (*CheckoutQuote, error) {
	view, err := s.carts.GetCart(ctx, req.CustomerKey)
	if err != nil {
		return nil, err
	}
	if len(view.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	dq, err := s.quoteDelivery(ctx, req.CustomerKey, view, req.Location)
	if err != nil {
		return nil, err
	}

	q := &CheckoutQuote{
		Cart:        view,
		Delivery:    dq,
		Deliverable: dq.IsWithinRange,
	}
	if !dq.IsWithinRange {
		return q, nil
	}

	var applied *domain.Coupon
	if req.CouponCode != "" {
		applied, q.Coupon = s.resolveCoupon(ctx, req.CouponCode, view, req.Customer)
	} else {
		q.Suggestion = s.suggest(ctx, view, req.Customer)
	}

	b, err := s.engine.Price(view.Subtotal, dq.Fee, applied)
	if err != nil {
		return nil, err
	}
	rounded := b.Rounded()
	q.Breakdown = &rounded
	return q, nil
}

// resolveCoupon returns the coupon to price with, or a notice explaining why none is used.
// Resolver failures never fail the quote.
func (s *CheckoutService) resolveCoupon(ctx context.Context, code string, view *CartView, cust coupon.Customer) (*domain.Coupon, *CouponNotice) {
	c, err := s.coupons.Lookup(ctx, code)
	if errors.Is(err, coupon.ErrCouponNotFound) {
		return nil, &CouponNotice{Code: code, Reason: pricing.RejectUnknownCode, Message: "Invalid coupon code"}
	}
	if err != nil {
		s.logger.WarnContext(ctx, "coupon lookup failed, pricing without coupon", "code", code, "error", err)
		return nil, &CouponNotice{Code: code, Reason: RejectResolverUnavailable, Message: "Coupons are unavailable right now"}
	}

	firstTime := false
	if c.FirstOrderOnly {
		firstTime, err = s.coupons.IsFirstTimeCustomer(ctx, cust)
		if err != nil {
			s.logger.WarnContext(ctx, "first-time check failed", "code", code, "error", err)
			return nil, &CouponNotice{Code: code, Reason: RejectResolverUnavailable, Message: "Coupons are unavailable right now"}
		}
	}

	if err := pricing.ValidateCoupon(c, view.Subtotal, s.now(), firstTime); err != nil {
		var ce *pricing.CouponError
		if errors.As(err, &ce) {
			return nil, &CouponNotice{Code: code, Reason: ce.Reason, Message: ce.Error()}
		}
		return nil, &CouponNotice{Code: code, Reason: pricing.RejectUnknownCode, Message: err.Error()}
	}
	return c, nil
}

func (s *CheckoutService) suggest(ctx context.Context, view *CartView, cust coupon.Customer) *domain.FirstOrderOffer {
	offer, err := s.coupons.FirstOrderCoupon(ctx, view.Subtotal, cust)
	if err != nil {
		s.logger.WarnContext(ctx, "first-order suggestion failed", "error", err)
		return nil
	}
	if offer == nil || offer.CouponCode == "" {
		return nil
	}
	return offer
}

type CouponList struct {
	Coupons    []domain.Coupon         `json:"coupons"`
	Suggestion *domain.FirstOrderOffer `json:"suggestion,omitempty"`
	Available  bool                    `json:"available"`
}

// Coupons lists what the resolver offers for the customer's current cart.
// An unreachable resolver yields an empty list, not an error.
func (s *CheckoutService) Coupons(ctx context.Context, key string, cust coupon.Customer) (*CouponList, error) {
	view, err := s.carts.GetCart(ctx, key)
	if err != nil {
		return nil, err
	}

	list := &CouponList{Coupons: []domain.Coupon{}, Available: true}
	coupons, err := s.coupons.ApplicableCoupons(ctx, view.Subtotal, cust)
	if err != nil {
		s.logger.WarnContext(ctx, "applicable coupons failed", "error", err)
		list.Available = false
		return list, nil
	}
	if coupons != nil {
		list.Coupons = coupons
	}
	list.Suggestion = s.suggest(ctx, view, cust)
	return list, nil
}

// ApplyCoupon asks the resolver to apply code to the current cart subtotal.
func (s *CheckoutService) ApplyCoupon(ctx context.Context, key, code string, cust coupon.Customer) (*domain.CouponApplication, error) {
	view, err := s.carts.GetCart(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(view.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	app, err := s.coupons.ApplyCoupon(ctx, code, view.Subtotal, cust)
	if err != nil {
		s.logger.WarnContext(ctx, "apply coupon failed", "code", code, "error", err)
		return &domain.CouponApplication{Message: "Coupons are unavailable right now"}, nil
	}
	return app, nil
}
