package coupon

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/pricing"
	"github.com/shopspring/decimal"
)

// StaticResolver serves a fixed coupon list from memory. It backs local runs
// where no coupon service is configured.
type StaticResolver struct {
	mu         sync.RWMutex
	coupons    map[string]domain.Coupon
	firstOrder string
	returning  map[Customer]bool
}

func NewStaticResolver(coupons []domain.Coupon, firstOrderCode string) *StaticResolver {
	r := &StaticResolver{
		coupons:    make(map[string]domain.Coupon, len(coupons)),
		firstOrder: strings.ToUpper(firstOrderCode),
		returning:  make(map[Customer]bool),
	}
	for _, c := range coupons {
		r.coupons[strings.ToUpper(c.Code)] = c
	}
	return r
}

// MarkReturning records that the customer has placed an order before.
func (r *StaticResolver) MarkReturning(c Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.returning[c] = true
}

func (r *StaticResolver) ApplicableCoupons(_ context.Context, amount decimal.Decimal, c Customer) ([]domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	first := !r.returning[c]
	var out []domain.Coupon
	for _, cp := range r.coupons {
		if cp.IsActive && amount.GreaterThanOrEqual(cp.MinimumAmount) && (!cp.FirstOrderOnly || first) {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *StaticResolver) Lookup(_ context.Context, code string) (*domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, ErrCouponNotFound
	}
	return &c, nil
}

func (r *StaticResolver) ApplyCoupon(ctx context.Context, code string, amount decimal.Decimal, cust Customer) (*domain.CouponApplication, error) {
	c, err := r.Lookup(ctx, code)
	if err != nil {
		return &domain.CouponApplication{Message: "Invalid coupon code"}, nil
	}
	first, _ := r.IsFirstTimeCustomer(ctx, cust)
	if err := pricing.ValidateCoupon(c, amount, time.Now(), first); err != nil {
		return &domain.CouponApplication{Message: err.Error()}, nil
	}
	return &domain.CouponApplication{
		Success:        true,
		Message:        "Coupon applied",
		DiscountAmount: pricing.CouponDiscount(amount, c),
		CouponID:       c.ID,
	}, nil
}

func (r *StaticResolver) FirstOrderCoupon(ctx context.Context, amount decimal.Decimal, cust Customer) (*domain.FirstOrderOffer, error) {
	if r.firstOrder == "" {
		return &domain.FirstOrderOffer{}, nil
	}
	if first, _ := r.IsFirstTimeCustomer(ctx, cust); !first {
		return &domain.FirstOrderOffer{}, nil
	}
	c, err := r.Lookup(ctx, r.firstOrder)
	if err != nil {
		return &domain.FirstOrderOffer{}, nil
	}
	return &domain.FirstOrderOffer{
		CouponCode:     c.Code,
		DiscountAmount: pricing.CouponDiscount(amount, c),
		Message:        "Welcome! Use " + c.Code + " on your first order",
	}, nil
}

func (r *StaticResolver) IsFirstTimeCustomer(_ context.Context, c Customer) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.returning[c], nil
}
