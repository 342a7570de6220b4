package coupon

import (
	"context"
	"errors"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrUnavailable    = errors.New("coupon resolver unavailable")
)

// Customer identifies who is checking out. Either field may be empty for guests.
type Customer struct {
	Email string
	Phone string
}

// Resolver is the remote owner of coupons. Every call may be slow or fail.
type Resolver interface {
	ApplicableCoupons(ctx context.Context, amount decimal.Decimal, c Customer) ([]domain.Coupon, error)
	Lookup(ctx context.Context, code string) (*domain.Coupon, error)
	ApplyCoupon(ctx context.Context, code string, amount decimal.Decimal, c Customer) (*domain.CouponApplication, error)
	FirstOrderCoupon(ctx context.Context, amount decimal.Decimal, c Customer) (*domain.FirstOrderOffer, error)
	IsFirstTimeCustomer(ctx context.Context, c Customer) (bool, error)
}
