package pricing

import (
	"fmt"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

type CouponRejection string

const (
	RejectInactive       CouponRejection = "inactive"
	RejectNotYetValid    CouponRejection = "not_yet_valid"
	RejectExpired        CouponRejection = "expired"
	RejectUsageExhausted CouponRejection = "usage_exhausted"
	RejectFirstOrderOnly CouponRejection = "first_order_only"
	RejectMinimumNotMet  CouponRejection = "minimum_not_met"
	RejectUnknownCode    CouponRejection = "unknown_code"
)

// CouponError explains why a coupon cannot be applied. Checkout continues without it.
type CouponError struct {
	Code   string
	Reason CouponRejection
	Detail string
}

func (e *CouponError) Error() string {
	msg := fmt.Sprintf("coupon %q rejected: %s", e.Code, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is matches on Reason, so the sentinels below work with errors.Is.
func (e *CouponError) Is(target error) bool {
	t, ok := target.(*CouponError)
	return ok && t.Reason == e.Reason
}

var (
	ErrCouponInactive       = &CouponError{Reason: RejectInactive}
	ErrCouponNotYetValid    = &CouponError{Reason: RejectNotYetValid}
	ErrCouponExpired        = &CouponError{Reason: RejectExpired}
	ErrCouponUsageExhausted = &CouponError{Reason: RejectUsageExhausted}
	ErrCouponFirstOrderOnly = &CouponError{Reason: RejectFirstOrderOnly}
	ErrCouponMinimumNotMet  = &CouponError{Reason: RejectMinimumNotMet}
	ErrCouponUnknown        = &CouponError{Reason: RejectUnknownCode}
)

// ValidateCoupon checks whether c may be used at now. firstTimeCustomer comes from
// the coupon resolver; it is only consulted for first-order-only coupons.
func ValidateCoupon(c *domain.Coupon, subtotal decimal.Decimal, now time.Time, firstTimeCustomer bool) error {
	reject := func(r CouponRejection, detail string) error {
		return &CouponError{Code: c.Code, Reason: r, Detail: detail}
	}

	if !c.IsActive {
		return reject(RejectInactive, "")
	}
	if now.Before(c.ValidFrom) {
		return reject(RejectNotYetValid, "valid from "+c.ValidFrom.Format(time.RFC3339))
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return reject(RejectExpired, "expired "+c.ValidUntil.Format(time.RFC3339))
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return reject(RejectUsageExhausted, "")
	}
	if c.FirstOrderOnly && !firstTimeCustomer {
		return reject(RejectFirstOrderOnly, "")
	}
	if subtotal.LessThan(c.MinimumAmount) {
		return reject(RejectMinimumNotMet, "minimum order "+c.MinimumAmount.StringFixed(2))
	}
	return nil
}
