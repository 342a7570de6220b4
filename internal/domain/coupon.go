package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CouponKind string

const (
	CouponKindPercentage   CouponKind = "PERCENTAGE"
	CouponKindFixed        CouponKind = "FIXED"
	CouponKindFreeDelivery CouponKind = "FREE_DELIVERY"
)

// Coupon is a read-only snapshot owned by the coupon resolver.
// Pricing never increments UsedCount.
type Coupon struct {
	ID              string           `json:"id"`
	Code            string           `json:"code"`
	Kind            CouponKind       `json:"kind"`
	Value           decimal.Decimal  `json:"value"`
	MinimumAmount   decimal.Decimal  `json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal `json:"maximum_discount,omitempty"`
	UsageLimit      *int             `json:"usage_limit,omitempty"`
	UsedCount       int              `json:"used_count"`
	IsActive        bool             `json:"is_active"`
	FirstOrderOnly  bool             `json:"first_order_only"`
	ValidFrom       time.Time        `json:"valid_from"`
	ValidUntil      *time.Time       `json:"valid_until,omitempty"`
}

// CouponApplication is the resolver's answer to applying a code.
type CouponApplication struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CouponID       string          `json:"coupon_id,omitempty"`
}

// FirstOrderOffer is the resolver's first-order suggestion.
type FirstOrderOffer struct {
	CouponCode     string          `json:"coupon_code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Message        string          `json:"message"`
}
