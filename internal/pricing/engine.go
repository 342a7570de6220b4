package pricing

import (
	"errors"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrUndeliverable   = errors.New("delivery fee unavailable: customer is out of range")
	ErrInvalidSubtotal = errors.New("subtotal must not be negative")
)

// DefaultTaxRate is GST, charged on the post-discount subtotal only.
var DefaultTaxRate = decimal.RequireFromString("0.18")

// RoundingTolerance is the largest difference allowed between a stored total and one
// recomputed from the stored, individually rounded components.
var RoundingTolerance = decimal.RequireFromString("0.01")

// Tier is an automatic discount that applies at or above Threshold.
type Tier struct {
	Threshold decimal.Decimal
	Discount  decimal.Decimal
}

// DefaultTiers are ordered highest threshold first; the first match wins.
var DefaultTiers = []Tier{
	{Threshold: decimal.NewFromInt(1000), Discount: decimal.NewFromInt(250)},
	{Threshold: decimal.NewFromInt(700), Discount: decimal.NewFromInt(150)},
}

// DefaultFreeDeliveryThreshold waives delivery on any subtotal at or above it.
var DefaultFreeDeliveryThreshold = decimal.NewFromInt(500)

// Precedence decides how automatic tiers and an explicit coupon combine.
type Precedence string

const (
	// PrecedenceBestForCustomer prices both ways and keeps the lower total; ties go to the coupon.
	PrecedenceBestForCustomer Precedence = "best_for_customer"
	// PrecedenceCouponReplacesAutomatic ignores automatic tiers whenever a coupon is applied.
	PrecedenceCouponReplacesAutomatic Precedence = "coupon_replaces_automatic"
	// PrecedenceStack applies both, capping the combined discount at the subtotal.
	PrecedenceStack Precedence = "stack"
)

func (p Precedence) Valid() bool {
	switch p {
	case PrecedenceBestForCustomer, PrecedenceCouponReplacesAutomatic, PrecedenceStack:
		return true
	}
	return false
}

type Engine struct {
	Policy                Precedence
	TaxRate               decimal.Decimal
	Tiers                 []Tier
	FreeDeliveryThreshold decimal.Decimal
}

func NewEngine(policy Precedence) *Engine {
	if !policy.Valid() {
		policy = PrecedenceBestForCustomer
	}
	return &Engine{
		Policy:                policy,
		TaxRate:               DefaultTaxRate,
		Tiers:                 DefaultTiers,
		FreeDeliveryThreshold: DefaultFreeDeliveryThreshold,
	}
}

type adjustment struct {
	discount     decimal.Decimal
	freeDelivery bool
}

// Price builds a breakdown from scratch. The coupon must already have passed
// ValidateCoupon; Price only does the discount math.
func (e *Engine) Price(subtotal decimal.Decimal, deliveryFee decimal.NullDecimal, coupon *domain.Coupon) (domain.PriceBreakdown, error) {
	if subtotal.IsNegative() {
		return domain.PriceBreakdown{}, ErrInvalidSubtotal
	}
	if !deliveryFee.Valid {
		return domain.PriceBreakdown{}, ErrUndeliverable
	}

	auto := e.automatic(subtotal)
	if coupon == nil {
		return e.build(subtotal, deliveryFee.Decimal, auto, adjustment{}, domain.DiscountSourceAutomatic, ""), nil
	}

	cpn := couponAdjustment(subtotal, coupon)
	switch e.Policy {
	case PrecedenceCouponReplacesAutomatic:
		return e.build(subtotal, deliveryFee.Decimal, adjustment{}, cpn, domain.DiscountSourceCoupon, coupon.Code), nil
	case PrecedenceStack:
		return e.build(subtotal, deliveryFee.Decimal, auto, cpn, domain.DiscountSourceStacked, coupon.Code), nil
	default:
		withAuto := e.build(subtotal, deliveryFee.Decimal, auto, adjustment{}, domain.DiscountSourceAutomatic, "")
		withCoupon := e.build(subtotal, deliveryFee.Decimal, adjustment{}, cpn, domain.DiscountSourceCoupon, coupon.Code)
		if withCoupon.Total.LessThanOrEqual(withAuto.Total) {
			return withCoupon, nil
		}
		return withAuto, nil
	}
}

// AutomaticDiscount returns the tier discount and whether delivery is waived for subtotal.
func (e *Engine) AutomaticDiscount(subtotal decimal.Decimal) (decimal.Decimal, bool) {
	a := e.automatic(subtotal)
	return a.discount, a.freeDelivery
}

func (e *Engine) automatic(subtotal decimal.Decimal) adjustment {
	a := adjustment{
		discount:     decimal.Zero,
		freeDelivery: subtotal.GreaterThanOrEqual(e.FreeDeliveryThreshold),
	}
	for _, t := range e.Tiers {
		if subtotal.GreaterThanOrEqual(t.Threshold) {
			a.discount = t.Discount
			break
		}
	}
	return a
}

func couponAdjustment(subtotal decimal.Decimal, c *domain.Coupon) adjustment {
	return adjustment{
		discount:     CouponDiscount(subtotal, c),
		freeDelivery: c.Kind == domain.CouponKindFreeDelivery,
	}
}

// CouponDiscount is the monetary discount a coupon grants on subtotal.
func CouponDiscount(subtotal decimal.Decimal, c *domain.Coupon) decimal.Decimal {
	switch c.Kind {
	case domain.CouponKindPercentage:
		d := subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
		if c.MaximumDiscount != nil && d.GreaterThan(*c.MaximumDiscount) {
			d = *c.MaximumDiscount
		}
		return decimal.Min(d, subtotal)
	case domain.CouponKindFixed:
		return decimal.Min(c.Value, subtotal)
	}
	return decimal.Zero
}

func (e *Engine) build(subtotal, fee decimal.Decimal, auto, cpn adjustment, source domain.DiscountSource, code string) domain.PriceBreakdown {
	discount := decimal.Min(auto.discount.Add(cpn.discount), subtotal)
	freeDelivery := auto.freeDelivery || cpn.freeDelivery
	if freeDelivery {
		fee = decimal.Zero
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(e.TaxRate)
	total := taxable.Add(fee).Add(tax)

	if code == "" && discount.IsZero() && !freeDelivery {
		source = domain.DiscountSourceNone
	}

	return domain.PriceBreakdown{
		Subtotal:          subtotal,
		AutomaticDiscount: auto.discount,
		CouponDiscount:    cpn.discount,
		Discount:          discount,
		DeliveryFee:       fee,
		Tax:               tax,
		Total:             total,
		FreeDelivery:      freeDelivery,
		AppliedCoupon:     code,
		Source:            source,
	}
}

// WithinTolerance reports whether a total recomputed from rounded components is
// acceptably close to the authoritative rounded total.
func WithinTolerance(b domain.PriceBreakdown) bool {
	r := b.Rounded()
	recomputed := r.Subtotal.Sub(r.Discount).Add(r.DeliveryFee).Add(r.Tax)
	return recomputed.Sub(r.Total).Abs().LessThanOrEqual(RoundingTolerance)
}
