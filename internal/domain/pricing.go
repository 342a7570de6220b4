package domain

import "github.com/shopspring/decimal"

// DiscountSource records which rule produced the discount in a breakdown.
type DiscountSource string

const (
	DiscountSourceNone      DiscountSource = "NONE"
	DiscountSourceAutomatic DiscountSource = "AUTOMATIC"
	DiscountSourceCoupon    DiscountSource = "COUPON"
	DiscountSourceStacked   DiscountSource = "STACKED"
)

// PriceBreakdown holds exact (unrounded) amounts. Use Rounded for display or storage.
type PriceBreakdown struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	AutomaticDiscount decimal.Decimal `json:"automatic_discount"`
	CouponDiscount    decimal.Decimal `json:"coupon_discount"`
	Discount          decimal.Decimal `json:"discount"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	FreeDelivery      bool            `json:"free_delivery"`
	AppliedCoupon     string          `json:"applied_coupon,omitempty"`
	Source            DiscountSource  `json:"discount_source"`
}

// Rounded returns a copy with every amount rounded to 2 decimals. Each component is
// rounded independently from its exact value, so the rounded parts may not add up to
// the rounded total by up to 0.01.
func (b PriceBreakdown) Rounded() PriceBreakdown {
	r := b
	r.Subtotal = b.Subtotal.Round(2)
	r.AutomaticDiscount = b.AutomaticDiscount.Round(2)
	r.CouponDiscount = b.CouponDiscount.Round(2)
	r.Discount = b.Discount.Round(2)
	r.DeliveryFee = b.DeliveryFee.Round(2)
	r.Tax = b.Tax.Round(2)
	r.Total = b.Total.Round(2)
	return r
}
