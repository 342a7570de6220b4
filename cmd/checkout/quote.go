package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/delivery"
	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type offlineQuote struct {
	Delivery  domain.DeliveryQuote   `json:"delivery"`
	Breakdown *domain.PriceBreakdown `json:"breakdown,omitempty"`
	Coupon    string                 `json:"coupon_rejection,omitempty"`
}

func quoteCmd() *cobra.Command {
	var (
		lat, lng  float64
		subtotal  string
		code      string
		firstTime bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote delivery and price a subtotal without running the server",
		Long: `Quote delivery and price a subtotal using the configured delivery record,
pricing precedence and static coupons.

Examples:
  checkout quote --lat 17.40 --lng 78.49 --subtotal 300
  checkout quote --lat 17.40 --lng 78.49 --subtotal 800 --coupon SAVE50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(subtotal)
			if err != nil || amount.IsNegative() {
				return fmt.Errorf("invalid subtotal %q", subtotal)
			}
			point := domain.GeoPoint{Latitude: lat, Longitude: lng}
			if err := point.Validate(); err != nil {
				return err
			}

			out := offlineQuote{Delivery: delivery.Quote(cfg.DeliveryRecord(), point, amount)}
			if out.Delivery.IsWithinRange {
				var applied *domain.Coupon
				if code != "" {
					applied, out.Coupon = findCoupon(cfg.StaticCoupons(time.Time{}), code, amount, firstTime)
				}
				b, err := cfg.PricingEngine().Price(amount, out.Delivery.Fee, applied)
				if err != nil {
					return err
				}
				rounded := b.Rounded()
				out.Breakdown = &rounded
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "customer latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "customer longitude")
	cmd.Flags().StringVar(&subtotal, "subtotal", "0", "cart subtotal")
	cmd.Flags().StringVar(&code, "coupon", "", "coupon code to apply")
	cmd.Flags().BoolVar(&firstTime, "first-order", true, "treat the customer as first-time")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

// findCoupon returns the coupon to price with, or the rejection reason.
func findCoupon(coupons []domain.Coupon, code string, subtotal decimal.Decimal, firstTime bool) (*domain.Coupon, string) {
	for i := range coupons {
		c := &coupons[i]
		if !strings.EqualFold(c.Code, code) {
			continue
		}
		if err := pricing.ValidateCoupon(c, subtotal, time.Now(), firstTime); err != nil {
			var ce *pricing.CouponError
			if errors.As(err, &ce) {
				return nil, string(ce.Reason)
			}
			return nil, err.Error()
		}
		return c, ""
	}
	return nil, string(pricing.RejectUnknownCode)
}
