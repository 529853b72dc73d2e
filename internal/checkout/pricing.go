package checkout

import (
	"errors"
	"fmt"
	"math"
	"time"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
)

const (
	ShippingStandard = "standard"
	ShippingExpress  = "express"
	ShippingNextDay  = "next_day"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidShipping = errors.New("unknown shipping option")
	ErrCouponInvalid   = errors.New("coupon cannot be applied")
)

type ShippingOption struct {
	Code          string  `json:"code"`
	Label         string  `json:"label"`
	Price         float64 `json:"price"`
	EstimatedDays string  `json:"estimated_days"`
}

var shippingOptions = []ShippingOption{
	{Code: ShippingStandard, Label: "Standard delivery", Price: 5.99, EstimatedDays: "3-5"},
	{Code: ShippingExpress, Label: "Express delivery", Price: 12.99, EstimatedDays: "1-2"},
	{Code: ShippingNextDay, Label: "Next day delivery", Price: 19.99, EstimatedDays: "1"},
}

// Pricing holds the rates applied to every summary.
type Pricing struct {
	TaxRate               float64
	FreeShippingThreshold float64
}

func PricingFromConfig(cfg config.CheckoutConfig) Pricing {
	return Pricing{TaxRate: cfg.TaxRate, FreeShippingThreshold: cfg.FreeShippingThreshold}
}

// Totals are the money fields of a summary, each rounded to cents.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ShippingOptions lists every option priced for the given subtotal.
func (p Pricing) ShippingOptions(subtotal float64) []ShippingOption {
	out := make([]ShippingOption, len(shippingOptions))
	for i, o := range shippingOptions {
		o.Price = p.shippingPrice(o, subtotal)
		out[i] = o
	}
	return out
}

func (p Pricing) shippingPrice(o ShippingOption, subtotal float64) float64 {
	if o.Code == ShippingStandard && p.FreeShippingThreshold > 0 && subtotal >= p.FreeShippingThreshold {
		return 0
	}
	return o.Price
}

// ValidateCoupon reports why c cannot be used on subtotal, nil if it can.
func ValidateCoupon(c *models.Coupon, subtotal float64, now time.Time) error {
	switch {
	case !c.IsActive:
		return fmt.Errorf("%w: coupon is no longer active", ErrCouponInvalid)
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return fmt.Errorf("%w: coupon expired", ErrCouponInvalid)
	case subtotal < c.MinAmount:
		return fmt.Errorf("%w: minimum order amount is %.2f", ErrCouponInvalid, c.MinAmount)
	}
	switch c.Type {
	case models.CouponPercentage, models.CouponFixed, models.CouponFreeShipping:
		return nil
	}
	return fmt.Errorf("%w: unknown coupon type %q", ErrCouponInvalid, c.Type)
}

// Compute prices a cart subtotal. coupon may be nil. Tax applies to the
// subtotal after discount, shipping is not taxed.
func (p Pricing) Compute(subtotal float64, shipping string, coupon *models.Coupon, now time.Time) (Totals, error) {
	if shipping == "" {
		shipping = ShippingStandard
	}
	var option *ShippingOption
	for i := range shippingOptions {
		if shippingOptions[i].Code == shipping {
			option = &shippingOptions[i]
		}
	}
	if option == nil {
		return Totals{}, fmt.Errorf("%w: %q", ErrInvalidShipping, shipping)
	}

	t := Totals{Subtotal: roundCents(subtotal)}
	if subtotal > 0 {
		t.Shipping = p.shippingPrice(*option, subtotal)
	}

	if coupon != nil {
		if err := ValidateCoupon(coupon, subtotal, now); err != nil {
			return Totals{}, err
		}
		switch coupon.Type {
		case models.CouponPercentage:
			t.Discount = roundCents(subtotal * coupon.Value / 100)
		case models.CouponFixed:
			t.Discount = math.Min(coupon.Value, subtotal)
		case models.CouponFreeShipping:
			t.Shipping = 0
		}
	}

	t.Tax = roundCents((t.Subtotal - t.Discount) * p.TaxRate)
	t.Total = roundCents(t.Subtotal - t.Discount + t.Shipping + t.Tax)
	return t, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
