package checkout

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"

	"storefront_back_end/internal/models"
)

// Payments opens a payment for a placed order and returns its reference.
type Payments interface {
	CreateIntent(ctx context.Context, order *models.Order) (string, error)
}

// StripePayments creates Stripe PaymentIntents the client confirms.
type StripePayments struct {
	create func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewStripePayments(secretKey string) *StripePayments {
	stripe.Key = secretKey
	return &StripePayments{create: paymentintent.New}
}

// AmountInCents converts a decimal total to the smallest currency unit.
func AmountInCents(total float64) int64 {
	return int64(math.Round(total * 100))
}

func intentParams(order *models.Order) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(AmountInCents(order.Total)),
		Currency: stripe.String(order.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_number": order.Number,
			"user_id":      strconv.FormatUint(uint64(order.UserID), 10),
		},
	}
	if order.CouponCode != "" {
		params.Metadata["coupon_code"] = order.CouponCode
	}
	return params
}

func (p *StripePayments) CreateIntent(_ context.Context, order *models.Order) (string, error) {
	intent, err := p.create(intentParams(order))
	if err != nil {
		return "", fmt.Errorf("stripe payment intent: %w", err)
	}
	return intent.ID, nil
}
