package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"

	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/events"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"
)

var (
	testPricing = Pricing{TaxRate: 0.2, FreeShippingThreshold: 50}
	testNow     = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
)

func TestComputeShipping(t *testing.T) {
	cases := []struct {
		name     string
		subtotal float64
		option   string
		want     float64
	}{
		{"standard below threshold", 40, ShippingStandard, 5.99},
		{"standard at threshold", 50, ShippingStandard, 0},
		{"default is standard", 20, "", 5.99},
		{"express never free", 80, ShippingExpress, 12.99},
		{"next day", 10, ShippingNextDay, 19.99},
		{"empty cart ships nothing", 0, ShippingExpress, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := testPricing.Compute(c.subtotal, c.option, nil, testNow)
			require.NoError(t, err)
			assert.InDelta(t, c.want, got.Shipping, 1e-9)
		})
	}

	_, err := testPricing.Compute(10, "drone", nil, testNow)
	assert.ErrorIs(t, err, ErrInvalidShipping)
}

func TestComputeCoupons(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	cases := []struct {
		name     string
		subtotal float64
		coupon   models.Coupon
		want     Totals
	}{
		{
			name: "percentage", subtotal: 80,
			coupon: models.Coupon{Type: models.CouponPercentage, Value: 10, IsActive: true},
			want:   Totals{Subtotal: 80, Discount: 8, Tax: 14.4, Total: 86.4},
		},
		{
			name: "fixed is capped at subtotal", subtotal: 20,
			coupon: models.Coupon{Type: models.CouponFixed, Value: 50, IsActive: true},
			want:   Totals{Subtotal: 20, Shipping: 5.99, Discount: 20, Total: 5.99},
		},
		{
			name: "free shipping", subtotal: 20,
			coupon: models.Coupon{Type: models.CouponFreeShipping, IsActive: true},
			want:   Totals{Subtotal: 20, Tax: 4, Total: 24},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := testPricing.Compute(c.subtotal, ShippingStandard, &c.coupon, testNow)
			require.NoError(t, err)
			assert.InDelta(t, c.want.Subtotal, got.Subtotal, 1e-9)
			assert.InDelta(t, c.want.Shipping, got.Shipping, 1e-9)
			assert.InDelta(t, c.want.Discount, got.Discount, 1e-9)
			assert.InDelta(t, c.want.Tax, got.Tax, 1e-9)
			assert.InDelta(t, c.want.Total, got.Total, 1e-9)
		})
	}

	rejected := map[string]models.Coupon{
		"inactive":      {Type: models.CouponPercentage, Value: 10},
		"expired":       {Type: models.CouponPercentage, Value: 10, IsActive: true, ExpiresAt: &yesterday},
		"below minimum": {Type: models.CouponFixed, Value: 5, MinAmount: 30, IsActive: true},
		"unknown type":  {Type: "bogo", IsActive: true},
	}
	for name, c := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := testPricing.Compute(20, ShippingStandard, &c, testNow)
			assert.ErrorIs(t, err, ErrCouponInvalid)
		})
	}
}

func TestShippingOptionsPricedForSubtotal(t *testing.T) {
	opts := testPricing.ShippingOptions(75)
	require.Len(t, opts, 3)
	assert.Equal(t, ShippingStandard, opts[0].Code)
	assert.Zero(t, opts[0].Price)
	assert.InDelta(t, 12.99, opts[1].Price, 1e-9)
	assert.InDelta(t, 5.99, shippingOptions[0].Price, 1e-9, "package table is not mutated")
}

func TestStripeIntentParams(t *testing.T) {
	var got *stripe.PaymentIntentParams
	p := &StripePayments{create: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		got = params
		return &stripe.PaymentIntent{ID: "pi_test"}, nil
	}}
	id, err := p.CreateIntent(context.Background(), &models.Order{Number: "n-1", UserID: 7, Total: 19.99, Currency: "eur", CouponCode: "FREESHIP"})
	require.NoError(t, err)
	assert.Equal(t, "pi_test", id)
	assert.Equal(t, int64(1999), *got.Amount)
	assert.Equal(t, "eur", *got.Currency)
	assert.Equal(t, "n-1", got.Metadata["order_number"])
	assert.Equal(t, "7", got.Metadata["user_id"])
	assert.Equal(t, "FREESHIP", got.Metadata["coupon_code"])

	failing := &StripePayments{create: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		return nil, errors.New("card_declined")
	}}
	_, err = failing.CreateIntent(context.Background(), &models.Order{Total: 1})
	assert.Error(t, err)
}

type paymentsMock struct{ mock.Mock }

func (m *paymentsMock) CreateIntent(ctx context.Context, o *models.Order) (string, error) {
	args := m.Called(o.Number)
	return args.String(0), args.Error(1)
}

type mailerMock struct{ mock.Mock }

func (m *mailerMock) OrderConfirmation(ctx context.Context, u models.User, o models.Order) error {
	return m.Called(u.Email, o.Number).Error(0)
}

type publisherMock struct{ mock.Mock }

func (m *publisherMock) OrderPlaced(ctx context.Context, e events.OrderPlaced) error {
	return m.Called(e.OrderNumber, len(e.Items)).Error(0)
}

func (m *publisherMock) CartSynced(ctx context.Context, e events.CartSynced) error {
	return m.Called(e.UserID).Error(0)
}

func (m *publisherMock) Close() {}

type fixture struct {
	store *store.MemoryStore
	carts *cart.Service
	user  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, store.SeedDemo(context.Background(), st))
	u, err := st.GetUserByEmail(context.Background(), store.DemoCustomerEmail)
	require.NoError(t, err)
	return &fixture{store: st, carts: cart.NewService(st, cart.NewMemoryGuestStore()), user: *u}
}

func (f *fixture) product(t *testing.T, slug string) *models.Product {
	t.Helper()
	p, err := f.store.GetProductBySlug(context.Background(), slug)
	require.NoError(t, err)
	return p
}

var checkoutConfig = config.CheckoutConfig{TaxRate: 0.2, FreeShippingThreshold: 50, Currency: "eur"}

func TestSummaryForGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guest := cart.Owner{GuestID: "guest-1"}
	_, err := f.carts.Add(ctx, guest, f.product(t, "wireless-headphones").ID, 2)
	require.NoError(t, err)

	svc := NewService(f.store, f.carts, checkoutConfig, WithClock(func() time.Time { return testNow }))
	sum, err := svc.Summary(ctx, guest, "", "welcome10")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", sum.CouponCode)
	assert.Equal(t, ShippingStandard, sum.ShippingOption)
	assert.Equal(t, 2, sum.Count)
	assert.InDelta(t, 259.98, sum.Subtotal, 1e-9)
	assert.InDelta(t, 26.0, sum.Discount, 1e-9)
	assert.InDelta(t, 0, sum.Shipping, 1e-9)
	assert.InDelta(t, 46.8, sum.Tax, 1e-9)
	assert.InDelta(t, 280.78, sum.Total, 1e-9)

	_, err = svc.Summary(ctx, guest, "", "NOPE")
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := cart.Owner{UserID: f.user.ID}
	lamp := f.product(t, "desk-lamp")
	_, err := f.carts.Add(ctx, owner, lamp.ID, 2)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveProfile(ctx, &models.UserProfile{UserID: f.user.ID, AddressLine1: "1 Main St", City: "Lyon", PostalCode: "69001", Country: "FR"}))

	payments := new(paymentsMock)
	payments.On("CreateIntent", mock.Anything).Return("pi_123", nil)
	mailer := new(mailerMock)
	mailer.On("OrderConfirmation", f.user.Email, mock.Anything).Return(errors.New("smtp down"))
	publisher := new(publisherMock)
	publisher.On("OrderPlaced", mock.Anything, 1).Return(nil)

	svc := NewService(f.store, f.carts, checkoutConfig,
		WithPayments(payments), WithMailer(mailer), WithEvents(publisher))

	order, err := svc.PlaceOrder(ctx, f.user, OrderRequest{Shipping: ShippingExpress})
	require.NoError(t, err, "email failure does not fail the order")
	assert.NotEmpty(t, order.Number)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "pi_123", order.PaymentIntentID)
	assert.Equal(t, "1 Main St, 69001 Lyon, FR", order.ShippingAddress)
	assert.InDelta(t, 69.0, order.Subtotal, 1e-9)
	assert.InDelta(t, 12.99, order.Shipping, 1e-9)
	assert.InDelta(t, 13.8, order.Tax, 1e-9)
	assert.InDelta(t, 95.79, order.Total, 1e-9)

	stored, err := f.store.GetOrderByNumber(ctx, f.user.ID, order.Number)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", stored.PaymentIntentID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)

	after := f.product(t, "desk-lamp")
	assert.Equal(t, lamp.Stock-2, after.Stock)
	view, err := f.carts.Cart(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = svc.PlaceOrder(ctx, f.user, OrderRequest{})
	assert.ErrorIs(t, err, ErrEmptyCart)

	payments.AssertExpectations(t)
	mailer.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestPlaceOrderWithoutPaymentsIsConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, cart.Owner{UserID: f.user.ID}, f.product(t, "headlamp").ID, 1)
	require.NoError(t, err)

	order, err := NewService(f.store, f.carts, checkoutConfig).PlaceOrder(ctx, f.user, OrderRequest{Coupon: "FREESHIP"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "FREESHIP", order.CouponCode)
	assert.Zero(t, order.Shipping)
	assert.Empty(t, order.ShippingAddress)
}

func TestPlaceOrderRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewService(f.store, f.carts, checkoutConfig)

	_, err := svc.PlaceOrder(ctx, models.User{}, OrderRequest{})
	assert.ErrorIs(t, err, ErrLoginRequired)

	stove := f.product(t, "camping-stove")
	_, err = f.carts.Add(ctx, cart.Owner{UserID: f.user.ID}, stove.ID, 5)
	require.NoError(t, err)

	missing := uint(9999)
	_, err = svc.PlaceOrder(ctx, f.user, OrderRequest{PaymentMethodID: &missing})
	assert.ErrorIs(t, err, ErrPaymentMethodNotFound)

	stove.Stock = 2
	stove.Category = nil
	require.NoError(t, f.store.UpdateProduct(ctx, stove))
	_, err = svc.PlaceOrder(ctx, f.user, OrderRequest{})
	assert.ErrorIs(t, err, ErrUnavailableItemsInCart)

	still := f.product(t, "camping-stove")
	assert.Equal(t, 2, still.Stock, "nothing was decremented")
}
