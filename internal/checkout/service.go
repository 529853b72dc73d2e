package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/audit"
	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/events"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/realtime"
	"storefront_back_end/internal/store"
)

var (
	ErrLoginRequired          = errors.New("login required to place an order")
	ErrPaymentMethodNotFound  = errors.New("payment method not found")
	ErrUnavailableItemsInCart = errors.New("cart holds unavailable items")
)

// Confirmer sends the order confirmation to the shopper.
type Confirmer interface {
	OrderConfirmation(ctx context.Context, user models.User, order models.Order) error
}

type Summary struct {
	Items           []cart.CartLine  `json:"items"`
	Count           int              `json:"count"`
	ShippingOption  string           `json:"shipping_option"`
	CouponCode      string           `json:"coupon_code,omitempty"`
	Currency        string           `json:"currency"`
	ShippingOptions []ShippingOption `json:"shipping_options"`
	Totals
}

type OrderRequest struct {
	Shipping        string `json:"shipping"`
	Coupon          string `json:"coupon"`
	PaymentMethodID *uint  `json:"payment_method_id"`
}

type Service struct {
	store    store.Store
	carts    *cart.Service
	pricing  Pricing
	currency string

	payments Payments
	mailer   Confirmer
	events   events.Publisher
	audit    audit.Logger
	notifier cart.Notifier
	now      func() time.Time
}

type Option func(*Service)

// WithPayments enables payment intents. Without it orders are confirmed directly.
func WithPayments(p Payments) Option { return func(s *Service) { s.payments = p } }

func WithMailer(m Confirmer) Option { return func(s *Service) { s.mailer = m } }

func WithEvents(p events.Publisher) Option { return func(s *Service) { s.events = p } }

func WithAudit(l audit.Logger) Option { return func(s *Service) { s.audit = l } }

func WithNotifier(n cart.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, carts *cart.Service, cfg config.CheckoutConfig, opts ...Option) *Service {
	currency := cfg.Currency
	if currency == "" {
		currency = "eur"
	}
	s := &Service{
		store:    st,
		carts:    carts,
		pricing:  PricingFromConfig(cfg),
		currency: currency,
		events:   events.Noop{},
		audit:    audit.Noop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) coupon(ctx context.Context, code string) (*models.Coupon, error) {
	code = store.NormalizeCouponCode(code)
	if code == "" {
		return nil, nil
	}
	c, err := s.store.GetCouponByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown coupon %s", ErrCouponInvalid, code)
	}
	return c, err
}

// Summary prices the owner's cart with the chosen shipping option and coupon.
func (s *Service) Summary(ctx context.Context, owner cart.Owner, shipping, couponCode string) (*Summary, error) {
	view, err := s.carts.Cart(ctx, owner)
	if err != nil {
		return nil, err
	}
	c, err := s.coupon(ctx, couponCode)
	if err != nil {
		return nil, err
	}
	totals, err := s.pricing.Compute(view.Subtotal, shipping, c, s.now())
	if err != nil {
		return nil, err
	}
	if shipping == "" {
		shipping = ShippingStandard
	}
	sum := &Summary{
		Items:           view.Items,
		Count:           view.Count,
		ShippingOption:  shipping,
		Currency:        s.currency,
		ShippingOptions: s.pricing.ShippingOptions(view.Subtotal),
		Totals:          totals,
	}
	if c != nil {
		sum.CouponCode = c.Code
	}
	return sum, nil
}

func (s *Service) paymentMethod(ctx context.Context, userID uint, id *uint) (*uint, error) {
	methods, err := s.store.PaymentMethods(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		if id == nil && m.IsDefault || id != nil && m.ID == *id {
			found := m.ID
			return &found, nil
		}
	}
	if id != nil {
		return nil, ErrPaymentMethodNotFound
	}
	return nil, nil
}

// PlaceOrder turns the user's cart into an order. Stock, order rows and the
// cart are updated in one store transaction; payment, email, events and audit
// follow on a best effort basis.
func (s *Service) PlaceOrder(ctx context.Context, user models.User, req OrderRequest) (*models.Order, error) {
	if user.ID == 0 {
		return nil, ErrLoginRequired
	}
	sum, err := s.Summary(ctx, cart.Owner{UserID: user.ID}, req.Shipping, req.Coupon)
	if err != nil {
		return nil, err
	}
	if len(sum.Items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, line := range sum.Items {
		if !line.Available {
			return nil, fmt.Errorf("%w: %s", ErrUnavailableItemsInCart, line.Product.Name)
		}
	}
	pmID, err := s.paymentMethod(ctx, user.ID, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	address := ""
	profile, err := s.store.GetProfile(ctx, user.ID)
	switch {
	case err == nil:
		address = profile.ShippingAddress()
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	order := &models.Order{
		Number:          uuid.NewString(),
		UserID:          user.ID,
		Status:          models.OrderStatusConfirmed,
		Subtotal:        sum.Subtotal,
		Shipping:        sum.Shipping,
		Discount:        sum.Discount,
		Tax:             sum.Tax,
		Total:           sum.Total,
		Currency:        sum.Currency,
		ShippingOption:  sum.ShippingOption,
		ShippingAddress: address,
		CouponCode:      sum.CouponCode,
		PaymentMethodID: pmID,
	}
	if s.payments != nil {
		order.Status = models.OrderStatusPending
	}
	for _, line := range sum.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			UnitPrice: line.Product.Price,
			Quantity:  line.Quantity,
		})
	}

	if err := s.store.PlaceOrder(ctx, order); err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": user.ID, "order": order.Number, "total": order.Total})
	log.Info("🧾 order placed")

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, user.ID, realtime.EventCartUpdated); err != nil {
			log.WithError(err).Warn("⚠️ cart update not published")
		}
	}
	if s.payments != nil {
		if intentID, err := s.payments.CreateIntent(ctx, order); err != nil {
			log.WithError(err).Error("❌ payment intent not created")
		} else if err := s.store.SetOrderPaymentIntent(ctx, order.ID, intentID); err != nil {
			log.WithError(err).Error("❌ payment intent not stored")
		} else {
			order.PaymentIntentID = intentID
		}
	}
	s.afterPlaced(ctx, user, order)
	return order, nil
}

func (s *Service) afterPlaced(ctx context.Context, user models.User, order *models.Order) {
	log := logrus.WithField("order", order.Number)
	if s.mailer != nil {
		if err := s.mailer.OrderConfirmation(ctx, user, *order); err != nil {
			log.WithError(err).Warn("⚠️ confirmation email not sent")
		}
	}
	if err := s.events.OrderPlaced(ctx, orderPlacedEvent(order)); err != nil {
		log.WithError(err).Warn("⚠️ order event not published")
	}
	audit.Record(ctx, s.audit, audit.Entry{
		UserID:     user.ID,
		Action:     audit.ActionOrderPlaced,
		Resource:   "order",
		ResourceID: order.Number,
		Success:    true,
		Detail:     fmt.Sprintf("%.2f %s", order.Total, order.Currency),
		At:         order.CreatedAt,
	})
}

func orderPlacedEvent(o *models.Order) events.OrderPlaced {
	e := events.OrderPlaced{
		OrderNumber: o.Number,
		UserID:      int64(o.UserID),
		Subtotal:    o.Subtotal,
		Discount:    o.Discount,
		Shipping:    o.Shipping,
		Tax:         o.Tax,
		Total:       o.Total,
		Currency:    o.Currency,
		CouponCode:  o.CouponCode,
		PlacedAt:    o.CreatedAt,
	}
	for _, it := range o.Items {
		e.Items = append(e.Items, events.OrderPlacedItem{
			ProductID: int64(it.ProductID),
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  int32(it.Quantity),
		})
	}
	return e
}
