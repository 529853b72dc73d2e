package account

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/audit"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/store"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrInvalidProfile        = errors.New("invalid profile")
	ErrInvoicesDisabled      = errors.New("invoice PDFs are disabled")
)

var last4Pattern = regexp.MustCompile(`^[0-9]{4}$`)

// InvoicePDF prints an order invoice.
type InvoicePDF interface {
	Render(ctx context.Context, user models.User, order models.Order) ([]byte, error)
}

type Service struct {
	store    store.Store
	audit    audit.Logger
	invoices InvoicePDF
	baseURL  string
	now      func() time.Time
}

type Option func(*Service)

func WithAudit(l audit.Logger) Option { return func(s *Service) { s.audit = l } }

// WithInvoices enables invoice PDFs.
func WithInvoices(r InvoicePDF) Option { return func(s *Service) { s.invoices = r } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, baseURL string, opts ...Option) *Service {
	s := &Service{store: st, baseURL: baseURL, audit: audit.Noop{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------- orders ----------------

type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// Orders lists a user's orders, newest first.
func (s *Service) Orders(ctx context.Context, userID uint, page, pageSize int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 10
	}
	orders, total, err := s.store.ListOrders(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderPage{
		Orders:     orders,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (s *Service) Order(ctx context.Context, userID uint, number string) (*models.Order, error) {
	order, err := s.store.GetOrderByNumber(ctx, userID, number)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// OrderQRCode is a PNG linking to the order page.
func (s *Service) OrderQRCode(ctx context.Context, userID uint, number string, size int) ([]byte, error) {
	order, err := s.Order(ctx, userID, number)
	if err != nil {
		return nil, err
	}
	return services.OrderQRCode(s.baseURL, order.Number, size)
}

func (s *Service) Invoice(ctx context.Context, user models.User, number string) ([]byte, error) {
	if s.invoices == nil {
		return nil, ErrInvoicesDisabled
	}
	order, err := s.Order(ctx, user.ID, number)
	if err != nil {
		return nil, err
	}
	return s.invoices.Render(ctx, user, *order)
}

// ---------------- payment methods ----------------

type PaymentMethodInput struct {
	Brand      string `json:"brand" binding:"required"`
	Last4      string `json:"last4" binding:"required"`
	ExpMonth   int    `json:"exp_month" binding:"required"`
	ExpYear    int    `json:"exp_year" binding:"required"`
	HolderName string `json:"holder_name"`
}

// Validate checks the card summary. A card expiring this month is still valid.
func (in PaymentMethodInput) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(in.Brand) == "":
		return fmt.Errorf("%w: brand is required", ErrInvalidPaymentMethod)
	case !last4Pattern.MatchString(in.Last4):
		return fmt.Errorf("%w: last4 must be 4 digits", ErrInvalidPaymentMethod)
	case in.ExpMonth < 1 || in.ExpMonth > 12:
		return fmt.Errorf("%w: exp_month must be between 1 and 12", ErrInvalidPaymentMethod)
	}
	year, month := now.Year(), int(now.Month())
	if in.ExpYear < year || in.ExpYear == year && in.ExpMonth < month {
		return fmt.Errorf("%w: card has expired", ErrInvalidPaymentMethod)
	}
	return nil
}

func (s *Service) PaymentMethods(ctx context.Context, userID uint) ([]models.PaymentMethod, error) {
	methods, err := s.store.PaymentMethods(ctx, userID)
	if methods == nil && err == nil {
		methods = []models.PaymentMethod{}
	}
	return methods, err
}

// AddPaymentMethod stores a card. The first card of a user becomes the default.
func (s *Service) AddPaymentMethod(ctx context.Context, userID uint, in PaymentMethodInput) (*models.PaymentMethod, error) {
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	pm := &models.PaymentMethod{
		UserID:     userID,
		Brand:      strings.ToLower(strings.TrimSpace(in.Brand)),
		Last4:      in.Last4,
		ExpMonth:   in.ExpMonth,
		ExpYear:    in.ExpYear,
		HolderName: strings.TrimSpace(in.HolderName),
	}
	if err := s.store.AddPaymentMethod(ctx, pm); err != nil {
		return nil, err
	}
	return pm, nil
}

func (s *Service) DeletePaymentMethod(ctx context.Context, userID, id uint) error {
	err := s.store.DeletePaymentMethod(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrPaymentMethodNotFound
	}
	return err
}

func (s *Service) SetDefaultPaymentMethod(ctx context.Context, userID, id uint) ([]models.PaymentMethod, error) {
	err := s.store.SetDefaultPaymentMethod(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaymentMethodNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.PaymentMethods(ctx, userID)
}

// ---------------- profile ----------------

type Profile struct {
	User    models.User        `json:"user"`
	Details models.UserProfile `json:"profile"`
}

// ProfileInput updates the dashboard fields. Nil fields are left unchanged.
type ProfileInput struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	AddressLine1 *string `json:"address_line1"`
	AddressLine2 *string `json:"address_line2"`
	City         *string `json:"city"`
	PostalCode   *string `json:"postal_code"`
	Country      *string `json:"country"`
}

func (s *Service) Profile(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	details, err := s.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		details = &models.UserProfile{UserID: userID}
	case err != nil:
		return nil, err
	}
	return &Profile{User: *user, Details: *details}, nil
}

func set(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (s *Service) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*Profile, error) {
	current, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, details := current.User, current.Details

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidProfile)
		}
		if name != user.Name {
			user.Name = name
			if err := s.store.UpdateUser(ctx, &user); err != nil {
				return nil, err
			}
		}
	}
	set(&details.Phone, in.Phone)
	set(&details.AddressLine1, in.AddressLine1)
	set(&details.AddressLine2, in.AddressLine2)
	set(&details.City, in.City)
	set(&details.PostalCode, in.PostalCode)
	if in.Country != nil {
		details.Country = strings.ToUpper(strings.TrimSpace(*in.Country))
		if details.Country != "" && len(details.Country) != 2 {
			return nil, fmt.Errorf("%w: country must be an ISO 3166 alpha-2 code", ErrInvalidProfile)
		}
	}
	if err := s.store.SaveProfile(ctx, &details); err != nil {
		return nil, err
	}
	return &Profile{User: user, Details: details}, nil
}

// DeleteAccount removes the user and everything attached to it.
func (s *Service) DeleteAccount(ctx context.Context, userID uint) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	logrus.WithField("user_id", userID).Info("🗑️ account deleted")
	audit.Record(ctx, s.audit, audit.Entry{UserID: userID, Action: audit.ActionAccountDeleted, Resource: "user", Success: true})
	return nil
}
