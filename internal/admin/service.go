package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/audit"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	ErrInvalidCoupon = errors.New("invalid coupon")
	ErrCouponExists  = errors.New("coupon code already exists")
)

type CouponInput struct {
	Code      string     `json:"code" binding:"required"`
	Type      string     `json:"type" binding:"required"`
	Value     float64    `json:"value"`
	MinAmount float64    `json:"min_amount"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Validate checks the coupon shape against the current time.
func (in CouponInput) Validate(now time.Time) error {
	if store.NormalizeCouponCode(in.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidCoupon)
	}
	switch in.Type {
	case models.CouponPercentage:
		if in.Value <= 0 || in.Value > 100 {
			return fmt.Errorf("%w: percentage must be between 1 and 100", ErrInvalidCoupon)
		}
	case models.CouponFixed:
		if in.Value <= 0 {
			return fmt.Errorf("%w: fixed amount must be positive", ErrInvalidCoupon)
		}
	case models.CouponFreeShipping:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCoupon, in.Type)
	}
	if in.MinAmount < 0 {
		return fmt.Errorf("%w: min_amount cannot be negative", ErrInvalidCoupon)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return fmt.Errorf("%w: expires_at must be in the future", ErrInvalidCoupon)
	}
	return nil
}

type UserPage struct {
	Users      []models.User `json:"users"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

type Service struct {
	store store.Store
	audit audit.Logger
	now   func() time.Time
}

type Option func(*Service)

func WithAudit(l audit.Logger) Option { return func(s *Service) { s.audit = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateCoupon(ctx context.Context, by models.User, in CouponInput) (*models.Coupon, error) {
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	c := &models.Coupon{
		Code:      store.NormalizeCouponCode(in.Code),
		Type:      in.Type,
		Value:     in.Value,
		MinAmount: in.MinAmount,
		ExpiresAt: in.ExpiresAt,
		IsActive:  true,
	}
	if err := s.store.CreateCoupon(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrCouponExists
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	logrus.WithFields(logrus.Fields{"code": c.Code, "type": c.Type, "by": by.ID}).Info("🧾 coupon created")
	audit.Record(ctx, s.audit, audit.Entry{
		UserID: by.ID, Action: audit.ActionCouponCreated, Resource: "coupon",
		ResourceID: c.Code, Success: true,
	})
	return c, nil
}

func (s *Service) ListUsers(ctx context.Context, page, pageSize int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	users, total, err := s.store.ListUsers(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = make([]models.User, 0)
	}
	return &UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}
