package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/audit"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"
	"storefront_back_end/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnverifiedEmail    = errors.New("provider did not verify this email, sign in with your password")
)

// Welcomer greets new accounts. Failures are logged only.
type Welcomer interface {
	Welcome(ctx context.Context, user models.User, freeShippingThreshold float64) error
}

type Service struct {
	store        store.Store
	audit        audit.Logger
	welcomer     Welcomer
	freeShipping float64
}

type Option func(*Service)

func WithAudit(l audit.Logger) Option { return func(s *Service) { s.audit = l } }

func WithWelcomer(w Welcomer, freeShippingThreshold float64) Option {
	return func(s *Service) {
		s.welcomer = w
		s.freeShipping = freeShippingThreshold
	}
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, audit: audit.Noop{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) (string, error) {
	email = store.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Register creates a local account.
func (s *Service) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         models.RoleCustomer,
		Provider:     models.ProviderLocal,
	}
	err = s.store.CreateUser(ctx, user)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("✅ account created")
	audit.Record(ctx, s.audit, audit.Entry{UserID: user.ID, Action: audit.ActionRegister, Resource: "user", Success: true})
	if s.welcomer != nil {
		if err := s.welcomer.Welcome(ctx, *user, s.freeShipping); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("⚠️ welcome email not sent")
		}
	}
	return user, nil
}

// Authenticate checks local credentials. Unknown emails and wrong passwords
// are reported the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, store.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(password, user.PasswordHash) {
		audit.Record(ctx, s.audit, audit.Entry{UserID: user.ID, Action: audit.ActionLogin, Resource: "user", Detail: "bad password"})
		return nil, ErrInvalidCredentials
	}
	audit.Record(ctx, s.audit, audit.Entry{UserID: user.ID, Action: audit.ActionLogin, Resource: "user", Success: true})
	return user, nil
}

func (s *Service) User(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// FindOrCreateOAuthUser resolves a provider identity to an account: first by
// provider id, then by email (linking the provider, only when the provider
// verified the address), else a new account.
func (s *Service) FindOrCreateOAuthUser(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.store.GetUserByProvider(ctx, id.Provider, id.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	email, err := normalizeEmail(id.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: provider returned no usable email", ErrInvalidEmail)
	}
	user, err = s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.ProviderID != id.ProviderID && !id.EmailVerified {
			logrus.WithFields(logrus.Fields{"user_id": user.ID, "provider": id.Provider}).Warn("⚠️ oauth link refused, email not verified")
			return nil, ErrUnverifiedEmail
		}
		if user.ProviderID == "" {
			user.ProviderID = id.ProviderID
			if user.PasswordHash == "" {
				user.Provider = id.Provider
			}
			if err := s.store.UpdateUser(ctx, user); err != nil {
				return nil, err
			}
		}
		return user, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user = &models.User{
		Email:      email,
		Name:       name,
		Role:       models.RoleCustomer,
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "provider": id.Provider}).Info("✅ account created from OAuth")
	audit.Record(ctx, s.audit, audit.Entry{UserID: user.ID, Action: audit.ActionRegister, Resource: "user", Success: true, Detail: id.Provider})
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
// OAuth-only accounts may set a first password with an empty current one.
func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.User(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash != "" && !utils.VerifyPassword(current, user.PasswordHash) {
		return ErrWrongPassword
	}
	if err := utils.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return err
	}
	audit.Record(ctx, s.audit, audit.Entry{UserID: user.ID, Action: audit.ActionPasswordChange, Resource: "user", Success: true})
	return nil
}
