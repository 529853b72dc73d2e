package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/account"
	"storefront_back_end/internal/admin"
	"storefront_back_end/internal/audit"
	"storefront_back_end/internal/auth"
	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/catalog"
	"storefront_back_end/internal/checkout"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/realtime"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/store"
	"storefront_back_end/internal/utils"
)

// ImageUploader stores product images. Nil when object storage is not configured.
type ImageUploader interface {
	Upload(ctx context.Context, productID uint, r io.Reader, size int64, contentType string) (string, error)
}

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Catalog  *catalog.Service
	Carts    *cart.Service
	Checkout *checkout.Service
	Auth     *auth.Service
	Account  *account.Service
	Admin    *admin.Service
	Sessions *middleware.Auth
	Tokens   *utils.TokenIssuer
	Broker   realtime.Broker
	Images   ImageUploader
	Audit    audit.Logger
	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string
	// Secure marks cookies Secure, set in production.
	Secure bool
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	return &Handler{Deps: d}
}

type statusRule struct {
	err    error
	status int
}

var statusRules = []statusRule{
	{store.ErrNotFound, http.StatusNotFound},
	{store.ErrInsufficientStock, http.StatusConflict},

	{catalog.ErrProductNotFound, http.StatusNotFound},
	{catalog.ErrInvalidFilter, http.StatusBadRequest},
	{catalog.ErrInvalidRating, http.StatusBadRequest},
	{catalog.ErrAlreadyReviewed, http.StatusConflict},
	{catalog.ErrInvalidProduct, http.StatusBadRequest},
	{catalog.ErrSlugTaken, http.StatusConflict},

	{cart.ErrProductNotFound, http.StatusNotFound},
	{cart.ErrProductUnavailable, http.StatusBadRequest},
	{cart.ErrInvalidQuantity, http.StatusBadRequest},
	{cart.ErrNotInCart, http.StatusNotFound},
	{cart.ErrNotInWishlist, http.StatusNotFound},
	{cart.ErrNoOwner, http.StatusBadRequest},

	{checkout.ErrEmptyCart, http.StatusBadRequest},
	{checkout.ErrInvalidShipping, http.StatusBadRequest},
	{checkout.ErrCouponInvalid, http.StatusBadRequest},
	{checkout.ErrLoginRequired, http.StatusUnauthorized},
	{checkout.ErrPaymentMethodNotFound, http.StatusBadRequest},
	{checkout.ErrUnavailableItemsInCart, http.StatusConflict},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrEmailTaken, http.StatusConflict},
	{auth.ErrInvalidEmail, http.StatusBadRequest},
	{auth.ErrWrongPassword, http.StatusForbidden},
	{auth.ErrUnverifiedEmail, http.StatusForbidden},
	{auth.ErrUserNotFound, http.StatusNotFound},
	{utils.ErrWeakPassword, http.StatusBadRequest},

	{account.ErrOrderNotFound, http.StatusNotFound},
	{account.ErrPaymentMethodNotFound, http.StatusNotFound},
	{account.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{account.ErrInvalidProfile, http.StatusBadRequest},
	{account.ErrInvoicesDisabled, http.StatusNotFound},

	{admin.ErrInvalidCoupon, http.StatusBadRequest},
	{admin.ErrCouponExists, http.StatusConflict},
	{services.ErrUnsupportedImage, http.StatusUnsupportedMediaType},
}

func statusFor(err error) int {
	for _, r := range statusRules {
		if errors.Is(err, r.err) {
			return r.status
		}
	}
	return http.StatusInternalServerError
}

// fail answers with the status mapped from err. Unknown errors are logged
// and hidden from the client.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("❌ request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// user returns the authenticated user. Routes using it sit behind AuthRequired.
func user(c *gin.Context) *models.User {
	u, _ := middleware.CurrentUser(c)
	return u
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
