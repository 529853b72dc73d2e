package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/markbates/goth/gothic"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/auth"
	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/models"
)

type authResponse struct {
	User      *models.User     `json:"user"`
	Token     string           `json:"token"`
	ExpiresAt int64            `json:"expires_at"`
	Sync      *cart.SyncResult `json:"sync,omitempty"`
}

// signIn opens the browser session, issues an API token and folds the
// guest cart and wishlist into the account.
func (h *Handler) signIn(c *gin.Context, u *models.User, status int) {
	if err := h.Sessions.StartSession(c, u.ID); err != nil {
		fail(c, err)
		return
	}
	token, claims, err := h.Tokens.Generate(*u)
	if err != nil {
		fail(c, err)
		return
	}

	resp := authResponse{User: u, Token: token, ExpiresAt: claims.ExpiresAt.Unix()}
	if guestID := middleware.GuestID(c); guestID != "" {
		result, err := h.Carts.MergeGuest(c.Request.Context(), guestID, u.ID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", u.ID).Warn("⚠️ guest cart not merged")
		} else {
			resp.Sync = result
		}
	}
	c.JSON(status, resp)
}

// POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	u, err := h.Auth.Register(c.Request.Context(), input.Email, input.Password, input.Name)
	if err != nil {
		fail(c, err)
		return
	}
	h.signIn(c, u, http.StatusCreated)
}

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	u, err := h.Auth.Authenticate(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		fail(c, err)
		return
	}
	logrus.WithField("user_id", u.ID).Info("✅ login")
	h.signIn(c, u, http.StatusOK)
}

// POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.Sessions.EndSession(c); err != nil {
		logrus.WithError(err).Warn("⚠️ session not cleared")
	}
	if err := h.Sessions.Revoke(c); err != nil {
		logrus.WithError(err).Warn("⚠️ token not revoked")
	}
	middleware.RotateGuest(c, h.Secure)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": user(c)})
}

// GET /api/auth/oauth/:provider
func (h *Handler) OAuthBegin(c *gin.Context) {
	c.Request = gothic.GetContextWithProvider(c.Request, c.Param("provider"))
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// GET /api/auth/oauth/:provider/callback
func (h *Handler) OAuthCallback(c *gin.Context) {
	c.Request = gothic.GetContextWithProvider(c.Request, c.Param("provider"))
	gu, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		logrus.WithError(err).WithField("provider", c.Param("provider")).Warn("⚠️ oauth callback rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "oauth authentication failed"})
		return
	}
	u, err := h.Auth.FindOrCreateOAuthUser(c.Request.Context(), auth.IdentityFromGoth(gu))
	if err != nil {
		fail(c, err)
		return
	}
	h.signIn(c, u, http.StatusOK)
}
