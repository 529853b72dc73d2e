package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/utils"
)

const (
	SessionName   = "storefront_session"
	SessionMaxAge = 30 * 24 * time.Hour

	sessionUserKey = "user_id"

	ctxUser   = "user"
	ctxClaims = "claims"
)

// UserLoader resolves the account behind a session or token.
type UserLoader interface {
	User(ctx context.Context, id uint) (*models.User, error)
}

// Auth resolves the current user from the session cookie or a bearer token.
type Auth struct {
	tokens   *utils.TokenIssuer
	sessions sessions.Store
	users    UserLoader
	cache    *cache.Cache
}

func NewAuth(tokens *utils.TokenIssuer, store sessions.Store, users UserLoader, c *cache.Cache) *Auth {
	return &Auth{tokens: tokens, sessions: store, users: users, cache: c}
}

// NewSessionStore builds the cookie store used for login sessions.
func NewSessionStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// resolve returns the user behind the request, nil for anonymous requests.
func (a *Auth) resolve(c *gin.Context) *models.User {
	ctx := c.Request.Context()
	if raw := bearer(c); raw != "" {
		claims, err := a.tokens.Parse(raw)
		if err != nil {
			logrus.WithError(err).Debug("bearer token rejected")
			return nil
		}
		if a.cache.IsTokenBlacklisted(ctx, claims.ID) {
			return nil
		}
		user, err := a.users.User(ctx, claims.UserID)
		if err != nil {
			return nil
		}
		c.Set(ctxClaims, claims)
		return user
	}

	session, err := a.sessions.Get(c.Request, SessionName)
	if err != nil {
		return nil
	}
	id, ok := session.Values[sessionUserKey].(uint)
	if !ok || id == 0 {
		return nil
	}
	user, err := a.users.User(ctx, id)
	if err != nil {
		return nil
	}
	return user
}

// OptionalAuth attaches the user when the request carries credentials.
func (a *Auth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := a.resolve(c); user != nil {
			c.Set(ctxUser, user)
		}
		c.Next()
	}
}

func (a *Auth) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := a.resolve(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(ctxUser, user)
		c.Next()
	}
}

// AdminOnly must run after AuthRequired.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// TokenClaims returns the claims of the bearer token, if one authenticated the request.
func TokenClaims(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}

// StartSession logs the user in on this browser.
func (a *Auth) StartSession(c *gin.Context, userID uint) error {
	session, _ := a.sessions.Get(c.Request, SessionName)
	session.Values[sessionUserKey] = userID
	return session.Save(c.Request, c.Writer)
}

// EndSession clears the session cookie.
func (a *Auth) EndSession(c *gin.Context) error {
	session, _ := a.sessions.Get(c.Request, SessionName)
	delete(session.Values, sessionUserKey)
	session.Options.MaxAge = -1
	return session.Save(c.Request, c.Writer)
}

// Revoke blacklists the token that authenticated the request until it expires.
func (a *Auth) Revoke(c *gin.Context) error {
	claims, ok := TokenClaims(c)
	if !ok {
		return nil
	}
	return a.cache.BlacklistToken(c.Request.Context(), claims.ID, claims.TTL(time.Now()))
}
