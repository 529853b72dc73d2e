package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront_back_end/internal/cart"
)

const (
	GuestCookie = "guest_id"
	ctxGuestID  = "guest_id"
)

var guestMaxAge = int(cart.GuestTTL.Seconds())

func setGuestCookie(c *gin.Context, id string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(GuestCookie, id, guestMaxAge, "/", "", secure, true)
}

// GuestSession makes sure every request carries a guest id cookie.
func GuestSession(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(GuestCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			setGuestCookie(c, id, secure)
		}
		c.Set(ctxGuestID, id)
		c.Next()
	}
}

func GuestID(c *gin.Context) string {
	return c.GetString(ctxGuestID)
}

// RotateGuest replaces the guest id so the next guest starts empty.
func RotateGuest(c *gin.Context, secure bool) string {
	id := uuid.NewString()
	setGuestCookie(c, id, secure)
	c.Set(ctxGuestID, id)
	return id
}

// Owner is the logged in user when there is one, the guest otherwise.
func Owner(c *gin.Context) cart.Owner {
	if user, ok := CurrentUser(c); ok {
		return cart.Owner{UserID: user.ID}
	}
	return cart.Owner{GuestID: GuestID(c)}
}
