package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/realtime"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

type wsMessage struct {
	Type     string             `json:"type"`
	Cart     *cart.CartView     `json:"cart,omitempty"`
	Wishlist *cart.WishlistView `json:"wishlist,omitempty"`
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// GET /api/cart/ws pushes the fresh cart to every open tab of the user.
func (h *Handler) CartWebSocket(c *gin.Context) {
	u := user(c)
	owner := cart.Owner{UserID: u.ID}

	events, cancel, err := h.Broker.Subscribe(c.Request.Context(), u.ID)
	if err != nil {
		fail(c, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The reader only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	if err := h.pushCart(ctx, conn, owner, realtime.EventCartUpdated); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.pushCart(ctx, conn, owner, event); err != nil {
				logrus.WithError(err).WithField("user_id", u.ID).Debug("websocket closed")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) pushCart(ctx context.Context, conn *websocket.Conn, owner cart.Owner, event string) error {
	msg := wsMessage{Type: event}
	switch event {
	case realtime.EventWishlistUpdated:
		wishlist, err := h.Carts.Wishlist(ctx, owner)
		if err != nil {
			return err
		}
		msg.Wishlist = wishlist
	default:
		view, err := h.Carts.Cart(ctx, owner)
		if err != nil {
			return err
		}
		msg.Cart = view
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}
