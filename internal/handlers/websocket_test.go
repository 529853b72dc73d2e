package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/auth"
	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/realtime"
	"storefront_back_end/internal/store"
	"storefront_back_end/internal/utils"
)

type wsFixture struct {
	server *httptest.Server
	carts  *cart.Service
	store  *store.MemoryStore
	token  string
	userID uint
}

func newWSFixture(t *testing.T, origins []string) *wsFixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, store.SeedDemo(ctx, st))
	u, err := st.GetUserByEmail(ctx, store.DemoCustomerEmail)
	require.NoError(t, err)

	broker := realtime.NewLocalBroker()
	carts := cart.NewService(st, cart.NewMemoryGuestStore(), cart.WithNotifier(broker))
	tokens := utils.NewTokenIssuer("test-secret")
	token, _, err := tokens.Generate(*u)
	require.NoError(t, err)
	authMW := middleware.NewAuth(tokens, middleware.NewSessionStore("session-secret-session-secret-32", false), auth.NewService(st), cache.New(nil))

	h := New(Deps{Carts: carts, Broker: broker, AllowedOrigins: origins})
	r := gin.New()
	r.GET("/api/cart/ws", authMW.AuthRequired(), h.CartWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &wsFixture{server: srv, carts: carts, store: st, token: token, userID: u.ID}
}

func (f *wsFixture) dial(origin string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{"Authorization": {"Bearer " + f.token}}
	if origin != "" {
		header.Set("Origin", origin)
	}
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/cart/ws"
	return websocket.DefaultDialer.Dial(url, header)
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestCartWebSocketPushesUpdates(t *testing.T) {
	f := newWSFixture(t, nil)
	ctx := context.Background()

	conn, _, err := f.dial("")
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, realtime.EventCartUpdated, first.Type)
	require.NotNil(t, first.Cart)
	assert.Zero(t, first.Cart.Count)

	lamp, err := f.store.GetProductBySlug(ctx, "desk-lamp")
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, cart.Owner{UserID: f.userID}, lamp.ID, 2)
	require.NoError(t, err)

	update := readMessage(t, conn)
	assert.Equal(t, realtime.EventCartUpdated, update.Type)
	require.NotNil(t, update.Cart)
	assert.Equal(t, 2, update.Cart.Count)

	_, err = f.carts.AddToWishlist(ctx, cart.Owner{UserID: f.userID}, lamp.ID)
	require.NoError(t, err)
	wish := readMessage(t, conn)
	assert.Equal(t, realtime.EventWishlistUpdated, wish.Type)
	require.NotNil(t, wish.Wishlist)
	assert.Equal(t, 1, wish.Wishlist.Count)
}

func TestCartWebSocketChecksOrigin(t *testing.T) {
	f := newWSFixture(t, nil)

	_, resp, err := f.dial("https://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := f.dial(f.server.URL)
	require.NoError(t, err, "same host is accepted")
	conn.Close()

	listed := newWSFixture(t, []string{"https://shop.example"})
	conn, _, err = listed.dial("https://shop.example")
	require.NoError(t, err)
	conn.Close()
	_, resp, err = listed.dial("https://evil.example")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
