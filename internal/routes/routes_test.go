package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/account"
	"storefront_back_end/internal/admin"
	"storefront_back_end/internal/audit"
	"storefront_back_end/internal/auth"
	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/catalog"
	"storefront_back_end/internal/checkout"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/realtime"
	"storefront_back_end/internal/store"
	"storefront_back_end/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	store  *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, store.SeedDemo(ctx, st))

	c := cache.New(nil)
	broker := realtime.NewLocalBroker()
	trail := audit.NewMemory(audit.MaxQueryLimit)
	catalogSvc := catalog.NewService(st, nil, c, nil)
	carts := cart.NewService(st, cart.NewMemoryGuestStore(), cart.WithNotifier(broker))
	authSvc := auth.NewService(st, auth.WithAudit(trail))
	tokens := utils.NewTokenIssuer("test-secret")
	authMW := middleware.NewAuth(tokens, middleware.NewSessionStore("session-secret-session-secret-32", false), authSvc, c)

	h := handlers.New(handlers.Deps{
		Catalog:  catalogSvc,
		Carts:    carts,
		Checkout: checkout.NewService(st, carts, config.CheckoutConfig{TaxRate: 0.2, FreeShippingThreshold: 50, Currency: "eur"}),
		Auth:     authSvc,
		Account:  account.NewService(st, "https://shop.test"),
		Admin:    admin.NewService(st, admin.WithAudit(trail)),
		Sessions: authMW,
		Tokens:   tokens,
		Broker:   broker,
		Audit:    trail,
	})
	return &fixture{router: NewRouter(h, authMW, middleware.NewRateLimiter(c), Options{}), store: st}
}

func (f *fixture) productID(t *testing.T, slug string) uint {
	t.Helper()
	p, err := f.store.GetProductBySlug(context.Background(), slug)
	require.NoError(t, err)
	return p.ID
}

// client keeps cookies between requests like a browser tab.
type client struct {
	t       *testing.T
	f       *fixture
	cookies map[string]*http.Cookie
	token   string
}

func (f *fixture) client(t *testing.T) *client {
	return &client{t: t, f: f, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, target string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		req = httptest.NewRequest(method, target, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.f.router.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type authBody struct {
	Token string `json:"token"`
	Sync  *struct {
		Cart cart.CartView `json:"cart"`
	} `json:"sync"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.client(t).do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	rec := c.do(http.MethodGet, "/api/products?category=home&sort=price_asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[catalog.ProductPage](t, rec)
	require.NotEmpty(t, page.Items)
	for i := 1; i < len(page.Items); i++ {
		assert.LessOrEqual(t, page.Items[i-1].Price, page.Items[i].Price)
	}

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/products?sort=cheapest", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products/filters", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products/desk-lamp", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/products/no-such-thing", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/categories", nil).Code)

	rec = c.do(http.MethodGet, "/api/products/desk-lamp/reviews", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[catalog.ReviewList](t, rec).Count)

	assert.Equal(t, http.StatusUnauthorized,
		c.do(http.MethodPost, "/api/products/desk-lamp/reviews", map[string]any{"rating": 5}).Code)
}

func TestGuestCartFollowsRegistration(t *testing.T) {
	f := newFixture(t)
	lamp := f.productID(t, "desk-lamp")
	browser := f.client(t)

	rec := browser.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": lamp, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, browser.cookies, middleware.GuestCookie)
	assert.Equal(t, 2, decode[cart.CartView](t, rec).Count)

	rec = browser.do(http.MethodPost, "/api/wishlist/items", map[string]any{"product_id": f.productID(t, "french-press")})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = browser.do(http.MethodPost, "/api/auth/register", map[string]any{
		"email": "new@example.com", "password": "long-enough", "name": "New",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[authBody](t, rec)
	assert.NotEmpty(t, body.Token)
	require.NotNil(t, body.Sync)
	require.Len(t, body.Sync.Cart.Items, 1)
	assert.Equal(t, lamp, body.Sync.Cart.Items[0].Product.ID)

	// The session cookie now identifies the user.
	rec = browser.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "new@example.com")

	rec = browser.do(http.MethodGet, "/api/wishlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[cart.WishlistView](t, rec).Count)

	// Logging out rotates the guest id, so the next guest starts empty.
	guestBefore := browser.cookies[middleware.GuestCookie].Value
	require.Equal(t, http.StatusOK, browser.do(http.MethodPost, "/api/auth/logout", nil).Code)
	assert.NotEqual(t, guestBefore, browser.cookies[middleware.GuestCookie].Value)
	assert.Equal(t, http.StatusUnauthorized, browser.do(http.MethodGet, "/api/auth/me", nil).Code)

	rec = browser.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[cart.CartView](t, rec).Count)
}

func TestCartRejectsUnavailableProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guest := f.client(t)

	soldOut := f.productID(t, "portable-speaker")
	rec := guest.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": soldOut})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusOK,
		guest.do(http.MethodPost, "/api/wishlist/items", map[string]any{"product_id": soldOut}).Code,
		"sold out products can still be saved for later")

	lamp, err := f.store.GetProductBySlug(ctx, "desk-lamp")
	require.NoError(t, err)
	lamp.IsActive = false
	require.NoError(t, f.store.UpdateProduct(ctx, lamp))
	assert.Equal(t, http.StatusBadRequest,
		guest.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": lamp.ID}).Code)

	assert.Equal(t, http.StatusNotFound,
		guest.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": 9999}).Code)

	rec = guest.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[cart.CartView](t, rec).Count)
}

func TestLoginAndSync(t *testing.T) {
	f := newFixture(t)
	api := f.client(t)

	rec := api.do(http.MethodPost, "/api/auth/login", map[string]any{"email": store.DemoCustomerEmail, "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/login", map[string]any{"email": store.DemoCustomerEmail, "password": store.DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	api.token = decode[authBody](t, rec).Token
	api.cookies = map[string]*http.Cookie{}

	lamp := f.productID(t, "desk-lamp")
	payload := map[string]any{
		"cart":     []map[string]any{{"product_id": lamp, "quantity": 3}, {"product_id": 9999, "quantity": 1}},
		"wishlist": []uint{lamp},
	}
	rec = api.do(http.MethodPost, "/api/sync", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[cart.SyncResult](t, rec)
	require.Len(t, result.Cart.Items, 1)
	assert.Equal(t, 3, result.Cart.Items[0].Quantity)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, uint(9999), result.Skipped[0].ProductID)

	// Replaying the same payload changes nothing.
	rec = api.do(http.MethodPost, "/api/sync", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[cart.SyncResult](t, rec).Cart.Items[0].Quantity)

	anonymous := f.client(t)
	assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodPost, "/api/sync", payload).Code)
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)
	lamp := f.productID(t, "desk-lamp")

	guest := f.client(t)
	require.Equal(t, http.StatusOK,
		guest.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": lamp, "quantity": 2}).Code)
	rec := guest.do(http.MethodGet, "/api/checkout/summary?shipping=express&coupon=WELCOME10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[checkout.Summary](t, rec)
	assert.InDelta(t, 69.0, sum.Subtotal, 0.001)
	assert.Equal(t, "WELCOME10", sum.CouponCode)

	assert.Equal(t, http.StatusBadRequest, guest.do(http.MethodGet, "/api/checkout/summary?shipping=teleport", nil).Code)
	assert.Equal(t, http.StatusBadRequest, guest.do(http.MethodGet, "/api/checkout/summary?coupon=NOPE", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, guest.do(http.MethodPost, "/api/checkout/orders", map[string]any{}).Code)

	rec = guest.do(http.MethodPost, "/api/auth/login", map[string]any{"email": store.DemoCustomerEmail, "password": store.DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = guest.do(http.MethodPost, "/api/checkout/orders", map[string]any{"shipping": "standard"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var placed struct {
		Order struct {
			Number string  `json:"number"`
			Total  float64 `json:"total"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	require.NotEmpty(t, placed.Order.Number)

	rec = guest.do(http.MethodGet, "/api/cart", nil)
	assert.Zero(t, decode[cart.CartView](t, rec).Count, "cart is cleared by the order")

	assert.Equal(t, http.StatusBadRequest, guest.do(http.MethodPost, "/api/checkout/orders", nil).Code, "empty cart")

	rec = guest.do(http.MethodGet, "/api/account/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), placed.Order.Number)

	rec = guest.do(http.MethodGet, "/api/account/orders/"+placed.Order.Number+"/qrcode", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, guest.do(http.MethodGet, "/api/account/orders/"+placed.Order.Number+"/invoice", nil).Code)
	assert.Equal(t, http.StatusNotFound, guest.do(http.MethodGet, "/api/account/orders/unknown", nil).Code)
}

func TestAccountRoutes(t *testing.T) {
	f := newFixture(t)
	u := f.client(t)
	require.Equal(t, http.StatusCreated, u.do(http.MethodPost, "/api/auth/register",
		map[string]any{"email": "pm@example.com", "password": "long-enough"}).Code)

	rec := u.do(http.MethodPost, "/api/account/payment-methods",
		map[string]any{"brand": "visa", "last4": "4242", "exp_month": 12, "exp_year": 2099})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pm struct {
		ID        uint `json:"id"`
		IsDefault bool `json:"is_default"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pm))
	assert.True(t, pm.IsDefault)

	assert.Equal(t, http.StatusBadRequest, u.do(http.MethodPost, "/api/account/payment-methods",
		map[string]any{"brand": "visa", "last4": "42", "exp_month": 12, "exp_year": 2099}).Code)
	assert.Equal(t, http.StatusOK, u.do(http.MethodPost, fmt.Sprintf("/api/account/payment-methods/%d/default", pm.ID), nil).Code)
	assert.Equal(t, http.StatusNoContent, u.do(http.MethodDelete, fmt.Sprintf("/api/account/payment-methods/%d", pm.ID), nil).Code)

	rec = u.do(http.MethodPatch, "/api/account/profile", map[string]any{"city": "Lyon", "country": "fr"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"country":"FR"`)

	assert.Equal(t, http.StatusForbidden, u.do(http.MethodPost, "/api/account/password",
		map[string]any{"current_password": "wrong-one", "new_password": "another-long-one"}).Code)
	assert.Equal(t, http.StatusOK, u.do(http.MethodPost, "/api/account/password",
		map[string]any{"current_password": "long-enough", "new_password": "another-long-one"}).Code)

	require.Equal(t, http.StatusOK, u.do(http.MethodDelete, "/api/account", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, u.do(http.MethodGet, "/api/account/profile", nil).Code)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	customer := f.client(t)
	require.Equal(t, http.StatusOK, customer.do(http.MethodPost, "/api/auth/login",
		map[string]any{"email": store.DemoCustomerEmail, "password": store.DemoPassword}).Code)
	assert.Equal(t, http.StatusForbidden, customer.do(http.MethodGet, "/api/admin/users", nil).Code)

	a := f.client(t)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/auth/login",
		map[string]any{"email": store.DemoAdminEmail, "password": store.DemoPassword}).Code)

	rec := a.do(http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[admin.UserPage](t, rec).Total)

	rec = a.do(http.MethodPost, "/api/admin/coupons", map[string]any{"code": "summer", "type": "percentage", "value": 15})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusConflict,
		a.do(http.MethodPost, "/api/admin/coupons", map[string]any{"code": "SUMMER", "type": "fixed", "value": 5}).Code)

	categories, err := f.store.ListCategories(context.Background())
	require.NoError(t, err)
	rec = a.do(http.MethodPost, "/api/admin/products", map[string]any{
		"name": "Walnut Tray", "price": 39.0, "stock": 7, "category_id": categories[0].ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"slug":"walnut-tray"`)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/products/walnut-tray", nil).Code)

	rec = a.do(http.MethodGet, "/api/admin/audit?action="+audit.ActionCouponCreated, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trail struct {
		Entries []audit.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	require.Len(t, trail.Entries, 1)
	assert.Equal(t, "SUMMER", trail.Entries[0].ResourceID)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/admin/audit?user_id=me", nil).Code)

	assert.Equal(t, http.StatusServiceUnavailable, a.do(http.MethodPut, "/api/admin/products/1/image", nil).Code,
		"uploads need object storage")
}
