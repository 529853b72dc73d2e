package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/middleware"
)

type Options struct {
	CORSOrigins []string
	Secure      bool
}

// NewRouter builds the engine with the global middleware stack and every route.
func NewRouter(h *handlers.Handler, a *middleware.Auth, limiter *middleware.RateLimiter, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Retry-After", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	Register(r, h, a, limiter, opts.Secure)
	return r
}

func Register(r *gin.Engine, h *handlers.Handler, a *middleware.Auth, limiter *middleware.RateLimiter, secure bool) {
	r.GET("/healthz", handlers.Health)

	api := r.Group("/api", middleware.GuestSession(secure), a.OptionalAuth())
	authed := a.AuthRequired()

	// Catalog
	api.GET("/products", limiter.Search(), h.ListProducts)
	api.GET("/products/filters", h.ProductFilters)
	api.GET("/products/:slug", h.GetProduct)
	api.GET("/products/:slug/reviews", h.ListReviews)
	api.POST("/products/:slug/reviews", authed, h.AddReview)
	api.GET("/categories", h.ListCategories)

	// Cart, guest or user
	cartWrites := limiter.CartWrites()
	api.GET("/cart", h.GetCart)
	api.POST("/cart/items", cartWrites, h.AddCartItem)
	api.PATCH("/cart/items/:productId", cartWrites, h.UpdateCartItem)
	api.DELETE("/cart/items/:productId", cartWrites, h.RemoveCartItem)
	api.DELETE("/cart", cartWrites, h.ClearCart)
	api.GET("/cart/ws", authed, h.CartWebSocket)

	api.GET("/wishlist", h.GetWishlist)
	api.POST("/wishlist/items", cartWrites, h.AddWishlistItem)
	api.POST("/wishlist/items/:productId/toggle", cartWrites, h.ToggleWishlistItem)
	api.POST("/wishlist/items/:productId/move-to-cart", cartWrites, h.MoveToCart)
	api.DELETE("/wishlist/items/:productId", cartWrites, h.RemoveWishlistItem)

	api.POST("/sync", authed, h.Sync)

	// Checkout
	api.GET("/checkout/summary", h.CheckoutSummary)
	api.POST("/checkout/orders", authed, h.PlaceOrder)

	// Auth
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", limiter.Register(), h.Register)
		authGroup.POST("/login", limiter.Login(), h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", authed, h.Me)
		authGroup.GET("/oauth/:provider", h.OAuthBegin)
		authGroup.GET("/oauth/:provider/callback", h.OAuthCallback)
	}

	// Account dashboard
	acc := api.Group("/account", authed)
	{
		acc.GET("/orders", h.ListOrders)
		acc.GET("/orders/:number", h.GetOrder)
		acc.GET("/orders/:number/qrcode", h.OrderQRCode)
		acc.GET("/orders/:number/invoice", h.OrderInvoice)

		acc.GET("/payment-methods", h.ListPaymentMethods)
		acc.POST("/payment-methods", h.AddPaymentMethod)
		acc.DELETE("/payment-methods/:id", h.DeletePaymentMethod)
		acc.POST("/payment-methods/:id/default", h.SetDefaultPaymentMethod)

		acc.GET("/profile", h.GetProfile)
		acc.PATCH("/profile", h.UpdateProfile)
		acc.POST("/password", h.ChangePassword)
	}
	api.DELETE("/account", authed, h.DeleteAccount)

	// Admin
	adm := api.Group("/admin", authed, middleware.AdminOnly())
	{
		adm.POST("/products", h.CreateProduct)
		adm.PATCH("/products/:id", h.UpdateProduct)
		adm.PUT("/products/:id/image", h.UploadProductImage)
		adm.POST("/coupons", h.CreateCoupon)
		adm.GET("/users", h.ListUsers)
		adm.GET("/audit", h.ListAuditEntries)
	}
}
