package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/checkout"
	"storefront_back_end/internal/middleware"
)

// GET /api/checkout/summary?shipping=&coupon=
func (h *Handler) CheckoutSummary(c *gin.Context) {
	summary, err := h.Checkout.Summary(c.Request.Context(), middleware.Owner(c), c.Query("shipping"), c.Query("coupon"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// POST /api/checkout/orders
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req checkout.OrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid order request")
			return
		}
	}
	order, err := h.Checkout.PlaceOrder(c.Request.Context(), *user(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}
