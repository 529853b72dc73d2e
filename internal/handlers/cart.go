package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/middleware"
)

type cartItemInput struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// GET /api/cart
func (h *Handler) GetCart(c *gin.Context) {
	view, err := h.Carts.Cart(c.Request.Context(), middleware.Owner(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/cart/items
func (h *Handler) AddCartItem(c *gin.Context) {
	var input cartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "product_id is required")
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	view, err := h.Carts.Add(c.Request.Context(), middleware.Owner(c), input.ProductID, input.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PATCH /api/cart/items/:productId
func (h *Handler) UpdateCartItem(c *gin.Context) {
	productID, ok := uintParam(c, "productId")
	if !ok {
		return
	}
	var input struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "quantity is required")
		return
	}
	view, err := h.Carts.SetQuantity(c.Request.Context(), middleware.Owner(c), productID, *input.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DELETE /api/cart/items/:productId
func (h *Handler) RemoveCartItem(c *gin.Context) {
	productID, ok := uintParam(c, "productId")
	if !ok {
		return
	}
	view, err := h.Carts.Remove(c.Request.Context(), middleware.Owner(c), productID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DELETE /api/cart
func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.Carts.Clear(c.Request.Context(), middleware.Owner(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, &cart.CartView{Items: []cart.CartLine{}})
}

// POST /api/sync
func (h *Handler) Sync(c *gin.Context) {
	var req cart.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid sync payload")
		return
	}
	result, err := h.Carts.Sync(c.Request.Context(), user(c).ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
