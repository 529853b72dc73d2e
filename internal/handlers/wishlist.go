package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/middleware"
)

func (h *Handler) GetWishlist(c *gin.Context) {
	view, err := h.Carts.Wishlist(c.Request.Context(), middleware.Owner(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/wishlist/items
func (h *Handler) AddWishlistItem(c *gin.Context) {
	var input struct {
		ProductID uint `json:"product_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "product_id is required")
		return
	}
	view, err := h.Carts.AddToWishlist(c.Request.Context(), middleware.Owner(c), input.ProductID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/wishlist/items/:productId/toggle
func (h *Handler) ToggleWishlistItem(c *gin.Context) {
	productID, ok := uintParam(c, "productId")
	if !ok {
		return
	}
	added, view, err := h.Carts.Toggle(c.Request.Context(), middleware.Owner(c), productID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"in_wishlist": added, "wishlist": view})
}

// POST /api/wishlist/items/:productId/move-to-cart
func (h *Handler) MoveToCart(c *gin.Context) {
	productID, ok := uintParam(c, "productId")
	if !ok {
		return
	}
	cartView, wishlist, err := h.Carts.MoveToCart(c.Request.Context(), middleware.Owner(c), productID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cartView, "wishlist": wishlist})
}

func (h *Handler) RemoveWishlistItem(c *gin.Context) {
	productID, ok := uintParam(c, "productId")
	if !ok {
		return
	}
	view, err := h.Carts.RemoveFromWishlist(c.Request.Context(), middleware.Owner(c), productID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
