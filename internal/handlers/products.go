package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/catalog"
)

// GET /api/products
func (h *Handler) ListProducts(c *gin.Context) {
	var f catalog.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, "invalid query: "+err.Error())
		return
	}
	page, err := h.Catalog.ListProducts(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/products/filters
func (h *Handler) ProductFilters(c *gin.Context) {
	filters, err := h.Catalog.Filters(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, filters)
}

// GET /api/products/:slug
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.Catalog.GetProduct(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) ListReviews(c *gin.Context) {
	list, err := h.Catalog.ListReviews(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// POST /api/products/:slug/reviews
func (h *Handler) AddReview(c *gin.Context) {
	var input struct {
		Rating  int    `json:"rating" binding:"required"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "rating is required")
		return
	}
	review, err := h.Catalog.AddReview(c.Request.Context(), *user(c), c.Param("slug"), input.Rating, input.Comment)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}
