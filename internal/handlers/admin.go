package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/admin"
	"storefront_back_end/internal/audit"
	"storefront_back_end/internal/catalog"
	"storefront_back_end/internal/models"
)

const maxImageSize = 5 << 20

func (h *Handler) recordProductWrite(c *gin.Context, p *models.Product, detail string) {
	audit.Record(c.Request.Context(), h.Audit, audit.Entry{
		UserID:     user(c).ID,
		Action:     audit.ActionProductWrite,
		Resource:   "product",
		ResourceID: strconv.FormatUint(uint64(p.ID), 10),
		IPAddress:  c.ClientIP(),
		Success:    true,
		Detail:     detail,
	})
}

// POST /api/admin/products
func (h *Handler) CreateProduct(c *gin.Context) {
	var input catalog.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid product")
		return
	}
	p, err := h.Catalog.CreateProduct(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"product_id": p.ID, "slug": p.Slug}).Info("✅ product created")
	h.recordProductWrite(c, p, "create")
	c.JSON(http.StatusCreated, p)
}

// PATCH /api/admin/products/:id
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var input catalog.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid product")
		return
	}
	p, err := h.Catalog.UpdateProduct(c.Request.Context(), id, input)
	if err != nil {
		fail(c, err)
		return
	}
	h.recordProductWrite(c, p, "update")
	c.JSON(http.StatusOK, p)
}

// PUT /api/admin/products/:id/image takes a multipart "image" field.
func (h *Handler) UploadProductImage(c *gin.Context) {
	if h.Images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage is not configured"})
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	header, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	if header.Size > maxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 5 MB"})
		return
	}
	if _, err := h.Catalog.ProductByID(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	f, err := header.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	key, err := h.Images.Upload(c.Request.Context(), id, f, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		fail(c, err)
		return
	}
	p, err := h.Catalog.SetImage(c.Request.Context(), id, key)
	if err != nil {
		fail(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"product_id": id, "key": key}).Info("📤 product image uploaded")
	h.recordProductWrite(c, p, "image")
	c.JSON(http.StatusOK, p)
}

// POST /api/admin/coupons
func (h *Handler) CreateCoupon(c *gin.Context) {
	var input admin.CouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "code and type are required")
		return
	}
	coupon, err := h.Admin.CreateCoupon(c.Request.Context(), *user(c), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

// GET /api/admin/users?page=&page_size=
func (h *Handler) ListUsers(c *gin.Context) {
	page, err := h.Admin.ListUsers(c.Request.Context(), intQuery(c, "page", 1), intQuery(c, "page_size", admin.DefaultPageSize))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/admin/audit?user_id=&action=&limit=
func (h *Handler) ListAuditEntries(c *gin.Context) {
	reader, ok := h.Audit.(audit.Reader)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit trail is not readable"})
		return
	}
	q := audit.Query{Action: c.Query("action"), Limit: intQuery(c, "limit", audit.DefaultQueryLimit)}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid user_id")
			return
		}
		q.UserID = uint(id)
	}
	entries, err := reader.Entries(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
