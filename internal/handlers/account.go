package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/account"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/services"
)

// GET /api/account/orders?page=&page_size=
func (h *Handler) ListOrders(c *gin.Context) {
	page, err := h.Account.Orders(c.Request.Context(), user(c).ID, intQuery(c, "page", 1), intQuery(c, "page_size", 0))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.Account.Order(c.Request.Context(), user(c).ID, c.Param("number"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// GET /api/account/orders/:number/qrcode
func (h *Handler) OrderQRCode(c *gin.Context) {
	png, err := h.Account.OrderQRCode(c.Request.Context(), user(c).ID, c.Param("number"), intQuery(c, "size", services.DefaultQRSize))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// GET /api/account/orders/:number/invoice
func (h *Handler) OrderInvoice(c *gin.Context) {
	number := c.Param("number")
	pdf, err := h.Account.Invoice(c.Request.Context(), *user(c), number)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoice-`+number+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) ListPaymentMethods(c *gin.Context) {
	methods, err := h.Account.PaymentMethods(c.Request.Context(), user(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

// POST /api/account/payment-methods
func (h *Handler) AddPaymentMethod(c *gin.Context) {
	var input account.PaymentMethodInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "brand, last4, exp_month and exp_year are required")
		return
	}
	pm, err := h.Account.AddPaymentMethod(c.Request.Context(), user(c).ID, input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, pm)
}

// DELETE /api/account/payment-methods/:id
func (h *Handler) DeletePaymentMethod(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.Account.DeletePaymentMethod(c.Request.Context(), user(c).ID, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/account/payment-methods/:id/default
func (h *Handler) SetDefaultPaymentMethod(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	methods, err := h.Account.SetDefaultPaymentMethod(c.Request.Context(), user(c).ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.Account.Profile(c.Request.Context(), user(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// PATCH /api/account/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	var input account.ProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid profile")
		return
	}
	profile, err := h.Account.UpdateProfile(c.Request.Context(), user(c).ID, input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// POST /api/account/password
func (h *Handler) ChangePassword(c *gin.Context) {
	var input struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "new_password is required")
		return
	}
	if err := h.Auth.ChangePassword(c.Request.Context(), user(c).ID, input.CurrentPassword, input.NewPassword); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// DELETE /api/account
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.Account.DeleteAccount(c.Request.Context(), user(c).ID); err != nil {
		fail(c, err)
		return
	}
	if err := h.Sessions.EndSession(c); err != nil {
		logrus.WithError(err).Warn("⚠️ session not cleared")
	}
	if err := h.Sessions.Revoke(c); err != nil {
		logrus.WithError(err).Warn("⚠️ token not revoked")
	}
	middleware.RotateGuest(c, h.Secure)
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}
