package services

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
)

var testOrder = models.Order{
	Number:   "0b6c1f7e-4d1a-4b8e-9a57-5d6f3e2c1a90",
	Status:   models.OrderStatusConfirmed,
	Subtotal: 69,
	Discount: 6.9,
	Shipping: 5.99,
	Tax:      12.42,
	Total:    80.51,
	Currency: "eur",
	Items: []models.OrderItem{
		{ProductID: 5, Name: "Desk Lamp", UnitPrice: 34.5, Quantity: 2},
	},
	CreatedAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
}

var testUser = models.User{ID: 3, Email: "ada@example.com", Name: "Ada"}

func TestOrderQRCode(t *testing.T) {
	png, err := OrderQRCode("https://shop.test", testOrder.Number, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
	assert.True(t, strings.HasPrefix(PNGDataURI(png), "data:image/png;base64,"))

	_, err = OrderQRCode("https://shop.test", "", 0)
	assert.Error(t, err)
	assert.Equal(t, "https://shop.test/account/orders/abc", OrderURL("https://shop.test", "abc"))
}

func TestRenderOrderEmail(t *testing.T) {
	body, err := renderOrderEmail(testUser, testOrder, "https://shop.test/account/orders/x")
	require.NoError(t, err)
	assert.Contains(t, body, "Thanks for your order, Ada")
	assert.Contains(t, body, testOrder.Number)
	assert.Contains(t, body, "<td>Desk Lamp</td><td>2</td><td>34.50</td><td>69.00</td>")
	assert.Contains(t, body, "Discount: -6.90")
	assert.Contains(t, body, "Total: 80.51 eur")

	noDiscount := testOrder
	noDiscount.Discount = 0
	body, err = renderOrderEmail(models.User{Email: "x@example.com"}, noDiscount, "")
	require.NoError(t, err)
	assert.NotContains(t, body, "Discount")
	assert.Contains(t, body, "Thanks for your order, x@example.com")
}

type fakeInvoices struct{ err error }

func (f fakeInvoices) Render(context.Context, models.User, models.Order) ([]byte, error) {
	return []byte("%PDF-1.4"), f.err
}

func TestOrderConfirmationSends(t *testing.T) {
	for name, invoices := range map[string]InvoicePDF{
		"with invoice":      fakeInvoices{},
		"invoice failure":   fakeInvoices{err: errors.New("chrome not found")},
		"invoices disabled": nil,
	} {
		t.Run(name, func(t *testing.T) {
			m := NewMailer(config.SMTPConfig{Host: "smtp.test", Port: 587, From: "noreply@storefront.local"}, "https://shop.test", invoices)
			var sent *mail.Msg
			m.send = func(_ context.Context, msg *mail.Msg) error {
				sent = msg
				return nil
			}
			require.NoError(t, m.OrderConfirmation(context.Background(), testUser, testOrder))
			require.NotNil(t, sent)

			rcpts, err := sent.GetRecipients()
			require.NoError(t, err)
			assert.Equal(t, []string{"ada@example.com"}, rcpts)

			var raw bytes.Buffer
			_, err = sent.WriteTo(&raw)
			require.NoError(t, err)
			assert.Contains(t, raw.String(), "Subject: Your storefront order "+testOrder.Number)
		})
	}
}

func TestOrderConfirmationRejectsBadAddress(t *testing.T) {
	m := NewMailer(config.SMTPConfig{From: "noreply@storefront.local"}, "", nil)
	m.send = func(context.Context, *mail.Msg) error {
		t.Fatal("must not send")
		return nil
	}
	assert.Error(t, m.OrderConfirmation(context.Background(), models.User{Email: "not an address"}, testOrder))
}

func TestInvoiceHTML(t *testing.T) {
	r := NewInvoiceRenderer("https://shop.test", "")
	html, err := r.InvoiceHTML(testUser, testOrder)
	require.NoError(t, err)
	assert.Contains(t, html, "Invoice "+testOrder.Number)
	assert.Contains(t, html, "placed 2026-04-02")
	assert.Contains(t, html, `src="data:image/png;base64,`)
	assert.Contains(t, html, "Total 80.51 eur")

	target, err := r.pageURL(testUser, testOrder)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(target, "data:text/html;base64,"))

	front := NewInvoiceRenderer("https://shop.test", "https://front.test/invoice")
	target, err = front.pageURL(testUser, testOrder)
	require.NoError(t, err)
	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "front.test", u.Host)
	assert.Equal(t, testOrder.Number, u.Query().Get("number"))
}

func TestWelcome(t *testing.T) {
	body, err := renderWelcomeEmail(testUser, "https://shop.test", 50)
	require.NoError(t, err)
	assert.Contains(t, body, "Welcome Ada!")
	assert.Contains(t, body, "from 50.00")
	assert.Contains(t, body, `href="https://shop.test"`)

	m := NewMailer(config.SMTPConfig{From: "noreply@storefront.local"}, "https://shop.test", nil)
	calls := 0
	m.send = func(context.Context, *mail.Msg) error {
		calls++
		return nil
	}
	require.NoError(t, m.Welcome(context.Background(), testUser, 50))
	assert.Equal(t, 1, calls)
}
