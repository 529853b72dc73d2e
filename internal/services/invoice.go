package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"storefront_back_end/internal/models"
)

var invoicePage = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"date":  func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Invoice {{.Order.Number}}</title>
<style>body{font-family:Arial,sans-serif;margin:40px}table{width:100%;border-collapse:collapse}td,th{border-bottom:1px solid #ddd;padding:6px}</style>
</head>
<body>
<h1>Invoice</h1>
<p>Order {{.Order.Number}} placed {{date .Order.CreatedAt}}</p>
<p>Billed to {{.User.Name}} &lt;{{.User.Email}}&gt;</p>
{{if .Order.ShippingAddress}}<p>Ship to {{.Order.ShippingAddress}}</p>{{end}}
<table>
<tr><th align="left">Product</th><th>Qty</th><th>Unit</th><th>Total</th></tr>
{{range .Order.Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{money .UnitPrice}}</td><td>{{money .LineTotal}}</td></tr>
{{end}}</table>
<p>Subtotal {{money .Order.Subtotal}} | Discount {{money .Order.Discount}} | Shipping {{money .Order.Shipping}} | Tax {{money .Order.Tax}}</p>
<h2>Total {{money .Order.Total}} {{.Order.Currency}}</h2>
{{if .QR}}<img alt="order" width="128" height="128" src="{{.QR}}">{{end}}
</body>
</html>`))

// InvoiceRenderer prints invoices to PDF with a headless Chrome.
type InvoiceRenderer struct {
	baseURL  string
	frontURL string
	timeout  time.Duration
}

// NewInvoiceRenderer renders the built-in invoice page, or frontURL?number=...
// when a front end page is configured.
func NewInvoiceRenderer(baseURL, frontURL string) *InvoiceRenderer {
	return &InvoiceRenderer{baseURL: baseURL, frontURL: frontURL, timeout: 30 * time.Second}
}

// InvoiceHTML renders the invoice page for an order.
func (r *InvoiceRenderer) InvoiceHTML(user models.User, order models.Order) (string, error) {
	png, err := OrderQRCode(r.baseURL, order.Number, 128)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = invoicePage.Execute(&buf, map[string]any{
		"User":  user,
		"Order": order,
		"QR":    template.URL(PNGDataURI(png)),
	})
	return buf.String(), err
}

// pageURL is what Chrome navigates to.
func (r *InvoiceRenderer) pageURL(user models.User, order models.Order) (string, error) {
	if r.frontURL != "" {
		q := url.Values{}
		q.Set("number", order.Number)
		return r.frontURL + "?" + q.Encode(), nil
	}
	html, err := r.InvoiceHTML(user, order)
	if err != nil {
		return "", err
	}
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html)), nil
}

func (r *InvoiceRenderer) Render(ctx context.Context, user models.User, order models.Order) ([]byte, error) {
	target, err := r.pageURL(user, order)
	if err != nil {
		return nil, err
	}

	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var pdf []byte
	err = chromedp.Run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print invoice %s: %w", order.Number, err)
	}
	return pdf, nil
}
