package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
)

var orderEmail = template.Must(template.New("order").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Order confirmation</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px;">
<h2>Thanks for your order, {{.Name}}</h2>
<p>Order <strong>{{.Order.Number}}</strong> is {{.Order.Status}}.</p>
<table style="width: 100%; border-collapse: collapse;">
<thead><tr><th align="left">Product</th><th>Qty</th><th>Price</th><th>Total</th></tr></thead>
<tbody>
{{range .Order.Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{money .UnitPrice}}</td><td>{{money .LineTotal}}</td></tr>
{{end}}</tbody>
</table>
<p>Subtotal: {{money .Order.Subtotal}}</p>
{{if gt .Order.Discount 0.0}}<p>Discount: -{{money .Order.Discount}}</p>
{{end}}<p>Shipping: {{money .Order.Shipping}}</p>
<p>Tax: {{money .Order.Tax}}</p>
<p><strong>Total: {{money .Order.Total}} {{.Currency}}</strong></p>
<p><a href="{{.URL}}">View your order</a></p>
</div>
</body>
</html>`))

// InvoicePDF renders an order invoice. Used to attach PDFs to emails.
type InvoicePDF interface {
	Render(ctx context.Context, user models.User, order models.Order) ([]byte, error)
}

// Mailer sends transactional email over SMTP.
type Mailer struct {
	cfg      config.SMTPConfig
	baseURL  string
	invoices InvoicePDF
	send     func(ctx context.Context, msg *mail.Msg) error
}

func NewMailer(cfg config.SMTPConfig, baseURL string, invoices InvoicePDF) *Mailer {
	m := &Mailer{cfg: cfg, baseURL: baseURL, invoices: invoices}
	m.send = m.dialAndSend
	return m
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func renderOrderEmail(user models.User, order models.Order, orderURL string) (string, error) {
	name := user.Name
	if name == "" {
		name = user.Email
	}
	var buf bytes.Buffer
	err := orderEmail.Execute(&buf, map[string]any{
		"Name":     name,
		"Order":    order,
		"Currency": order.Currency,
		"URL":      orderURL,
	})
	return buf.String(), err
}

func (m *Mailer) orderMessage(ctx context.Context, user models.User, order models.Order) (*mail.Msg, error) {
	body, err := renderOrderEmail(user, order, OrderURL(m.baseURL, order.Number))
	if err != nil {
		return nil, err
	}
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(user.Email); err != nil {
		return nil, err
	}
	msg.Subject("Your storefront order " + order.Number)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if m.invoices != nil {
		pdf, err := m.invoices.Render(ctx, user, order)
		if err != nil {
			logrus.WithError(err).WithField("order", order.Number).Warn("⚠️ invoice not attached")
		} else {
			msg.AttachReader("invoice-"+order.Number+".pdf", bytes.NewReader(pdf))
		}
	}
	return msg, nil
}

// OrderConfirmation emails the order summary, with the invoice when available.
func (m *Mailer) OrderConfirmation(ctx context.Context, user models.User, order models.Order) error {
	msg, err := m.orderMessage(ctx, user, order)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"to": user.Email, "order": order.Number}).Info("📤 sending order confirmation")
	return m.send(ctx, msg)
}

var welcomeEmail = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Welcome</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h1>Welcome {{.Name}}!</h1>
<p>Your storefront account is ready. Anything you had in your cart or wishlist as a guest is waiting for you.</p>
<p><a href="{{.URL}}">Start shopping</a></p>
<ul>
<li>Free standard shipping from {{.Threshold}}</li>
<li>Order history and invoices in your dashboard</li>
</ul>
</div>
</body>
</html>`))

func renderWelcomeEmail(user models.User, shopURL string, freeShipping float64) (string, error) {
	name := user.Name
	if name == "" {
		name = user.Email
	}
	var buf bytes.Buffer
	err := welcomeEmail.Execute(&buf, map[string]any{
		"Name":      name,
		"URL":       shopURL,
		"Threshold": fmt.Sprintf("%.2f", freeShipping),
	})
	return buf.String(), err
}

// Welcome greets a newly registered user.
func (m *Mailer) Welcome(ctx context.Context, user models.User, freeShippingThreshold float64) error {
	body, err := renderWelcomeEmail(user, m.baseURL, freeShippingThreshold)
	if err != nil {
		return err
	}
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(user.Email); err != nil {
		return err
	}
	msg.Subject("Welcome to the storefront")
	msg.SetBodyString(mail.TypeTextHTML, body)
	return m.send(ctx, msg)
}
