package services

import (
	"fmt"
	"html/template"
	"log"
	"strings"

	"shopfront/internal/models"
)

// MailSender delivers a single HTML email.
type MailSender interface {
	Send(to, subject, htmlBody string) error
}

var confirmationTemplate = template.Must(template.New("orderConfirmation").Parse(`<h3>Thank you for your order!</h3>
<p>Your order has been placed successfully.</p>
<p><b>Order ID:</b> {{.ID}}</p>
<p><b>Payment Method:</b> {{.PaymentMethod}}</p>
<p><b>Total Amount:</b> ₹{{printf "%.2f" .Amount}}</p>
<p><b>Delivery Address:</b> {{.Address.Street}}, {{.Address.City}}, {{.Address.State}}, {{.Address.Zipcode}}, {{.Address.Country}}</p>
<h4>Order Details:</h4>
<ul>
{{range .Items}}<li>{{.Name}} (Size: {{if .Size}}{{.Size}}{{else}}N/A{{end}}) - ₹{{.Price}} x {{.Quantity}}</li>
{{end}}</ul>
<p>We will notify you when your order is shipped.</p>`))

// MailService renders and sends order-confirmation emails. It runs behind
// the notification queue, never inside a request handler.
type MailService struct {
	sender MailSender
}

// NewMailService creates a new MailService.
func NewMailService(sender MailSender) *MailService {
	return &MailService{
		sender: sender,
	}
}

// SendOrderConfirmation sends the confirmation mail for one order. Orders
// without a contact address are skipped silently.
func (s *MailService) SendOrderConfirmation(order models.Order) error {
	if order.Email == "" {
		return nil
	}

	body, err := renderOrderConfirmation(order)
	if err != nil {
		return fmt.Errorf("failed to render confirmation for order %s: %w", order.ID, err)
	}

	if err := s.sender.Send(order.Email, "Order Confirmation", body); err != nil {
		return fmt.Errorf("failed to send confirmation for order %s: %w", order.ID, err)
	}

	log.Printf("Order confirmation email sent to %s for order %s", order.Email, order.ID)
	return nil
}

// renderOrderConfirmation produces the confirmation HTML body.
func renderOrderConfirmation(order models.Order) (string, error) {
	var buf strings.Builder
	if err := confirmationTemplate.Execute(&buf, order); err != nil {
		return "", err
	}
	return buf.String(), nil
}
