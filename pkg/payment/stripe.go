package payment

import (
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// LineItem is one billable entry sent to a payment gateway. UnitAmount is
// expressed in the currency's minor unit (cents, paise).
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// StripeClient wraps a configured Stripe API client for hosted checkout
// sessions. Construct one at startup and inject it where needed.
type StripeClient struct {
	api      *client.API
	currency string
}

// NewStripeClient creates a StripeClient for the given secret key and
// ISO currency code (e.g. "inr").
func NewStripeClient(secretKey, currency string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{
		api:      api,
		currency: currency,
	}
}

// CreateCheckoutSession requests a hosted checkout page for the given line
// items and returns its URL. The buyer is redirected to successURL or
// cancelURL once the gateway flow finishes.
func (s *StripeClient) CreateCheckoutSession(items []LineItem, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	for _, item := range items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session.URL, nil
}
