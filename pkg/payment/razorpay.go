package payment

import (
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayClient wraps a configured Razorpay API client for gateway order
// creation and lookup.
type RazorpayClient struct {
	client   *razorpay.Client
	currency string
}

// NewRazorpayClient creates a RazorpayClient for the given key pair and
// currency code. Razorpay expects the currency uppercased.
func NewRazorpayClient(keyID, keySecret, currency string) *RazorpayClient {
	return &RazorpayClient{
		client:   razorpay.NewClient(keyID, keySecret),
		currency: strings.ToUpper(currency),
	}
}

// CreateOrder creates a gateway order for the given amount in minor units.
// The receipt is the merchant-side reference used to correlate the gateway
// order back to the local order record.
func (r *RazorpayClient) CreateOrder(amountMinor int64, receipt string) (map[string]interface{}, error) {
	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": r.currency,
		"receipt":  receipt,
	}
	order, err := r.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create razorpay order: %w", err)
	}
	return order, nil
}

// FetchOrder retrieves a gateway order, including its settlement status and
// the receipt it was created with.
func (r *RazorpayClient) FetchOrder(gatewayOrderID string) (map[string]interface{}, error) {
	order, err := r.client.Order.Fetch(gatewayOrderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch razorpay order %s: %w", gatewayOrderID, err)
	}
	return order, nil
}
