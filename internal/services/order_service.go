package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"shopfront/internal/models"
	"shopfront/internal/repositories"
	"shopfront/pkg/payment"

	"github.com/google/uuid"
)

// ErrValidation marks request-level failures: missing fields, amounts that
// do not add up, unknown or unreachable fulfillment states.
var ErrValidation = errors.New("validation failed")

// StripeGateway is the slice of the Stripe API the order flow needs.
type StripeGateway interface {
	CreateCheckoutSession(items []payment.LineItem, successURL, cancelURL string) (string, error)
}

// RazorpayGateway is the slice of the Razorpay API the order flow needs.
type RazorpayGateway interface {
	CreateOrder(amountMinor int64, receipt string) (map[string]interface{}, error)
	FetchOrder(gatewayOrderID string) (map[string]interface{}, error)
}

// NotificationPublisher enqueues order-confirmation events for asynchronous
// mail delivery.
type NotificationPublisher interface {
	PublishOrderConfirmed(order *models.Order) error
}

// PlaceOrderRequest is the payload shared by all three checkout flows.
type PlaceOrderRequest struct {
	UserID  string             `json:"userId" validate:"required"`
	Items   []models.OrderItem `json:"items" validate:"required,min=1,dive"`
	Amount  float64            `json:"amount" validate:"required,gt=0"`
	Address models.Address     `json:"address" validate:"required"`
	Email   string             `json:"email" validate:"omitempty,email"`
}

// OrderService owns the order lifecycle: creation, payment confirmation or
// abort, and fulfillment-status updates. Gateways and the notification
// publisher are injected so the flows stay testable.
type OrderService struct {
	orderRepo      repositories.OrderRepository
	userRepo       repositories.UserRepository
	stripe         StripeGateway
	razorpay       RazorpayGateway
	notifier       NotificationPublisher
	deliveryCharge float64
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	userRepo repositories.UserRepository,
	stripe StripeGateway,
	razorpay RazorpayGateway,
	notifier NotificationPublisher,
	deliveryCharge float64,
) *OrderService {
	return &OrderService{
		orderRepo:      orderRepo,
		userRepo:       userRepo,
		stripe:         stripe,
		razorpay:       razorpay,
		notifier:       notifier,
		deliveryCharge: deliveryCharge,
	}
}

// toMinorUnits converts a major-unit amount (rupees, dollars) to the
// gateway's minor unit (paise, cents).
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// computeAmount returns the item subtotals plus the fixed delivery charge.
func (s *OrderService) computeAmount(items []models.OrderItem) float64 {
	total := s.deliveryCharge
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// createOrder validates the request and persists a new unpaid order. The
// client-supplied amount is checked against the server-side total rather
// than trusted.
func (s *OrderService) createOrder(req PlaceOrderRequest, method models.PaymentMethod) (*models.Order, error) {
	if req.UserID == "" || len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: userId and at least one item are required", ErrValidation)
	}
	expected := s.computeAmount(req.Items)
	if math.Abs(expected-req.Amount) > 0.009 {
		return nil, fmt.Errorf("%w: amount %.2f does not match items total %.2f", ErrValidation, req.Amount, expected)
	}

	order := &models.Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Items:         req.Items,
		Address:       req.Address,
		Amount:        expected,
		PaymentMethod: method,
		Payment:       false,
		Status:        models.StatusPlaced,
		Email:         req.Email,
		Date:          time.Now(),
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	return order, nil
}

// clearCart empties the user's cart. Failures are logged, never propagated:
// the order is already committed and the cart is only a convenience copy.
func (s *OrderService) clearCart(userID string) {
	if err := s.userRepo.ClearCart(userID); err != nil {
		log.Printf("Warning: failed to clear cart for user %s: %v", userID, err)
	}
}

// notifyConfirmed enqueues a confirmation mail event. Publish failures are
// logged and swallowed: notification never affects the order outcome.
func (s *OrderService) notifyConfirmed(order *models.Order) {
	if order.Email == "" || s.notifier == nil {
		return
	}
	if err := s.notifier.PublishOrderConfirmed(order); err != nil {
		log.Printf("Warning: failed to enqueue confirmation for order %s: %v", order.ID, err)
	}
}

// PlaceOrder creates a COD order. The payment flag stays false: settlement
// happens on delivery, outside this system. Creation is the commit point for
// COD, so the cart is cleared and the confirmation enqueued right away.
func (s *OrderService) PlaceOrder(req PlaceOrderRequest) (*models.Order, error) {
	order, err := s.createOrder(req, models.PaymentCOD)
	if err != nil {
		return nil, err
	}
	s.clearCart(order.UserID)
	s.notifyConfirmed(order)
	return order, nil
}

// PlaceOrderStripe creates an unpaid order and a hosted checkout session for
// it, returning the session URL the buyer is redirected to. This is phase
// one of a two-phase flow; VerifyStripe commits or aborts it. No
// confirmation is sent here: the payment is not known to succeed yet.
func (s *OrderService) PlaceOrderStripe(req PlaceOrderRequest, origin string) (string, error) {
	if origin == "" {
		return "", fmt.Errorf("%w: origin is required for checkout redirect URLs", ErrValidation)
	}
	order, err := s.createOrder(req, models.PaymentStripe)
	if err != nil {
		return "", err
	}

	lineItems := make([]payment.LineItem, 0, len(order.Items)+1)
	for _, item := range order.Items {
		lineItems = append(lineItems, payment.LineItem{
			Name:       item.Name,
			UnitAmount: toMinorUnits(item.Price),
			Quantity:   int64(item.Quantity),
		})
	}
	lineItems = append(lineItems, payment.LineItem{
		Name:       "Delivery Charges",
		UnitAmount: toMinorUnits(s.deliveryCharge),
		Quantity:   1,
	})

	successURL := fmt.Sprintf("%s/verify?success=true&orderId=%s", origin, order.ID)
	cancelURL := fmt.Sprintf("%s/verify?success=false&orderId=%s", origin, order.ID)

	sessionURL, err := s.stripe.CreateCheckoutSession(lineItems, successURL, cancelURL)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session failed: %w", err)
	}
	return sessionURL, nil
}

// VerifyStripe handles the checkout redirect callback. On success the order
// is committed; on cancellation it is deleted outright, aborting the
// two-phase flow.
func (s *OrderService) VerifyStripe(orderID string, success bool, userID string) (bool, error) {
	if !success {
		if err := s.orderRepo.Delete(orderID); err != nil {
			return false, fmt.Errorf("failed to remove cancelled order: %w", err)
		}
		return false, nil
	}
	return s.confirmPayment(orderID, userID)
}

// confirmPayment flips the payment flag and runs the side effects that
// belong to the false->true edge only. A repeated gateway callback finds the
// flag already set and does nothing, so neither the cart wipe nor the
// confirmation mail happens twice.
func (s *OrderService) confirmPayment(orderID, userID string) (bool, error) {
	flipped, err := s.orderRepo.MarkPaid(orderID)
	if err != nil {
		return false, fmt.Errorf("failed to confirm payment for order %s: %w", orderID, err)
	}
	if !flipped {
		log.Printf("Order %s already confirmed, skipping side effects", orderID)
		return true, nil
	}

	s.clearCart(userID)

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		log.Printf("Warning: could not load order %s for confirmation mail: %v", orderID, err)
		return true, nil
	}
	s.notifyConfirmed(order)
	return true, nil
}

// PlaceOrderRazorpay creates an unpaid order plus a matching gateway order,
// keyed by the local order ID as receipt so VerifyRazorpay can correlate
// them. The gateway order is returned for the storefront checkout widget.
func (s *OrderService) PlaceOrderRazorpay(req PlaceOrderRequest) (map[string]interface{}, error) {
	order, err := s.createOrder(req, models.PaymentRazorpay)
	if err != nil {
		return nil, err
	}

	gatewayOrder, err := s.razorpay.CreateOrder(toMinorUnits(order.Amount), order.ID)
	if err != nil {
		return nil, fmt.Errorf("razorpay order creation failed: %w", err)
	}
	return gatewayOrder, nil
}

// VerifyRazorpay fetches the gateway order and commits the local order only
// when the gateway reports it as paid. Any other status leaves the order
// untouched and reports failure.
func (s *OrderService) VerifyRazorpay(userID, gatewayOrderID string) (bool, error) {
	info, err := s.razorpay.FetchOrder(gatewayOrderID)
	if err != nil {
		return false, fmt.Errorf("razorpay order lookup failed: %w", err)
	}

	status, _ := info["status"].(string)
	if status != "paid" {
		return false, nil
	}

	receipt, _ := info["receipt"].(string)
	if receipt == "" {
		return false, fmt.Errorf("razorpay order %s carries no receipt", gatewayOrderID)
	}
	return s.confirmPayment(receipt, userID)
}

// AllOrders returns every order, for the admin panel.
func (s *OrderService) AllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// UserOrders returns the orders belonging to one user.
func (s *OrderService) UserOrders(userID string) ([]models.Order, error) {
	return s.orderRepo.GetByUser(userID)
}

// UpdateStatus moves an order to a new fulfillment state, validating both
// the state itself and the transition from the current one.
func (s *OrderService) UpdateStatus(orderID string, status models.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown order status %q", ErrValidation, status)
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if !order.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: cannot move order %s from %q to %q", ErrValidation, orderID, order.Status, status)
	}

	if err := s.orderRepo.UpdateStatus(orderID, status); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}
