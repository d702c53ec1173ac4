package handlers

import (
	"fmt"
	"log"
	"strings"

	"shopfront/internal/models"
	"shopfront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
//
// Every order endpoint answers with HTTP 200 and a body-level success flag,
// the contract the storefront frontend was built against. Failure detection
// is body-based, never status-code-based.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/cod", h.HandlePlaceOrder)
	orderRoutes.Post("/stripe", h.HandlePlaceOrderStripe)
	orderRoutes.Post("/stripe/verify", h.HandleVerifyStripe)
	orderRoutes.Post("/razorpay", h.HandlePlaceOrderRazorpay)
	orderRoutes.Post("/razorpay/verify", h.HandleVerifyRazorpay)
	orderRoutes.Get("/", h.HandleListAllOrders)
	orderRoutes.Get("/user", h.HandleListUserOrders)
	orderRoutes.Post("/status", h.HandleUpdateStatus)
}

// fail flattens any failure into the body-based error shape.
func fail(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// validationMessage turns validator errors into one readable message string.
func validationMessage(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		parts = append(parts, fmt.Sprintf("field '%s' failed on the '%s' rule", e.Field(), e.Tag()))
	}
	return strings.Join(parts, "; ")
}

// parsePlaceOrderRequest binds and validates the shared checkout payload.
func (h *OrderHandler) parsePlaceOrderRequest(c *fiber.Ctx) (*services.PlaceOrderRequest, error) {
	var req services.PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s", validationMessage(err))
	}
	return &req, nil
}

// HandlePlaceOrder places a COD order.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	req, err := h.parsePlaceOrderRequest(c)
	if err != nil {
		return fail(c, err.Error())
	}

	if _, err := h.service.PlaceOrder(*req); err != nil {
		log.Printf("Error placing COD order: %v", err)
		return fail(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order Placed",
	})
}

// HandlePlaceOrderStripe starts a Stripe checkout and returns the hosted
// session URL.
func (h *OrderHandler) HandlePlaceOrderStripe(c *fiber.Ctx) error {
	req, err := h.parsePlaceOrderRequest(c)
	if err != nil {
		return fail(c, err.Error())
	}

	sessionURL, err := h.service.PlaceOrderStripe(*req, c.Get("Origin"))
	if err != nil {
		log.Printf("Error placing Stripe order: %v", err)
		return fail(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"session_url": sessionURL,
	})
}

// HandleVerifyStripe handles the checkout redirect callback. The success
// field arrives as the string "true" or "false", mirroring the redirect
// query parameter.
func (h *OrderHandler) HandleVerifyStripe(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"orderId" validate:"required"`
		Success string `json:"success" validate:"required,oneof=true false"`
		UserID  string `json:"userId" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body: "+err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, validationMessage(err))
	}

	confirmed, err := h.service.VerifyStripe(req.OrderID, req.Success == "true", req.UserID)
	if err != nil {
		log.Printf("Error verifying Stripe payment for order %s: %v", req.OrderID, err)
		return fail(c, err.Error())
	}
	if !confirmed {
		return fail(c, "Payment Cancelled")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment Successful",
	})
}

// HandlePlaceOrderRazorpay creates an order plus a gateway order for the
// storefront checkout widget.
func (h *OrderHandler) HandlePlaceOrderRazorpay(c *fiber.Ctx) error {
	req, err := h.parsePlaceOrderRequest(c)
	if err != nil {
		return fail(c, err.Error())
	}

	gatewayOrder, err := h.service.PlaceOrderRazorpay(*req)
	if err != nil {
		log.Printf("Error placing Razorpay order: %v", err)
		return fail(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"order":   gatewayOrder,
	})
}

// HandleVerifyRazorpay checks the gateway order status and commits the local
// order when it is paid.
func (h *OrderHandler) HandleVerifyRazorpay(c *fiber.Ctx) error {
	var req struct {
		UserID          string `json:"userId" validate:"required"`
		RazorpayOrderID string `json:"razorpay_order_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body: "+err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, validationMessage(err))
	}

	confirmed, err := h.service.VerifyRazorpay(req.UserID, req.RazorpayOrderID)
	if err != nil {
		log.Printf("Error verifying Razorpay payment for gateway order %s: %v", req.RazorpayOrderID, err)
		return fail(c, err.Error())
	}
	if !confirmed {
		return fail(c, "Payment Failed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment Successful",
	})
}

// HandleListAllOrders returns every order, for the admin panel. Access
// control beyond authentication is enforced upstream.
func (h *OrderHandler) HandleListAllOrders(c *fiber.Ctx) error {
	orders, err := h.service.AllOrders()
	if err != nil {
		log.Printf("Error listing all orders: %v", err)
		return fail(c, err.Error())
	}
	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
	})
}

// HandleListUserOrders returns the authenticated user's orders.
func (h *OrderHandler) HandleListUserOrders(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return fail(c, "user identity missing from request context")
	}

	orders, err := h.service.UserOrders(userID)
	if err != nil {
		log.Printf("Error listing orders for user %s: %v", userID, err)
		return fail(c, err.Error())
	}
	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
	})
}

// HandleUpdateStatus moves an order to a new fulfillment state.
func (h *OrderHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"orderId" validate:"required"`
		Status  string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body: "+err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, validationMessage(err))
	}

	if err := h.service.UpdateStatus(req.OrderID, models.OrderStatus(req.Status)); err != nil {
		log.Printf("Error updating status for order %s: %v", req.OrderID, err)
		return fail(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Status Updated",
	})
}
