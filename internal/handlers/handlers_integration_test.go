package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"shopfront/internal/handlers"
	"shopfront/internal/middleware"
	"shopfront/internal/models"
	"shopfront/internal/repositories"
	"shopfront/internal/services"
	"shopfront/pkg/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeStripeGateway records checkout requests and hands back a fixed URL.
type fakeStripeGateway struct {
	mu       sync.Mutex
	sessions int
}

func (f *fakeStripeGateway) CreateCheckoutSession(items []payment.LineItem, successURL, cancelURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return fmt.Sprintf("https://checkout.stripe.test/session/%d", f.sessions), nil
}

// fakeRazorpayGateway keeps gateway orders in memory so tests can flip their
// settlement status.
type fakeRazorpayGateway struct {
	mu     sync.Mutex
	seq    int
	orders map[string]map[string]interface{}
}

func newFakeRazorpayGateway() *fakeRazorpayGateway {
	return &fakeRazorpayGateway{orders: make(map[string]map[string]interface{})}
}

func (f *fakeRazorpayGateway) CreateOrder(amountMinor int64, receipt string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("order_rzp_%d", f.seq)
	order := map[string]interface{}{
		"id":       id,
		"amount":   amountMinor,
		"receipt":  receipt,
		"status":   "created",
		"currency": "INR",
	}
	f.orders[id] = order
	return order, nil
}

func (f *fakeRazorpayGateway) FetchOrder(gatewayOrderID string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[gatewayOrderID]
	if !ok {
		return nil, fmt.Errorf("razorpay order %s not found", gatewayOrderID)
	}
	return order, nil
}

func (f *fakeRazorpayGateway) markPaid(gatewayOrderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[gatewayOrderID]["status"] = "paid"
}

// fakeNotifier captures orders that were enqueued for confirmation mail.
type fakeNotifier struct {
	mu     sync.Mutex
	orders []models.Order
}

func (f *fakeNotifier) PublishOrderConfirmed(order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, *order)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	orderRepo repositories.OrderRepository
	userRepo  repositories.UserRepository
	stripe    *fakeStripeGateway
	razorpay  *fakeRazorpayGateway
	notifier  *fakeNotifier
}

// setCart stocks a user's cart directly through the database.
func (e *testEnv) setCart(t *testing.T, userID string, cart map[string]int) {
	t.Helper()
	user, err := e.userRepo.GetByID(userID)
	assert.NoError(t, err)
	user.CartData = cart
	assert.NoError(t, e.db.Save(user).Error)
}

// setupEnv wires the full stack over in-memory storage: sqlite for users,
// the in-memory order repository for orders, fakes for the gateways.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	env := &testEnv{
		db:        db,
		orderRepo: repositories.NewMockOrderRepository(),
		userRepo:  repositories.NewGORMUserRepository(db),
		stripe:    &fakeStripeGateway{},
		razorpay:  newFakeRazorpayGateway(),
		notifier:  &fakeNotifier{},
	}

	orderService := services.NewOrderService(env.orderRepo, env.userRepo, env.stripe, env.razorpay, env.notifier, 100)
	authService := services.NewAuthService(env.userRepo, viper.GetString("JWT_SECRET"))

	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	protected := apiV1.Group("", middleware.AuthRequired(authService))
	orderHandler.RegisterRoutes(protected)

	env.app = app
	return env
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func postJSON(t *testing.T, app *fiber.App, path, token string, body interface{}) map[string]interface{} {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://shop.test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "order endpoints always answer 200; failures live in the body")

	var decoded map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

// registerAndLogin creates an account with items in its cart and returns the
// user ID and a bearer token.
func registerAndLogin(t *testing.T, env *testEnv, username, email string) (string, string) {
	t.Helper()

	jsonBody, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var registered struct {
		User models.User `json:"user"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&registered))
	userID := registered.User.ID
	assert.NotEmpty(t, userID)

	// Put something in the cart so order placement has something to clear.
	env.setCart(t, userID, map[string]int{"prod-1": 2})

	jsonBody, _ = json.Marshal(map[string]string{
		"email":    email,
		"password": "password123",
	})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loggedIn struct {
		Token string `json:"token"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&loggedIn))
	assert.NotEmpty(t, loggedIn.Token)

	return userID, loggedIn.Token
}

func orderPayload(userID string) map[string]interface{} {
	return map[string]interface{}{
		"userId": userID,
		"items": []map[string]interface{}{
			{"name": "Tee", "size": "M", "price": 500, "quantity": 2},
		},
		"amount": 1100,
		"address": map[string]string{
			"street":  "12 MG Road",
			"city":    "Bengaluru",
			"state":   "Karnataka",
			"zipcode": "560001",
			"country": "India",
		},
		"email": "buyer@example.com",
	}
}

func TestPlaceCODOrder(t *testing.T) {
	env := setupEnv(t)
	userID, token := registerAndLogin(t, env, "coduser", "cod@example.com")

	body := postJSON(t, env.app, "/api/v1/orders/cod", token, orderPayload(userID))

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Order Placed", body["message"])

	orders, err := env.orderRepo.GetByUser(userID)
	assert.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, models.PaymentCOD, orders[0].PaymentMethod)
	assert.False(t, orders[0].Payment)
	assert.Equal(t, models.StatusPlaced, orders[0].Status)

	// Cart is cleared and the confirmation is enqueued
	user, err := env.userRepo.GetByID(userID)
	assert.NoError(t, err)
	assert.Empty(t, user.CartData)
	assert.Equal(t, 1, env.notifier.count())
}

func TestStripeCheckoutFlow(t *testing.T) {
	env := setupEnv(t)
	userID, token := registerAndLogin(t, env, "stripeuser", "stripe@example.com")

	body := postJSON(t, env.app, "/api/v1/orders/stripe", token, orderPayload(userID))
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["session_url"], "https://checkout.stripe.test/session/")

	orders, err := env.orderRepo.GetByUser(userID)
	assert.NoError(t, err)
	assert.Len(t, orders, 1)
	orderID := orders[0].ID
	assert.False(t, orders[0].Payment)
	// No confirmation before verification
	assert.Equal(t, 0, env.notifier.count())

	// Redirect callback commits the order
	body = postJSON(t, env.app, "/api/v1/orders/stripe/verify", token, map[string]string{
		"orderId": orderID,
		"success": "true",
		"userId":  userID,
	})
	assert.Equal(t, true, body["success"])

	order, err := env.orderRepo.GetByID(orderID)
	assert.NoError(t, err)
	assert.True(t, order.Payment)
	assert.Equal(t, 1, env.notifier.count())

	// A duplicate callback stays successful but triggers nothing new
	body = postJSON(t, env.app, "/api/v1/orders/stripe/verify", token, map[string]string{
		"orderId": orderID,
		"success": "true",
		"userId":  userID,
	})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, env.notifier.count())
}

func TestStripeCancelDeletesOrder(t *testing.T) {
	env := setupEnv(t)
	userID, token := registerAndLogin(t, env, "canceluser", "cancel@example.com")

	body := postJSON(t, env.app, "/api/v1/orders/stripe", token, orderPayload(userID))
	assert.Equal(t, true, body["success"])

	orders, err := env.orderRepo.GetByUser(userID)
	assert.NoError(t, err)
	orderID := orders[0].ID

	body = postJSON(t, env.app, "/api/v1/orders/stripe/verify", token, map[string]string{
		"orderId": orderID,
		"success": "false",
		"userId":  userID,
	})
	assert.Equal(t, false, body["success"])

	_, err = env.orderRepo.GetByID(orderID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRazorpayCheckoutFlow(t *testing.T) {
	env := setupEnv(t)
	userID, token := registerAndLogin(t, env, "rzpuser", "rzp@example.com")

	body := postJSON(t, env.app, "/api/v1/orders/razorpay", token, orderPayload(userID))
	assert.Equal(t, true, body["success"])

	gatewayOrder, ok := body["order"].(map[string]interface{})
	assert.True(t, ok)
	gatewayOrderID := gatewayOrder["id"].(string)
	assert.Equal(t, float64(110000), gatewayOrder["amount"], "gateway amount is in paise")

	// Verification before settlement fails without touching the order
	body = postJSON(t, env.app, "/api/v1/orders/razorpay/verify", token, map[string]string{
		"userId":            userID,
		"razorpay_order_id": gatewayOrderID,
	})
	assert.Equal(t, false, body["success"])

	orders, err := env.orderRepo.GetByUser(userID)
	assert.NoError(t, err)
	assert.False(t, orders[0].Payment)

	// After the gateway reports paid, verification commits
	env.razorpay.markPaid(gatewayOrderID)
	body = postJSON(t, env.app, "/api/v1/orders/razorpay/verify", token, map[string]string{
		"userId":            userID,
		"razorpay_order_id": gatewayOrderID,
	})
	assert.Equal(t, true, body["success"])

	order, err := env.orderRepo.GetByID(orders[0].ID)
	assert.NoError(t, err)
	assert.True(t, order.Payment)
	assert.Equal(t, 1, env.notifier.count())
}

func TestUpdateStatus(t *testing.T) {
	env := setupEnv(t)
	userID, token := registerAndLogin(t, env, "statususer", "status@example.com")

	postJSON(t, env.app, "/api/v1/orders/cod", token, orderPayload(userID))
	orders, err := env.orderRepo.GetByUser(userID)
	assert.NoError(t, err)
	orderID := orders[0].ID

	body := postJSON(t, env.app, "/api/v1/orders/status", token, map[string]string{
		"orderId": orderID,
		"status":  "Packing",
	})
	assert.Equal(t, true, body["success"])

	// Unknown state is rejected
	body = postJSON(t, env.app, "/api/v1/orders/status", token, map[string]string{
		"orderId": orderID,
		"status":  "Lost",
	})
	assert.Equal(t, false, body["success"])

	// Nonexistent order yields a body-level failure, never a 5xx
	body = postJSON(t, env.app, "/api/v1/orders/status", token, map[string]string{
		"orderId": "does-not-exist",
		"status":  "Shipped",
	})
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "not found")
}

func TestListOrders(t *testing.T) {
	env := setupEnv(t)
	userID, token := registerAndLogin(t, env, "listuser", "list@example.com")
	otherID, otherToken := registerAndLogin(t, env, "otheruser", "other@example.com")

	postJSON(t, env.app, "/api/v1/orders/cod", token, orderPayload(userID))
	postJSON(t, env.app, "/api/v1/orders/cod", otherToken, orderPayload(otherID))

	// Admin view returns everything
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var all struct {
		Success bool           `json:"success"`
		Orders  []models.Order `json:"orders"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.True(t, all.Success)
	assert.Len(t, all.Orders, 2)

	// The user view is scoped to the token's identity
	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req, -1)
	assert.NoError(t, err)

	var mine struct {
		Success bool           `json:"success"`
		Orders  []models.Order `json:"orders"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&mine))
	assert.True(t, mine.Success)
	assert.Len(t, mine.Orders, 1)
	assert.Equal(t, userID, mine.Orders[0].UserID)
}

func TestOrdersRequireAuthentication(t *testing.T) {
	env := setupEnv(t)

	jsonBody, _ := json.Marshal(orderPayload("someone"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/cod", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAmountMismatchRejected(t *testing.T) {
	env := setupEnv(t)
	userID, token := registerAndLogin(t, env, "mismatchuser", "mismatch@example.com")

	payload := orderPayload(userID)
	payload["amount"] = 900 // items total 1000 + delivery 100

	body := postJSON(t, env.app, "/api/v1/orders/cod", token, payload)
	assert.Equal(t, false, body["success"])

	orders, err := env.orderRepo.GetByUser(userID)
	assert.NoError(t, err)
	assert.Empty(t, orders)
}
