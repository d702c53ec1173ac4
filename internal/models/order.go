package models

import "time"

// PaymentMethod identifies how an order is paid for.
type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "COD"
	PaymentStripe   PaymentMethod = "Stripe"
	PaymentRazorpay PaymentMethod = "Razorpay"
)

// OrderStatus is the fulfillment state of an order. The set is closed;
// anything outside it is rejected at the service boundary.
type OrderStatus string

const (
	StatusPlaced         OrderStatus = "Placed"
	StatusPacking        OrderStatus = "Packing"
	StatusShipped        OrderStatus = "Shipped"
	StatusOutForDelivery OrderStatus = "Out for Delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
)

// statusTransitions lists the states reachable from each fulfillment state.
// Delivered and Cancelled are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPlaced:         {StatusPacking, StatusCancelled},
	StatusPacking:        {StatusShipped, StatusCancelled},
	StatusShipped:        {StatusOutForDelivery, StatusDelivered},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// Valid reports whether s is a known fulfillment state.
func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is reachable from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is a line in an order. Name and Price are snapshots taken at
// order time and never updated afterwards.
type OrderItem struct {
	Name     string  `json:"name" validate:"required"`
	Size     string  `json:"size,omitempty"`
	Price    float64 `json:"price" validate:"required,gt=0"`
	Quantity int     `json:"quantity" validate:"required,gt=0"`
}

// Address is the shipping address snapshot captured at order time.
type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zipcode string `json:"zipcode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// Order represents a customer order. Items, Address, Amount, PaymentMethod
// and Date are immutable after creation; Payment only ever flips from false
// to true; Status moves along the transition table above.
type Order struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string        `json:"user_id" gorm:"index;type:varchar(36)" validate:"required"`
	Items         []OrderItem   `json:"items" gorm:"serializer:json" validate:"required,min=1,dive"`
	Address       Address       `json:"address" gorm:"serializer:json" validate:"required"`
	Amount        float64       `json:"amount" validate:"required,gt=0"`
	PaymentMethod PaymentMethod `json:"payment_method" gorm:"type:varchar(16)"`
	Payment       bool          `json:"payment"`
	Status        OrderStatus   `json:"status" gorm:"type:varchar(32)"`
	Email         string        `json:"email,omitempty" validate:"omitempty,email"`
	Date          time.Time     `json:"date"`
}
