package repositories

import (
	"errors"

	"shopfront/internal/models"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("record not found")

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(order *models.Order) error
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	GetByUser(userID string) ([]models.Order, error)
	UpdateStatus(id string, status models.OrderStatus) error
	// MarkPaid sets the payment flag and reports whether it actually
	// flipped from false to true. An already-paid order yields (false, nil).
	MarkPaid(id string) (bool, error)
	Delete(id string) error
}
