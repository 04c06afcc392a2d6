package repositories

import (
	"panzshop/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByExternalRef(ref string) (*models.Order, error)
	Create(order *models.Order) error
	// UpdateStatusByRef changes only the status column of the order whose
	// external reference matches ref. Matching no row is reported as a
	// not-found error; the caller decides whether that is fatal.
	UpdateStatusByRef(ref string, status string) error
	// Deletion is intentionally absent: orders are never deleted by this system.
}
