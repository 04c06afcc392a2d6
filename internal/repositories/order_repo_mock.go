package repositories

import (
	"fmt"
	"sync"
	"time"

	"panzshop/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order // keyed by external reference
	nextID uint
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
		nextID: 1,
	}
}

// GetAll returns all orders.
func (r *MockOrderRepository) GetAll() ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orderList = append(orderList, order)
	}
	return orderList, nil
}

// GetByExternalRef returns an order by its external reference.
func (r *MockOrderRepository) GetByExternalRef(ref string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[ref]
	if !ok {
		return nil, fmt.Errorf("order with reference %s not found", ref)
	}
	return &order, nil
}

// Create adds a new order, assigning the next numeric ID.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ExternalRef]; exists {
		return fmt.Errorf("order with reference %s already exists", order.ExternalRef)
	}
	order.ID = r.nextID
	r.nextID++
	if order.Status == "" {
		order.Status = models.StatusCreated
	}
	order.CreatedAt = time.Now()
	r.orders[order.ExternalRef] = *order
	return nil
}

// UpdateStatusByRef updates the status of an order.
func (r *MockOrderRepository) UpdateStatusByRef(ref string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[ref]
	if !ok {
		return fmt.Errorf("order with reference %s not found for status update", ref)
	}
	order.Status = status
	r.orders[ref] = order
	return nil
}
