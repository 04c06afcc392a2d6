package repositories

import (
	"fmt"
	"panzshop/internal/models"

	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// GetAll retrieves all orders from the database.
func (r *GORMOrderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByExternalRef retrieves a single order by its external reference.
func (r *GORMOrderRepository) GetByExternalRef(ref string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "order_id = ?", ref).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order with reference %s not found", ref)
		}
		return nil, fmt.Errorf("failed to get order by reference %s: %w", ref, err)
	}
	return &order, nil
}

// Create inserts a new order. The database assigns the numeric ID.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if err := r.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateStatusByRef updates the status of the order matching the external
// reference. Only the status column is touched.
func (r *GORMOrderRepository) UpdateStatusByRef(ref string, status string) error {
	res := r.db.Model(&models.Order{}).Where("order_id = ?", ref).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Update reports no error when nothing matches, so we check
		// RowsAffected to distinguish the missing-order case.
		return fmt.Errorf("order with reference %s not found for status update", ref)
	}
	return nil
}
