package models

import "time"

// OrderItem represents a single item within an order, as submitted by the
// client. The system stores it serialized and performs no pricing or
// inventory checks on it.
type OrderItem struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"qty" validate:"required,gt=0"`
}

// Order represents a customer order. Column names match the original
// deployment's orders table so existing data stays readable.
//
// Only Status is ever mutated after creation, and only by payment webhooks
// carrying a matching ExternalRef.
type Order struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      string    `json:"user_id" gorm:"column:user_id;type:varchar(100)"`
	Items       string    `json:"items" gorm:"column:items"`       // serialized JSON item list
	Total       int64     `json:"total" gorm:"column:total"`       // smallest currency unit
	Delivery    string    `json:"delivery" gorm:"column:delivery"` // serialized JSON delivery details
	Status      string    `json:"status" gorm:"column:status;default:created"`
	ExternalRef string    `json:"order_id" gorm:"column:order_id;uniqueIndex;type:varchar(36)"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

// TableName keeps the table name stable with the original deployment.
func (Order) TableName() string {
	return "orders"
}

// StatusCreated is the initial status of every order.
const StatusCreated = "created"
