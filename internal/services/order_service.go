package services

import (
	"encoding/json"
	"fmt"
	"log"

	"panzshop/internal/models"
	"panzshop/internal/repositories"

	"github.com/google/uuid"
)

// EventPublisher publishes order lifecycle events. *rabbitmq.Client
// satisfies it; tests use a testify mock. A nil publisher disables events.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// CreateOrderRequest is the payload for order creation.
type CreateOrderRequest struct {
	UserID   string             `json:"userId" validate:"required"`
	Items    []models.OrderItem `json:"items" validate:"required,min=1,dive"`
	Total    int64              `json:"total" validate:"required,gt=0"`
	Delivery json.RawMessage    `json:"delivery"`
}

// CreateOrderResponse is returned to the client after a successful creation.
type CreateOrderResponse struct {
	OrderID    string `json:"orderId"`
	PaymentURL string `json:"paymentUrl"`
	Total      int64  `json:"total"`
}

// Config holds order service settings.
type Config struct {
	// PaymentBaseURL is the payment provider's checkout prefix. The external
	// order reference is appended to form the redirect URL.
	PaymentBaseURL string
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo      repositories.OrderRepository
	publisher      EventPublisher
	paymentBaseURL string
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case no events are published.
func NewOrderService(orderRepo repositories.OrderRepository, publisher EventPublisher, cfg Config) *OrderService {
	if cfg.PaymentBaseURL == "" {
		cfg.PaymentBaseURL = "https://tinkoff.ru/payment"
	}
	return &OrderService{
		orderRepo:      orderRepo,
		publisher:      publisher,
		paymentBaseURL: cfg.PaymentBaseURL,
	}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// GetOrderByRef retrieves a single order by its external reference.
func (s *OrderService) GetOrderByRef(ref string) (*models.Order, error) {
	return s.orderRepo.GetByExternalRef(ref)
}

// CreateOrder persists a new order with a freshly generated external
// reference and returns the payment redirect for it. A store failure is
// returned to the caller; the order must not be reported as recorded unless
// the write succeeded.
func (s *OrderService) CreateOrder(req CreateOrderRequest) (*CreateOrderResponse, error) {
	// UUIDs instead of wall-clock tokens: two orders created within the same
	// clock tick must still get distinct references.
	ref := uuid.New().String()

	items, err := json.Marshal(req.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize order items: %w", err)
	}
	delivery := []byte("{}")
	if len(req.Delivery) > 0 {
		delivery = req.Delivery
	}

	newOrder := &models.Order{
		UserID:      req.UserID,
		Items:       string(items),
		Total:       req.Total,
		Delivery:    string(delivery),
		Status:      models.StatusCreated,
		ExternalRef: ref,
	}

	if err := s.orderRepo.Create(newOrder); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.publishEvent("order.created", map[string]interface{}{
		"orderRef": ref,
		"userId":   newOrder.UserID,
		"status":   newOrder.Status,
		"total":    newOrder.Total,
	})

	return &CreateOrderResponse{
		OrderID:    ref,
		PaymentURL: fmt.Sprintf("%s/%s", s.paymentBaseURL, ref),
		Total:      req.Total,
	}, nil
}

// UpdatePaymentStatus applies a payment-provider status to the matching
// order. A missing order is logged and swallowed: webhooks are delivered
// at-least-once and a benign replay must not provoke retries. Store errors
// are likewise logged and swallowed, so the receiver always acknowledges.
func (s *OrderService) UpdatePaymentStatus(ref string, status string) {
	if err := s.orderRepo.UpdateStatusByRef(ref, status); err != nil {
		log.Printf("Payment status update for order %s skipped: %v", ref, err)
		return
	}
	log.Printf("Order %s status updated to %s", ref, status)

	s.publishEvent("order.status_updated", map[string]interface{}{
		"orderRef": ref,
		"status":   status,
	})
}

// publishEvent sends an event if a publisher is configured. Publish failures
// are logged, never fatal: event delivery must not block order intake.
func (s *OrderService) publishEvent(routingKey string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}
	if err := s.publisher.Publish(routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", routingKey, err)
	}
}
