package handlers

import (
	"fmt"
	"log"

	"panzshop/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
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
	router.Post("/orders", h.HandleCreateOrder)
	router.Get("/orders", h.HandleGetOrders)
	router.Get("/orders/:ref", h.HandleGetOrderByRef)
}

// HandleCreateOrder creates a new order and returns the payment redirect.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing order creation body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.validate.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "userId, a non-empty item list and a positive total are required",
			"details": validationErrors.Error(),
		})
	}

	resp, err := h.service.CreateOrder(req)
	if err != nil {
		log.Printf("Error creating order: %v", err)
		// The client must learn that its order was not durably recorded.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create order",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// HandleGetOrders retrieves all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders()
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not retrieve orders",
		})
	}
	return c.JSON(orders)
}

// HandleGetOrderByRef retrieves a single order by its external reference.
func (h *OrderHandler) HandleGetOrderByRef(c *fiber.Ctx) error {
	ref := c.Params("ref")
	order, err := h.service.GetOrderByRef(ref)
	if err != nil {
		log.Printf("Error getting order by reference %s: %v", ref, err)
		if err.Error() == fmt.Sprintf("order with reference %s not found", ref) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": fmt.Sprintf("Order with reference %s not found", ref),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not retrieve order",
		})
	}
	return c.JSON(order)
}
