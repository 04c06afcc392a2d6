package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log"

	"panzshop/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PaymentConfig holds webhook receiver settings.
type PaymentConfig struct {
	// WebhookPassword is the shared secret used to verify webhook tokens.
	// Empty disables verification, matching deployments that predate it.
	WebhookPassword string
}

// PaymentHandler receives payment-status webhooks from the payment provider.
type PaymentHandler struct {
	service         *services.OrderService
	webhookPassword string
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.OrderService, cfg PaymentConfig) *PaymentHandler {
	return &PaymentHandler{
		service:         service,
		webhookPassword: cfg.WebhookPassword,
	}
}

// RegisterRoutes registers the payment routes with the Fiber app.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/payments/webhook", h.HandlePaymentWebhook)
}

// webhookPayload is the provider's notification body. Field names follow the
// provider's convention.
type webhookPayload struct {
	OrderID string `json:"OrderId"`
	Status  string `json:"Status"`
	Token   string `json:"Token"`
}

// HandlePaymentWebhook applies a payment-status update to the referenced
// order. It acknowledges with 200 whether or not the order exists: the
// provider delivers at-least-once and must not retry on benign replays. Only
// a token mismatch is rejected, since such a request did not come from the
// provider at all.
func (h *PaymentHandler) HandlePaymentWebhook(c *fiber.Ctx) error {
	var payload webhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook body",
		})
	}

	if h.webhookPassword != "" {
		expected := WebhookToken(payload.OrderID, payload.Status, h.webhookPassword)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(payload.Token)) != 1 {
			log.Printf("Rejected webhook for order %s: token mismatch", payload.OrderID)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Invalid webhook token",
			})
		}
	}

	h.service.UpdatePaymentStatus(payload.OrderID, payload.Status)

	return c.Status(fiber.StatusOK).SendString("OK")
}

// WebhookToken computes the provider's notification token: the SHA-256 hex
// digest of the payload values concatenated in alphabetical key order, with
// the shared password inserted under the key "Password"
// (OrderId, Password, Status).
func WebhookToken(orderID, status, password string) string {
	sum := sha256.Sum256([]byte(orderID + password + status))
	return hex.EncodeToString(sum[:])
}
