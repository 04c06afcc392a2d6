package handlers

import (
	"context"
	"encoding/json"
	"log"

	"panzshop/pkg/cdek"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultCountryCode = "RU"
	defaultPageSize    = 100
)

// DeliveryGateway is the outbound surface of the CDEK client used by the
// delivery handler. *cdek.Client satisfies it.
type DeliveryGateway interface {
	ListCities(ctx context.Context, countryCode string, size int) (json.RawMessage, error)
	CalculateTariff(ctx context.Context, tariff cdek.TariffRequest) (json.RawMessage, error)
}

// DeliveryConfig holds delivery handler settings.
type DeliveryConfig struct {
	// OriginCode is the CDEK city code tariffs are calculated from.
	// Defaults to 44 (Moscow).
	OriginCode int
}

// DeliveryHandler proxies city listings and tariff calculations to the
// delivery gateway.
type DeliveryHandler struct {
	gateway  DeliveryGateway
	origin   int
	validate *validator.Validate
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(gateway DeliveryGateway, cfg DeliveryConfig) *DeliveryHandler {
	if cfg.OriginCode == 0 {
		cfg.OriginCode = 44 // Moscow
	}
	return &DeliveryHandler{
		gateway:  gateway,
		origin:   cfg.OriginCode,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the delivery routes with the Fiber app.
func (h *DeliveryHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/cities", h.HandleListCities)
	router.Post("/delivery/calculate", h.HandleCalculateTariff)
}

// HandleListCities proxies a bounded city list request to the gateway and
// returns the provider's body verbatim.
func (h *DeliveryHandler) HandleListCities(c *fiber.Ctx) error {
	country := c.Query("country", defaultCountryCode)
	size := c.QueryInt("size", defaultPageSize)
	if size <= 0 || size > defaultPageSize {
		size = defaultPageSize
	}

	body, err := h.gateway.ListCities(c.UserContext(), country, size)
	if err != nil {
		log.Printf("Error fetching city list: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not retrieve city list",
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// calculateRequest is the inbound payload for a tariff calculation. Items
// are accepted for interface stability but not forwarded: the calculation
// uses a package profile, not the item list.
type calculateRequest struct {
	CityCode int             `json:"cityCode" validate:"required,gt=0"`
	Items    json.RawMessage `json:"items"`
}

// HandleCalculateTariff builds a tariff request from the configured origin
// and the default package profile and proxies it to the gateway.
func (h *DeliveryHandler) HandleCalculateTariff(c *fiber.Ctx) error {
	var req calculateRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing tariff request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A positive cityCode is required",
		})
	}

	tariff := cdek.TariffRequest{
		Type:         cdek.TariffTypeDoorToDoor,
		FromLocation: cdek.Location{Code: h.origin},
		ToLocation:   cdek.Location{Code: req.CityCode},
		Packages:     []cdek.Package{cdek.DefaultPackage()},
	}

	body, err := h.gateway.CalculateTariff(c.UserContext(), tariff)
	if err != nil {
		log.Printf("Error calculating tariff: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not calculate delivery tariff",
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
