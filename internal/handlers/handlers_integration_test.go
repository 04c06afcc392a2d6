package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"panzshop/internal/handlers"
	"panzshop/internal/models"
	"panzshop/internal/repositories"
	"panzshop/internal/services"
	"panzshop/pkg/cdek"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testWebhookPassword = "test_webhook_password"

// setupApp builds a Fiber app wired like main: in-memory SQLite store, a
// CDEK client pointed at gatewayURL and webhook token verification enabled.
func setupApp(t *testing.T, gatewayURL string) (*fiber.App, repositories.OrderRepository) {
	t.Helper()
	return setupAppWithWebhookPassword(t, gatewayURL, testWebhookPassword)
}

// setupAppWithWebhookPassword builds the app with an explicit webhook
// password; empty disables token verification.
func setupAppWithWebhookPassword(t *testing.T, gatewayURL, webhookPassword string) (*fiber.App, repositories.OrderRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}))

	orderRepo := repositories.NewGORMOrderRepository(db)
	orderService := services.NewOrderService(orderRepo, nil, services.Config{})

	cdekClient := cdek.NewClient(cdek.Config{
		BaseURL:      gatewayURL,
		APIKey:       "test-key",
		AccountToken: "test-token",
	})

	app := fiber.New()
	handlers.NewOrderHandler(orderService).RegisterRoutes(app)
	handlers.NewDeliveryHandler(cdekClient, handlers.DeliveryConfig{}).RegisterRoutes(app)
	handlers.NewPaymentHandler(orderService, handlers.PaymentConfig{
		WebhookPassword: webhookPassword,
	}).RegisterRoutes(app)

	return app, orderRepo
}

// fakeGateway stands in for the CDEK API.
func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/location/cities":
			w.Write([]byte(`[{"code":44,"city":"Moscow"},{"code":270,"city":"Novosibirsk"}]`))
		case "/v2/calculator/tarifflist":
			w.Write([]byte(`{"tariff_codes":[{"tariff_code":136,"delivery_sum":350}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// TestMain suppresses logging during tests for cleaner output.
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestOrderLifecycle(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, repo := setupApp(t, gateway.URL)

	// Create an order.
	resp := postJSON(t, app, "/orders", map[string]interface{}{
		"userId":   "u1",
		"items":    []map[string]interface{}{{"sku": "A", "qty": 2}},
		"total":    1500,
		"delivery": map[string]string{"city": "Moscow"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created services.CreateOrderResponse
	decodeJSON(t, resp, &created)
	assert.NotEmpty(t, created.OrderID)
	assert.Contains(t, created.PaymentURL, created.OrderID)
	assert.Equal(t, int64(1500), created.Total)

	// The store holds the order with status "created" and matching fields.
	stored, err := repo.GetByExternalRef(created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, stored.Status)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, int64(1500), stored.Total)
	assert.JSONEq(t, `[{"sku":"A","qty":2}]`, stored.Items)
	assert.JSONEq(t, `{"city":"Moscow"}`, stored.Delivery)

	// The payment provider confirms the payment.
	resp = postJSON(t, app, "/payments/webhook", map[string]string{
		"OrderId": created.OrderID,
		"Status":  "CONFIRMED",
		"Token":   handlers.WebhookToken(created.OrderID, "CONFIRMED", testWebhookPassword),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Only the status changed.
	updated, err := repo.GetByExternalRef(created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", updated.Status)
	assert.Equal(t, stored.UserID, updated.UserID)
	assert.Equal(t, stored.Items, updated.Items)
	assert.Equal(t, stored.Total, updated.Total)
	assert.Equal(t, stored.Delivery, updated.Delivery)
}

func TestCreateOrder_UniqueReferences(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, _ := setupApp(t, gateway.URL)

	payload := map[string]interface{}{
		"userId": "u1",
		"items":  []map[string]interface{}{{"sku": "A", "qty": 1}},
		"total":  100,
	}

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		resp := postJSON(t, app, "/orders", payload)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var created services.CreateOrderResponse
		decodeJSON(t, resp, &created)
		assert.False(t, seen[created.OrderID], "reference %s returned twice", created.OrderID)
		seen[created.OrderID] = true
	}
}

func TestCreateOrder_InvalidPayload(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, _ := setupApp(t, gateway.URL)

	cases := []map[string]interface{}{
		{"items": []map[string]interface{}{{"sku": "A", "qty": 1}}, "total": 100}, // no userId
		{"userId": "u1", "items": []map[string]interface{}{}, "total": 100},       // empty items
		{"userId": "u1", "items": []map[string]interface{}{{"sku": "A", "qty": 1}}, "total": 0},    // zero total
		{"userId": "u1", "items": []map[string]interface{}{{"sku": "A", "qty": 1}}, "total": -100}, // negative total
	}

	for _, payload := range cases {
		resp := postJSON(t, app, "/orders", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestPaymentWebhook_UnknownReference(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, repo := setupApp(t, gateway.URL)

	resp := postJSON(t, app, "/payments/webhook", map[string]string{
		"OrderId": "no-such-order",
		"Status":  "CONFIRMED",
		"Token":   handlers.WebhookToken("no-such-order", "CONFIRMED", testWebhookPassword),
	})

	// Still acknowledged, and no row appeared.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	orders, err := repo.GetAll()
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPaymentWebhook_InvalidToken(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, repo := setupApp(t, gateway.URL)

	resp := postJSON(t, app, "/orders", map[string]interface{}{
		"userId": "u1",
		"items":  []map[string]interface{}{{"sku": "A", "qty": 1}},
		"total":  100,
	})
	var created services.CreateOrderResponse
	decodeJSON(t, resp, &created)

	resp = postJSON(t, app, "/payments/webhook", map[string]string{
		"OrderId": created.OrderID,
		"Status":  "CONFIRMED",
		"Token":   "forged",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// The status must not have been applied.
	stored, err := repo.GetByExternalRef(created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, stored.Status)
}

func TestPaymentWebhook_VerificationDisabled(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	// No webhook password configured: deployments predating the shared
	// secret accept token-less notifications.
	app, repo := setupAppWithWebhookPassword(t, gateway.URL, "")

	resp := postJSON(t, app, "/orders", map[string]interface{}{
		"userId": "u1",
		"items":  []map[string]interface{}{{"sku": "A", "qty": 1}},
		"total":  100,
	})
	var created services.CreateOrderResponse
	decodeJSON(t, resp, &created)

	resp = postJSON(t, app, "/payments/webhook", map[string]string{
		"OrderId": created.OrderID,
		"Status":  "CONFIRMED",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	stored, err := repo.GetByExternalRef(created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", stored.Status)
}

func TestListCities_Passthrough(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, _ := setupApp(t, gateway.URL)

	req := httptest.NewRequest(http.MethodGet, "/cities", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.JSONEq(t, `[{"code":44,"city":"Moscow"},{"code":270,"city":"Novosibirsk"}]`, string(body))
}

func TestCalculateTariff_Passthrough(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, _ := setupApp(t, gateway.URL)

	resp := postJSON(t, app, "/delivery/calculate", map[string]interface{}{
		"cityCode": 270,
		"items":    []map[string]interface{}{{"sku": "A", "qty": 1}},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.JSONEq(t, `{"tariff_codes":[{"tariff_code":136,"delivery_sum":350}]}`, string(body))
}

func TestCalculateTariff_MissingCityCode(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, _ := setupApp(t, gateway.URL)

	resp := postJSON(t, app, "/delivery/calculate", map[string]interface{}{
		"items": []map[string]interface{}{{"sku": "A", "qty": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGatewayFailure(t *testing.T) {
	// A gateway that is already gone simulates a network failure.
	gateway := fakeGateway(t)
	gateway.Close()
	app, _ := setupApp(t, gateway.URL)

	req := httptest.NewRequest(http.MethodGet, "/cities", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var errResp map[string]string
	decodeJSON(t, resp, &errResp)
	assert.Contains(t, errResp, "error")

	resp = postJSON(t, app, "/delivery/calculate", map[string]interface{}{"cityCode": 270})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	decodeJSON(t, resp, &errResp)
	assert.Contains(t, errResp, "error")
}

func TestGetOrderByRef(t *testing.T) {
	gateway := fakeGateway(t)
	defer gateway.Close()
	app, _ := setupApp(t, gateway.URL)

	resp := postJSON(t, app, "/orders", map[string]interface{}{
		"userId": "u1",
		"items":  []map[string]interface{}{{"sku": "A", "qty": 1}},
		"total":  100,
	})
	var created services.CreateOrderResponse
	decodeJSON(t, resp, &created)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+created.OrderID, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Order
	decodeJSON(t, resp, &fetched)
	assert.Equal(t, created.OrderID, fetched.ExternalRef)

	req = httptest.NewRequest(http.MethodGet, "/orders/no-such-ref", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
