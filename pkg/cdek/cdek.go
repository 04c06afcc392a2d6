// Package cdek is a thin client for the CDEK logistics API. It proxies city
// listings and tariff calculations: no caching, no retries, and responses are
// passed through verbatim as raw JSON.
package cdek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Delivery mode flags accepted by the tariff calculator.
const (
	TariffTypeDoorToDoor           = 1
	TariffTypeWarehouseToWarehouse = 2
)

// Config holds connection details for the CDEK API.
type Config struct {
	// BaseURL of the API. Defaults to the production endpoint.
	BaseURL string
	// APIKey authenticates city list requests (query parameter).
	APIKey string
	// AccountToken authenticates tariff calculations (bearer header).
	AccountToken string
	// Timeout bounds every outbound call. Defaults to 10 seconds.
	Timeout time.Duration
}

// Client calls the CDEK API.
type Client struct {
	baseURL      string
	apiKey       string
	accountToken string
	httpClient   *http.Client
}

// NewClient creates a new CDEK client from the given config, applying
// defaults for BaseURL and Timeout.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cdek.ru"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		accountToken: cfg.AccountToken,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Location identifies a CDEK location by its numeric city code.
type Location struct {
	Code int `json:"code"`
}

// Package describes a single parcel for tariff calculation. Weight is in
// grams, dimensions in centimeters.
type Package struct {
	Weight int `json:"weight"`
	Length int `json:"length"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultPackage returns the parcel profile used when the caller does not
// supply dimensions: a single 1 kg, 30x20x10 cm box.
func DefaultPackage() Package {
	return Package{
		Weight: 1000,
		Length: 30,
		Width:  20,
		Height: 10,
	}
}

// TariffRequest is the payload for a tariff list calculation.
type TariffRequest struct {
	Type         int       `json:"type"` // door-to-door or warehouse-to-warehouse
	FromLocation Location  `json:"from_location"`
	ToLocation   Location  `json:"to_location"`
	Packages     []Package `json:"packages"`
}

// ListCities fetches a bounded page of cities for the given country code and
// returns the provider's JSON body verbatim.
func (c *Client) ListCities(ctx context.Context, countryCode string, size int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("country_codes", countryCode)
	params.Set("size", strconv.Itoa(size))

	reqURL := fmt.Sprintf("%s/v2/location/cities?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build city list request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "city list")
}

// CalculateTariff forwards a tariff list calculation and returns the
// provider's JSON body verbatim.
func (c *Client) CalculateTariff(ctx context.Context, tariff TariffRequest) (json.RawMessage, error) {
	body, err := json.Marshal(tariff)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tariff request: %w", err)
	}

	reqURL := c.baseURL + "/v2/calculator/tarifflist"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build tariff request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accountToken)

	return c.do(req, "tariff calculation")
}

// do executes the request and returns the raw response body. Any transport
// error or non-2xx status surfaces as a generic retrieval error.
func (c *Client) do(req *http.Request, operation string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s request failed: unexpected status %d", operation, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", operation, err)
	}
	return json.RawMessage(body), nil
}
