package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource supplies the bearer credential for authenticated calls. It
// is backed by the session collaborator; an empty token is sent as-is and
// rejected by the server rather than treated as a client-side error.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed credential. Useful for
// harnesses and tests.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// Client provides access to the marketplace REST API. It covers only the
// read and uplink operations the sync layer needs; order CRUD lives with
// the host application.
type Client struct {
	tokens     TokenSource
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new gateway client.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		tokens:  tokens,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Order is the marketplace order resource as returned by the gateway.
type Order struct {
	ID         string    `json:"orderId"`
	VendorID   string    `json:"vendorId"`
	CustomerID string    `json:"customerId"`
	Status     string    `json:"status"`
	Total      float64   `json:"total,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// DriverLocation is the live position of the driver assigned to an order.
type DriverLocation struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Accuracy   float64 `json:"accuracy,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Heading    float64 `json:"heading,omitempty"`
	RecordedAt string  `json:"recordedAt,omitempty"`
}

// GetOrder fetches a single order by id. Polling equivalent of the
// orders.{orderId} topic.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.get(ctx, fmt.Sprintf("/v1/orders/%s", orderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetDriverLocation fetches the current driver position for an order.
// Polling equivalent of the orders.{orderId}.location topic.
func (c *Client) GetDriverLocation(ctx context.Context, orderID string) (*DriverLocation, error) {
	var loc DriverLocation
	if err := c.get(ctx, fmt.Sprintf("/v1/orders/%s/location", orderID), &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// ListVendorOrders fetches the active orders for a vendor. Polling
// equivalent of the vendors.{vendorId}.orders topic.
func (c *Client) ListVendorOrders(ctx context.Context, vendorID string) ([]Order, error) {
	var orders []Order
	if err := c.get(ctx, fmt.Sprintf("/v1/vendors/%s/orders", vendorID), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateDriverLocation uplinks the reporting driver's position.
func (c *Client) UpdateDriverLocation(ctx context.Context, loc DriverLocation) error {
	body, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", c.baseURL+"/v1/driver/location", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// get performs an authenticated GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return fmt.Errorf("not found: %s", path)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// authorize attaches the bearer credential if one is available.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
