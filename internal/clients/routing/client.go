package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mealdash/ordersync/internal/lib/geo"
)

// Client provides access to an OSRM-compatible routing service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new routing client against the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ComputeRoute requests a driving route through the ordered waypoints and
// returns distance, duration and the decoded route geometry.
func (c *Client) ComputeRoute(ctx context.Context, waypoints []geo.Point) (*geo.RouteResult, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("route requires at least 2 waypoints, got %d", len(waypoints))
	}

	// OSRM expects lon,lat pairs separated by semicolons.
	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = fmt.Sprintf("%f,%f", p.Longitude, p.Latitude)
	}

	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "polyline")

	requestURL := fmt.Sprintf("%s/route/v1/driving/%s?%s",
		c.baseURL, strings.Join(coords, ";"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		return nil, fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("routing API error %d: %s", resp.StatusCode, string(body))
	}

	var response osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Code != "Ok" {
		return nil, fmt.Errorf("routing failed: %s (%s)", response.Code, response.Message)
	}
	if len(response.Routes) == 0 {
		return nil, fmt.Errorf("no routes found in response")
	}

	return processRoute(response.Routes[0])
}

// processRoute converts an OSRM route to our RouteResult format.
func processRoute(route osrmRoute) (*geo.RouteResult, error) {
	points, err := geo.DecodePolyline(route.Geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to decode route geometry: %w", err)
	}

	return &geo.RouteResult{
		DistanceKm:      route.Distance / 1000,
		DurationSeconds: int(route.Duration),
		Points:          points,
	}, nil
}

// osrmRouteResponse represents the API response structure.
type osrmRouteResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Routes  []osrmRoute `json:"routes"`
}

// osrmRoute represents a single route in the response.
type osrmRoute struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
	Geometry string  `json:"geometry"` // encoded polyline
}
