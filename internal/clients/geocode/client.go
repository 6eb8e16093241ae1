package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mealdash/ordersync/internal/lib/geo"
)

// userAgent identifies us to the geocoding service, which requires a
// descriptive agent string.
const userAgent = "ordersync/1.0 (+https://github.com/mealdash/ordersync)"

// Client provides access to a Nominatim-compatible geocoding service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new geocoding client against the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Search resolves a free-text place query to coordinates.
func (c *Client) Search(ctx context.Context, query string) (*geo.GeocodeResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	requestURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	var results []nominatimPlace
	if err := c.get(ctx, requestURL, &results); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no results for query %q", query)
	}

	return processPlace(results[0])
}

// Reverse resolves coordinates to address text.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*geo.GeocodeResult, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", lat))
	params.Set("lon", fmt.Sprintf("%.6f", lng))
	params.Set("format", "jsonv2")

	requestURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())

	var result nominatimPlace
	if err := c.get(ctx, requestURL, &result); err != nil {
		return nil, err
	}

	if result.DisplayName == "" {
		return nil, fmt.Errorf("no address found for %.5f,%.5f", lat, lng)
	}

	return processPlace(result)
}

// get performs a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		return fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("geocoding API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// processPlace converts a Nominatim place to our GeocodeResult format.
func processPlace(place nominatimPlace) (*geo.GeocodeResult, error) {
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse latitude %q: %w", place.Lat, err)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse longitude %q: %w", place.Lon, err)
	}

	point, err := geo.NewPoint(lat, lon)
	if err != nil {
		return nil, err
	}

	return &geo.GeocodeResult{
		Point:       point,
		DisplayName: place.DisplayName,
	}, nil
}

// nominatimPlace represents a place in the API response. Nominatim returns
// coordinates as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
