package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrder(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{
			"orderId": "order-1",
			"vendorId": "vendor-9",
			"customerId": "cust-4",
			"status": "PREPARING",
			"total": 42.50
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("secret"))
	order, err := client.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)

	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, "vendor-9", order.VendorID)
	assert.Equal(t, "PREPARING", order.Status)
	assert.Equal(t, 42.50, order.Total)

	assert.Equal(t, "/v1/orders/order-1", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestGetOrder_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.GetOrder(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGetDriverLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders/order-1/location", r.URL.Path)
		w.Write([]byte(`{"lat": 40.7128, "lng": -74.0060, "accuracy": 12.5, "speed": 8.2}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	loc, err := client.GetDriverLocation(context.Background(), "order-1")
	require.NoError(t, err)

	assert.Equal(t, 40.7128, loc.Lat)
	assert.Equal(t, -74.0060, loc.Lng)
	assert.Equal(t, 12.5, loc.Accuracy)
}

func TestListVendorOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/vendors/vendor-9/orders", r.URL.Path)
		w.Write([]byte(`[
			{"orderId": "order-1", "status": "PLACED"},
			{"orderId": "order-2", "status": "READY"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	orders, err := client.ListVendorOrders(context.Background(), "vendor-9")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "order-1", orders[0].ID)
	assert.Equal(t, "READY", orders[1].Status)
}

func TestUpdateDriverLocation(t *testing.T) {
	var gotMethod string
	var gotBody DriverLocation
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		assert.Equal(t, "/v1/driver/location", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(204)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("secret"))
	err := client.UpdateDriverLocation(context.Background(), DriverLocation{
		Lat:        40.71,
		Lng:        -74.00,
		Accuracy:   10,
		RecordedAt: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	require.NoError(t, err)

	assert.Equal(t, "PUT", gotMethod)
	assert.Equal(t, 40.71, gotBody.Lat)
	assert.Equal(t, 10.0, gotBody.Accuracy)
}

func TestUpdateDriverLocation_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte("invalid token"))
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("expired"))
	err := client.UpdateDriverLocation(context.Background(), DriverLocation{Lat: 1, Lng: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
