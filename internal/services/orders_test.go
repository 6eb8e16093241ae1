package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealdash/ordersync/internal/cache"
	"github.com/mealdash/ordersync/internal/clients/gateway"
	"github.com/mealdash/ordersync/internal/config"
	"github.com/mealdash/ordersync/internal/lib/channel"
	"github.com/mealdash/ordersync/internal/lib/geo"
)

// quietReader fails every poll so tests drive updates deterministically
// through the apply methods.
type quietReader struct{}

func (quietReader) GetOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	return nil, errors.New("not available")
}

func (quietReader) GetDriverLocation(ctx context.Context, orderID string) (*gateway.DriverLocation, error) {
	return nil, errors.New("not available")
}

func (quietReader) ListVendorOrders(ctx context.Context, vendorID string) ([]gateway.Order, error) {
	return nil, errors.New("not available")
}

// addrByPosition returns an address derived from the queried coordinates
// so tests can tell which position an annotation belongs to.
type addrByPosition struct {
	mu    sync.Mutex
	gate  chan struct{}
	calls int
}

func (g *addrByPosition) Search(ctx context.Context, query string) (*geo.GeocodeResult, error) {
	return &geo.GeocodeResult{DisplayName: query}, nil
}

func (g *addrByPosition) Reverse(ctx context.Context, lat, lng float64) (*geo.GeocodeResult, error) {
	g.mu.Lock()
	g.calls++
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return &geo.GeocodeResult{DisplayName: fmt.Sprintf("addr-%.2f", lat)}, nil
}

type fixedRoutes struct {
	result *geo.RouteResult
	err    error
}

func (f *fixedRoutes) ComputeRoute(ctx context.Context, waypoints []geo.Point) (*geo.RouteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testManager() *channel.Manager {
	return channel.NewManager(&config.SyncConfig{
		RealtimeEnabled: false,
		PollInterval:    time.Hour,
		PollTimeout:     time.Second,
	}, "", nil, nil)
}

func testEngine(routes geo.RouteClient, geocoder geo.GeocodeClient) *geo.Engine {
	return geo.NewEngine(routes, geocoder, cache.New(), &config.GeoConfig{
		RouteTTL:        time.Minute,
		GeocodeTTL:      time.Minute,
		AverageSpeedKmh: 30,
	})
}

func statusUpdate(t *testing.T, orderID, status string) channel.Update {
	payload, err := json.Marshal(map[string]string{"orderId": orderID, "status": status})
	require.NoError(t, err)
	return channel.Update{ResourceID: orderID, Payload: payload, ReceivedAt: time.Now()}
}

func locationUpdate(t *testing.T, lat, lng float64) channel.Update {
	payload, err := json.Marshal(map[string]float64{"lat": lat, "lng": lng})
	require.NoError(t, err)
	return channel.Update{Payload: payload, ReceivedAt: time.Now()}
}

func TestOrderTracker_StatusLifecycleLastWriteWins(t *testing.T) {
	m := testManager()
	defer m.CloseAll()

	var mu sync.Mutex
	var changes []string
	tracker := NewOrderTracker(m, quietReader{}, testEngine(&fixedRoutes{}, &addrByPosition{}),
		"order-1", geo.Point{Latitude: 40.7306, Longitude: -73.9866},
		func(v OrderView) {
			mu.Lock()
			changes = append(changes, v.Status)
			mu.Unlock()
		})
	defer tracker.Close()

	lifecycle := []string{StatusPlaced, StatusAccepted, StatusPreparing, StatusReady, StatusAssigned}
	for _, status := range lifecycle {
		tracker.applyStatus(statusUpdate(t, "order-1", status))
	}

	view := tracker.View()
	assert.Equal(t, StatusAssigned, view.Status, "Displayed status is the most recently received event")
	assert.False(t, view.StatusUpdatedAt.IsZero())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, lifecycle, changes, "Every applied event produced a notification, in order")
}

func TestOrderTracker_MalformedStatusDropped(t *testing.T) {
	m := testManager()
	defer m.CloseAll()

	tracker := NewOrderTracker(m, quietReader{}, testEngine(&fixedRoutes{}, &addrByPosition{}),
		"order-1", geo.Point{Latitude: 40.73, Longitude: -73.98}, nil)
	defer tracker.Close()

	tracker.applyStatus(statusUpdate(t, "order-1", StatusPlaced))
	tracker.applyStatus(channel.Update{Payload: json.RawMessage("not json")})
	tracker.applyStatus(statusUpdate(t, "order-1", ""))

	assert.Equal(t, StatusPlaced, tracker.View().Status, "Unparseable events leave the view untouched")
}

func TestOrderTracker_LocationProducesImmediateEstimate(t *testing.T) {
	m := testManager()
	defer m.CloseAll()

	// Routing fails, so only the straight-line estimate is available.
	routes := &fixedRoutes{err: errors.New("routing unavailable")}
	tracker := NewOrderTracker(m, quietReader{}, testEngine(routes, &addrByPosition{}),
		"order-1", geo.Point{Latitude: 40.7306, Longitude: -73.9866}, nil)
	defer tracker.Close()

	tracker.applyLocation(locationUpdate(t, 40.7128, -74.0060))

	view := tracker.View()
	require.NotNil(t, view.Driver)
	assert.Equal(t, 40.7128, view.Driver.Latitude)
	assert.True(t, view.HasEstimate, "Straight-line estimate is available before any lookup returns")
	assert.Greater(t, view.DistanceKm, 0.0)
	assert.Greater(t, view.EtaSeconds, 0)
}

func TestOrderTracker_RoutedAnnotationRefinesEstimate(t *testing.T) {
	m := testManager()
	defer m.CloseAll()

	routes := &fixedRoutes{result: &geo.RouteResult{DistanceKm: 3.4, DurationSeconds: 720}}
	tracker := NewOrderTracker(m, quietReader{}, testEngine(routes, &addrByPosition{}),
		"order-1", geo.Point{Latitude: 40.7306, Longitude: -73.9866}, nil)
	defer tracker.Close()

	tracker.applyLocation(locationUpdate(t, 40.7128, -74.0060))

	require.Eventually(t, func() bool {
		v := tracker.View()
		return v.DistanceKm == 3.4 && v.EtaSeconds == 720 && v.DriverAddress != ""
	}, time.Second, time.Millisecond)

	assert.Equal(t, "addr-40.71", tracker.View().DriverAddress)
}

func TestOrderTracker_StaleAnnotationDiscarded(t *testing.T) {
	m := testManager()
	defer m.CloseAll()

	gate := make(chan struct{})
	geocoder := &addrByPosition{gate: gate}
	routes := &fixedRoutes{result: &geo.RouteResult{DistanceKm: 1.0, DurationSeconds: 60}}
	tracker := NewOrderTracker(m, quietReader{}, testEngine(routes, geocoder),
		"order-1", geo.Point{Latitude: 40.7306, Longitude: -73.9866}, nil)
	defer tracker.Close()

	// Two positions arrive while the first annotation is still in flight.
	tracker.applyLocation(locationUpdate(t, 40.10, -74.00))
	tracker.applyLocation(locationUpdate(t, 40.90, -74.00))
	close(gate)

	require.Eventually(t, func() bool { return tracker.View().DriverAddress != "" },
		time.Second, time.Millisecond)

	view := tracker.View()
	require.NotNil(t, view.Driver)
	assert.Equal(t, 40.90, view.Driver.Latitude)
	assert.Equal(t, "addr-40.90", view.DriverAddress,
		"The superseded position's annotation must never land")
}

func TestOrderTracker_MalformedLocationDropped(t *testing.T) {
	m := testManager()
	defer m.CloseAll()

	tracker := NewOrderTracker(m, quietReader{}, testEngine(&fixedRoutes{}, &addrByPosition{}),
		"order-1", geo.Point{Latitude: 40.73, Longitude: -73.98}, nil)
	defer tracker.Close()

	tracker.applyLocation(channel.Update{Payload: json.RawMessage("garbage")})
	tracker.applyLocation(locationUpdate(t, 200, 300))

	assert.Nil(t, tracker.View().Driver)
}

func TestOrderTracker_CloseStopsNotifications(t *testing.T) {
	m := testManager()
	defer m.CloseAll()

	var mu sync.Mutex
	notified := 0
	tracker := NewOrderTracker(m, quietReader{}, testEngine(&fixedRoutes{}, &addrByPosition{}),
		"order-1", geo.Point{Latitude: 40.73, Longitude: -73.98},
		func(OrderView) {
			mu.Lock()
			notified++
			mu.Unlock()
		})

	tracker.applyStatus(statusUpdate(t, "order-1", StatusPlaced))
	tracker.Close()
	tracker.applyStatus(statusUpdate(t, "order-1", StatusAccepted))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, notified)
	assert.Equal(t, StatusPlaced, tracker.View().Status)
}
