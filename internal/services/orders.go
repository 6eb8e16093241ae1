package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mealdash/ordersync/internal/clients/gateway"
	"github.com/mealdash/ordersync/internal/lib/channel"
	"github.com/mealdash/ordersync/internal/lib/geo"
)

// Order lifecycle states as they appear on the wire.
const (
	StatusPlaced    = "PLACED"
	StatusAccepted  = "ACCEPTED"
	StatusPreparing = "PREPARING"
	StatusReady     = "READY"
	StatusAssigned  = "ASSIGNED"
	StatusPickedUp  = "PICKED_UP"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// OrderReader is the gateway surface the tracker polls against.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*gateway.Order, error)
	GetDriverLocation(ctx context.Context, orderID string) (*gateway.DriverLocation, error)
}

// OrderView is the consumer-visible state of one tracked order. Each
// arriving event replaces the previously displayed state: last received
// wins, no merging.
type OrderView struct {
	OrderID         string
	Status          string
	StatusUpdatedAt time.Time

	Driver          *geo.Point
	DriverUpdatedAt time.Time
	DriverAddress   string

	DistanceKm  float64
	EtaSeconds  int
	HasEstimate bool
}

// OrderTracker keeps one order's status and driver position live. It
// subscribes to the order's status and location topics (with REST polling
// equivalents), applies updates last-write-wins, and annotates each new
// driver position with distance, ETA and address text through the geo
// engine. A newer position cancels the previous position's pending geo
// lookups so a stale result never overwrites a fresh one.
type OrderTracker struct {
	orderID     string
	destination geo.Point
	reader      OrderReader
	engine      *geo.Engine
	onChange    func(OrderView)

	statusSub *channel.Subscription
	locSub    *channel.Subscription

	mu        sync.Mutex
	view      OrderView
	geoCancel context.CancelFunc
	closed    bool
}

// NewOrderTracker opens subscriptions for the given order and starts
// tracking. destination is the delivery point used for distance and ETA.
// onChange, if non-nil, is invoked with a snapshot after every applied
// update.
func NewOrderTracker(manager *channel.Manager, reader OrderReader, engine *geo.Engine, orderID string, destination geo.Point, onChange func(OrderView)) *OrderTracker {
	t := &OrderTracker{
		orderID:     orderID,
		destination: destination,
		reader:      reader,
		engine:      engine,
		onChange:    onChange,
		view:        OrderView{OrderID: orderID},
	}

	t.statusSub = manager.Open(orderID, channel.OrderTopic(orderID), t.pollOrder, channel.HandlerFuncs{
		OnUpdate: t.applyStatus,
		OnError:  t.logError,
	})
	t.locSub = manager.Open(orderID, channel.OrderLocationTopic(orderID), t.pollLocation, channel.HandlerFuncs{
		OnUpdate: t.applyLocation,
		OnError:  t.logError,
	})

	return t
}

// View returns a snapshot of the current consumer-visible state.
func (t *OrderTracker) View() OrderView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// StatusSubscription exposes the order-status subscription for passive
// status display.
func (t *OrderTracker) StatusSubscription() *channel.Subscription {
	return t.statusSub
}

// Close releases both subscriptions and cancels pending geo lookups. No
// onChange invocation occurs after Close returns.
func (t *OrderTracker) Close() {
	t.mu.Lock()
	t.closed = true
	cancel := t.geoCancel
	t.geoCancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.statusSub.Close()
	t.locSub.Close()
}

// pollOrder is the REST equivalent of the order status topic.
func (t *OrderTracker) pollOrder(ctx context.Context) (json.RawMessage, error) {
	order, err := t.reader.GetOrder(ctx, t.orderID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(order)
}

// pollLocation is the REST equivalent of the driver location topic.
func (t *OrderTracker) pollLocation(ctx context.Context) (json.RawMessage, error) {
	loc, err := t.reader.GetDriverLocation(ctx, t.orderID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(loc)
}

// applyStatus applies an order status event, last write wins.
func (t *OrderTracker) applyStatus(u channel.Update) {
	var payload struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(u.Payload, &payload); err != nil || payload.Status == "" {
		log.Printf("Order %s: dropping unparseable status event", t.orderID)
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.view.Status = payload.Status
	t.view.StatusUpdatedAt = u.ReceivedAt
	view := t.view
	t.mu.Unlock()

	t.notify(view)
}

// applyLocation applies a driver position event and kicks off async geo
// annotation for it.
func (t *OrderTracker) applyLocation(u channel.Update) {
	var payload struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.Unmarshal(u.Payload, &payload); err != nil {
		log.Printf("Order %s: dropping unparseable location event", t.orderID)
		return
	}

	driver, err := geo.NewPoint(payload.Lat, payload.Lng)
	if err != nil {
		log.Printf("Order %s: dropping location event: %v", t.orderID, err)
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	t.view.Driver = &driver
	t.view.DriverUpdatedAt = u.ReceivedAt

	// Straight-line estimate immediately; the routed refinement follows
	// asynchronously.
	if d, derr := geo.DistanceKm(driver, t.destination); derr == nil {
		t.view.DistanceKm = d
		t.view.EtaSeconds = t.engine.EstimateETASeconds(d)
		t.view.HasEstimate = true
	}

	// Supersede any in-flight lookups for the previous position.
	if t.geoCancel != nil {
		t.geoCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.geoCancel = cancel

	view := t.view
	t.mu.Unlock()

	t.notify(view)

	go t.annotate(ctx, driver)
}

// annotate refines the view with a routed ETA and reverse-geocoded
// address for the given driver position. Lookup failures leave the
// straight-line estimate in place; a cancelled (superseded) lookup is
// discarded entirely.
func (t *OrderTracker) annotate(ctx context.Context, driver geo.Point) {
	var address string
	if place, err := t.engine.ReverseGeocode(ctx, driver.Latitude, driver.Longitude); err == nil && place != nil {
		address = place.DisplayName
	}

	var route *geo.RouteResult
	if r, err := t.engine.FetchRoute(ctx, []geo.Point{driver, t.destination}); err == nil {
		route = r
	}

	if ctx.Err() != nil {
		return
	}

	t.mu.Lock()
	if t.closed || t.view.Driver == nil || *t.view.Driver != driver {
		t.mu.Unlock()
		return
	}
	if address != "" {
		t.view.DriverAddress = address
	}
	if route != nil {
		t.view.DistanceKm = route.DistanceKm
		t.view.EtaSeconds = route.DurationSeconds
		t.view.HasEstimate = true
	}
	view := t.view
	t.mu.Unlock()

	t.notify(view)
}

func (t *OrderTracker) notify(view OrderView) {
	if t.onChange != nil {
		t.onChange(view)
	}
}

func (t *OrderTracker) logError(kind channel.ErrKind, err error) {
	log.Printf("Order %s: %s error: %v", t.orderID, kind, err)
}

var _ OrderReader = (*gateway.Client)(nil)
