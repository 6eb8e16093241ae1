package services

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mealdash/ordersync/internal/clients/gateway"
	"github.com/mealdash/ordersync/internal/lib/alerts"
	"github.com/mealdash/ordersync/internal/lib/channel"
)

// VendorOrderReader is the gateway surface the feed polls against.
type VendorOrderReader interface {
	ListVendorOrders(ctx context.Context, vendorID string) ([]gateway.Order, error)
}

// VendorFeed keeps a vendor's order set live and drives the alert
// coordinator: an order id never seen before is enqueued as an
// unacknowledged event, and the repeating cue persists until the vendor
// acknowledges it. Order updates themselves apply last-write-wins.
//
// The realtime topic delivers single-order events; the polling fallback
// returns the full active order list. Both shapes are accepted.
type VendorFeed struct {
	vendorID string
	reader   VendorOrderReader
	alerts   *alerts.Coordinator
	onChange func([]gateway.Order)

	sub *channel.Subscription

	mu     sync.Mutex
	orders map[string]gateway.Order
	seen   map[string]bool
	closed bool
}

// NewVendorFeed opens the vendor order subscription and starts tracking.
// The alert coordinator is owned by the caller and survives feed closure.
func NewVendorFeed(manager *channel.Manager, reader VendorOrderReader, coordinator *alerts.Coordinator, vendorID string, onChange func([]gateway.Order)) *VendorFeed {
	f := &VendorFeed{
		vendorID: vendorID,
		reader:   reader,
		alerts:   coordinator,
		onChange: onChange,
		orders:   make(map[string]gateway.Order),
		seen:     make(map[string]bool),
	}

	f.sub = manager.Open(vendorID, channel.VendorOrdersTopic(vendorID), f.poll, channel.HandlerFuncs{
		OnUpdate: f.apply,
		OnError:  f.logError,
	})

	return f
}

// Acknowledge clears the pending alert for an order.
func (f *VendorFeed) Acknowledge(orderID string) {
	if f.alerts != nil {
		f.alerts.Acknowledge(orderID)
	}
}

// Snapshot returns the current order set, newest first.
func (f *VendorFeed) Snapshot() []gateway.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Subscription exposes the underlying subscription for passive status
// display.
func (f *VendorFeed) Subscription() *channel.Subscription {
	return f.sub
}

// Close releases the subscription. Pending alerts remain with the
// coordinator until acknowledged.
func (f *VendorFeed) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	f.sub.Close()
}

// poll is the REST equivalent of the vendor orders topic.
func (f *VendorFeed) poll(ctx context.Context) (json.RawMessage, error) {
	orders, err := f.reader.ListVendorOrders(ctx, f.vendorID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(orders)
}

// apply ingests either a single order event or a full order list.
func (f *VendorFeed) apply(u channel.Update) {
	payload := u.Payload

	var list []gateway.Order
	if err := json.Unmarshal(payload, &list); err == nil {
		f.applyOrders(list, u.ReceivedAt)
		return
	}

	var single gateway.Order
	if err := json.Unmarshal(payload, &single); err == nil && single.ID != "" {
		f.applyOrders([]gateway.Order{single}, u.ReceivedAt)
		return
	}

	log.Printf("Vendor %s: dropping unparseable order event", f.vendorID)
}

// applyOrders upserts orders last-write-wins and enqueues alerts for
// newly seen ids.
func (f *VendorFeed) applyOrders(orders []gateway.Order, receivedAt time.Time) {
	var fresh []string

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	for _, order := range orders {
		if order.ID == "" {
			continue
		}
		if order.UpdatedAt.IsZero() {
			order.UpdatedAt = receivedAt
		}
		f.orders[order.ID] = order
		if !f.seen[order.ID] {
			f.seen[order.ID] = true
			fresh = append(fresh, order.ID)
		}
	}
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	if f.alerts != nil {
		for _, id := range fresh {
			f.alerts.Enqueue(id)
		}
	}

	if f.onChange != nil {
		f.onChange(snapshot)
	}
}

// snapshotLocked returns orders newest first. Caller holds f.mu.
func (f *VendorFeed) snapshotLocked() []gateway.Order {
	orders := make([]gateway.Order, 0, len(f.orders))
	for _, order := range f.orders {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

func (f *VendorFeed) logError(kind channel.ErrKind, err error) {
	log.Printf("Vendor %s: %s error: %v", f.vendorID, kind, err)
}

var _ VendorOrderReader = (*gateway.Client)(nil)
