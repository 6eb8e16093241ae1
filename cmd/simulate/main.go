package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/mealdash/ordersync/internal/cache"
	"github.com/mealdash/ordersync/internal/clients/gateway"
	"github.com/mealdash/ordersync/internal/clients/geocode"
	"github.com/mealdash/ordersync/internal/clients/routing"
	"github.com/mealdash/ordersync/internal/config"
	"github.com/mealdash/ordersync/internal/lib/alerts"
	"github.com/mealdash/ordersync/internal/lib/channel"
	"github.com/mealdash/ordersync/internal/lib/geo"
	"github.com/mealdash/ordersync/internal/lib/location"
	"github.com/mealdash/ordersync/internal/services"
)

// Simulation harness: wires the full sync stack against a configured
// backend, tracks one order, follows a vendor feed, and reports a
// scripted driver position stream.
func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults used when empty)")
	token := flag.String("token", "", "Bearer token for the gateway and broker")
	orderID := flag.String("order", "order-demo-1", "Order id to track")
	vendorID := flag.String("vendor", "vendor-demo-1", "Vendor id to follow")
	destLat := flag.Float64("dest-lat", 40.7306, "Delivery destination latitude")
	destLng := flag.Float64("dest-lng", -73.9866, "Delivery destination longitude")
	duration := flag.Duration("duration", 60*time.Second, "How long to run")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	tokens := gateway.StaticToken(*token)

	cacheInstance := cache.New()
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	cacheInstance.StartPeriodicCleanup(ctx, time.Minute)

	engine := geo.NewEngine(
		routing.NewClient(cfg.Geo.RoutingBaseURL),
		geocode.NewClient(cfg.Geo.GeocodeBaseURL),
		cacheInstance,
		&cfg.Geo,
	)

	gw := gateway.NewClient(cfg.Gateway.BaseURL, tokens)
	manager := channel.NewManager(&cfg.Sync, cfg.Gateway.RealtimeURL, &channel.WebsocketDialer{}, tokens)
	defer manager.CloseAll()

	log.Printf("Transport: realtime=%v poll_interval=%v", cfg.Sync.RealtimeEnabled, cfg.Sync.PollInterval)

	// Track one order end to end.
	destination := geo.Point{Latitude: *destLat, Longitude: *destLng}
	tracker := services.NewOrderTracker(manager, gw, engine, *orderID, destination, func(view services.OrderView) {
		log.Printf("Order %s: status=%s distance=%.2fkm eta=%ds address=%q",
			view.OrderID, view.Status, view.DistanceKm, view.EtaSeconds, view.DriverAddress)
	})
	defer tracker.Close()

	// Follow the vendor's order stream with a persistent alert cue.
	coordinator := alerts.NewCoordinator(&cfg.Alerts, func(pending []string) {
		log.Printf("ALERT: %d unacknowledged order(s): %v", len(pending), pending)
	})
	defer coordinator.Close()

	feed := services.NewVendorFeed(manager, gw, coordinator, *vendorID, func(orders []gateway.Order) {
		log.Printf("Vendor %s: %d active order(s)", *vendorID, len(orders))
	})
	defer feed.Close()

	// Report a scripted driver position stream through the real uplink.
	reporter, err := location.Start(
		&scriptedStream{origin: destination, steps: 30},
		func(ctx context.Context, s location.Sample) error {
			return gw.UpdateDriverLocation(ctx, gateway.DriverLocation{
				Lat:      s.Lat,
				Lng:      s.Lng,
				Accuracy: s.AccuracyMeters,
				Speed:    s.SpeedMps,
				Heading:  s.HeadingDegrees,
			})
		},
		location.OptionsFromConfig(&cfg.Location),
	)
	if err != nil {
		log.Fatalf("Failed to start location reporter: %v", err)
	}
	defer reporter.Stop()

	<-ctx.Done()

	status := reporter.Status()
	fmt.Printf("\nReporter: state=%s accepted=%d discarded_accuracy=%d discarded_rate=%d uplink_failures=%d\n",
		status.State, status.Accepted, status.DiscardedAccuracy, status.DiscardedRate, status.UplinkFailures)
	fmt.Printf("Cache: %+v\n", cacheInstance.Stats())
}

// scriptedStream walks a synthetic driver toward the origin point,
// emitting a fix every two seconds with varying accuracy.
type scriptedStream struct {
	origin geo.Point
	steps  int
}

func (s *scriptedStream) Watch(ctx context.Context, opts location.StreamOptions) (<-chan location.Sample, <-chan error, error) {
	samples := make(chan location.Sample)
	errs := make(chan error)

	go func() {
		defer close(samples)
		defer close(errs)

		start := geo.Point{
			Latitude:  s.origin.Latitude + 0.03,
			Longitude: s.origin.Longitude - 0.03,
		}

		for i := 0; i <= s.steps; i++ {
			t := float64(i) / float64(s.steps)
			p := geo.Interpolate(start, s.origin, t)

			// Every fifth fix is deliberately poor to exercise the
			// accuracy filter.
			accuracy := 15.0
			if i%5 == 4 {
				accuracy = 250.0
			}

			sample := location.Sample{
				Lat:            p.Latitude,
				Lng:            p.Longitude,
				AccuracyMeters: accuracy,
				SpeedMps:       8,
				CapturedAt:     time.Now(),
			}

			select {
			case <-ctx.Done():
				return
			case samples <- sample:
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()

	return samples, errs, nil
}
