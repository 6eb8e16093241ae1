package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mealdash/ordersync/internal/clients/routing"
	"github.com/mealdash/ordersync/internal/config"
	"github.com/mealdash/ordersync/internal/lib/geo"
)

// Manual harness for the routing client against the real endpoint.
func main() {
	lat1 := flag.Float64("lat1", 40.7128, "Origin latitude")
	lng1 := flag.Float64("lng1", -74.0060, "Origin longitude")
	lat2 := flag.Float64("lat2", 40.7306, "Destination latitude")
	lng2 := flag.Float64("lng2", -73.9866, "Destination longitude")
	baseURL := flag.String("base-url", config.DefaultConfig().Geo.RoutingBaseURL, "Routing service base URL")
	flag.Parse()

	client := routing.NewClient(*baseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	waypoints := []geo.Point{
		{Latitude: *lat1, Longitude: *lng1},
		{Latitude: *lat2, Longitude: *lng2},
	}

	fmt.Printf("Computing route %.5f,%.5f -> %.5f,%.5f\n", *lat1, *lng1, *lat2, *lng2)

	route, err := client.ComputeRoute(ctx, waypoints)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Distance: %.2f km\n", route.DistanceKm)
	fmt.Printf("Duration: %ds (%.1f min)\n", route.DurationSeconds, float64(route.DurationSeconds)/60)
	fmt.Printf("Geometry: %d points\n", len(route.Points))
}
