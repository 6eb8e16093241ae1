package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mealdash/ordersync/internal/clients/geocode"
	"github.com/mealdash/ordersync/internal/config"
)

// Manual harness for the geocoding client against the real endpoint.
func main() {
	query := flag.String("query", "", "Forward geocode query")
	lat := flag.Float64("lat", 0, "Reverse geocode latitude")
	lng := flag.Float64("lng", 0, "Reverse geocode longitude")
	baseURL := flag.String("base-url", config.DefaultConfig().Geo.GeocodeBaseURL, "Geocoding service base URL")
	flag.Parse()

	client := geocode.NewClient(*baseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case *query != "":
		result, err := client.Search(ctx, *query)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Place: %s\n", result.DisplayName)
		fmt.Printf("Point: %.5f, %.5f\n", result.Point.Latitude, result.Point.Longitude)

	case *lat != 0 || *lng != 0:
		result, err := client.Reverse(ctx, *lat, *lng)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Address: %s\n", result.DisplayName)

	default:
		fmt.Println("Usage:")
		fmt.Println("  test-geocode --query 'Union Square, NYC'")
		fmt.Println("  test-geocode --lat 40.7359 --lng -73.9911")
		os.Exit(1)
	}
}
