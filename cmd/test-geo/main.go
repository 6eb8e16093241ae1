package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mealdash/ordersync/internal/lib/geo"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "distance":
		handleDistance()
	case "bearing":
		handleBearing()
	case "decode-polyline":
		handleDecodePolyline()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleDistance() {
	fs := flag.NewFlagSet("distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo distance --lat1 40.7128 --lng1 -74.0060 --lat2 40.7306 --lng2 -73.9866")
		os.Exit(1)
	}

	a := geo.Point{Latitude: *lat1, Longitude: *lng1}
	b := geo.Point{Latitude: *lat2, Longitude: *lng2}

	distance, err := geo.DistanceKm(a, b)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Distance: %.3f km\n", distance)
}

func handleBearing() {
	fs := flag.NewFlagSet("bearing", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	fs.Parse(os.Args[2:])

	a := geo.Point{Latitude: *lat1, Longitude: *lng1}
	b := geo.Point{Latitude: *lat2, Longitude: *lng2}

	bearing, err := geo.BearingDegrees(a, b)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Bearing: %.1f degrees\n", bearing)
}

func handleDecodePolyline() {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	encoded := fs.String("polyline", "", "Encoded polyline string")

	fs.Parse(os.Args[2:])

	if *encoded == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo decode-polyline --polyline '_p~iF~ps|U_ulLnnqC'")
		os.Exit(1)
	}

	points, err := geo.DecodePolyline(*encoded)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Decoded %d points:\n", len(points))
	for i, p := range points {
		fmt.Printf("  %d: %.5f, %.5f\n", i, p.Latitude, p.Longitude)
	}
}

func printUsage() {
	fmt.Println("Usage: test-geo <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  distance         Great-circle distance between two points")
	fmt.Println("  bearing          Initial bearing between two points")
	fmt.Println("  decode-polyline  Decode an encoded polyline")
	fmt.Println("  help             Show this help")
}
