package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mealdash/ordersync/internal/cache"
	"github.com/mealdash/ordersync/internal/config"
)

// lookupTimeout bounds a single external routing/geocoding call.
const lookupTimeout = 30 * time.Second

// RouteClient computes a route through an ordered list of waypoints.
type RouteClient interface {
	ComputeRoute(ctx context.Context, waypoints []Point) (*RouteResult, error)
}

// GeocodeClient resolves place queries and coordinates.
type GeocodeClient interface {
	Search(ctx context.Context, query string) (*GeocodeResult, error)
	Reverse(ctx context.Context, lat, lng float64) (*GeocodeResult, error)
}

// Engine annotates live positions with routes, ETAs and address text. All
// lookups are cached with a TTL and de-duplicated: concurrent calls for the
// same key share one in-flight request. The request itself runs detached
// from any single caller's context, so one caller cancelling cannot starve
// the others; each caller waits under its own context and a superseded
// caller simply abandons the stale result.
//
// Lookup failures are returned as errors and are never cached, so a
// subsequent call retries rather than persisting a false negative. Callers
// treat a failed lookup as "unknown", never as something to escalate.
type Engine struct {
	routes   RouteClient
	geocoder GeocodeClient
	cache    *cache.Cache
	cfg      *config.GeoConfig

	mu       sync.Mutex
	inflight map[string]*call
}

// call tracks a single shared in-flight lookup.
type call struct {
	done chan struct{}
	data []byte
	err  error
}

// NewEngine creates a geo engine backed by the given clients and cache.
func NewEngine(routes RouteClient, geocoder GeocodeClient, c *cache.Cache, cfg *config.GeoConfig) *Engine {
	return &Engine{
		routes:   routes,
		geocoder: geocoder,
		cache:    c,
		cfg:      cfg,
		inflight: make(map[string]*call),
	}
}

// FetchRoute computes a route through the given waypoints, serving from
// cache when a fresh entry exists.
func (e *Engine) FetchRoute(ctx context.Context, waypoints []Point) (*RouteResult, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("route requires at least 2 waypoints, got %d", len(waypoints))
	}

	key := routeKey(waypoints)
	return lookup(e, ctx, key, e.cfg.RouteTTL, "route", func(ctx context.Context) (*RouteResult, error) {
		return e.routes.ComputeRoute(ctx, waypoints)
	})
}

// Geocode resolves a free-text place query.
func (e *Engine) Geocode(ctx context.Context, query string) (*GeocodeResult, error) {
	canonical := strings.ToLower(strings.TrimSpace(query))
	if canonical == "" {
		return nil, fmt.Errorf("empty geocode query")
	}

	key := "geocode:" + canonical
	return lookup(e, ctx, key, e.cfg.GeocodeTTL, "geocode", func(ctx context.Context) (*GeocodeResult, error) {
		return e.geocoder.Search(ctx, canonical)
	})
}

// ReverseGeocode resolves coordinates to address text.
func (e *Engine) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResult, error) {
	if _, err := NewPoint(lat, lng); err != nil {
		return nil, err
	}

	// 5 decimal places is roughly 1m of precision; close-by lookups share
	// a cache entry.
	key := fmt.Sprintf("revgeo:%.5f,%.5f", lat, lng)
	return lookup(e, ctx, key, e.cfg.GeocodeTTL, "geocode", func(ctx context.Context) (*GeocodeResult, error) {
		return e.geocoder.Reverse(ctx, lat, lng)
	})
}

// EstimateETASeconds derives a travel-time estimate from straight-line
// distance at the configured average speed. Used when no routed duration
// is available.
func (e *Engine) EstimateETASeconds(distanceKm float64) int {
	speed := e.cfg.AverageSpeedKmh
	if speed <= 0 {
		speed = 30
	}
	return int(distanceKm / speed * 3600)
}

// routeKey builds a canonical cache key from the ordered waypoint list,
// with coordinates rounded to 5 decimal places.
func routeKey(waypoints []Point) string {
	var b strings.Builder
	b.WriteString("route:")
	for i, p := range waypoints {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%.5f,%.5f", p.Latitude, p.Longitude)
	}
	return b.String()
}

// lookup consults the cache, then joins or starts a shared in-flight
// request. The fetch runs on its own goroutine with a detached, bounded
// context; the calling goroutine waits under its own ctx.
func lookup[T any](e *Engine, ctx context.Context, key string, ttl time.Duration, source string, fetch func(context.Context) (*T, error)) (*T, error) {
	var cached T
	found, err := e.cache.Get(key, &cached)
	if err != nil {
		log.Printf("Cache read failed for %s: %v", key, err)
	}
	if found {
		return &cached, nil
	}

	e.mu.Lock()
	c, ok := e.inflight[key]
	if !ok {
		c = &call{done: make(chan struct{})}
		e.inflight[key] = c

		go func() {
			fetchCtx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
			defer cancel()

			result, err := fetch(fetchCtx)
			if err == nil && result != nil {
				if data, merr := json.Marshal(result); merr == nil {
					c.data = data
				} else {
					err = fmt.Errorf("failed to encode %s result: %w", source, merr)
				}
				if cerr := e.cache.Set(key, result, ttl, source); cerr != nil {
					log.Printf("Failed to cache %s result for %s: %v", source, key, cerr)
				}
			}
			c.err = err

			e.mu.Lock()
			delete(e.inflight, key)
			e.mu.Unlock()

			close(c.done)
		}()
	}
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
	}

	if c.err != nil {
		return nil, c.err
	}

	var result T
	if err := json.Unmarshal(c.data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", source, err)
	}
	return &result, nil
}
