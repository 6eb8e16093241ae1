package config

import (
	"fmt"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the complete client configuration. It is constructed
// once at startup and passed by reference into each component constructor;
// nothing re-reads configuration at call sites.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Sync     SyncConfig     `yaml:"sync"`
	Geo      GeoConfig      `yaml:"geo"`
	Location LocationConfig `yaml:"location"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// GatewayConfig holds endpoints for the marketplace REST collaborator and
// the real-time broker.
type GatewayConfig struct {
	BaseURL     string `yaml:"base_url"`
	RealtimeURL string `yaml:"realtime_url"`
}

// SyncConfig controls the channel manager. RealtimeEnabled selects the
// transport once per process; it never alternates per resource.
type SyncConfig struct {
	RealtimeEnabled      bool          `yaml:"realtime_enabled"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	PollTimeout          time.Duration `yaml:"poll_timeout"`
	ReconnectBackoff     time.Duration `yaml:"reconnect_backoff"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
}

// GeoConfig holds routing and geocoding settings.
type GeoConfig struct {
	RoutingBaseURL string        `yaml:"routing_base_url"`
	GeocodeBaseURL string        `yaml:"geocode_base_url"`
	RouteTTL       time.Duration `yaml:"route_ttl"`
	GeocodeTTL     time.Duration `yaml:"geocode_ttl"`
	// AverageSpeedKmh is used for ETA estimates when no routed duration
	// is available.
	AverageSpeedKmh float64 `yaml:"average_speed_kmh"`
}

// LocationConfig controls the position reporter.
type LocationConfig struct {
	MinInterval       time.Duration `yaml:"min_interval"`
	MaxAccuracyMeters float64       `yaml:"max_accuracy_meters"`
	AcquireTimeout    time.Duration `yaml:"acquire_timeout"`
	MaxStaleness      time.Duration `yaml:"max_staleness"`
	TrailSize         int           `yaml:"trail_size"`
}

// AlertsConfig controls the re-notification cadence for unacknowledged
// events.
type AlertsConfig struct {
	CueInterval time.Duration `yaml:"cue_interval"`
}

// DefaultConfig returns a configuration with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL:     "https://api.mealdash.io",
			RealtimeURL: "wss://realtime.mealdash.io/v1/socket",
		},
		Sync: SyncConfig{
			RealtimeEnabled:      true,
			PollInterval:         5 * time.Second,
			PollTimeout:          15 * time.Second,
			ReconnectBackoff:     3 * time.Second,
			MaxReconnectAttempts: 5,
		},
		Geo: GeoConfig{
			RoutingBaseURL:  "https://router.project-osrm.org",
			GeocodeBaseURL:  "https://nominatim.openstreetmap.org",
			RouteTTL:        60 * time.Second,
			GeocodeTTL:      300 * time.Second,
			AverageSpeedKmh: 30,
		},
		Location: LocationConfig{
			MinInterval:       5 * time.Second,
			MaxAccuracyMeters: 100,
			AcquireTimeout:    15 * time.Second,
			MaxStaleness:      3 * time.Second,
			TrailSize:         50,
		},
		Alerts: AlertsConfig{
			CueInterval: 3 * time.Second,
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults. Duration
// fields accept values like "10s" or "2m".
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}
