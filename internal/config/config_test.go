package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Sync.RealtimeEnabled)
	assert.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Geo.RouteTTL)
	assert.Equal(t, 300*time.Second, cfg.Geo.GeocodeTTL)
	assert.Equal(t, 100.0, cfg.Location.MaxAccuracyMeters)
	assert.Equal(t, 3*time.Second, cfg.Alerts.CueInterval)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sync:
  realtime_enabled: false
  poll_interval: 10s
geo:
  route_ttl: 2m
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden values.
	assert.False(t, cfg.Sync.RealtimeEnabled)
	assert.Equal(t, 10*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Geo.RouteTTL)

	// Untouched values keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Sync.PollTimeout)
	assert.Equal(t, 300*time.Second, cfg.Geo.GeocodeTTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: [not a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
