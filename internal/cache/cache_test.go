package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCache_SetAndGet(t *testing.T) {
	c := New()

	require.NoError(t, c.Set("k1", payload{Name: "a", Count: 2}, time.Minute, "test"))

	var got payload
	found, err := c.Get("k1", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)

	found, err = c.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_Expiry(t *testing.T) {
	c := New()

	require.NoError(t, c.Set("k1", payload{Name: "a"}, 30*time.Millisecond, "test"))
	assert.False(t, c.IsStale("k1"))

	time.Sleep(50 * time.Millisecond)

	assert.True(t, c.IsStale("k1"))

	var got payload
	found, err := c.Get("k1", &got)
	require.NoError(t, err)
	assert.False(t, found, "Stale entries are not returned")
}

func TestCache_EntriesImmutable(t *testing.T) {
	c := New()

	original := payload{Name: "a", Count: 1}
	require.NoError(t, c.Set("k1", original, time.Minute, "test"))

	var first payload
	_, err := c.Get("k1", &first)
	require.NoError(t, err)

	// Mutating what a caller got back must not affect the stored value.
	first.Count = 99

	var second payload
	_, err = c.Get("k1", &second)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count)
}

func TestCache_CleanupStale(t *testing.T) {
	c := New()

	require.NoError(t, c.Set("fresh", payload{}, time.Minute, "test"))
	require.NoError(t, c.Set("stale", payload{}, 10*time.Millisecond, "test"))

	time.Sleep(30 * time.Millisecond)

	removed := c.CleanupStale()
	assert.Equal(t, 1, removed)
	assert.ElementsMatch(t, []string{"fresh"}, c.Keys())
}

func TestCache_Stats(t *testing.T) {
	c := New()

	require.NoError(t, c.Set("fresh", payload{}, time.Minute, "test"))
	require.NoError(t, c.Set("stale", payload{}, 10*time.Millisecond, "test"))

	time.Sleep(30 * time.Millisecond)

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
	assert.Equal(t, 1, stats.StaleEntries)
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New()

	require.NoError(t, c.Set("k1", payload{}, time.Minute, "test"))
	require.NoError(t, c.Set("k2", payload{}, time.Minute, "test"))

	c.Delete("k1")
	assert.ElementsMatch(t, []string{"k2"}, c.Keys())

	c.Clear()
	assert.Empty(t, c.Keys())
}
