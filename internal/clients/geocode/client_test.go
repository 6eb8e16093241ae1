package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	var gotQuery string
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`[{"lat": "40.7359", "lon": "-73.9911", "display_name": "Union Square, Manhattan, New York"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Search(context.Background(), "union square")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.InDelta(t, 40.7359, result.Point.Latitude, 1e-6)
	assert.InDelta(t, -73.9911, result.Point.Longitude, 1e-6)
	assert.Equal(t, "Union Square, Manhattan, New York", result.DisplayName)

	assert.Equal(t, "union square", gotQuery)
	assert.NotEmpty(t, gotAgent, "Nominatim requires an identifying agent string")
}

func TestSearch_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Search(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results")
}

func TestReverse_Success(t *testing.T) {
	var gotLat, gotLon string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLat = r.URL.Query().Get("lat")
		gotLon = r.URL.Query().Get("lon")
		w.Write([]byte(`{"lat": "40.712800", "lon": "-74.006000", "display_name": "Broadway, Lower Manhattan"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Reverse(context.Background(), 40.7128, -74.0060)
	require.NoError(t, err)
	assert.Equal(t, "Broadway, Lower Manhattan", result.DisplayName)

	assert.Equal(t, "40.712800", gotLat)
	assert.Equal(t, "-74.006000", gotLon)
}

func TestReverse_NoAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lat": "", "lon": "", "display_name": ""}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Reverse(context.Background(), 0.5, 0.5)
	require.Error(t, err)
}

func TestSearch_UnparseableCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "not-a-number", "lon": "-73.99", "display_name": "Somewhere"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Search(context.Background(), "somewhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")
}

func TestSearch_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Search(context.Background(), "anywhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
