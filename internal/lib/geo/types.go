package geo

// Point is a WGS84 coordinate pair. JSON tags match the wire format used
// by the real-time location topics.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// RouteResult is a computed route between an ordered list of waypoints.
type RouteResult struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationSeconds int     `json:"duration_seconds"`
	Points          []Point `json:"points,omitempty"`
}

// GeocodeResult is a resolved place, either from a forward query or a
// reverse lookup.
type GeocodeResult struct {
	Point       Point  `json:"point"`
	DisplayName string `json:"display_name"`
}
