// Package geo wraps the external place search, geocoding and directions
// providers behind a narrow contract used by the route composer.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrPlaceNotFound is returned when a place reference cannot be resolved.
	ErrPlaceNotFound = errors.New("geo: place not found")
	// ErrNoLabel is returned when reverse geocoding yields nothing usable.
	ErrNoLabel = errors.New("geo: no label for coordinate")
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Suggestion is one partial-text search result.
type Suggestion struct {
	Label    string `json:"label"`
	PlaceRef string `json:"place_ref"`
}

// Place is a fully resolved suggestion.
type Place struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

// PathSource records where a path came from.
type PathSource string

const (
	SourceProvider     PathSource = "provider"
	SourceStraightLine PathSource = "straight-line"
)

// Path is a drawable multi-stop route.
type Path struct {
	Coordinates     []Coordinate `json:"coordinates"`
	DistanceKm      float64      `json:"distance_km"`
	DurationMinutes float64      `json:"duration_minutes,omitempty"`
	Source          PathSource   `json:"source,omitempty"`
}

// Empty reports whether the path has nothing to draw.
func (p Path) Empty() bool {
	return len(p.Coordinates) < 2
}

// RouteFailure describes why the directions provider produced no route.
type RouteFailure struct {
	Reason string
	Err    error
}

func (f *RouteFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("geo: route failed: %s: %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("geo: route failed: %s", f.Reason)
}

func (f *RouteFailure) Unwrap() error { return f.Err }

// Adapter is the contract the composer consumes. Route errors are always
// *RouteFailure.
type Adapter interface {
	Search(ctx context.Context, text string) ([]Suggestion, error)
	Resolve(ctx context.Context, placeRef string) (Place, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
	Route(ctx context.Context, points []Coordinate) (Path, error)
}

const earthRadiusKm = 6371

func degToRad(d float64) float64 {
	return d * (math.Pi / 180)
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(a, b Coordinate) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLon := degToRad(b.Lng - a.Lng)
	lat1 := degToRad(a.Lat)
	lat2 := degToRad(b.Lat)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// StraightLine connects the points in their given order. It never fails.
func StraightLine(points []Coordinate) Path {
	path := Path{
		Coordinates: append([]Coordinate(nil), points...),
		Source:      SourceStraightLine,
	}
	for i := 1; i < len(points); i++ {
		path.DistanceKm += HaversineKm(points[i-1], points[i])
	}
	return path
}

// ValidCoordinate reports whether lat/lng are finite and within range.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
