package mapbridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/trailhead/internal/draft"
	"github.com/kingrea/trailhead/internal/geo"
)

// ProtocolVersion is reported by /health so map pages can detect mismatches.
const ProtocolVersion = "1"

// ErrInvalidTap is returned for taps outside the WGS84 range.
var ErrInvalidTap = errors.New("mapbridge: coordinate out of range")

// Tap is a coordinate picked on the browser map.
type Tap struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate ensures the tap can be added to a route.
func (t Tap) Validate() error {
	if !geo.ValidCoordinate(t.Lat, t.Lng) {
		return fmt.Errorf("%w: %v,%v", ErrInvalidTap, t.Lat, t.Lng)
	}
	return nil
}

// TapProcessor consumes validated taps.
type TapProcessor interface {
	HandleTap(Tap) error
}

// TapProcessorFunc adapts a function to TapProcessor.
type TapProcessorFunc func(Tap) error

// HandleTap implements TapProcessor.
func (f TapProcessorFunc) HandleTap(t Tap) error {
	if f == nil {
		return nil
	}
	return f(t)
}

// RouteSnapshot is what the map page draws: the ordered points and the
// resolved path through them.
type RouteSnapshot struct {
	Sequence    int64              `json:"sequence"`
	Points      []draft.RoutePoint `json:"points"`
	Path        geo.Path           `json:"path"`
	PublishedAt time.Time          `json:"published_at"`
}

// Logger is the minimal logging surface the server needs.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Subscribers   int    `json:"subscribers"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type tapResponse struct {
	Status     string    `json:"status"`
	ServerTime time.Time `json:"server_time"`
}
