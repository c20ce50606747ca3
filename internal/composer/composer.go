// Package composer maintains the ordered route and the day/activity tree of
// the draft. It is the only place points are added, so deduplication and
// contiguous ordering are enforced here.
package composer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kingrea/trailhead/internal/draft"
	"github.com/kingrea/trailhead/internal/geo"
)

// DuplicateTolerance is the per-axis distance in degrees (about 10 m) under
// which two points are considered the same place.
const DuplicateTolerance = 1e-4

var (
	ErrDuplicatePoint    = errors.New("composer: a point already exists at this location")
	ErrInvalidCoordinate = errors.New("composer: coordinate out of range")
	ErrLookupInFlight    = errors.New("composer: a map lookup is already in progress")
	ErrPointNotFound     = errors.New("composer: route point not found")
	ErrEmptyName         = errors.New("composer: name must not be empty")
	ErrIndexOutOfRange   = errors.New("composer: position out of range")
)

// RouteListener is told about every path the composer resolves.
type RouteListener func(points []draft.RoutePoint, path geo.Path)

// Composer edits the route and itinerary slices of a draft store.
type Composer struct {
	store   *draft.Store
	adapter geo.Adapter
	newID   func() string

	mu        sync.Mutex
	inFlight  bool
	seeded    bool
	lastPath  geo.Path
	listeners []RouteListener
}

// Option customizes a Composer.
type Option func(*Composer)

// WithIDGenerator overrides how new point ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(c *Composer) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithRouteListener registers fn to receive resolved paths.
func WithRouteListener(fn RouteListener) Option {
	return func(c *Composer) {
		if fn != nil {
			c.listeners = append(c.listeners, fn)
		}
	}
}

// New builds a composer over store. adapter may be nil, in which case every
// lookup degrades to its local fallback.
func New(store *draft.Store, adapter geo.Adapter, opts ...Option) *Composer {
	c := &Composer{
		store:   store,
		adapter: adapter,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Store returns the draft store the composer writes to.
func (c *Composer) Store() *draft.Store {
	return c.store
}

// Reset starts a new session: it forgets the last resolved path, any
// pending lookup and whether the trip location was already seeded.
func (c *Composer) Reset() {
	c.mu.Lock()
	c.lastPath = geo.Path{}
	c.inFlight = false
	c.seeded = false
	c.mu.Unlock()
}

// IsDuplicate reports whether a and b are within DuplicateTolerance on both axes.
func IsDuplicate(a, b geo.Coordinate) bool {
	return math.Abs(a.Lat-b.Lat) <= DuplicateTolerance && math.Abs(a.Lng-b.Lng) <= DuplicateTolerance
}

// FallbackLabel names a coordinate that has no geocoded label.
func FallbackLabel(lat, lng float64) string {
	return fmt.Sprintf("Point %.4f,%.4f", lat, lng)
}

// Coordinates projects route points onto their coordinates, preserving order.
func Coordinates(points []draft.RoutePoint) []geo.Coordinate {
	out := make([]geo.Coordinate, len(points))
	for i, p := range points {
		out[i] = geo.Coordinate{Lat: p.Lat, Lng: p.Lng}
	}
	return out
}

// AddPoint appends a point at the end of the route. A point within tolerance
// of an existing one is rejected with ErrDuplicatePoint and the existing point
// is returned; the draft is left unchanged. The first point added in a
// session, when the route is empty, also seeds the trip's primary coordinate
// and destination region. Later adds never overwrite them.
func (c *Composer) AddPoint(lat, lng float64, label string) (draft.RoutePoint, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return draft.RoutePoint{}, ErrInvalidCoordinate
	}
	name := strings.TrimSpace(label)
	if name == "" {
		name = FallbackLabel(lat, lng)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.store.Get()
	candidate := geo.Coordinate{Lat: lat, Lng: lng}
	for _, existing := range current.RoutePoints {
		if IsDuplicate(candidate, geo.Coordinate{Lat: existing.Lat, Lng: existing.Lng}) {
			return existing, ErrDuplicatePoint
		}
	}
	point := draft.RoutePoint{
		ID:    c.newID(),
		Name:  name,
		Lat:   lat,
		Lng:   lng,
		Order: len(current.RoutePoints) + 1,
	}
	points := append(current.RoutePoints, point)
	c.store.SetRoutePoints(draft.RenumberPoints(points))
	seed := !c.seeded && len(current.RoutePoints) == 0
	c.seeded = true
	if seed {
		c.store.SetIdentity(draft.IdentityPatch{
			Latitude:          &point.Lat,
			Longitude:         &point.Lng,
			DestinationRegion: &point.Name,
		})
	}
	return point, nil
}

// AddTappedPoint adds a point for a raw map coordinate, labelling it by
// reverse geocoding. Taps arriving while a lookup is outstanding are
// rejected with ErrLookupInFlight.
func (c *Composer) AddTappedPoint(ctx context.Context, lat, lng float64) (draft.RoutePoint, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return draft.RoutePoint{}, ErrInvalidCoordinate
	}
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return draft.RoutePoint{}, ErrLookupInFlight
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	label := ""
	if c.adapter != nil {
		if resolved, err := c.adapter.ReverseGeocode(ctx, lat, lng); err == nil {
			label = strings.TrimSpace(resolved)
		}
	}
	if label == "" {
		label = FallbackLabel(lat, lng)
	}
	return c.AddPoint(lat, lng, label)
}

// LookupInFlight reports whether a tap is waiting on reverse geocoding.
func (c *Composer) LookupInFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// AddSearchResult resolves a chosen suggestion and adds it. A resolve
// failure aborts the add.
func (c *Composer) AddSearchResult(ctx context.Context, placeRef string) (draft.RoutePoint, error) {
	if c.adapter == nil {
		return draft.RoutePoint{}, fmt.Errorf("composer: resolve %s: %w", placeRef, geo.ErrPlaceNotFound)
	}
	place, err := c.adapter.Resolve(ctx, placeRef)
	if err != nil {
		return draft.RoutePoint{}, fmt.Errorf("composer: resolve %s: %w", placeRef, err)
	}
	return c.AddPoint(place.Lat, place.Lng, place.Label)
}

// RemovePoint deletes a point and renumbers the rest.
func (c *Composer) RemovePoint(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	points := c.store.Get().RoutePoints
	idx := indexOfPoint(points, id)
	if idx < 0 {
		return ErrPointNotFound
	}
	points = append(points[:idx], points[idx+1:]...)
	if len(points) == 0 {
		points = nil
	}
	c.store.SetRoutePoints(draft.RenumberPoints(points))
	return nil
}

// RenamePoint changes a point's label in place.
func (c *Composer) RenamePoint(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	points := c.store.Get().RoutePoints
	idx := indexOfPoint(points, id)
	if idx < 0 {
		return ErrPointNotFound
	}
	points[idx].Name = name
	c.store.SetRoutePoints(points)
	return nil
}

// MovePoint moves a point to the zero-based position to and renumbers.
func (c *Composer) MovePoint(id string, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	points := c.store.Get().RoutePoints
	from := indexOfPoint(points, id)
	if from < 0 {
		return ErrPointNotFound
	}
	if to < 0 || to >= len(points) {
		return ErrIndexOutOfRange
	}
	c.store.SetRoutePoints(draft.RenumberPoints(move(points, from, to)))
	return nil
}

// ResolveRoute computes a drawable path through points in their given order.
// Fewer than two points yield an empty path. Any adapter failure falls back
// to a straight line, so two or more points always produce a path.
func (c *Composer) ResolveRoute(ctx context.Context, points []draft.RoutePoint) geo.Path {
	points = draft.ClonePoints(points)
	var path geo.Path
	if len(points) >= 2 {
		coords := Coordinates(points)
		var err error
		if c.adapter != nil {
			path, err = c.adapter.Route(ctx, coords)
		}
		if c.adapter == nil || err != nil || path.Empty() {
			path = geo.StraightLine(coords)
		}
	}
	c.mu.Lock()
	c.lastPath = path
	listeners := append([]RouteListener(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(points, path)
	}
	return path
}

// ResolveCurrentRoute resolves the route of the draft as it is now.
func (c *Composer) ResolveCurrentRoute(ctx context.Context) geo.Path {
	return c.ResolveRoute(ctx, c.store.Get().RoutePoints)
}

// LastPath returns the most recently resolved path.
func (c *Composer) LastPath() geo.Path {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPath
}

func indexOfPoint(points []draft.RoutePoint, id string) int {
	for i, p := range points {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func move[T any](items []T, from, to int) []T {
	item := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]T{item}, items[to:]...)...)
	return items
}
