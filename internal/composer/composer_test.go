package composer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kingrea/trailhead/internal/draft"
	"github.com/kingrea/trailhead/internal/geo"
)

type fakeAdapter struct {
	mu          sync.Mutex
	labels      map[string]string
	places      map[string]geo.Place
	suggestions []geo.Suggestion
	searchErr   error
	routeErr    error
	path        geo.Path
	routeCalls  [][]geo.Coordinate
	block       chan struct{}
	entered     chan struct{}
}

func (f *fakeAdapter) Search(ctx context.Context, text string) ([]geo.Suggestion, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.suggestions, nil
}

func (f *fakeAdapter) Resolve(ctx context.Context, ref string) (geo.Place, error) {
	place, ok := f.places[ref]
	if !ok {
		return geo.Place{}, geo.ErrPlaceNotFound
	}
	return place, nil
}

func (f *fakeAdapter) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	label, ok := f.labels[fmt.Sprintf("%.2f,%.2f", lat, lng)]
	if !ok {
		return "", geo.ErrNoLabel
	}
	return label, nil
}

func (f *fakeAdapter) Route(ctx context.Context, pts []geo.Coordinate) (geo.Path, error) {
	f.mu.Lock()
	f.routeCalls = append(f.routeCalls, append([]geo.Coordinate(nil), pts...))
	f.mu.Unlock()
	if f.routeErr != nil {
		return geo.Path{}, f.routeErr
	}
	return f.path, nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("pt-%d", n)
	}
}

func newComposer(adapter geo.Adapter) (*Composer, *draft.Store) {
	store := draft.NewStore()
	store.Reset("trip", draft.ModeNew)
	return New(store, adapter, WithIDGenerator(sequentialIDs())), store
}

func assertContiguousPoints(t *testing.T, points []draft.RoutePoint) {
	t.Helper()
	for i, p := range points {
		if p.Order != i+1 {
			t.Fatalf("point %d (%s) has order %d", i, p.Name, p.Order)
		}
	}
}

func TestAddAndRemoveKeepOrderContiguous(t *testing.T) {
	c, store := newComposer(nil)
	ids := []string{}
	for i := 0; i < 5; i++ {
		p, err := c.AddPoint(float64(i), float64(i), fmt.Sprintf("P%d", i))
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		ids = append(ids, p.ID)
		assertContiguousPoints(t, store.Get().RoutePoints)
	}
	for _, id := range []string{ids[2], ids[0], ids[4]} {
		if err := c.RemovePoint(id); err != nil {
			t.Fatalf("remove %s: %v", id, err)
		}
		assertContiguousPoints(t, store.Get().RoutePoints)
	}
	if _, err := c.AddPoint(20, 20, "late"); err != nil {
		t.Fatalf("add after remove: %v", err)
	}
	points := store.Get().RoutePoints
	assertContiguousPoints(t, points)
	if len(points) != 3 || points[2].Name != "late" {
		t.Fatalf("points = %+v", points)
	}
}

func TestDuplicateWithinToleranceIsRejected(t *testing.T) {
	c, store := newComposer(nil)
	first, err := c.AddPoint(4.60, -74.08, "Bogotá")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	existing, err := c.AddPoint(4.60+DuplicateTolerance/2, -74.08-DuplicateTolerance/2, "again")
	if !errors.Is(err, ErrDuplicatePoint) {
		t.Fatalf("expected ErrDuplicatePoint, got %v", err)
	}
	if existing.ID != first.ID {
		t.Fatalf("duplicate should report the existing point")
	}
	if _, err := c.AddPoint(4.60, -74.08, "exact"); !errors.Is(err, ErrDuplicatePoint) {
		t.Fatalf("exact duplicate accepted: %v", err)
	}
	if n := len(store.Get().RoutePoints); n != 1 {
		t.Fatalf("points = %d, want 1", n)
	}
	if _, err := c.AddPoint(4.60+3*DuplicateTolerance, -74.08, "nearby"); err != nil {
		t.Fatalf("point outside tolerance rejected: %v", err)
	}
}

func TestIsDuplicate(t *testing.T) {
	a := geo.Coordinate{Lat: 1, Lng: 1}
	if !IsDuplicate(a, geo.Coordinate{Lat: 1.00005, Lng: 0.99995}) {
		t.Fatalf("points within tolerance not flagged")
	}
	if IsDuplicate(a, geo.Coordinate{Lat: 1.001, Lng: 1}) {
		t.Fatalf("points outside tolerance flagged")
	}
}

func TestFirstPointSeedsIdentity(t *testing.T) {
	c, store := newComposer(nil)
	if _, err := c.AddPoint(4.60, -74.08, "Bogotá"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := c.AddPoint(10.96, -74.80, "Barranquilla"); err != nil {
		t.Fatalf("add: %v", err)
	}
	d := store.Get()
	if d.Latitude != 4.60 || d.Longitude != -74.08 || d.DestinationRegion != "Bogotá" {
		t.Fatalf("identity not seeded from the first point: %+v", d.Identity)
	}
}

func TestSeedingHappensOncePerSession(t *testing.T) {
	c, store := newComposer(nil)
	first, _ := c.AddPoint(4.60, -74.08, "Bogotá")
	region := "Andes"
	store.SetIdentity(draft.IdentityPatch{DestinationRegion: &region})
	if err := c.RemovePoint(first.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := c.AddPoint(6.24, -75.58, "Medellín"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if d := store.Get(); d.DestinationRegion != "Andes" || d.Latitude != 4.60 {
		t.Fatalf("re-adding to an emptied route overwrote the identity: %+v", d.Identity)
	}

	c.Reset()
	store.Reset("next", draft.ModeNew)
	if _, err := c.AddPoint(10.39, -75.48, "Cartagena"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if d := store.Get(); d.DestinationRegion != "Cartagena" {
		t.Fatalf("a new session should seed again: %+v", d.Identity)
	}
}

func TestInvalidCoordinate(t *testing.T) {
	c, _ := newComposer(nil)
	if _, err := c.AddPoint(95, 0, "x"); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestRemoveOnlyRemainingPoint(t *testing.T) {
	c, store := newComposer(nil)
	a, _ := c.AddPoint(4.60, -74.08, "Bogotá")
	if _, err := c.AddPoint(10.96, -74.80, "Barranquilla"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.RemovePoint(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	points := store.Get().RoutePoints
	if len(points) != 1 || points[0].Order != 1 || points[0].Name != "Barranquilla" {
		t.Fatalf("points = %+v", points)
	}
	if err := c.RemovePoint("missing"); !errors.Is(err, ErrPointNotFound) {
		t.Fatalf("expected ErrPointNotFound, got %v", err)
	}
}

func TestRenameAndMovePoint(t *testing.T) {
	c, store := newComposer(nil)
	a, _ := c.AddPoint(1, 1, "A")
	b, _ := c.AddPoint(2, 2, "B")
	if _, err := c.AddPoint(3, 3, "C"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.RenamePoint(b.ID, "  Bee "); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := c.RenamePoint(b.ID, " "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := c.MovePoint(a.ID, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	points := store.Get().RoutePoints
	got := []string{points[0].Name, points[1].Name, points[2].Name}
	if got[0] != "Bee" || got[1] != "C" || got[2] != "A" {
		t.Fatalf("order = %v", got)
	}
	assertContiguousPoints(t, points)
	if err := c.MovePoint(a.ID, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestTappedPointUsesReverseGeocode(t *testing.T) {
	adapter := &fakeAdapter{labels: map[string]string{"5.63,-73.52": "Villa de Leyva"}}
	c, _ := newComposer(adapter)
	p, err := c.AddTappedPoint(context.Background(), 5.63, -73.52)
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if p.Name != "Villa de Leyva" {
		t.Fatalf("name = %q", p.Name)
	}
	q, err := c.AddTappedPoint(context.Background(), 1.23456, 2.34567)
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if q.Name != "Point 1.2346,2.3457" {
		t.Fatalf("fallback label = %q", q.Name)
	}
}

func TestTapWhileLookupInFlightIsRejected(t *testing.T) {
	adapter := &fakeAdapter{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c, store := newComposer(adapter)
	done := make(chan error, 1)
	go func() {
		_, err := c.AddTappedPoint(context.Background(), 1, 1)
		done <- err
	}()
	<-adapter.entered
	if !c.LookupInFlight() {
		t.Fatalf("lookup should be in flight")
	}
	if _, err := c.AddTappedPoint(context.Background(), 2, 2); !errors.Is(err, ErrLookupInFlight) {
		t.Fatalf("expected ErrLookupInFlight, got %v", err)
	}
	close(adapter.block)
	if err := <-done; err != nil {
		t.Fatalf("first tap: %v", err)
	}
	if n := len(store.Get().RoutePoints); n != 1 {
		t.Fatalf("points = %d, want 1", n)
	}
	if c.LookupInFlight() {
		t.Fatalf("in-flight flag not cleared")
	}
}

func TestAddSearchResult(t *testing.T) {
	adapter := &fakeAdapter{places: map[string]geo.Place{"N1": {Lat: 10.39, Lng: -75.51, Label: "Cartagena"}}}
	c, store := newComposer(adapter)
	p, err := c.AddSearchResult(context.Background(), "N1")
	if err != nil || p.Name != "Cartagena" {
		t.Fatalf("add = %+v, %v", p, err)
	}
	if _, err := c.AddSearchResult(context.Background(), "N2"); !errors.Is(err, geo.ErrPlaceNotFound) {
		t.Fatalf("expected resolve failure, got %v", err)
	}
	if n := len(store.Get().RoutePoints); n != 1 {
		t.Fatalf("failed resolve must not add a point, have %d", n)
	}
}

func TestResolveRouteFallsBackToStraightLine(t *testing.T) {
	adapter := &fakeAdapter{routeErr: &geo.RouteFailure{Reason: "NoRoute"}}
	var published geo.Path
	store := draft.NewStore()
	c := New(store, adapter, WithRouteListener(func(_ []draft.RoutePoint, p geo.Path) { published = p }))
	if _, err := c.AddPoint(4.60, -74.08, "Bogotá"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := c.AddPoint(10.96, -74.80, "Barranquilla"); err != nil {
		t.Fatalf("add: %v", err)
	}
	path := c.ResolveCurrentRoute(context.Background())
	want := []geo.Coordinate{{Lat: 4.60, Lng: -74.08}, {Lat: 10.96, Lng: -74.80}}
	if path.Source != geo.SourceStraightLine || len(path.Coordinates) != 2 {
		t.Fatalf("path = %+v", path)
	}
	for i := range want {
		if path.Coordinates[i] != want[i] {
			t.Fatalf("coordinate %d = %+v, want %+v", i, path.Coordinates[i], want[i])
		}
	}
	if published.Source != geo.SourceStraightLine || c.LastPath().Source != geo.SourceStraightLine {
		t.Fatalf("fallback path not published or kept")
	}
}

func TestResolveRouteSendsAuthoritativeOrder(t *testing.T) {
	provider := geo.Path{Coordinates: []geo.Coordinate{{Lat: 1, Lng: 1}, {Lat: 3, Lng: 3}, {Lat: 2, Lng: 2}}, Source: geo.SourceProvider}
	adapter := &fakeAdapter{path: provider}
	c, _ := newComposer(adapter)
	points := []draft.RoutePoint{{Lat: 1, Lng: 1}, {Lat: 3, Lng: 3}, {Lat: 2, Lng: 2}}
	path := c.ResolveRoute(context.Background(), points)
	if path.Source != geo.SourceProvider {
		t.Fatalf("provider path not used: %+v", path)
	}
	if len(adapter.routeCalls) != 1 || adapter.routeCalls[0][1] != (geo.Coordinate{Lat: 3, Lng: 3}) {
		t.Fatalf("points reordered: %+v", adapter.routeCalls)
	}
}

func TestResolveRouteEmptyPathFallsBack(t *testing.T) {
	c, _ := newComposer(&fakeAdapter{})
	path := c.ResolveRoute(context.Background(), []draft.RoutePoint{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}})
	if path.Source != geo.SourceStraightLine {
		t.Fatalf("empty provider path should fall back, got %+v", path)
	}
}

func TestResolveRouteNeedsTwoPoints(t *testing.T) {
	adapter := &fakeAdapter{}
	c, _ := newComposer(adapter)
	path := c.ResolveRoute(context.Background(), []draft.RoutePoint{{Lat: 1, Lng: 1}})
	if !path.Empty() || len(adapter.routeCalls) != 0 {
		t.Fatalf("single point should not be routed: %+v", path)
	}
}
