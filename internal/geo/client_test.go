package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{
		NominatimURL:      srv.URL,
		OSRMURL:           srv.URL,
		RequestsPerSecond: 1000,
		UserAgent:         "trailhead-test",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestSearchCachesAndSeedsPlaces(t *testing.T) {
	var hits int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "trailhead-test" {
			t.Errorf("missing user agent")
		}
		_, _ = w.Write([]byte(`[{"osm_type":"node","osm_id":42,"display_name":"Cartagena, Colombia","lat":"10.39","lon":"-75.51"}]`))
	}))

	ctx := context.Background()
	first, err := c.Search(ctx, "Cartagena")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(first) != 1 || first[0].PlaceRef != "N42" || first[0].Label != "Cartagena, Colombia" {
		t.Fatalf("suggestions = %+v", first)
	}
	if _, err := c.Search(ctx, "  cartagena "); err != nil {
		t.Fatalf("cached search: %v", err)
	}
	place, err := c.Resolve(ctx, "N42")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if place.Lat != 10.39 || place.Lng != -75.51 {
		t.Fatalf("place = %+v", place)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("provider hits = %d, want 1", got)
	}
}

func TestSearchBlankQueryDoesNotCallProvider(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("provider called for blank query")
	}))
	got, err := c.Search(context.Background(), "   ")
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestResolveLookupAndNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("osm_ids") == "W7" {
			_, _ = w.Write([]byte(`[{"osm_type":"way","osm_id":7,"display_name":"Trail","lat":"1.25","lon":"2.5"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	ctx := context.Background()
	place, err := c.Resolve(ctx, "W7")
	if err != nil || place.Label != "Trail" || place.Lng != 2.5 {
		t.Fatalf("resolve = %+v, %v", place, err)
	}
	if _, err := c.Resolve(ctx, "N0"); !errors.Is(err, ErrPlaceNotFound) {
		t.Fatalf("expected ErrPlaceNotFound, got %v", err)
	}
}

func TestReverseGeocode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") == "0" {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		_, _ = w.Write([]byte(`{"display_name":"Villa de Leyva"}`))
	}))
	ctx := context.Background()
	label, err := c.ReverseGeocode(ctx, 5.63, -73.52)
	if err != nil || label != "Villa de Leyva" {
		t.Fatalf("reverse = %q, %v", label, err)
	}
	if _, err := c.ReverseGeocode(ctx, 0, 0); !errors.Is(err, ErrNoLabel) {
		t.Fatalf("expected ErrNoLabel, got %v", err)
	}
}

func TestProviderErrorStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	_, err := c.Search(context.Background(), "Quito")
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503 status error, got %v", err)
	}
}

func TestRouteKeepsPointOrder(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":12500,"duration":900,"geometry":{"coordinates":[[-74.0,4.6],[-74.1,4.7],[-74.2,4.8]]}}]}`))
	}))
	path, err := c.Route(context.Background(), []Coordinate{{Lat: 4.6, Lng: -74.0}, {Lat: 4.8, Lng: -74.2}, {Lat: 4.7, Lng: -74.1}})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	want := "/route/v1/driving/-74.000000,4.600000;-74.200000,4.800000;-74.100000,4.700000"
	if gotPath != want {
		t.Fatalf("path = %s\nwant %s", gotPath, want)
	}
	if path.DistanceKm != 12.5 || path.DurationMinutes != 15 || path.Source != SourceProvider {
		t.Fatalf("path summary = %+v", path)
	}
	if len(path.Coordinates) != 3 || path.Coordinates[0].Lat != 4.6 {
		t.Fatalf("geometry not flipped to lat/lng: %+v", path.Coordinates)
	}
}

func TestRouteFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"NoRoute": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route"}`))
		},
		"quota": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{}`))
		},
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`not json`))
		},
		"no route": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
		},
	}
	for wantReason, handler := range cases {
		c := newTestClient(t, handler)
		_, err := c.Route(context.Background(), []Coordinate{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}})
		var failure *RouteFailure
		if !errors.As(err, &failure) {
			t.Fatalf("%s: expected RouteFailure, got %v", wantReason, err)
		}
		if !strings.Contains(failure.Error(), wantReason) && !strings.Contains(failure.Reason, "unreadable") {
			t.Fatalf("%s: reason = %q", wantReason, failure.Reason)
		}
	}
}

func TestRouteNeedsTwoPoints(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("provider called with one point")
	}))
	var failure *RouteFailure
	if _, err := c.Route(context.Background(), []Coordinate{{Lat: 1, Lng: 1}}); !errors.As(err, &failure) {
		t.Fatalf("expected RouteFailure, got %v", err)
	}
}
