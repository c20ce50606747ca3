package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultOSRMURL      = "https://router.project-osrm.org"
	DefaultProfile      = "driving"
	DefaultUserAgent    = "trailhead/1.0"
	DefaultCacheSize    = 256
	DefaultTimeout      = 10 * time.Second

	searchLimit  = 6
	maxBodyBytes = 4 << 20
)

// ClientConfig configures the HTTP-backed adapter.
type ClientConfig struct {
	NominatimURL      string
	OSRMURL           string
	Profile           string
	UserAgent         string
	RequestsPerSecond float64
	CacheSize         int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client implements Adapter against Nominatim (search, lookup, reverse) and
// OSRM (directions). Successful lookups are cached; every outbound request
// waits on a shared rate limiter.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	search  *lru.Cache[string, []Suggestion]
	places  *lru.Cache[string, Place]
	labels  *lru.Cache[string, string]
}

// NewClient builds a Client, filling unset fields with defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.normalize()
	searchCache, err := lru.New[string, []Suggestion](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("geo: search cache: %w", err)
	}
	placeCache, err := lru.New[string, Place](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("geo: place cache: %w", err)
	}
	labelCache, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("geo: label cache: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		search:  searchCache,
		places:  placeCache,
		labels:  labelCache,
	}, nil
}

func (c *ClientConfig) normalize() {
	c.NominatimURL = strings.TrimRight(strings.TrimSpace(c.NominatimURL), "/")
	if c.NominatimURL == "" {
		c.NominatimURL = DefaultNominatimURL
	}
	c.OSRMURL = strings.TrimRight(strings.TrimSpace(c.OSRMURL), "/")
	if c.OSRMURL == "" {
		c.OSRMURL = DefaultOSRMURL
	}
	c.Profile = strings.TrimSpace(c.Profile)
	if c.Profile == "" {
		c.Profile = DefaultProfile
	}
	c.UserAgent = strings.TrimSpace(c.UserAgent)
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

type nominatimPlace struct {
	OSMType     string `json:"osm_type"`
	OSMID       int64  `json:"osm_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (p nominatimPlace) ref() string {
	kind := strings.TrimSpace(p.OSMType)
	if kind == "" || p.OSMID == 0 {
		return ""
	}
	return strings.ToUpper(kind[:1]) + strconv.FormatInt(p.OSMID, 10)
}

func (p nominatimPlace) place() (Place, bool) {
	lat, errLat := strconv.ParseFloat(p.Lat, 64)
	lng, errLng := strconv.ParseFloat(p.Lon, 64)
	if errLat != nil || errLng != nil || !ValidCoordinate(lat, lng) {
		return Place{}, false
	}
	return Place{Lat: lat, Lng: lng, Label: strings.TrimSpace(p.DisplayName)}, true
}

// Search returns partial-text place suggestions.
func (c *Client) Search(ctx context.Context, text string) ([]Suggestion, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, nil
	}
	key := strings.ToLower(query)
	if cached, ok := c.search.Get(key); ok {
		return append([]Suggestion(nil), cached...), nil
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", strconv.Itoa(searchLimit))
	var results []nominatimPlace
	if err := c.getJSON(ctx, c.cfg.NominatimURL+"/search?"+params.Encode(), &results); err != nil {
		return nil, fmt.Errorf("geo: search %q: %w", query, err)
	}
	suggestions := make([]Suggestion, 0, len(results))
	for _, r := range results {
		ref := r.ref()
		if ref == "" {
			continue
		}
		if place, ok := r.place(); ok {
			c.places.Add(ref, place)
		}
		suggestions = append(suggestions, Suggestion{Label: strings.TrimSpace(r.DisplayName), PlaceRef: ref})
	}
	c.search.Add(key, suggestions)
	return append([]Suggestion(nil), suggestions...), nil
}

// Resolve returns coordinates for a suggestion's place reference.
func (c *Client) Resolve(ctx context.Context, placeRef string) (Place, error) {
	ref := strings.TrimSpace(placeRef)
	if ref == "" {
		return Place{}, ErrPlaceNotFound
	}
	if cached, ok := c.places.Get(ref); ok {
		return cached, nil
	}
	params := url.Values{}
	params.Set("osm_ids", ref)
	params.Set("format", "jsonv2")
	var results []nominatimPlace
	if err := c.getJSON(ctx, c.cfg.NominatimURL+"/lookup?"+params.Encode(), &results); err != nil {
		return Place{}, fmt.Errorf("geo: resolve %s: %w", ref, err)
	}
	for _, r := range results {
		if place, ok := r.place(); ok {
			c.places.Add(ref, place)
			return place, nil
		}
	}
	return Place{}, ErrPlaceNotFound
}

// ReverseGeocode returns a human label for a raw coordinate.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	key := strconv.FormatFloat(lat, 'f', 5, 64) + "," + strconv.FormatFloat(lng, 'f', 5, 64)
	if cached, ok := c.labels.Get(key); ok {
		return cached, nil
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("format", "jsonv2")
	var result struct {
		DisplayName string `json:"display_name"`
		Error       string `json:"error"`
	}
	if err := c.getJSON(ctx, c.cfg.NominatimURL+"/reverse?"+params.Encode(), &result); err != nil {
		return "", fmt.Errorf("geo: reverse %s: %w", key, err)
	}
	label := strings.TrimSpace(result.DisplayName)
	if result.Error != "" || label == "" {
		return "", ErrNoLabel
	}
	c.labels.Add(key, label)
	return label, nil
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route requests a multi-stop route through the points in the given order.
// The first point is the origin, the last the destination and the rest are
// waypoints; the order is never optimized.
func (c *Client) Route(ctx context.Context, points []Coordinate) (Path, error) {
	if len(points) < 2 {
		return Path{}, &RouteFailure{Reason: "at least two points are required"}
	}
	stops := make([]string, len(points))
	for i, p := range points {
		stops[i] = strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson",
		c.cfg.OSRMURL, url.PathEscape(c.cfg.Profile), strings.Join(stops, ";"))
	if err := c.limiter.Wait(ctx); err != nil {
		return Path{}, &RouteFailure{Reason: "rate limit wait", Err: err}
	}
	body, status, err := c.do(ctx, endpoint)
	if err != nil {
		return Path{}, &RouteFailure{Reason: "network", Err: err}
	}
	if status == http.StatusTooManyRequests {
		return Path{}, &RouteFailure{Reason: "quota exceeded"}
	}
	var resp osrmResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Path{}, &RouteFailure{Reason: fmt.Sprintf("unreadable response (status %d)", status), Err: err}
	}
	if status != http.StatusOK || resp.Code != "Ok" {
		reason := strings.TrimSpace(resp.Code)
		if reason == "" {
			reason = fmt.Sprintf("status %d", status)
		}
		if resp.Message != "" {
			reason += ": " + resp.Message
		}
		return Path{}, &RouteFailure{Reason: reason}
	}
	if len(resp.Routes) == 0 || len(resp.Routes[0].Geometry.Coordinates) < 2 {
		return Path{}, &RouteFailure{Reason: "no route found"}
	}
	route := resp.Routes[0]
	path := Path{
		Coordinates:     make([]Coordinate, 0, len(route.Geometry.Coordinates)),
		DistanceKm:      route.Distance / 1000,
		DurationMinutes: route.Duration / 60,
		Source:          SourceProvider,
	}
	for _, pair := range route.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		path.Coordinates = append(path.Coordinates, Coordinate{Lat: pair[1], Lng: pair[0]})
	}
	return path, nil
}

type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, status, err := c.do(ctx, endpoint)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return statusError{code: status}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// IsStatus reports whether err carries the given upstream HTTP status.
func IsStatus(err error, code int) bool {
	var se statusError
	return errors.As(err, &se) && se.code == code
}
