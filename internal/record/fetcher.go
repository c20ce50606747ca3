// Package record fetches persisted trip records from the backend.
package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kingrea/trailhead/internal/hydrate"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("record: trip not found")

const maxRecordBytes = 8 << 20

// Fetcher loads a trip record by identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (hydrate.Record, error)
}

// HTTPFetcher reads records from the trip service over REST.
type HTTPFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

// HTTPOption customizes an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithToken sends the value as a bearer token.
func WithToken(token string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.token = strings.TrimSpace(token)
	}
}

// WithHTTPClient overrides the client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// NewHTTPFetcher targets GET {baseURL}/trips/{id}.
func NewHTTPFetcher(baseURL string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, id string) (hydrate.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return hydrate.Record{}, ErrNotFound
	}
	endpoint := f.baseURL + "/trips/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return hydrate.Record{}, fmt.Errorf("record: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return hydrate.Record{}, fmt.Errorf("record: fetch %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return hydrate.Record{}, fmt.Errorf("record: fetch %s: %w", id, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return hydrate.Record{}, fmt.Errorf("record: fetch %s: unexpected status %d", id, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordBytes))
	if err != nil {
		return hydrate.Record{}, fmt.Errorf("record: read %s: %w", id, err)
	}
	rec, err := hydrate.DecodeRecord(unwrapEnvelope(body))
	if err != nil {
		return hydrate.Record{}, fmt.Errorf("record: fetch %s: %w", id, err)
	}
	return rec, nil
}
