package record

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPFetcherReadsRecord(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"trip-1","title":"Coast","price":"120"}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/", WithToken("secret"))
	rec, err := f.Fetch(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/trips/trip-1" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if rec.RecordID() != "trip-1" || string(rec.Title) != "Coast" || rec.Price.Float() != 120 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestHTTPFetcherUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"trip-2","title":"Andes"}}`))
	}))
	defer srv.Close()

	rec, err := NewHTTPFetcher(srv.URL).Fetch(context.Background(), "trip-2")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.RecordID() != "trip-2" || string(rec.Title) != "Andes" {
		t.Fatalf("envelope not unwrapped: %+v", rec)
	}
}

func TestHTTPFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL).Fetch(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPFetcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL).Fetch(context.Background(), "x")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a non-notfound error, got %v", err)
	}
}

func TestHTTPFetcherMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(srv.URL).Fetch(context.Background(), "x"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFetchBlankIDIsNotFound(t *testing.T) {
	if _, err := NewHTTPFetcher("http://unused").Fetch(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
