package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, projectDir, body string) {
	t.Helper()
	dir := filepath.Join(projectDir, TrailheadDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(strings.TrimSpace(body)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 || c.Project.Backend.Source != SourceHTTP {
		t.Fatalf("unexpected defaults: %+v", c.Project)
	}
	if c.Project.Search.MinQueryLength != 3 || c.SearchDebounce() != 350*time.Millisecond {
		t.Fatalf("search defaults = %+v", c.Project.Search)
	}
	if c.GeoTimeout() != 10*time.Second || c.Project.Autosave.Backend != AutosaveFile {
		t.Fatalf("geo/autosave defaults wrong: %+v", c.Project)
	}
}

func TestInitWritesParsableDefaultConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitTrailheadDir(projectDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, dir := range []string{"logs", filepath.Join("state", "autosave"), "handoff"} {
		if _, err := os.Stat(filepath.Join(projectDir, TrailheadDir, dir)); err != nil {
			t.Fatalf("missing %s: %v", dir, err)
		}
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("default config does not load: %v", err)
	}
	if c.Project.Bridge.Enabled == nil || !*c.Project.Bridge.Enabled || c.Project.Bridge.Port != 8787 {
		t.Fatalf("bridge section = %+v", c.Project.Bridge)
	}
	if c.Project.Backend.Mongo.URI != "mongodb://localhost:27017" {
		t.Fatalf("mongo uri = %q", c.Project.Backend.Mongo.URI)
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
version: 1
backend:
  source: Mongo
  mongo:
    uri: mongodb://db:27017
    collection: experiences
geo:
  osrm_url: http://osrm.local/
  profile: Foot
  timeout: 3s
autosave:
  backend: redis
  redis:
    addr: cache:6379
    ttl: 2h
defaults:
  currency: usd
`)
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	p := c.Project
	if p.Backend.Source != SourceMongo || p.Backend.Mongo.Collection != "experiences" || p.Backend.Mongo.Database != "trailhead" {
		t.Fatalf("backend = %+v", p.Backend)
	}
	if p.Geo.OSRMURL != "http://osrm.local" || p.Geo.Profile != "foot" || c.GeoTimeout() != 3*time.Second {
		t.Fatalf("geo = %+v", p.Geo)
	}
	if p.Autosave.Backend != AutosaveRedis || c.RedisTTL() != 2*time.Hour {
		t.Fatalf("autosave = %+v", p.Autosave)
	}
	if p.Defaults.Currency != "USD" {
		t.Fatalf("currency = %q", p.Defaults.Currency)
	}
}

func TestNewConfigValidation(t *testing.T) {
	cases := []string{
		"backend:\n  source: ftp",
		"backend:\n  source: mongo",
		"geo:\n  timeout: soon",
		"autosave:\n  backend: s3",
		"bridge:\n  port: 70000",
		"bridge:\n  taps_per_second: -1",
		"bridge:\n  read_timeout: later",
	}
	for _, body := range cases {
		projectDir := t.TempDir()
		writeConfig(t, projectDir, body)
		if _, err := NewConfig(projectDir); err == nil {
			t.Fatalf("expected validation error for %q", body)
		}
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TRAILHEAD_BACKEND_URL", "https://api.example.com/v1/")
	t.Setenv("TRAILHEAD_BACKEND_TOKEN", "tok")
	t.Setenv("TRAILHEAD_REDIS_DB", "4")
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Backend.BaseURL != "https://api.example.com/v1" || c.Project.Backend.Token != "tok" {
		t.Fatalf("backend = %+v", c.Project.Backend)
	}
	if c.Project.Autosave.Redis.DB != 4 {
		t.Fatalf("redis db = %d", c.Project.Autosave.Redis.DB)
	}
}

func TestBridgeSection(t *testing.T) {
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	b := c.Project.Bridge
	if b.Enabled == nil || !*b.Enabled || b.Host != "127.0.0.1" || b.Port != 8787 {
		t.Fatalf("bridge defaults = %+v", b)
	}
	if b.TapsPerSecond != 5 || b.TapBurst != 10 || c.BridgeReadTimeout() != 15*time.Second {
		t.Fatalf("bridge limits = %+v", b)
	}

	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
bridge:
  port: 9100
  allowed_origins: ["https://Maps.Example.com/", " "]
  write_timeout: 2s
`)
	c, err = NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	b = c.Project.Bridge
	if b.Port != 9100 || c.BridgeWriteTimeout() != 2*time.Second {
		t.Fatalf("bridge = %+v", b)
	}
	if len(b.AllowedOrigins) != 1 || b.AllowedOrigins[0] != "https://maps.example.com" {
		t.Fatalf("origins = %q", b.AllowedOrigins)
	}
}

func TestBridgeEnvironmentOverrides(t *testing.T) {
	t.Setenv("TRAILHEAD_BRIDGE_PORT", "9001")
	t.Setenv("TRAILHEAD_BRIDGE_HOST", "0.0.0.0")
	t.Setenv("TRAILHEAD_BRIDGE_ENABLED", "false")
	t.Setenv("TRAILHEAD_BRIDGE_ORIGINS", "http://a.test, http://b.test")
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	b := c.Project.Bridge
	if b.Port != 9001 || b.Host != "0.0.0.0" || *b.Enabled {
		t.Fatalf("bridge = %+v", b)
	}
	if len(b.AllowedOrigins) != 2 || b.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("origins = %q", b.AllowedOrigins)
	}
}

func TestDotEnvIsLoaded(t *testing.T) {
	const name = "TRAILHEAD_MONGO_URI"
	if _, set := os.LookupEnv(name); set {
		t.Skipf("%s already set in the environment", name)
	}
	t.Cleanup(func() { _ = os.Unsetenv(name) })
	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, ".env"), []byte(name+"=mongodb://from-dotenv:27017\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, projectDir, "backend:\n  source: mongo")
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Backend.Mongo.URI != "mongodb://from-dotenv:27017" {
		t.Fatalf("mongo uri = %q", c.Project.Backend.Mongo.URI)
	}
}
