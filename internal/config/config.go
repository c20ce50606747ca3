// internal/config/config.go
//
// This package handles configuration and the .trailhead directory structure.
// Every project directory trailhead runs in gets a .trailhead/ folder holding
// the config file, the session journal, autosave snapshots and handed-off
// drafts.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// TrailheadDir is the name of the directory we create in each project
	TrailheadDir = ".trailhead"

	SourceHTTP  = "http"
	SourceMongo = "mongo"

	AutosaveFile  = "file"
	AutosaveRedis = "redis"
	AutosaveOff   = "off"

	defaultBackendURL      = "http://localhost:8080/api"
	defaultMongoDatabase   = "trailhead"
	defaultMongoCollection = "trips"
	defaultNominatimURL    = "https://nominatim.openstreetmap.org"
	defaultOSRMURL         = "https://router.project-osrm.org"
	defaultProfile         = "driving"
	defaultUserAgent       = "trailhead/1.0"
	defaultGeoTimeout      = "10s"
	defaultRequestsPerSec  = 1.0
	defaultCacheSize       = 256
	defaultDebounceMS      = 350
	defaultMinQueryLength  = 3
	defaultRedisAddr       = "127.0.0.1:6379"
	defaultRedisTTL        = "168h"
	defaultCurrency        = "COP"
	defaultBridgeHost      = "127.0.0.1"
	defaultBridgePort      = 8787
	defaultBridgeTimeout   = "15s"
	defaultTapsPerSecond   = 5.0
	defaultTapBurst        = 10
)

const defaultProjectConfigYAML = `# trailhead project configuration
version: 1

# Where persisted trips are read from when editing. source: http or mongo.
backend:
  source: http
  base_url: http://localhost:8080/api
  # token is better set through TRAILHEAD_BACKEND_TOKEN in .env
  mongo:
    uri: mongodb://localhost:27017
    database: trailhead
    collection: trips

# Place search, reverse geocoding and directions.
geo:
  nominatim_url: https://nominatim.openstreetmap.org
  osrm_url: https://router.project-osrm.org
  profile: driving
  user_agent: trailhead/1.0
  requests_per_second: 1
  cache_size: 256
  timeout: 10s

search:
  debounce_ms: 350
  min_query_length: 3

# Local draft snapshots. backend: file, redis or off.
# A redis addr must be a loopback host or unix socket path.
autosave:
  backend: file
  redis:
    addr: 127.0.0.1:6379
    db: 0
    ttl: 168h

# Loopback bridge that receives map taps and streams the route.
bridge:
  enabled: true
  host: 127.0.0.1
  port: 8787
  # Browser origins besides localhost allowed to post taps and watch the route.
  allowed_origins: []
  taps_per_second: 5
  tap_burst: 10
  read_timeout: 15s
  write_timeout: 15s

defaults:
  currency: COP
`

// MongoConfig locates the trips collection.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// BackendConfig selects where trip records are fetched from.
type BackendConfig struct {
	Source  string      `yaml:"source"`
	BaseURL string      `yaml:"base_url"`
	Token   string      `yaml:"token,omitempty"`
	Mongo   MongoConfig `yaml:"mongo"`
}

// GeoConfig configures the lookup providers.
type GeoConfig struct {
	NominatimURL      string  `yaml:"nominatim_url"`
	OSRMURL           string  `yaml:"osrm_url"`
	Profile           string  `yaml:"profile"`
	UserAgent         string  `yaml:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheSize         int     `yaml:"cache_size"`
	Timeout           string  `yaml:"timeout"`
}

// SearchConfig tunes search-as-you-type.
type SearchConfig struct {
	DebounceMS     int `yaml:"debounce_ms"`
	MinQueryLength int `yaml:"min_query_length"`
}

// RedisConfig locates the Redis autosave backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

// AutosaveConfig selects the snapshot backend.
type AutosaveConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// BridgeConfig configures the loopback map bridge.
type BridgeConfig struct {
	Enabled        *bool    `yaml:"enabled,omitempty"`
	Host           string   `yaml:"host,omitempty"`
	Port           int      `yaml:"port,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	TapsPerSecond  float64  `yaml:"taps_per_second,omitempty"`
	TapBurst       int      `yaml:"tap_burst,omitempty"`
	ReadTimeout    string   `yaml:"read_timeout,omitempty"`
	WriteTimeout   string   `yaml:"write_timeout,omitempty"`
}

// DefaultsConfig holds values new drafts start from.
type DefaultsConfig struct {
	Currency string `yaml:"currency"`
}

// ProjectConfig models .trailhead/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Backend  BackendConfig  `yaml:"backend"`
	Geo      GeoConfig      `yaml:"geo"`
	Search   SearchConfig   `yaml:"search"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Config holds the runtime configuration for trailhead.
type Config struct {
	// ProjectDir is the directory where the user ran `trailhead` from
	ProjectDir string

	// TrailheadProjectDir is ProjectDir/.trailhead
	TrailheadProjectDir string

	Project ProjectConfig
}

// InitTrailheadDir creates the .trailhead directory structure in the given
// project directory and writes a commented default config on first run.
//
// Structure created:
// .trailhead/
// ├── config.yaml
// ├── logs/            <- session journal
// ├── state/autosave/  <- local draft snapshots
// └── handoff/         <- finished drafts for the preview stage
func InitTrailheadDir(projectDir string) error {
	root := filepath.Join(projectDir, TrailheadDir)
	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state", "autosave"),
		filepath.Join(root, "handoff"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig loads .env and .trailhead/config.yaml from projectDir and applies
// TRAILHEAD_* environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	// Variables already present in the environment win over .env.
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	cfg := &Config{
		ProjectDir:          projectDir,
		TrailheadProjectDir: filepath.Join(projectDir, TrailheadDir),
		Project:             defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.TrailheadProjectDir, "logs")
}

// LogPath returns the session journal file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "session.log")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.TrailheadProjectDir, "state")
}

// AutosaveDir returns where file snapshots are written.
func (c *Config) AutosaveDir() string {
	return filepath.Join(c.StateDir(), "autosave")
}

// HandoffDir returns where finished drafts are written.
func (c *Config) HandoffDir() string {
	return filepath.Join(c.TrailheadProjectDir, "handoff")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.TrailheadProjectDir, "config.yaml")
}

// GeoTimeout returns the parsed provider timeout.
func (c *Config) GeoTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Project.Geo.Timeout)
	return d
}

// RedisTTL returns the parsed snapshot expiry.
func (c *Config) RedisTTL() time.Duration {
	d, _ := time.ParseDuration(c.Project.Autosave.Redis.TTL)
	return d
}

// BridgeReadTimeout returns the bridge's request read timeout.
func (c *Config) BridgeReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Project.Bridge.ReadTimeout)
	return d
}

// BridgeWriteTimeout returns the bridge's response write timeout.
func (c *Config) BridgeWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Project.Bridge.WriteTimeout)
	return d
}

// SearchDebounce returns the delay between the last keystroke and a search.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.Project.Search.DebounceMS) * time.Millisecond
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	parsed := defaultProjectConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.applyEnvOverrides()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	setDefault(&pc.Backend.Source, SourceHTTP)
	setDefault(&pc.Backend.BaseURL, defaultBackendURL)
	setDefault(&pc.Backend.Mongo.Database, defaultMongoDatabase)
	setDefault(&pc.Backend.Mongo.Collection, defaultMongoCollection)
	setDefault(&pc.Geo.NominatimURL, defaultNominatimURL)
	setDefault(&pc.Geo.OSRMURL, defaultOSRMURL)
	setDefault(&pc.Geo.Profile, defaultProfile)
	setDefault(&pc.Geo.UserAgent, defaultUserAgent)
	setDefault(&pc.Geo.Timeout, defaultGeoTimeout)
	if pc.Geo.RequestsPerSecond <= 0 {
		pc.Geo.RequestsPerSecond = defaultRequestsPerSec
	}
	if pc.Geo.CacheSize <= 0 {
		pc.Geo.CacheSize = defaultCacheSize
	}
	if pc.Search.DebounceMS <= 0 {
		pc.Search.DebounceMS = defaultDebounceMS
	}
	if pc.Search.MinQueryLength <= 0 {
		pc.Search.MinQueryLength = defaultMinQueryLength
	}
	setDefault(&pc.Autosave.Backend, AutosaveFile)
	setDefault(&pc.Autosave.Redis.Addr, defaultRedisAddr)
	setDefault(&pc.Autosave.Redis.TTL, defaultRedisTTL)
	setDefault(&pc.Defaults.Currency, defaultCurrency)
	if pc.Bridge.Enabled == nil {
		enabled := true
		pc.Bridge.Enabled = &enabled
	}
	setDefault(&pc.Bridge.Host, defaultBridgeHost)
	if pc.Bridge.Port == 0 {
		pc.Bridge.Port = defaultBridgePort
	}
	if pc.Bridge.TapsPerSecond == 0 {
		pc.Bridge.TapsPerSecond = defaultTapsPerSecond
	}
	if pc.Bridge.TapBurst <= 0 {
		pc.Bridge.TapBurst = defaultTapBurst
	}
	setDefault(&pc.Bridge.ReadTimeout, defaultBridgeTimeout)
	setDefault(&pc.Bridge.WriteTimeout, defaultBridgeTimeout)
}

func (pc *ProjectConfig) applyEnvOverrides() {
	overrides := map[string]*string{
		"TRAILHEAD_BACKEND_SOURCE":   &pc.Backend.Source,
		"TRAILHEAD_BACKEND_URL":      &pc.Backend.BaseURL,
		"TRAILHEAD_BACKEND_TOKEN":    &pc.Backend.Token,
		"TRAILHEAD_MONGO_URI":        &pc.Backend.Mongo.URI,
		"TRAILHEAD_MONGO_DATABASE":   &pc.Backend.Mongo.Database,
		"TRAILHEAD_MONGO_COLLECTION": &pc.Backend.Mongo.Collection,
		"TRAILHEAD_NOMINATIM_URL":    &pc.Geo.NominatimURL,
		"TRAILHEAD_OSRM_URL":         &pc.Geo.OSRMURL,
		"TRAILHEAD_GEO_USER_AGENT":   &pc.Geo.UserAgent,
		"TRAILHEAD_AUTOSAVE_BACKEND": &pc.Autosave.Backend,
		"TRAILHEAD_REDIS_ADDR":       &pc.Autosave.Redis.Addr,
		"TRAILHEAD_REDIS_PASSWORD":   &pc.Autosave.Redis.Password,
		"TRAILHEAD_BRIDGE_HOST":      &pc.Bridge.Host,
	}
	for name, target := range overrides {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			*target = value
		}
	}
	if value := strings.TrimSpace(os.Getenv("TRAILHEAD_REDIS_DB")); value != "" {
		if db, err := strconv.Atoi(value); err == nil {
			pc.Autosave.Redis.DB = db
		}
	}
	if value := strings.TrimSpace(os.Getenv("TRAILHEAD_BRIDGE_ENABLED")); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			pc.Bridge.Enabled = &enabled
		}
	}
	if value := strings.TrimSpace(os.Getenv("TRAILHEAD_BRIDGE_PORT")); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			pc.Bridge.Port = port
		}
	}
	if value := strings.TrimSpace(os.Getenv("TRAILHEAD_BRIDGE_ORIGINS")); value != "" {
		pc.Bridge.AllowedOrigins = strings.Split(value, ",")
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Backend.Source = normalizeKeyword(pc.Backend.Source)
	pc.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(pc.Backend.BaseURL), "/")
	pc.Backend.Token = strings.TrimSpace(pc.Backend.Token)
	pc.Backend.Mongo.URI = strings.TrimSpace(pc.Backend.Mongo.URI)
	pc.Geo.NominatimURL = strings.TrimRight(strings.TrimSpace(pc.Geo.NominatimURL), "/")
	pc.Geo.OSRMURL = strings.TrimRight(strings.TrimSpace(pc.Geo.OSRMURL), "/")
	pc.Geo.Profile = normalizeKeyword(pc.Geo.Profile)
	pc.Autosave.Backend = normalizeKeyword(pc.Autosave.Backend)
	pc.Defaults.Currency = strings.ToUpper(strings.TrimSpace(pc.Defaults.Currency))
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
	var origins []string
	for _, origin := range pc.Bridge.AllowedOrigins {
		origin = strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	pc.Bridge.AllowedOrigins = origins
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Backend.Source {
	case SourceHTTP:
		if pc.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required for http backends")
		}
	case SourceMongo:
		if pc.Backend.Mongo.URI == "" {
			return fmt.Errorf("backend.mongo.uri is required for mongo backends")
		}
	default:
		return fmt.Errorf("backend.source must be 'http' or 'mongo'")
	}
	if _, err := time.ParseDuration(pc.Geo.Timeout); err != nil {
		return fmt.Errorf("geo.timeout: %w", err)
	}
	switch pc.Autosave.Backend {
	case AutosaveFile, AutosaveOff:
	case AutosaveRedis:
		if strings.TrimSpace(pc.Autosave.Redis.Addr) == "" {
			return fmt.Errorf("autosave.redis.addr is required for redis autosave")
		}
		if _, err := time.ParseDuration(pc.Autosave.Redis.TTL); err != nil {
			return fmt.Errorf("autosave.redis.ttl: %w", err)
		}
	default:
		return fmt.Errorf("autosave.backend must be 'file', 'redis' or 'off'")
	}
	if pc.Bridge.Port < 1 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 1 and 65535")
	}
	if pc.Bridge.TapsPerSecond < 0 {
		return fmt.Errorf("bridge.taps_per_second cannot be negative")
	}
	for name, value := range map[string]string{"bridge.read_timeout": pc.Bridge.ReadTimeout, "bridge.write_timeout": pc.Bridge.WriteTimeout} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func normalizeKeyword(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
