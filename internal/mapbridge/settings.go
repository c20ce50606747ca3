package mapbridge

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/trailhead/internal/config"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8787

	// DefaultMaxBodyBytes caps a tap payload; a tap is two numbers.
	DefaultMaxBodyBytes int64 = 4 << 10

	defaultTimeout     = 15 * time.Second
	defaultIdleTimeout = 60 * time.Second
)

// Settings is the bridge's runtime configuration. The zero value of a limit
// or timeout means its default; TapsPerSecond 0 disables tap throttling.
type Settings struct {
	Enabled bool
	Host    string
	Port    int

	// AllowedOrigins are browser origins, besides loopback ones, that may
	// post taps and open the route websocket. "*" allows any origin.
	AllowedOrigins []string
	TapsPerSecond  float64
	TapBurst       int

	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig maps the project's bridge section, already defaulted
// and env-overridden by config, onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{Enabled: true, Host: DefaultHost, Port: DefaultPort}
	if cfg != nil {
		b := cfg.Project.Bridge
		if b.Enabled != nil {
			s.Enabled = *b.Enabled
		}
		if b.Host != "" {
			s.Host = b.Host
		}
		if b.Port > 0 {
			s.Port = b.Port
		}
		s.AllowedOrigins = append([]string(nil), b.AllowedOrigins...)
		s.TapsPerSecond = b.TapsPerSecond
		s.TapBurst = b.TapBurst
		s.ReadTimeout = cfg.BridgeReadTimeout()
		s.WriteTimeout = cfg.BridgeWriteTimeout()
	}
	return s.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = defaultTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = defaultTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = defaultIdleTimeout
	}
	if s.TapsPerSecond > 0 && s.TapBurst <= 0 {
		s.TapBurst = 1
	}
	return s
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

// AllowOrigin reports whether a request with the given Origin header may use
// the bridge. Requests without an Origin come from non-browser clients.
func (s Settings) AllowOrigin(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if isLoopbackHost(u.Hostname()) {
		return true
	}
	origin = strings.TrimRight(strings.ToLower(origin), "/")
	for _, allowed := range s.AllowedOrigins {
		allowed = strings.TrimRight(strings.ToLower(strings.TrimSpace(allowed)), "/")
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
