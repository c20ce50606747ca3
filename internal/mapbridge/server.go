// Package mapbridge serves a loopback HTTP endpoint that lets a browser map
// page feed taps into the route composer and follow the resolved route live.
package mapbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/kingrea/trailhead/internal/draft"
	"github.com/kingrea/trailhead/internal/geo"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ErrDisabled is returned by Start when the bridge is switched off.
var ErrDisabled = errors.New("mapbridge: server disabled")

// Server wraps the HTTP listener and handlers backing the map bridge.
type Server struct {
	settings  Settings
	processor TapProcessor
	logger    Logger
	clock     func() time.Time
	hub       *hub
	upgrader  websocket.Upgrader
	taps      *rate.Limiter // nil when throttling is off

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time

	snapMu   sync.RWMutex
	latest   RouteSnapshot
	hasRoute bool
}

// Option customizes server construction.
type Option func(*Server)

// WithProcessor overrides the default tap processor, which drops taps.
func WithProcessor(p TapProcessor) Option {
	return func(s *Server) {
		if p != nil {
			s.processor = p
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a bridge server using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	settings = settings.withDefaults()
	s := &Server{
		settings:  settings,
		processor: TapProcessorFunc(func(Tap) error { return nil }),
		logger:    nopLogger{},
		clock:     func() time.Time { return time.Now().UTC() },
		hub:       newHub(),
		status:    StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.settings.AllowOrigin(r.Header.Get("Origin"))
		},
	}
	if settings.TapsPerSecond > 0 {
		s.taps = rate.NewLimiter(rate.Limit(settings.TapsPerSecond), settings.TapBurst)
	}
	return s
}

// SetProcessor replaces the tap processor after construction, for callers
// whose processor depends on components built from the server.
func (s *Server) SetProcessor(p TapProcessor) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.processor = p
	s.mu.Unlock()
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("mapbridge: server is nil")
	}
	if !s.settings.Enabled {
		return ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("mapbridge: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mapbridge: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("mapbridge: serve error: %v", err)
		}
	}()
	s.logger.Printf("mapbridge: listening on %s", listener.Addr().String())
	return nil
}

// Handler returns the bridge routes. Start serves it; tests may mount it
// on an httptest server directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/taps", s.handleTaps)
	mux.HandleFunc("/route", s.handleRoute)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Shutdown closes websocket subscribers, stops accepting new connections
// and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.hub.closeAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Publish records the latest route and pushes it to every websocket
// subscriber. Its signature matches composer.RouteListener.
func (s *Server) Publish(points []draft.RoutePoint, path geo.Path) {
	if s == nil {
		return
	}
	s.snapMu.Lock()
	snap := RouteSnapshot{
		Sequence:    s.latest.Sequence + 1,
		Points:      draft.ClonePoints(points),
		Path:        clonePath(path),
		PublishedAt: s.now(),
	}
	s.latest = snap
	s.hasRoute = true
	s.snapMu.Unlock()
	s.hub.broadcast(snap)
}

// Latest returns the last published snapshot.
func (s *Server) Latest() (RouteSnapshot, bool) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.latest, s.hasRoute
}

func clonePath(p geo.Path) geo.Path {
	p.Coordinates = append([]geo.Coordinate(nil), p.Coordinates...)
	return p
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(s.startTime).Seconds())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	resp := healthResponse{
		Status:        string(s.Status()),
		Version:       ProtocolVersion,
		Subscribers:   s.hub.count(),
		UptimeSeconds: s.uptimeSeconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	snap, ok := s.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no route published"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !s.settings.AllowOrigin(r.Header.Get("Origin")) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "origin not allowed"})
		return
	}
	if s.taps != nil && !s.taps.Allow() {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many taps"})
		return
	}
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty body"})
		return
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return
	}
	var raw struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if raw.Lat == nil || raw.Lng == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng are required"})
		return
	}
	tap := Tap{Lat: *raw.Lat, Lng: *raw.Lng}
	if err := tap.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.mu.RLock()
	processor := s.processor
	s.mu.RUnlock()
	if err := processor.HandleTap(tap); err != nil {
		s.logger.Printf("mapbridge: tap rejected: %v", err)
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, tapResponse{Status: "accepted", ServerTime: s.now()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
