// Package web exposes the control API: behaviour CRUD, switch commands,
// presence injection, settings and a WebSocket event stream.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"crownstone-home/internal/behaviour"
	"crownstone-home/internal/bus"
	"crownstone-home/internal/daytime"
	"crownstone-home/internal/presence"
	"crownstone-home/internal/store"
	"crownstone-home/internal/switching"
)

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication on /api/ routes.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithVersion sets the version string reported by the API.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Deps collects the components the API operates on.
type Deps struct {
	Bus        *bus.Bus
	Rules      *behaviour.Store
	Aggregator *switching.Aggregator
	Smart      *switching.SmartSwitch
	Tracker    *presence.Tracker
	Time       *daytime.SystemTime
	Settings   store.Store
}

// Server is the HTTP control surface.
type Server struct {
	deps   Deps
	wsHub  *WSHub
	logger *slog.Logger
	mux    *http.ServeMux

	apiKey         string
	allowedOrigins []string
	version        string

	wg          sync.WaitGroup
	unsubEvents func()
}

// NewServer creates the API server and starts its WebSocket hub.
func NewServer(deps Deps, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		deps:   deps,
		logger: logger.With("component", "web"),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	// Every bus event is mirrored onto the WebSocket stream.
	s.unsubEvents = deps.Bus.OnAll(func(event bus.Event) {
		s.wsHub.Broadcast(wsEnvelope{Type: event.Type, Data: event.Data})
	})

	s.routes()
	return s
}

// Stop unsubscribes from the bus and shuts down the WebSocket hub.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/version", s.handleVersion)

	s.mux.HandleFunc("GET /api/behaviours", s.handleListBehaviours)
	s.mux.HandleFunc("POST /api/behaviours", s.handleCreateBehaviour)
	s.mux.HandleFunc("DELETE /api/behaviours", s.handleClearBehaviours)
	s.mux.HandleFunc("GET /api/behaviours/{index}", s.handleGetBehaviour)
	s.mux.HandleFunc("PUT /api/behaviours/{index}", s.handleReplaceBehaviour)
	s.mux.HandleFunc("DELETE /api/behaviours/{index}", s.handleDeleteBehaviour)

	s.mux.HandleFunc("POST /api/switch", s.handleSwitchCommand)
	s.mux.HandleFunc("GET /api/switch/history", s.handleSwitchHistory)
	s.mux.HandleFunc("DELETE /api/switch/override", s.handleClearOverride)

	s.mux.HandleFunc("POST /api/presence", s.handlePresence)
	s.mux.HandleFunc("POST /api/time", s.handleSetTime)

	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("POST /api/settings", s.handleUpdateSettings)

	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying API key auth.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.apiKey != "" && strings.HasPrefix(r.URL.Path, "/api/") {
		key := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write json response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
