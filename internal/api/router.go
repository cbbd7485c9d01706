package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"semsview/internal/control"
	"semsview/internal/events"
	"semsview/internal/series"
	"semsview/internal/session"
	"semsview/internal/storage"
	"semsview/internal/telemetry"
	"semsview/internal/ws"
)

// Transport exposes broker connectivity to the state endpoint.
type Transport interface {
	IsConnected() bool
}

// Server is the HTTP surface of the dashboard: a JSON API for
// gestures and state reads, plus the websocket endpoint that streams
// UI frames.
type Server struct {
	router    *chi.Mux
	session   *session.Controller
	pipeline  *control.Pipeline
	charts    *series.Store
	cache     *telemetry.Cache
	history   *storage.BoltStorage
	events    *events.Store
	hub       *ws.Hub
	transport Transport
	logger    *log.Logger
}

// NewServer creates the API server and wires its routes.
func NewServer(sess *session.Controller, pipeline *control.Pipeline, charts *series.Store, cache *telemetry.Cache, history *storage.BoltStorage, eventLog *events.Store, hub *ws.Hub, transport Transport, logger *log.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		session:   sess,
		pipeline:  pipeline,
		charts:    charts,
		cache:     cache,
		history:   history,
		events:    eventLog,
		hub:       hub,
		transport: transport,
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	stateHandler := NewStateHandler(s.session, s.charts, s.cache, s.transport)
	controlHandler := NewControlHandler(s.session, s.pipeline)
	historyHandler := NewHistoryHandler(s.session, s.history)
	eventsHandler := NewEventsHandler(s.events)

	// State and room selection
	r.Get("/api/state", stateHandler.State)
	r.Get("/api/rooms", stateHandler.Rooms)
	r.Post("/api/room", controlHandler.SwitchRoom)

	// Device gestures and the global mode switch
	r.Post("/api/devices/{device}/toggle", controlHandler.Toggle)
	r.Post("/api/devices/{device}/level", controlHandler.Level)
	r.Post("/api/mode", controlHandler.Mode)

	// Persisted telemetry
	r.Get("/api/history/{room}/{sensor}", historyHandler.Readings)

	// Dashboard event log
	r.Get("/api/events", eventsHandler.List)

	// UI frame stream
	r.Get("/ws", s.hub.ServeWS)
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
