// Package streamsrv exposes an engine.Engine over the network: a
// WebSocket endpoint lets a remote client submit drawlists and receive
// back rendered diff bytes plus packed input event batches, and an SSE
// endpoint tails per-present metrics for dashboards. It is grounded on
// the teacher's pkg/api package (BufferWebSocketHandler, SSEStreamer,
// MultiSSEStreamer, TLSServer) generalized from "stream a PTY session's
// recorded output" to "stream one engine's present/poll cycle."
package streamsrv

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/vtengine/core/pkg/config"
)

// Server is the HTTP front end for a fleet of engine-backed connections.
// Each WebSocket connection gets its own Engine and connBackend; Server
// itself only holds the configuration template new engines are created
// with, the router, and a registry connections publish their metrics
// source under so /events can tail them by ID.
type Server struct {
	cfgTemplate *config.Config
	router      *mux.Router

	mu             sync.Mutex
	metricsSources map[string]metricsSource
	tunnel         *TunnelService
}

// NewServer builds a Server whose connections create engines from a
// clone of cfgTemplate.
func NewServer(cfgTemplate *config.Config) *Server {
	s := &Server{
		cfgTemplate:    cfgTemplate,
		metricsSources: make(map[string]metricsSource),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) registerMetricsSource(src metricsSource) (id string, unregister func()) {
	id = uuid.NewString()
	s.mu.Lock()
	s.metricsSources[id] = src
	s.mu.Unlock()
	return id, func() {
		s.mu.Lock()
		delete(s.metricsSources, id)
		s.mu.Unlock()
	}
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/events", s.handleSSE)
	r.HandleFunc("/tunnel/status", s.handleTunnelStatus).Methods(http.MethodGet)
	r.HandleFunc("/tunnel/start", s.handleTunnelStart).Methods(http.MethodPost)
	r.HandleFunc("/tunnel/stop", s.handleTunnelStop).Methods(http.MethodPost)
	return r
}

// Start serves plain HTTP on addr. It blocks until the listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return server.ListenAndServe()
}

func (s *Server) newEngineConfig() *config.Config {
	clone := *s.cfgTemplate
	return &clone
}
