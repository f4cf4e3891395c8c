package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/mcdev12/quickdraw/go/internal/duel/scoreboard"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// StateProvider exposes the current round
type StateProvider interface {
	Round() duel.Round
	Config() duel.Config
}

// StatsProvider exposes the session tallies
type StatsProvider interface {
	Summary() scoreboard.Summary
}

// StateResponse is the body of GET /api/duel/state
type StateResponse struct {
	Round            duel.Round `json:"round"`
	MinWaitMs        int64      `json:"min_wait_ms"`
	MaxWaitMs        int64      `json:"max_wait_ms"`
	ReactionWindowMs int64      `json:"reaction_window_ms"`
	ResetDelayMs     int64      `json:"reset_delay_ms"`
	Connections      int        `json:"connections"`
	Players          int        `json:"players"`
}

// BusStatus reports whether the event bus connection is up
type BusStatus interface {
	Connected() bool
}

// Service is the duel gateway: WebSocket controls plus a small read API
type Service struct {
	connectionManager *ConnectionManager
	broadcaster       *Broadcaster
	state             StateProvider
	stats             StatsProvider
	bus               BusStatus
}

// NewService creates a gateway routing client commands to controls
func NewService(config ConnectionConfig, controls Controls, state StateProvider, stats StatsProvider) *Service {
	cm := NewConnectionManager(config, controls)
	return &Service{
		connectionManager: cm,
		broadcaster:       NewBroadcaster(cm),
		state:             state,
		stats:             stats,
	}
}

// Broadcaster returns the actuator that feeds connected clients
func (s *Service) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// WatchBus makes /health fail while bus is disconnected
func (s *Service) WatchBus(bus BusStatus) {
	s.bus = bus
}

// Start runs the connection manager until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	s.connectionManager.Start(ctx)
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/duel", s.handleConnect)
	mux.HandleFunc("/api/duel/state", s.handleState)
	mux.HandleFunc("/api/duel/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	log.Info().Msg("duel gateway routes registered")
}

func (s *Service) handleConnect(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = "anonymous"
	}

	if err := s.connectionManager.UpgradeConnection(w, r, playerID); err != nil {
		// the upgrader has already written the error response
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to upgrade WebSocket connection")
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, "OK"
	if s.bus != nil && !s.bus.Connected() {
		status, body = http.StatusServiceUnavailable, "event bus disconnected"
	}
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.state.Config()
	conns := s.connectionManager.Stats()
	writeJSON(w, StateResponse{
		Round:            s.state.Round(),
		MinWaitMs:        cfg.MinWait.Milliseconds(),
		MaxWaitMs:        cfg.MaxWait.Milliseconds(),
		ReactionWindowMs: cfg.ReactionWindow.Milliseconds(),
		ResetDelayMs:     cfg.ResetDelay.Milliseconds(),
		Connections:      conns.Connections,
		Players:          conns.Players,
	})
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.stats.Summary())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// NewServer wraps mux with CORS and h2c the way the API servers are set up
func NewServer(port string, mux *http.ServeMux) *http.Server {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
