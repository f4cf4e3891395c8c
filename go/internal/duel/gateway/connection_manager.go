package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/quickdraw/go/internal/duel/events"
	"github.com/rs/zerolog/log"
)

// Controls is what a connected player can do to the props
type Controls interface {
	Grab()
	Trigger() bool
	Hit() bool
	Reload()
}

// ConnectionConfig holds the websocket limits for player connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig suits a local headset or browser client
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    5 * time.Second,
		ReadTimeout:     45 * time.Second,
		PingInterval:    20 * time.Second,
		MaxMessageSize:  512,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// withDefaults fills zero limits from DefaultConnectionConfig
func (c ConnectionConfig) withDefaults() ConnectionConfig {
	def := DefaultConnectionConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	return c
}

// ConnectionStats is a point-in-time count of attached clients
type ConnectionStats struct {
	Connections int `json:"connections"`
	Players     int `json:"players"`
}

// ConnectionManager tracks the clients attached to the duel and fans round
// events out to them.
type ConnectionManager struct {
	config   ConnectionConfig
	upgrader websocket.Upgrader
	controls Controls

	mu      sync.RWMutex
	clients map[*client]struct{}

	broadcastCh chan events.Envelope
}

func NewConnectionManager(config ConnectionConfig, controls Controls) *ConnectionManager {
	config = config.withDefaults()
	return &ConnectionManager{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		controls:    controls,
		clients:     make(map[*client]struct{}),
		broadcastCh: make(chan events.Envelope, 256),
	}
}

// Start delivers broadcasts until ctx is cancelled, then disconnects everyone
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("duel connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.disconnectAll()
			log.Info().Msg("duel connection manager stopped")
			return
		case env := <-cm.broadcastCh:
			cm.deliver(env)
		}
	}
}

// UpgradeConnection attaches a player's websocket to the duel
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, playerID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection for player %s: %w", playerID, err)
	}

	c := &client{
		id:          uuid.NewString(),
		playerID:    playerID,
		conn:        conn,
		send:        make(chan []byte, cm.config.SendBuffer),
		cm:          cm,
		connectedAt: time.Now(),
	}

	cm.mu.Lock()
	cm.clients[c] = struct{}{}
	total := len(cm.clients)
	cm.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	log.Info().
		Str("client_id", c.id).
		Str("player_id", playerID).
		Int("connections", total).
		Msg("player connected")
	return nil
}

// detach removes c and closes its send queue. Safe to call more than once.
func (cm *ConnectionManager) detach(c *client) {
	cm.mu.Lock()
	_, ok := cm.clients[c]
	if ok {
		delete(cm.clients, c)
		close(c.send)
	}
	cm.mu.Unlock()

	if ok {
		log.Info().
			Str("client_id", c.id).
			Str("player_id", c.playerID).
			Dur("session", time.Since(c.connectedAt)).
			Msg("player disconnected")
	}
}

func (cm *ConnectionManager) disconnectAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for c := range cm.clients {
		delete(cm.clients, c)
		close(c.send)
	}
}

// Broadcast queues an event for every client. It never blocks.
func (cm *ConnectionManager) Broadcast(env events.Envelope) {
	select {
	case cm.broadcastCh <- env:
	default:
		log.Warn().
			Str("event_type", string(env.EventType)).
			Int64("round_id", env.RoundID).
			Msg("broadcast queue full, dropping duel event")
	}
}

func (cm *ConnectionManager) deliver(env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(env.EventType)).Msg("failed to encode duel event")
		return
	}

	cm.mu.RLock()
	targets := make([]*client, 0, len(cm.clients))
	for c := range cm.clients {
		targets = append(targets, c)
	}
	cm.mu.RUnlock()

	for _, c := range targets {
		if !cm.enqueue(c, data) {
			// A client that cannot keep up would see cues late; drop it.
			log.Warn().Str("client_id", c.id).Msg("client too slow, disconnecting")
			cm.detach(c)
			c.conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(env.EventType)).
		Int64("round_id", env.RoundID).
		Int("clients", len(targets)).
		Msg("duel event delivered")
}

// enqueue queues data for c; false means its queue is full. A client that
// already detached counts as delivered.
func (cm *ConnectionManager) enqueue(c *client, data []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if _, ok := cm.clients[c]; !ok {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Stats counts attached clients and distinct players
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	players := make(map[string]struct{}, len(cm.clients))
	for c := range cm.clients {
		players[c.playerID] = struct{}{}
	}
	return ConnectionStats{Connections: len(cm.clients), Players: len(players)}
}
