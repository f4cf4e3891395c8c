package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	CommandGrab    = "grab"
	CommandTrigger = "trigger"
	CommandHit     = "hit"
	CommandReload  = "reload"
)

// ClientMessage is a command sent by a player, e.g. {"type":"grab"}
type ClientMessage struct {
	Type string `json:"type"`
}

// CommandResult acknowledges a ClientMessage
type CommandResult struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type client struct {
	id          string
	playerID    string
	conn        *websocket.Conn
	send        chan []byte
	cm          *ConnectionManager
	connectedAt time.Time
}

// writeLoop owns all writes to conn
func (c *client) writeLoop() {
	cfg := c.cm.config
	ping := time.NewTicker(cfg.PingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
		c.cm.detach(c)
	}()

	for {
		var err error
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "duel closed"))
				return
			}
			err = c.conn.WriteMessage(websocket.TextMessage, data)
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			log.Warn().Err(err).Str("client_id", c.id).Msg("write to player failed")
			return
		}
	}
}

// readLoop turns incoming frames into prop commands until the client goes away
func (c *client) readLoop() {
	cfg := c.cm.config
	defer func() {
		c.cm.detach(c)
		c.conn.Close()
	}()

	extend := func() { c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout)) }
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("player connection dropped")
			}
			return
		}
		extend()
		c.reply(c.dispatch(data))
	}
}

// dispatch applies one command to the props
func (c *client) dispatch(data []byte) CommandResult {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return CommandResult{Type: "command_result", Error: "malformed message"}
	}

	res := CommandResult{Type: "command_result", Command: msg.Type, OK: true}
	controls := c.cm.controls

	switch msg.Type {
	case CommandGrab:
		controls.Grab()
	case CommandTrigger:
		if res.OK = controls.Trigger(); !res.OK {
			res.Error = "magazine empty"
		}
	case CommandHit:
		if res.OK = controls.Hit(); !res.OK {
			res.Error = "no shot landed"
		}
	case CommandReload:
		controls.Reload()
	default:
		res.OK = false
		res.Error = "unknown command"
	}

	log.Debug().
		Str("client_id", c.id).
		Str("player_id", c.playerID).
		Str("command", msg.Type).
		Bool("ok", res.OK).
		Msg("player command")
	return res
}

func (c *client) reply(res CommandResult) {
	data, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode command result")
		return
	}
	c.cm.enqueue(c, data)
}
