package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/rules"
	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/metrics"
	"github.com/MRamiBalles/SnakeArcade/server/internal/scores"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Server message types.
const (
	MsgFrame       = "FRAME"
	MsgNotice      = "NOTICE"
	MsgLeaderboard = "LEADERBOARD"
	MsgEvent       = "EVENT"
)

// ClientMessage represents an incoming command from the browser.
type ClientMessage struct {
	Type       string `json:"type"`                  // "DIRECTION", "START", "PAUSE", ...
	Direction  string `json:"direction,omitempty"`   // DIRECTION only
	Difficulty string `json:"difficulty,omitempty"`  // DIFFICULTY only
	PlayerName string `json:"player_name,omitempty"` // SAVE_SCORE only
}

// ServerMessage is everything the server pushes. Exactly one payload field is set.
type ServerMessage struct {
	Type   string             `json:"type"`
	Frame  *engine.TickResult `json:"frame,omitempty"`
	Notice *engine.Notice     `json:"notice,omitempty"`
	Scores []scores.Entry     `json:"scores,omitempty"`
	Event  *events.GameEvent  `json:"event,omitempty"`
}

// ToCommand validates a client message and converts it to a session command.
func (m ClientMessage) ToCommand() (engine.Command, error) {
	cmd := engine.Command{Type: engine.CommandType(m.Type)}
	switch cmd.Type {
	case engine.CmdDirection:
		d, ok := grid.ParseDirection(m.Direction)
		if !ok {
			return cmd, fmt.Errorf("invalid direction %q", m.Direction)
		}
		cmd.Direction = d
	case engine.CmdDifficulty:
		d, ok := rules.ParseDifficulty(m.Difficulty)
		if !ok {
			return cmd, fmt.Errorf("invalid difficulty %q", m.Difficulty)
		}
		cmd.Difficulty = d
	case engine.CmdSaveScore:
		cmd.PlayerName = m.PlayerName
	case engine.CmdStart, engine.CmdPause, engine.CmdResume, engine.CmdTogglePause,
		engine.CmdRestart, engine.CmdSnapshot:
	default:
		return cmd, fmt.Errorf("unknown message type %q", m.Type)
	}
	return cmd, nil
}

// Client is one browser connection. It renders its session's frames.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session *engine.Session
	cancel  context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once

	windowStart time.Time
	windowCount int
}

func newClient(hub *Hub, conn *websocket.Conn, sendBuffer int, cancel context.CancelFunc) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// close stops the session and the write pump. Safe to call repeatedly.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}

// Render implements engine.Renderer.
func (c *Client) Render(res engine.TickResult) {
	c.pushMessage(ServerMessage{Type: MsgFrame, Frame: &res})
}

// Notify implements engine.Renderer.
func (c *Client) Notify(n engine.Notice) {
	c.pushMessage(ServerMessage{Type: MsgNotice, Notice: &n})
}

func (c *Client) pushMessage(msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Errorf("Failed to serialize %s: %v", msg.Type, err)
		return
	}
	c.push(payload)
}

// push queues payload without blocking. A client that falls behind loses frames, not the connection.
func (c *Client) push(payload []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- payload:
	default:
		metrics.Get().RecordWSDrop()
	}
}

// allow applies the per-second message budget.
func (c *Client) allow(now time.Time) bool {
	if c.hub.rateLimit <= 0 {
		return true
	}
	if now.Sub(c.windowStart) >= time.Second {
		c.windowStart = now
		c.windowCount = 0
	}
	c.windowCount++
	return c.windowCount <= c.hub.rateLimit
}

// ReadPump pumps messages from the websocket connection to the session.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.close()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read error: " + err.Error())
				metrics.Get().RecordWSError()
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		if !c.allow(time.Now()) {
			c.hub.logger.Warn("Rate limit exceeded for session " + c.session.ID())
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Warn("Failed to parse ClientMessage from WebSocket. err: " + err.Error())
			continue
		}
		cmd, err := msg.ToCommand()
		if err != nil {
			c.Notify(engine.Notice{Kind: engine.NoticeInvalidCommand, Message: err.Error()})
			continue
		}
		if !c.session.Send(cmd) {
			c.hub.logger.Warn("Command queue full for session " + c.session.ID())
		}
	}
}

// WritePump pumps messages from the session and hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				metrics.Get().RecordWSError()
				return
			}
			w.Write(message)
			metrics.Get().RecordWSMessage(false)

			// Add queued messages to the current websocket message, one JSON document per line.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
				metrics.Get().RecordWSMessage(false)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
