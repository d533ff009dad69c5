package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/logger"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/metrics"
	"github.com/MRamiBalles/SnakeArcade/server/internal/scores"
)

// SessionFactory builds the session that will drive a new connection's game.
type SessionFactory func(r engine.Renderer) *engine.Session

// HubConfig sizes the hub's buffers and limits.
type HubConfig struct {
	ClientSendBuffer     int
	BroadcastBuffer      int
	MaxClients           int
	MaxMessagesPerSecond int
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Each client plays its own game; only leaderboard and feed messages are shared.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *logger.Logger
	newSession SessionFactory

	maxClients int
	pending    int // Slots reserved by upgrades not yet registered
	rateLimit  int
	sendBuffer atomic.Int64

	ctx     context.Context
	running chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Browser client may be served from another origin
	},
}

// NewHub initializes a new WebSocket Hub.
func NewHub(cfg HubConfig, factory SessionFactory, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.BroadcastBuffer <= 0 {
		cfg.BroadcastBuffer = 64
	}
	if cfg.ClientSendBuffer <= 0 {
		cfg.ClientSendBuffer = 64
	}
	h := &Hub{
		broadcast:  make(chan []byte, cfg.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
		newSession: factory,
		maxClients: cfg.MaxClients,
		rateLimit:  cfg.MaxMessagesPerSecond,
		running:    make(chan struct{}),
	}
	h.sendBuffer.Store(int64(cfg.ClientSendBuffer))
	return h
}

// SetSendBuffer changes the send buffer size used for new connections.
func (h *Hub) SetSendBuffer(n int) {
	if n > 0 {
		h.sendBuffer.Store(int64(n))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	close(h.running)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.pending--
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.push(message)
			}
			h.mu.Unlock()
		}
	}
}

// ServeWS upgrades the request and starts a game session for the new client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.running:
	default:
		http.Error(w, "Hub not running", http.StatusServiceUnavailable)
		return
	}
	if !h.reserve() {
		http.Error(w, "Too many players", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.release()
		h.logger.Error("Failed to upgrade websocket connection: " + err.Error())
		metrics.Get().RecordWSError()
		return
	}

	h.mu.Lock()
	base := h.ctx
	h.mu.Unlock()

	// The request context ends when this handler returns; the session must outlive it.
	ctx, cancel := context.WithCancel(base)
	client := newClient(h, conn, int(h.sendBuffer.Load()), cancel)
	client.session = h.newSession(client)

	select {
	case h.register <- client:
	case <-base.Done():
		h.release()
		cancel()
		conn.Close()
		return
	}

	go client.session.Run(ctx)
	go client.WritePump()
	go client.ReadPump()
}

// reserve claims a client slot before the upgrade. Run converts it on register.
func (h *Hub) reserve() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxClients > 0 && len(h.clients)+h.pending >= h.maxClients {
		return false
	}
	h.pending++
	return true
}

// release gives back a slot whose connection never registered.
func (h *Hub) release() {
	h.mu.Lock()
	h.pending--
	h.mu.Unlock()
}

// leave hands a client back to the hub loop, unless the hub is already gone.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// enqueue queues a shared message without blocking the caller.
func (h *Hub) enqueue(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		metrics.Get().RecordWSDrop()
		h.logger.Warn("Broadcast queue full, message dropped")
	}
}

// AnnounceLeaderboard implements scores.Announcer.
func (h *Hub) AnnounceLeaderboard(entries []scores.Entry) {
	payload, err := json.Marshal(ServerMessage{Type: MsgLeaderboard, Scores: entries})
	if err != nil {
		h.logger.Errorf("Failed to serialize leaderboard: %v", err)
		return
	}
	h.enqueue(payload)
}

// BroadcastEvent takes a GameEvent, serializes it to JSON, and sends it to all connected clients.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	payload, err := json.Marshal(ServerMessage{Type: MsgEvent, Event: &event})
	if err != nil {
		h.logger.Errorf("Failed to serialize GameEvent for WebSocket broadcast: %v", err)
		return
	}
	h.enqueue(payload)
}

// feedEvents are the ledger entries every player sees, not just the one who caused them.
var feedEvents = map[events.EventType]bool{
	events.EventTypeGameOver:        true,
	events.EventTypeBestScoreBeaten: true,
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes feed events to the Hub.
// The hub runs independently from the sessions while picking up the same events.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, every time.Duration) {
	go func() {
		pollInterval := time.NewTicker(every)
		defer pollInterval.Stop()

		_, offset := eventLog.Since(0)

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				var batch []events.GameEvent
				batch, offset = eventLog.Since(offset)
				for _, event := range batch {
					if feedEvents[event.Type] {
						h.BroadcastEvent(event)
					}
				}
			}
		}
	}()
}
