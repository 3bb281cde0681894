package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"rocket-ragdoll/internal/game"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 64

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 4

	// SnapshotInterval is the period of the game:snapshot broadcast
	SnapshotInterval = 50 * time.Millisecond

	wsSendBuffer   = 16
	wsWriteTimeout = 5 * time.Second
	wsMaxMessage   = 4096
)

// wsMessage is the envelope for both directions
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
}

// WebSocketHub streams snapshots to viewers and feeds their input into the engine
type WebSocketHub struct {
	engine   EngineInterface
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	limiter *ConnLimiter
}

// NewWebSocketHub creates a hub; extraOrigins are accepted besides localhost
func NewWebSocketHub(engine EngineInterface, extraOrigins []string) *WebSocketHub {
	h := &WebSocketHub{
		engine:  engine,
		clients: make(map[*wsClient]struct{}),
		limiter: NewConnLimiter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin, extraOrigins) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHub) add(c *wsClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *WebSocketHub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.limiter.Release(c.ip)
	c.conn.Close()
	log.Printf("📱 Client disconnected (%d remaining)", count)
	UpdateWSConnections(count)
}

// Broadcast queues a message for every client. Slow clients miss frames
// instead of stalling the others.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	msg, err := json.Marshal(wsMessage{Event: event, Data: raw})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Run broadcasts each new snapshot until ctx is done, then closes every client
func (h *WebSocketHub) Run(ctx context.Context) {
	ticker := time.NewTicker(SnapshotInterval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			snap := h.engine.GetSnapshot()
			if snap == nil || snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			h.Broadcast("game:snapshot", snap)
		}
	}
}

func (h *WebSocketHub) closeAll() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.remove(c)
	}
}

// HandleWebSocket upgrades the request and serves one viewer
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.limiter.Acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.limiter.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	c := &wsClient{conn: conn, ip: ip, send: make(chan []byte, wsSendBuffer)}
	count := h.add(c)
	log.Printf("📱 Client connected from %s (%d total)", ip, count)
	UpdateWSConnections(count)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *WebSocketHub) writePump(c *wsClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
		IncrementWSMessages("out")
	}
}

func (h *WebSocketHub) readPump(c *wsClient) {
	defer h.remove(c)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		IncrementWSMessages("in")

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Event {
		case "input":
			var cmd game.InputCommand
			if err := json.Unmarshal(msg.Data, &cmd); err != nil || cmd.Action == game.ActionNone {
				h.reply(c, "input:rejected", map[string]string{"error": "invalid input"})
				continue
			}
			if !h.engine.Enqueue(cmd) {
				h.reply(c, "input:rejected", map[string]string{"error": "input queue full"})
			}
		case "ping":
			h.reply(c, "pong", map[string]int64{"time": time.Now().UnixMilli()})
		}
	}
}

func (h *WebSocketHub) reply(c *wsClient, event string, data interface{}) {
	raw, _ := json.Marshal(data)
	msg, err := json.Marshal(wsMessage{Event: event, Data: raw})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
