// Package realtime pushes dashboard events to connected websocket clients.
package realtime

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
)

// Message types sent to clients.
const (
	MessageIncidentVerified = "incident_verified"
	MessageClustersUpdated  = "clusters_updated"
	MessageStatsRefreshed   = "stats_refreshed"
	MessagePing             = "ping"
	MessagePong             = "pong"
)

// Message is the envelope written to every client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans broadcast messages out to registered clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	upgrader  websocket.Upgrader
	log       logger.Logger
	onChanged func(int)
}

// HubConfig configures a Hub.
type HubConfig struct {
	AllowedOrigins   []string // empty allows any origin
	Logger           logger.Logger
	OnClientsChanged func(count int)
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.OnClientsChanged == nil {
		cfg.OnClientsChanged = func(int) {}
	}
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        cfg.Logger.With(logger.String("component", "realtime-hub")),
		onChanged:  cfg.OnClientsChanged,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.log.Info("realtime hub stopped")
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.onChanged(n)
			h.log.Debug("websocket client connected", logger.Int("total_clients", n))
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Broadcast queues a message for every client. It never blocks; messages are
// dropped when the queue is full.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: msgType, Data: data}:
	default:
		h.log.Warn("broadcast queue full, dropping message", logger.String("message_type", msgType))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches a new client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	c := newClient(h, conn)
	select {
	case h.register <- c:
		c.start()
	case <-h.done:
		_ = conn.Close()
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.onChanged(n)
	h.log.Debug("websocket client disconnected", logger.Int("total_clients", n))
}

func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	var slow []*Client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if len(slow) > 0 {
		h.onChanged(n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.onChanged(0)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
