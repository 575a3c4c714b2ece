// Package realtime pushes published snapshots to websocket clients.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"nepse_dashboard/models"
	"nepse_dashboard/services/snapshot"
)

const (
	DefaultMaxClients     = 100 // Maximum concurrent WebSocket clients
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second

	clientSendBuffer = 16
)

// Message types
const (
	MessageInitial = "INITIAL"
	MessageUpdate  = "UPDATE"
)

// Message is the envelope written to clients. Data is the snapshot in the
// same shape /latest serves.
type Message struct {
	Type    string          `json:"type"`
	Version uint64          `json:"version,omitempty"`
	Data    json.RawMessage `json:"data"`
	Time    string          `json:"time"`
}

// Source is where the hub reads snapshots from.
type Source interface {
	Current() (*models.Snapshot, bool)
	Subscribe() (<-chan *models.Snapshot, snapshot.CancelFunc)
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxClients caps the number of connected clients.
func WithMaxClients(n int) Option {
	return func(h *Hub) { h.maxClients = n }
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// registration asks the hub loop to admit a client; ok reports the answer.
type registration struct {
	client *client
	ok     chan bool
}

// Hub fans snapshots out to websocket clients. New clients receive the
// current snapshot as INITIAL, then one UPDATE per publish.
type Hub struct {
	source     Source
	maxClients int
	upgrader   websocket.Upgrader

	clients    map[*client]struct{}
	mu         sync.RWMutex
	register   chan registration
	unregister chan *client

	done     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewHub creates a hub reading from source. Call Start before serving.
func NewHub(source Source, opts ...Option) *Hub {
	h := &Hub{
		source:     source,
		maxClients: DefaultMaxClients,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:    make(map[*client]struct{}),
		register:   make(chan registration),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start subscribes to the source and runs the hub loop in the background.
func (h *Hub) Start() {
	updates, cancel := h.source.Subscribe()
	go func() {
		defer close(h.stopped)
		defer cancel()
		h.run(updates)
	}()
	glog.Info("Realtime hub started")
}

// Stop disconnects every client and stops the hub loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		<-h.stopped
		glog.Info("Realtime hub stopped")
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run(updates <-chan *models.Snapshot) {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case reg := <-h.register:
			c := reg.client
			h.mu.Lock()
			if len(h.clients) >= h.maxClients {
				h.mu.Unlock()
				reg.ok <- false
				continue
			}
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			reg.ok <- true

			snap, _ := h.source.Current()
			if data, err := encode(MessageInitial, snap, time.Now()); err == nil {
				c.send <- data
			} else {
				glog.Errorf("Error encoding initial message: %v", err)
			}
			glog.V(1).Infof("WebSocket client connected. Total clients: %d", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			glog.V(1).Infof("WebSocket client disconnected. Total clients: %d", count)

		case snap, ok := <-updates:
			if !ok {
				return
			}
			h.broadcast(snap)
		}
	}
}

func (h *Hub) broadcast(snap *models.Snapshot) {
	data, err := encode(MessageUpdate, snap, time.Now())
	if err != nil {
		glog.Errorf("Error encoding update message: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= h.maxClients {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("WebSocket upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
	if !h.admit(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
		conn.Close()
		glog.Warningf("WebSocket client rejected: max clients reached (%d)", h.maxClients)
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// admit registers c with the hub loop. It returns false when the hub is full
// or stopped; c is then not tracked and its send channel is never used.
func (h *Hub) admit(c *client) bool {
	reg := registration{client: c, ok: make(chan bool, 1)}
	select {
	case h.register <- reg:
	case <-h.done:
		return false
	}
	select {
	case ok := <-reg.ok:
		return ok
	case <-h.done:
		return false
	}
}

// writePump writes messages to the WebSocket connection
func (c *client) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and close frames are processed.
// Clients have nothing to say to the hub.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				glog.Warningf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

// encode builds the wire form of a message. A nil snapshot encodes as {}.
func encode(kind string, snap *models.Snapshot, now time.Time) ([]byte, error) {
	data, err := snap.MarshalJSON()
	if err != nil {
		return nil, err
	}
	msg := Message{Type: kind, Data: data, Time: now.Format(time.RFC3339)}
	if snap != nil {
		msg.Version = snap.Version
	}
	return json.Marshal(msg)
}
