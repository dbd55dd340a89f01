package observer

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/value"
)

// wsSendBufferSize is the per-client outbound message buffer size.
const wsSendBufferSize = 256

// wsEvent is the JSON message pushed to debug WebSocket clients.
type wsEvent struct {
	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
	Value     string `json:"value"`
	Gap       bool   `json:"gap,omitempty"`
}

// DebugServer relays published readings to WebSocket clients subscribed
// to one or more device names. It is a debug/observability surface, not
// the (out of scope) external client protocol.
type DebugServer struct {
	hub    *Hub
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn  *websocket.Conn
	send  chan []byte
	mu    sync.RWMutex
	names map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// NewDebugServer creates a server relaying hub publications to clients.
func NewDebugServer(hub *Hub, logger *logging.Logger) *DebugServer {
	return &DebugServer{
		hub:     hub,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Publish fans r out to every connected client subscribed to name, in
// addition to the normal Hub.Publish fan-out. Call this alongside
// Hub.Publish wherever the backend publishes a reading.
func (d *DebugServer) Publish(name value.Name, r backend.Reading, gap bool) {
	d.mu.RLock()
	clients := make([]*wsClient, 0, len(d.clients))
	for c := range d.clients {
		clients = append(clients, c)
	}
	d.mu.RUnlock()

	evt := wsEvent{
		Device:    string(name),
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		Value:     r.Value.String(),
		Gap:       gap,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	for _, c := range clients {
		if c.isSubscribed(string(name)) {
			c.trySend(data)
		}
	}
}

// ServeHTTP upgrades the connection and registers a client. Subscriptions
// are driven by a repeated "device" query parameter.
func (d *DebugServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Error("debug websocket upgrade failed", "error", err)
		return
	}

	names := make(map[string]struct{})
	for _, n := range r.URL.Query()["device"] {
		names[n] = struct{}{}
	}

	client := &wsClient{
		conn:  conn,
		send:  make(chan []byte, wsSendBufferSize),
		names: names,
	}

	d.mu.Lock()
	d.clients[client] = struct{}{}
	d.mu.Unlock()

	go d.writePump(client)
	go d.readPump(client)
}

func (d *DebugServer) unregister(c *wsClient) {
	d.mu.Lock()
	_, existed := d.clients[c]
	delete(d.clients, c)
	d.mu.Unlock()
	if existed {
		close(c.send)
	}
}

func (d *DebugServer) readPump(c *wsClient) {
	defer func() {
		d.unregister(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *DebugServer) writePump(c *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // best-effort close
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) isSubscribed(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.names) == 0 {
		return true // no filter means all devices
	}
	_, ok := c.names[name]
	return ok
}

func (c *wsClient) trySend(data []byte) {
	defer func() { recover() }() //nolint:errcheck // absorb send-on-closed-channel panic
	select {
	case c.send <- data:
	default:
	}
}
