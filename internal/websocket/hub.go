package websocket

import (
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/eventbus"
	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/utils"
)

const (
	maxWebSocketInboundMessageSize = 1 << 20 // 1 MiB
	pingInterval                   = 30 * time.Second
	pongWait                       = 60 * time.Second
	writeWait                      = 10 * time.Second
	broadcastQueueSize             = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the envelope pushed to every subscribed dashboard/API client.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// Client is one connected websocket consumer.
type Client struct {
	hub  *Hub
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out alert/device/scan events and periodic state snapshots to
// every connected client. stateFn supplies the full snapshot sent to a
// client immediately after it connects.
type Hub struct {
	stateFn      func() interface{}
	clients      map[*Client]bool
	register     chan *Client
	unregister   chan *Client
	broadcast    chan []byte
	broadcastSeq chan Message
	stopChan     chan struct{}
	stopOnce     sync.Once
	mu           sync.RWMutex
}

func NewHub(stateFn func() interface{}) *Hub {
	return &Hub{
		stateFn:      stateFn,
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan []byte, broadcastQueueSize),
		broadcastSeq: make(chan Message, broadcastQueueSize),
		stopChan:     make(chan struct{}),
	}
}

// Run drives the hub's event loop. Call it in its own goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopChan:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcastSeq:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal websocket message")
				continue
			}
			h.broadcastRaw(data)

		case data := <-h.broadcast:
			h.broadcastRaw(data)

		case <-ticker.C:
			h.sendPing()
		}
	}
}

func (h *Hub) broadcastRaw(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("client", c.id).Msg("websocket client send buffer full, dropping message")
		}
	}
}

// tryRegisterClient registers c unless the hub is shutting down.
func (h *Hub) tryRegisterClient(c *Client) bool {
	select {
	case <-h.stopChan:
		return false
	case h.register <- c:
		return true
	}
}

// Stop shuts the hub down and disconnects every client. Safe to call more
// than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

// BroadcastState pushes a full state snapshot to every client as a
// "rawData" message, coalesced through the sequencer channel so ordering
// matches the order callers invoked BroadcastState.
func (h *Hub) BroadcastState(state interface{}) {
	select {
	case <-h.stopChan:
		return
	default:
	}
	msg := Message{Type: "rawData", Data: sanitizeData(state)}
	select {
	case h.broadcastSeq <- msg:
	default:
		log.Warn().Msg("websocket broadcast sequencer full, dropping state update")
	}
}

// BroadcastEvent pushes a pipeline event (new alert, device change, scan
// completion, ...) to every client.
func (h *Hub) BroadcastEvent(event models.Event) {
	select {
	case <-h.stopChan:
		return
	default:
	}
	msg := Message{Type: "event", Data: event}
	select {
	case h.broadcastSeq <- msg:
	default:
		log.Warn().Str("event_type", string(event.Type)).Msg("websocket broadcast sequencer full, dropping event")
	}
}

// BroadcastAlertResolved notifies clients that alertID moved to resolved.
func (h *Hub) BroadcastAlertResolved(alertID string) {
	h.broadcastJSON(Message{Type: "alertResolved", Data: map[string]interface{}{"alertId": alertID}})
}

// Broadcast sends an arbitrary payload tagged as a "custom" message.
func (h *Hub) Broadcast(data interface{}) {
	h.broadcastJSON(Message{Type: "custom", Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

func (h *Hub) sendPing() {
	h.broadcastJSON(Message{Type: "ping", Data: map[string]interface{}{"timestamp": time.Now().UTC().Format(time.RFC3339)}})
}

func (h *Hub) broadcastJSON(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal websocket message")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn().Str("type", msg.Type).Msg("websocket broadcast queue full, dropping message")
	}
}

// SubscribeToBus wires the hub as a wildcard subscriber of bus, so every
// published event is forwarded to connected clients.
func (h *Hub) SubscribeToBus(bus *eventbus.Bus) {
	bus.SubscribeAll(func(event models.Event) {
		h.BroadcastEvent(event)
	})
}

// HandleWebSocket upgrades the request and registers the resulting client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		id:   utils.GenerateID("ws"),
		conn: conn,
		send: make(chan []byte, 64),
	}

	if !h.tryRegisterClient(client) {
		conn.Close()
		return
	}

	if h.stateFn != nil {
		initial := Message{Type: "initialState", Data: sanitizeData(h.stateFn())}
		if data, err := json.Marshal(initial); err == nil {
			select {
			case client.send <- data:
			default:
			}
		}
	}

	go client.writePump()
	client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxWebSocketInboundMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			resp := Message{Type: "pong", Data: map[string]interface{}{"timestamp": time.Now().UTC().Format(time.RFC3339)}}
			if respData, err := json.Marshal(resp); err == nil {
				select {
				case c.send <- respData:
				default:
				}
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// sanitizeData recursively replaces NaN/Inf float64 values with 0 so the
// resulting JSON is always valid (encoding/json rejects NaN and Inf).
func sanitizeData(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0.0
		}
		return val
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = sanitizeData(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = sanitizeData(vv)
		}
		return out
	default:
		return v
	}
}
