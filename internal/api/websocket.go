package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bluewidget/bluewidget/internal/infrastructure/config"
	"github.com/bluewidget/bluewidget/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 64

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// channels lists what a client may subscribe to.
var channels = []string{EventDevicesUpdated, EventCommandCompleted}

// WSMessage is a message sent to or from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// inbound is a client message with the payload left undecoded.
type inbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans device lists and command reports out to subscribed clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[string]*WSClient

	// onSubscribe runs after a client subscribes to a channel.
	onSubscribe func(c *WSClient, channel string)
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	mu       sync.RWMutex
	send     chan []byte
	closed   bool
	channels map[string]bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by corsMiddleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*WSClient),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*WSClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
		c.conn.Close()
	}
}

func (h *Hub) add(c *WSClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	return len(h.clients)
}

func (h *Hub) remove(c *WSClient) int {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	return n
}

// Broadcast encodes payload once and queues it for every client subscribed
// to channel. A client with a full buffer misses the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.subscribed(channel) {
			c.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encodeEvent(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleWebSocket upgrades the connection. authMiddleware has already run.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		id:       uuid.NewString(),
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]bool),
	}
	n := s.hub.add(c)
	s.logger.Debug("websocket client connected", "client_id", c.id, "clients", n)

	ping, pong := wsTimings(s.wsCfg)
	go c.writeLoop(ping, pong)
	go c.readLoop(int64(s.wsCfg.MaxMessageSize), ping+pong)
}

// sendCurrentDevices primes a new devices.updated subscriber with the last
// delivered list.
func (s *Server) sendCurrentDevices(c *WSClient, channel string) {
	if channel != EventDevicesUpdated {
		return
	}
	seq, records, received := s.snapshot()
	if !received {
		return
	}
	if data, err := encodeEvent(channel, devicesResponse{Seq: seq, Devices: records}); err == nil {
		c.trySend(data)
	}
}

func (c *WSClient) readLoop(limit int64, idle time.Duration) {
	defer func() {
		n := c.hub.remove(c)
		c.conn.Close()
		c.hub.logger.Debug("websocket client disconnected", "client_id", c.id, "clients", n)
	}()

	c.conn.SetReadLimit(limit)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }
	extend("") //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}
		extend("") //nolint:errcheck // as above
		c.handle(data)
	}
}

func (c *WSClient) writeLoop(ping, writeWait time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// wsTimings returns the ping interval and pong timeout, with defaults for
// unset values.
func wsTimings(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping, pong = defaultPingInterval, defaultPongTimeout
	if cfg.PingInterval > 0 {
		ping = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		pong = time.Duration(cfg.PongTimeout) * time.Second
	}
	return ping, pong
}

func (c *WSClient) handle(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.subscribe(msg, msg.Type == WSTypeSubscribe)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// subscribe adds or removes channels. Unknown channels reject the whole
// request.
func (c *WSClient) subscribe(msg inbound, on bool) {
	var req WSSubscribePayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil || len(req.Channels) == 0 {
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "payload must list channels"})
		return
	}
	for _, ch := range req.Channels {
		if !slices.Contains(channels, ch) {
			c.reply(msg.ID, WSTypeError, map[string]any{"message": "unknown channel: " + ch, "channels": channels})
			return
		}
	}

	c.mu.Lock()
	for _, ch := range req.Channels {
		if on {
			c.channels[ch] = true
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	if !on {
		c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": req.Channels})
		return
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": req.Channels})
	if c.hub.onSubscribe != nil {
		for _, ch := range req.Channels {
			c.hub.onSubscribe(c, ch)
		}
	}
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// trySend queues data without blocking. It is a no-op once the client is
// closed or while its buffer is full.
func (c *WSClient) trySend(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// close closes the send channel once, which ends writeLoop.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		c.trySend(data)
	}
}
