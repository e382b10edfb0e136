package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/config"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/logging"
)

// Broadcast channels.
const (
	// ChannelExport carries every export run.
	ChannelExport = "export"

	// ChannelNotification carries user notifications.
	ChannelNotification = "notification"
)

// channelBits maps each broadcast channel to its subscription bit.
var channelBits = map[string]uint32{
	ChannelExport:       1 << 0,
	ChannelNotification: 1 << 1,
}

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
)

// WSMessage is the envelope for every frame in either direction.
//
// Clients send subscribe/unsubscribe with Channels, or ping. The server
// sends event frames with Channel and Data, and response or error frames
// echoing the request ID.
type WSMessage struct {
	Type      string   `json:"type"`
	ID        string   `json:"id,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	Channels  []string `json:"channels,omitempty"`
	Error     string   `json:"error,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Data      any      `json:"data,omitempty"`
}

// Hub tracks WebSocket clients and fans broadcasts out to subscribers.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one connected WebSocket.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// subs holds channelBits for the subscribed channels.
	subs atomic.Uint32

	// subject is the token subject from the ticket; empty without auth.
	subject string

	closeOnce sync.Once
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware handles origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) add(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "subject", c.subject)
}

func (h *Hub) remove(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast sends payload to every client subscribed to channel. Unknown
// channels and slow clients are skipped.
func (h *Hub) Broadcast(channel string, payload any) {
	bit, ok := channelBits[channel]
	if !ok {
		h.logger.Warn("broadcast on unknown channel", "channel", channel)
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		Channel:   channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      payload,
	})
	if err != nil {
		h.logger.Error("encoding broadcast", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.subs.Load()&bit != 0 {
			c.enqueue(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades the connection. With authentication enabled a
// single-use ticket from POST /auth/ws-ticket is required.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var subject string
	if s.authEnabled() {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		entry, ok := s.tickets.consume(ticket)
		if !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
		subject = entry.subject
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, wsSendBufferSize),
		subject: subject,
	}
	s.hub.add(c)

	go c.writeLoop()
	go c.readLoop()
}

// enqueue drops the frame when the client's buffer is full or closed.
func (c *WSClient) enqueue(data []byte) {
	defer func() { _ = recover() }() // send on a channel closed by shutdown
	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *WSClient) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() { c.conn.SetReadDeadline(time.Now().Add(idle)) } //nolint:errcheck // next read reports failures

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		extend()
		c.reply(c.handle(frame))
	}
}

func (c *WSClient) writeLoop() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports failures
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports failures
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle applies one client frame and returns the reply.
func (c *WSClient) handle(frame []byte) WSMessage {
	var msg WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return WSMessage{Type: WSTypeError, Error: "invalid JSON message"}
	}

	switch msg.Type {
	case WSTypePing:
		return WSMessage{Type: WSTypePong, ID: msg.ID}
	case WSTypeSubscribe, WSTypeUnsubscribe:
	default:
		return WSMessage{Type: WSTypeError, ID: msg.ID, Error: "unknown message type: " + msg.Type}
	}

	var mask uint32
	for _, ch := range msg.Channels {
		bit, ok := channelBits[ch]
		if !ok {
			return WSMessage{Type: WSTypeError, ID: msg.ID, Error: "unknown channel: " + ch}
		}
		mask |= bit
	}

	for {
		old := c.subs.Load()
		next := old | mask
		if msg.Type == WSTypeUnsubscribe {
			next = old &^ mask
		}
		if c.subs.CompareAndSwap(old, next) {
			break
		}
	}
	c.hub.logger.Debug("websocket subscription changed", "type", msg.Type, "channels", msg.Channels, "subject", c.subject)

	return WSMessage{Type: WSTypeResponse, ID: msg.ID, Channels: c.subscribed()}
}

// subscribed lists the client's channels in a stable order.
func (c *WSClient) subscribed() []string {
	subs := c.subs.Load()
	var out []string
	for _, ch := range []string{ChannelExport, ChannelNotification} {
		if subs&channelBits[ch] != 0 {
			out = append(out, ch)
		}
	}
	return out
}

func (c *WSClient) reply(msg WSMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}
