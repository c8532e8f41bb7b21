package relay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrChannelClosed is returned when no live connection exists for a channel
// name.
var ErrChannelClosed = errors.New("channel closed")

// NewChannelName mints an addressable handle for a live device connection,
// e.g. "controller.7f3c...".
func NewChannelName(kind string) string {
	return fmt.Sprintf("%s.%s", kind, uuid.NewString())
}

// WireConn is the write side of a device connection. *websocket.Conn
// satisfies it.
type WireConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v interface{}) error
	Close() error
}

// Conn serializes writes to one device connection. gorilla/websocket
// supports at most one concurrent writer per connection, and a pushed
// command can race the ack the socket's read loop sends, so every write
// must go through the same lock. Reads stay with the single goroutine
// that owns the socket.
type Conn struct {
	mutex sync.Mutex
	ws    WireConn
}

// NewConn wraps a live connection for registration with the hub.
func NewConn(ws WireConn) *Conn {
	return &Conn{ws: ws}
}

// WriteText sends one text frame.
func (c *Conn) WriteText(payload []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// WriteJSON sends v as one JSON text frame.
func (c *Conn) WriteJSON(v interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ws.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// Hub tracks the open WebSocket connection of each bound device by its
// channel name, so commands can be pushed to devices from anywhere in the
// backend.
type Hub struct {
	mutex    sync.RWMutex
	channels map[string]*Conn
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{channels: make(map[string]*Conn)}
}

// Register associates a live connection with a channel name.
func (h *Hub) Register(channel string, conn *Conn) {
	h.mutex.Lock()
	h.channels[channel] = conn
	h.mutex.Unlock()
}

// Unregister drops a channel. Safe to call for unknown channels.
func (h *Hub) Unregister(channel string) {
	h.mutex.Lock()
	delete(h.channels, channel)
	h.mutex.Unlock()
}

// Send pushes a payload to the device behind the channel name.
func (h *Hub) Send(channel string, payload []byte) error {
	h.mutex.RLock()
	conn, ok := h.channels[channel]
	h.mutex.RUnlock()
	if !ok {
		return ErrChannelClosed
	}
	return conn.WriteText(payload)
}

// Connected reports whether a channel has a live connection.
func (h *Hub) Connected(channel string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, ok := h.channels[channel]
	return ok
}
