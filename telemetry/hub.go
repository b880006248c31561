// file: telemetry/hub.go
package telemetry

import (
	"context"
	"encoding/json"
	"sync"

	"go-button-wars/logger"
)

// Hub fans events out to websocket clients. Publish never blocks: when the
// broadcast queue is full the event is dropped.
type Hub struct {
	broadcast chan []byte

	mu          sync.Mutex
	connections map[*Connection]bool

	// called with the client count whenever it changes
	onCount func(n int)
}

// NewHub returns a hub with a broadcast queue of size buffer.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 64
	}
	return &Hub{
		broadcast:   make(chan []byte, buffer),
		connections: make(map[*Connection]bool),
	}
}

// OnCount registers a callback for client count changes.
func (h *Hub) OnCount(fn func(n int)) { h.onCount = fn }

// Publish implements Sink.
func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Error().Err(err).Str("type", ev.Type).Msg("[Hub.Publish] Error marshalling event")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn().Str("type", ev.Type).Msg("[Hub.Publish] Broadcast queue full, dropping event")
	}
}

// Run distributes queued events to connections until ctx ends, then closes
// every connection.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-h.broadcast:
			h.dispatch(msg)
		}
	}
}

func (h *Hub) dispatch(msg []byte) {
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(msg, &head)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.connections {
		if !c.wants(head.Type) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			logger.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("[Hub.dispatch] Dropping message for slow client")
		}
	}
}

// Count is the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	h.connections[c] = true
	n := len(h.connections)
	h.mu.Unlock()
	logger.Info().Str("remote", c.conn.RemoteAddr().String()).Int("clients", n).Msg("[Hub.register] Client connected")
	if h.onCount != nil {
		h.onCount(n)
	}
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	if !h.connections[c] {
		h.mu.Unlock()
		return
	}
	delete(h.connections, c)
	close(c.send)
	n := len(h.connections)
	h.mu.Unlock()
	logger.Info().Str("remote", c.conn.RemoteAddr().String()).Int("clients", n).Msg("[Hub.unregister] Client disconnected")
	if h.onCount != nil {
		h.onCount(n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.unregister(c)
	}
}
