// file: telemetry/connection.go
package telemetry

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go-button-wars/logger"
)

// WSConn is the part of *websocket.Conn a Connection uses.
type WSConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (int, []byte, error)
	Close() error
	RemoteAddr() net.Addr
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
}

// Connection is one websocket client. types, when set, filters the event
// types it receives.
type Connection struct {
	conn  WSConn
	send  chan []byte
	types map[string]bool
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// read-only stream, any origin may watch
		return true
	},
}

func newConnection(conn WSConn, typesParam string) *Connection {
	c := &Connection{conn: conn, send: make(chan []byte, sendBuffer)}
	for _, t := range strings.Split(typesParam, ",") {
		if t = strings.TrimSpace(t); t != "" {
			if c.types == nil {
				c.types = make(map[string]bool)
			}
			c.types[t] = true
		}
	}
	return c
}

func (c *Connection) wants(eventType string) bool {
	return c.types == nil || c.types[eventType]
}

// ServeWs upgrades the request and streams events to the client. The
// optional "types" query parameter is a comma-separated event type filter.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	logger.Info().Str("remote", r.RemoteAddr).Msg("[ServeWs] Upgrading to WS")
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		logger.Error().Err(err).Msg("[ServeWs] WebSocket upgrade error")
		return
	}
	h.attach(newConnection(wsConn, r.URL.Query().Get("types")))
}

func (h *Hub) attach(c *Connection) {
	h.register(c)
	go h.readPump(c)
	go c.writePump()
}

// readPump discards client messages; it only notices the client going away.
func (h *Hub) readPump(c *Connection) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			logger.Debug().Err(err).Str("remote", c.conn.RemoteAddr().String()).Msg("[readPump] Read ended")
			return
		}
	}
}

// writePump sends queued events and periodic pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn().Err(err).Str("remote", c.conn.RemoteAddr().String()).Msg("[writePump] Write error")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn().Err(err).Str("remote", c.conn.RemoteAddr().String()).Msg("[writePump] Ping error")
				return
			}
		}
	}
}
