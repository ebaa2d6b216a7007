package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/trananhvu/classpulse/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10 // 64 KiB; event payloads are small

	sendBufferSize = 64
)

// Conn is one live websocket connection. Its id is the connection identity
// used across the session layer.
type Conn struct {
	id     string
	hub    *Hub
	socket *websocket.Conn
	send   chan Message
	once   sync.Once
}

func newConn(hub *Hub, socket *websocket.Conn) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		hub:    hub,
		socket: socket,
		send:   make(chan Message, sendBufferSize),
	}
}

// ID returns the connection identity.
func (c *Conn) ID() string { return c.id }

// Send enqueues a message for delivery. Returns false and closes the
// connection when the client cannot keep up.
func (c *Conn) Send(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		c.close()
		return false
	}
}

func (c *Conn) readPump() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}

		if len(payload) == 0 {
			continue
		}
		c.hub.handler.HandleMessage(c, payload)
	}
}

func (c *Conn) writePump() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) close() {
	c.once.Do(func() {
		c.hub.DropSubscriber(c)
		c.hub.handler.HandleDisconnect(c)
		close(c.send)
		_ = c.socket.Close()
		metrics.ConnectedClients.Dec()
	})
}
