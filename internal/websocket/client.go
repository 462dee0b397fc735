package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client represents a single WebSocket connection. The connection ID is
// assigned at upgrade time and is never reused.
type Client struct {
	hub *Hub

	// ID is the gateway-assigned connection identity
	ID string

	// WebSocket connection
	conn *websocket.Conn

	// Buffered channel of outbound frames; FIFO per connection, so
	// events from one source arrive in the order they were emitted
	send chan []byte

	closeOnce sync.Once
}

// NewClient creates a new Client instance.
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  hub,
		ID:   id,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// closeSend closes the outbound channel exactly once.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump pumps events from the WebSocket connection into the hub's
// dispatcher. Each connection's events are handled sequentially here,
// which preserves per-source ordering. Runs in its own goroutine per
// client; a read error of any kind means the connection is gone and
// triggers presence cleanup.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Read error from %s: %v", c.ID, err)
			}
			break
		}

		c.hub.dispatch(c, message)
	}
}

// WritePump pumps outbound frames from the hub to the WebSocket
// connection and keeps the connection alive with pings.
// Runs in its own goroutine per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Each event goes out as its own frame so the client can
			// parse them independently.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
