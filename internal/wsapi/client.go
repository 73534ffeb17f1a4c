package wsapi

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	protocolVersion = 1

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var clientIDCounter atomic.Uint64

// Client relays Hub broadcasts to one connected WebSocket peer.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Event
}

// NewClient wraps an upgraded connection and registers it with hub.
// Callers must invoke Serve to start its read/write pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Event, sendBuffer),
	}
}

// Serve sends the protocol preamble, registers with the hub, and runs
// the read/write pumps until the connection closes. It blocks until
// the client disconnects.
func (c *Client) Serve() {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, []byte{protocolVersion}); err != nil {
		c.conn.Close()
		return
	}
	c.hub.Register <- c

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.readPump()
	<-done
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("wsapi: client %d closed unexpectedly: %v", c.id, err)
			}
			return
		}
		// The wire protocol is server-push only; inbound frames (pings
		// aside, which gorilla handles at the control-frame level) are
		// read and discarded to keep the connection alive.
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("wsapi: marshal event %s: %v", ev.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
