package feed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"anonchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WSClient adapts one moderator WebSocket connection to the hub. The
// read pump only watches for disconnects; the feed is one-way.
type WSClient struct {
	moderator string
	hub       *Hub
	conn      *websocket.Conn
	send      chan models.MirrorEvent
	stop      sync.Once
}

// NewWSClient wraps an upgraded connection. Call Run to start the pumps.
func NewWSClient(hub *Hub, conn *websocket.Conn, moderator string) *WSClient {
	return &WSClient{
		moderator: moderator,
		hub:       hub,
		conn:      conn,
		send:      make(chan models.MirrorEvent, 32),
	}
}

// Deliver queues one event without blocking.
func (c *WSClient) Deliver(ev models.MirrorEvent) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Stop closes the send channel, which ends the write pump and the
// connection. Safe to call repeatedly.
func (c *WSClient) Stop() {
	c.stop.Do(func() { close(c.send) })
}

// Run starts the read and write pumps.
func (c *WSClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.UnregisterCh <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARN: Feed connection for %s dropped: %v", c.moderator, err)
			}
			return
		}
		// Inbound frames are ignored; the feed only flows outward.
	}
}

func (c *WSClient) writePump() {
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
				log.Printf("ERROR: Failed to encode feed event: %v", err)
				continue
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Drain whatever queued up behind this event into the same
			// frame batch.
			n := len(c.send)
			for i := 0; i < n; i++ {
				if extra, err := json.Marshal(<-c.send); err == nil {
					w.Write([]byte("\n"))
					w.Write(extra)
				}
			}
			if err := w.Close(); err != nil {
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
