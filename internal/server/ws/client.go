package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

const (
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is the interval between pings. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps the size of an inbound frame. The websocket
	// carries only ephemeral streams, so frames are small.
	maxMessageSize = 64 * 1024

	// sendBufferSize is the per-client outbound event buffer. A client
	// that falls this far behind starts losing events.
	sendBufferSize = 256
)

// Client is one websocket connection bound to a joined session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	logger    logging.Logger
	boardID   string
	sessionID string
	send      chan wire.Event
}

// NewClient wraps an upgraded connection. The caller is expected to call
// Run, which registers the client and drives both pumps.
func NewClient(hub *Hub, conn *websocket.Conn, boardID, sessionID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		logger:    hub.logger.With("sessionId", sessionID),
		boardID:   boardID,
		sessionID: sessionID,
		send:      make(chan wire.Event, sendBufferSize),
	}
}

// Run registers the client and blocks until the connection closes.
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.readPump()
}

// readPump reads frames from the connection and hands them to the hub.
// It runs until the connection errors or closes, then unregisters the
// client which applies the disconnect rule.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg wire.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(context.Background(), "unexpected close", "error", err)
			}
			return
		}
		c.hub.HandleMessage(c, msg)
	}
}

// writePump forwards queued events to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Warn(context.Background(), "write failed", "error", err)
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
