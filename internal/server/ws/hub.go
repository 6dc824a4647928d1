// Package ws implements the server's websocket layer: one connection per
// joined session, per-board fan-out of feed events, and handling of the
// ephemeral client streams (presence, cursor, drags).
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/server/presence"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

// Hub maintains the active clients of every board and broadcasts feed
// events to them.
type Hub struct {
	logger   logging.Logger
	registry *presence.Registry

	mu     sync.RWMutex
	boards map[string]map[*Client]bool
}

func NewHub(registry *presence.Registry, logger logging.Logger) *Hub {
	return &Hub{
		logger:   logger.With("component", "ws"),
		registry: registry,
		boards:   make(map[string]map[*Client]bool),
	}
}

// Register adds a connected client to its board and announces the roster.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	clients, ok := h.boards[c.boardID]
	if !ok {
		clients = make(map[*Client]bool)
		h.boards[c.boardID] = clients
	}
	clients[c] = true
	total := len(clients)
	h.mu.Unlock()

	h.logger.Info(context.Background(), "client connected",
		"boardId", c.boardID, "sessionId", c.sessionID, "totalClients", total)
	h.broadcastPresence(c.boardID)
}

// Unregister removes the client and applies the disconnect rule: the
// session goes offline, its cursor is cleared and its in-progress drags are
// dropped and announced as ended. No client cooperation is needed.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	clients, ok := h.boards[c.boardID]
	if ok {
		if _, registered := clients[c]; registered {
			delete(clients, c)
			close(c.send)
		}
		if len(clients) == 0 {
			delete(h.boards, c.boardID)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	dropped := h.registry.Disconnect(c.boardID, c.sessionID)
	for _, d := range dropped {
		h.DropDrag(d)
	}

	h.logger.Info(context.Background(), "client disconnected",
		"boardId", c.boardID, "sessionId", c.sessionID, "droppedDrags", len(dropped))
	h.broadcastPresence(c.boardID)
}

// Broadcast delivers the event to every client of the board, the originator
// included; clients suppress their own echoes by actor id. A client whose
// send buffer is full is skipped rather than stalling the board.
func (h *Hub) Broadcast(boardID string, event wire.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.boards[boardID] {
		select {
		case c.send <- event:
		default:
			h.logger.Warn(context.Background(), "dropping event for slow client",
				"boardId", boardID, "sessionId", c.sessionID, "type", event.Type)
		}
	}
}

func (h *Hub) broadcastPresence(boardID string) {
	state := wire.PresenceState{Users: h.registry.Snapshot(boardID)}
	event, err := wire.NewEvent(wire.EventPresenceState, boardID, "", time.Now().UTC(), state)
	if err != nil {
		h.logger.Error(context.Background(), "failed to build presence event", "error", err)
		return
	}
	h.Broadcast(boardID, event)
}

// DropDrag announces the end of a drag removed by the sweeper or the
// disconnect rule.
func (h *Hub) DropDrag(d presence.DroppedDrag) {
	event, err := wire.NewEvent(wire.EventDragEnd, d.BoardID, "", time.Now().UTC(),
		wire.DragEnd{EntityID: d.EntityID})
	if err != nil {
		h.logger.Error(context.Background(), "failed to build drag-end event", "error", err)
		return
	}
	h.Broadcast(d.BoardID, event)
}

// HandleMessage processes one inbound frame from a client. Malformed frames
// are logged and skipped; they never terminate the connection.
func (h *Hub) HandleMessage(c *Client, msg wire.Message) {
	ctx := context.Background()
	now := time.Now().UTC()

	switch msg.Type {
	case wire.MsgPresence:
		var update wire.PresenceUpdate
		if err := msg.Decode(&update); err != nil {
			h.logger.Warn(ctx, "skipping malformed presence frame", "sessionId", c.sessionID, "error", err)
			return
		}
		h.registry.Update(c.boardID, c.sessionID, update)
		h.broadcastPresence(c.boardID)

	case wire.MsgCursor:
		var cursor wire.CursorUpdate
		if err := msg.Decode(&cursor); err != nil {
			h.logger.Warn(ctx, "skipping malformed cursor frame", "sessionId", c.sessionID, "error", err)
			return
		}
		h.registry.SetCursor(c.boardID, c.sessionID, cursor.X, cursor.Y)
		h.broadcastPresence(c.boardID)

	case wire.MsgDrag:
		var drag wire.DragPosition
		if err := msg.Decode(&drag); err != nil || drag.EntityID == "" {
			h.logger.Warn(ctx, "skipping malformed drag frame", "sessionId", c.sessionID, "error", err)
			return
		}
		h.registry.SetDrag(c.boardID, c.sessionID, drag.EntityID, drag.X, drag.Y)
		event, err := wire.NewEvent(wire.EventDrag, c.boardID, c.sessionID, now, drag)
		if err != nil {
			h.logger.Error(ctx, "failed to build drag event", "error", err)
			return
		}
		h.Broadcast(c.boardID, event)

	case wire.MsgDragEnd:
		var end wire.DragEnd
		if err := msg.Decode(&end); err != nil || end.EntityID == "" {
			h.logger.Warn(ctx, "skipping malformed drag-end frame", "sessionId", c.sessionID, "error", err)
			return
		}
		h.registry.EndDrag(c.boardID, end.EntityID)
		event, err := wire.NewEvent(wire.EventDragEnd, c.boardID, c.sessionID, now, end)
		if err != nil {
			h.logger.Error(ctx, "failed to build drag-end event", "error", err)
			return
		}
		h.Broadcast(c.boardID, event)

	case wire.MsgPing:
		event, err := wire.NewEvent(wire.EventPong, c.boardID, "", now, nil)
		if err != nil {
			return
		}
		select {
		case c.send <- event:
		default:
		}

	default:
		h.logger.Warn(ctx, "unknown frame type", "sessionId", c.sessionID, "type", msg.Type)
	}
}

// ClientCount returns how many clients the board currently has.
func (h *Hub) ClientCount(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.boards[boardID])
}
