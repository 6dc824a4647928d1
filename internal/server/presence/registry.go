// Package presence keeps the server's ephemeral per-board state: who is
// online, where their cursors are, and which entities are mid-drag. Nothing
// here touches the database; a session that stops heartbeating or drops its
// connection is cleaned up in memory alone.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

const (
	// DefaultStaleDrag is how long a drag entry may go without a new sample
	// before the sweeper drops it.
	DefaultStaleDrag = 5 * time.Second

	DefaultSweepInterval = time.Second
)

// DragEntry is one entity currently being dragged.
type DragEntry struct {
	SessionID string
	X, Y      float64
	UpdatedAt time.Time
}

// DroppedDrag identifies a drag entry removed by the sweeper or the
// disconnect rule, so the caller can announce the drag's end.
type DroppedDrag struct {
	BoardID  string
	EntityID string
}

type boardState struct {
	users map[string]*wire.Presence
	drags map[string]*DragEntry
}

// Registry tracks presence and drag state for all boards.
type Registry struct {
	logger        logging.Logger
	staleDrag     time.Duration
	sweepInterval time.Duration

	mu     sync.Mutex
	boards map[string]*boardState
	cancel context.CancelFunc
}

type Option func(*Registry)

func WithStaleDrag(d time.Duration) Option {
	return func(r *Registry) { r.staleDrag = d }
}

func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.sweepInterval = d }
}

func NewRegistry(logger logging.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:        logger.With("component", "presence"),
		staleDrag:     DefaultStaleDrag,
		sweepInterval: DefaultSweepInterval,
		boards:        make(map[string]*boardState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) board(boardID string) *boardState {
	b, ok := r.boards[boardID]
	if !ok {
		b = &boardState{
			users: make(map[string]*wire.Presence),
			drags: make(map[string]*DragEntry),
		}
		r.boards[boardID] = b
	}
	return b
}

// Update merges a presence announcement or heartbeat. A zero DisplayName
// keeps the existing name, so heartbeats only renew lastSeen.
func (r *Registry) Update(boardID, sessionID string, u wire.PresenceUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.board(boardID)
	p, ok := b.users[sessionID]
	if !ok {
		p = &wire.Presence{SessionID: sessionID}
		b.users[sessionID] = p
	}
	if u.DisplayName != "" {
		p.DisplayName = u.DisplayName
	}
	if u.Color != "" {
		p.Color = u.Color
	}
	p.Online = u.Online
	p.LastSeen = time.Now().UTC()
	if !u.Online {
		p.Cursor = nil
	}
}

// SetCursor records the session's cursor position.
func (r *Registry) SetCursor(boardID, sessionID string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.board(boardID)
	p, ok := b.users[sessionID]
	if !ok || !p.Online {
		return
	}
	p.Cursor = &wire.Cursor{X: x, Y: y}
	p.LastSeen = time.Now().UTC()
}

// Snapshot returns the online users of the board.
func (r *Registry) Snapshot(boardID string) []wire.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boards[boardID]
	if !ok {
		return nil
	}
	result := make([]wire.Presence, 0, len(b.users))
	for _, p := range b.users {
		if !p.Online {
			continue
		}
		result = append(result, *p)
	}
	return result
}

// SetDrag records one positional sample of an in-progress drag.
func (r *Registry) SetDrag(boardID, sessionID, entityID string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.board(boardID)
	b.drags[entityID] = &DragEntry{
		SessionID: sessionID,
		X:         x,
		Y:         y,
		UpdatedAt: time.Now().UTC(),
	}
}

// EndDrag drops the drag entry for the entity.
func (r *Registry) EndDrag(boardID, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.boards[boardID]; ok {
		delete(b.drags, entityID)
	}
}

// Drags returns the board's current drag entries by entity id.
func (r *Registry) Drags(boardID string) map[string]DragEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]DragEntry)
	if b, ok := r.boards[boardID]; ok {
		for id, d := range b.drags {
			result[id] = *d
		}
	}
	return result
}

// Disconnect applies the disconnect rule for a session: presence forced
// offline, cursor cleared, and every drag the session held dropped. It
// returns the dropped drags so the caller can announce their end.
func (r *Registry) Disconnect(boardID, sessionID string) []DroppedDrag {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boards[boardID]
	if !ok {
		return nil
	}
	if p, ok := b.users[sessionID]; ok {
		p.Online = false
		p.Cursor = nil
		p.LastSeen = time.Now().UTC()
	}

	var dropped []DroppedDrag
	for entityID, d := range b.drags {
		if d.SessionID != sessionID {
			continue
		}
		delete(b.drags, entityID)
		dropped = append(dropped, DroppedDrag{BoardID: boardID, EntityID: entityID})
	}
	return dropped
}

// SweepStale drops drag entries that have not seen a sample since the
// staleness cutoff and returns them.
func (r *Registry) SweepStale(now time.Time) []DroppedDrag {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.staleDrag)
	var dropped []DroppedDrag
	for boardID, b := range r.boards {
		for entityID, d := range b.drags {
			if d.UpdatedAt.After(cutoff) {
				continue
			}
			delete(b.drags, entityID)
			dropped = append(dropped, DroppedDrag{BoardID: boardID, EntityID: entityID})
		}
	}
	return dropped
}

// StartSweeper runs the stale-drag sweeper until Stop or context cancel.
// onDropped is called outside the registry lock for every swept entry.
func (r *Registry) StartSweeper(ctx context.Context, onDropped func(DroppedDrag)) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, d := range r.SweepStale(time.Now().UTC()) {
					r.logger.Info(ctx, "dropped stale drag", "boardId", d.BoardID, "entityId", d.EntityID)
					if onDropped != nil {
						onDropped(d)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweeper.
func (r *Registry) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
