// Package presence publishes this session's liveness and cursor and exposes
// the filtered view of other online sessions. The server's disconnect rule
// is the correctness guarantee for going offline; everything here is the
// cooperative fast path.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/client/remote"
	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

const (
	// DefaultHeartbeat is the lastSeen renewal interval, the secondary
	// liveness signal next to the server-side disconnect rule.
	DefaultHeartbeat = 10 * time.Second

	// DefaultCursorMinGap throttles cursor publishes to roughly 30Hz.
	DefaultCursorMinGap = 33 * time.Millisecond
)

// UsersListener receives the remote-users view after every presence change.
type UsersListener func(users []wire.Presence)

// Tracker maintains one session's presence lifecycle on a board.
type Tracker struct {
	store        remote.Store
	logger       logging.Logger
	heartbeat    time.Duration
	cursorMinGap time.Duration

	mu         sync.Mutex
	users      []wire.Presence
	onUsers    UsersListener
	lastCursor time.Time
	cancel     context.CancelFunc
	started    bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithHeartbeat overrides the lastSeen renewal interval.
func WithHeartbeat(d time.Duration) Option {
	return func(t *Tracker) { t.heartbeat = d }
}

// WithCursorMinGap overrides the cursor throttle window.
func WithCursorMinGap(d time.Duration) Option {
	return func(t *Tracker) { t.cursorMinGap = d }
}

// NewTracker returns a stopped Tracker for the store's session.
func NewTracker(store remote.Store, logger logging.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:        store,
		logger:       logger.With("module", "presence"),
		heartbeat:    DefaultHeartbeat,
		cursorMinGap: DefaultCursorMinGap,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start publishes the session online and begins heartbeat renewal.
func (t *Tracker) Start(ctx context.Context, displayName, color string, onUsers UsersListener) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.onUsers = onUsers
	hbCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	update := wire.PresenceUpdate{DisplayName: displayName, Color: color, Online: true}
	if err := t.store.PublishPresence(ctx, update); err != nil {
		return err
	}

	go t.heartbeatLoop(hbCtx)
	return nil
}

// heartbeatLoop renews lastSeen on a fixed interval. A failed renewal is
// transient; the next tick tries again.
func (t *Tracker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(t.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := t.store.PublishPresence(ctx, wire.PresenceUpdate{Online: true}); err != nil {
				t.logger.Warn(ctx, "heartbeat publish failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// PublishCursor pushes a cursor position, dropping samples that arrive
// faster than the throttle window.
func (t *Tracker) PublishCursor(ctx context.Context, x, y float64) error {
	t.mu.Lock()
	now := time.Now()
	if now.Sub(t.lastCursor) < t.cursorMinGap {
		t.mu.Unlock()
		return nil
	}
	t.lastCursor = now
	t.mu.Unlock()

	return t.store.PublishCursor(ctx, x, y)
}

// HandleEvent consumes presence_state feed events.
func (t *Tracker) HandleEvent(event wire.Event) {
	if event.Type != wire.EventPresenceState {
		return
	}
	var state wire.PresenceState
	if err := event.Decode(&state); err != nil {
		t.logger.Warn(context.Background(), "skipping malformed presence event", "error", err)
		return
	}

	self := t.store.SessionID()
	filtered := make([]wire.Presence, 0, len(state.Users))
	for _, u := range state.Users {
		// The server already filters, but the local session id must never
		// leak into its own remote-users view.
		if !u.Online || u.SessionID == self {
			continue
		}
		filtered = append(filtered, u)
	}

	t.mu.Lock()
	t.users = filtered
	listener := t.onUsers
	t.mu.Unlock()

	if listener != nil {
		listener(filtered)
	}
}

// Users returns the last known remote-users view.
func (t *Tracker) Users() []wire.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]wire.Presence, len(t.users))
	copy(result, t.users)
	return result
}

// Stop halts the heartbeat and proactively marks the session offline rather
// than waiting for the server's disconnect rule.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.started = false
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	err := t.store.PublishPresence(ctx, wire.PresenceUpdate{Online: false})
	if err != nil && !errors.Is(err, common.ErrUnavailable) && !errors.Is(err, common.ErrUnauthorized) {
		t.logger.Warn(ctx, "offline publish failed", "error", err)
	}
}
