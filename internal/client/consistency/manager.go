// Package consistency reconciles the local document with the remote store:
// snapshot load, delta and tombstone replay on (re)join, and live-feed
// application with self-echo suppression afterwards.
package consistency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/client/remote"
	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

// Phase is the per-board load state machine.
type Phase string

const (
	PhaseUnloaded    Phase = "unloaded"
	PhaseLoading     Phase = "loading"
	PhaseReconciling Phase = "reconciling"
	PhaseLive        Phase = "live"
)

// Origin tags a change with where it came from, so the canvas surface can
// avoid feeding remote applications back into the write path.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginReplay Origin = "replay"
)

// ChangeKind discriminates change notifications.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change is delivered to the subscriber for every applied remote mutation.
type Change struct {
	Kind     ChangeKind
	Origin   Origin
	Entity   *wire.Entity // set for upserts
	EntityID string
}

// Listener receives applied changes. It runs on the feed goroutine and must
// not block.
type Listener func(Change)

// Manager owns the client's authoritative local copy of one board.
type Manager struct {
	store  remote.Store
	logger logging.Logger

	mu       sync.Mutex
	phase    Phase
	entities map[string]wire.Entity
	savedAt  time.Time
	paused   bool
	queue    []wire.Event
	listener Listener

	cancelFeed func()
}

// NewManager returns an unloaded Manager for the store's board.
func NewManager(store remote.Store, logger logging.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger.With("module", "consistency"),
		phase:    PhaseUnloaded,
		entities: make(map[string]wire.Entity),
	}
}

// Phase returns the current load phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// Load runs the snapshot + delta + tombstone replay and then subscribes to
// the live feed. On a reconciliation error the local state falls back to the
// snapshot alone (or empty), never a half-applied mix.
func (m *Manager) Load(ctx context.Context, listener Listener) error {
	m.mu.Lock()
	m.phase = PhaseLoading
	m.listener = listener
	m.mu.Unlock()

	base := make(map[string]wire.Entity)
	var savedAt time.Time

	snap, err := m.store.LoadSnapshot(ctx)
	switch {
	case errors.Is(err, common.ErrNotFound):
		// Never saved; replay everything from the zero time.
	case err != nil:
		m.setPhase(PhaseUnloaded)
		return fmt.Errorf("load snapshot: %w", err)
	default:
		if decoded, err := DecodeState(snap.State); err != nil {
			// A corrupt snapshot must not take the board down; start from
			// empty and let the delta replay rebuild what it can.
			m.logger.Error(ctx, "snapshot state malformed, starting empty", "error", err)
		} else {
			base = decoded
		}
		savedAt = snap.SavedAt
	}

	m.setPhase(PhaseReconciling)

	reconciled, err := m.reconcile(ctx, base, savedAt)
	if err != nil {
		// Keep the known-good snapshot state rather than a partial replay.
		m.mu.Lock()
		m.entities = base
		m.savedAt = savedAt
		m.phase = PhaseLive
		m.mu.Unlock()
		m.logger.Error(ctx, "reconciliation failed, serving snapshot state", "error", err)
	} else {
		m.mu.Lock()
		m.entities = reconciled
		m.savedAt = savedAt
		m.phase = PhaseLive
		m.mu.Unlock()
	}

	cancel, err := m.store.Subscribe(ctx, m.handleEvent)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	m.mu.Lock()
	m.cancelFeed = cancel
	m.mu.Unlock()
	return nil
}

// reconcile applies deltas over the snapshot base, last-writer-wins by
// updatedAt, then applies tombstones strictly afterwards so a stale delta
// can never resurrect a deletion.
func (m *Manager) reconcile(ctx context.Context, base map[string]wire.Entity, savedAt time.Time) (map[string]wire.Entity, error) {
	result := make(map[string]wire.Entity, len(base))
	for id, e := range base {
		result[id] = e
	}

	deltas, err := m.store.EntitiesSince(ctx, savedAt)
	if err != nil {
		return nil, fmt.Errorf("fetch deltas: %w", err)
	}
	for _, delta := range deltas {
		if delta.ID == "" {
			m.logger.Warn(ctx, "skipping malformed delta")
			continue
		}
		if existing, ok := result[delta.ID]; ok && existing.UpdatedAt.After(delta.UpdatedAt) {
			continue
		}
		result[delta.ID] = delta
	}

	tombstones, err := m.store.TombstonesSince(ctx, savedAt)
	if err != nil {
		return nil, fmt.Errorf("fetch tombstones: %w", err)
	}
	for _, tomb := range tombstones {
		delete(result, tomb.EntityID)
	}
	return result, nil
}

// handleEvent applies one live feed event. Entity events echoed back for the
// session's own writes are skipped; removals apply immediately and
// unconditionally.
func (m *Manager) handleEvent(event wire.Event) {
	m.mu.Lock()
	if m.paused {
		m.queue = append(m.queue, event)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.applyEvent(event, OriginRemote)
}

func (m *Manager) applyEvent(event wire.Event, origin Origin) {
	ctx := context.Background()

	switch event.Type {
	case wire.EventEntityUpserted:
		if event.ActorID == m.store.SessionID() {
			return
		}
		var entity wire.Entity
		if err := event.Decode(&entity); err != nil || entity.ID == "" {
			m.logger.Warn(ctx, "skipping malformed upsert event", "error", err)
			return
		}

		m.mu.Lock()
		if existing, ok := m.entities[entity.ID]; ok && existing.UpdatedAt.After(entity.UpdatedAt) {
			m.mu.Unlock()
			return
		}
		m.entities[entity.ID] = entity
		listener := m.listener
		m.mu.Unlock()

		if listener != nil {
			listener(Change{Kind: ChangeUpserted, Origin: origin, Entity: &entity, EntityID: entity.ID})
		}

	case wire.EventEntityDeleted:
		var tomb wire.Tombstone
		if err := event.Decode(&tomb); err != nil || tomb.EntityID == "" {
			m.logger.Warn(ctx, "skipping malformed delete event", "error", err)
			return
		}

		m.mu.Lock()
		_, existed := m.entities[tomb.EntityID]
		delete(m.entities, tomb.EntityID)
		listener := m.listener
		m.mu.Unlock()

		// No debounce and no echo suppression on deletion: removing twice is
		// harmless, missing a removal is not.
		if existed && listener != nil {
			listener(Change{Kind: ChangeDeleted, Origin: origin, EntityID: tomb.EntityID})
		}

	case wire.EventSnapshotSaved, wire.EventPresenceState, wire.EventDrag, wire.EventDragEnd,
		wire.EventAssetUpdated, wire.EventPong:
		// Handled elsewhere or irrelevant to document state.

	default:
		m.logger.Warn(ctx, "unknown feed event", "type", event.Type)
	}
}

// Pause queues incoming live events instead of applying them. Used around
// bulk restores so the feed cannot fight the restore.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume flushes queued events in arrival order, tagged OriginReplay, and
// resumes live application.
func (m *Manager) Resume() {
	m.mu.Lock()
	queued := m.queue
	m.queue = nil
	m.paused = false
	m.mu.Unlock()

	for _, event := range queued {
		m.applyEvent(event, OriginReplay)
	}
}

// LocalUpsert records a locally-originated mutation in the manager's copy.
// No listener notification: the surface already has this state.
func (m *Manager) LocalUpsert(entity wire.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[entity.ID] = entity
}

// LocalDelete removes a locally-deleted entity from the manager's copy.
func (m *Manager) LocalDelete(entityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, entityID)
}

// Entity returns the current local record for the id.
func (m *Manager) Entity(entityID string) (wire.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entityID]
	return e, ok
}

// Entities returns a copy of the current local document, ordered by
// orderIndex then id.
func (m *Manager) Entities() []wire.Entity {
	m.mu.Lock()
	result := make([]wire.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		result = append(result, e)
	}
	m.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderIndex != result[j].OrderIndex {
			return result[i].OrderIndex < result[j].OrderIndex
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// SaveSnapshotNow captures the full current state and writes it as the new
// snapshot, bypassing any debounce. Called on deletions and on explicit
// save requests; never on creation.
func (m *Manager) SaveSnapshotNow(ctx context.Context) error {
	state, err := EncodeState(m.Entities())
	if err != nil {
		return fmt.Errorf("encode snapshot state: %w", err)
	}
	if err := m.store.SaveSnapshot(ctx, state); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Close stops live feed delivery.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancelFeed
	m.cancelFeed = nil
	m.phase = PhaseUnloaded
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// EncodeState serializes entities into a snapshot state blob.
func EncodeState(entities []wire.Entity) ([]byte, error) {
	return json.Marshal(entities)
}

// DecodeState parses a snapshot state blob back into an entity map.
func DecodeState(state []byte) (map[string]wire.Entity, error) {
	if len(state) == 0 {
		return map[string]wire.Entity{}, nil
	}
	var list []wire.Entity
	if err := json.Unmarshal(state, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	result := make(map[string]wire.Entity, len(list))
	for _, e := range list {
		if e.ID == "" {
			continue
		}
		result[e.ID] = e
	}
	return result, nil
}
