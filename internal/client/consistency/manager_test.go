package consistency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/boardsync/internal/client/remote/remotetest"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustState(t *testing.T, entities ...wire.Entity) []byte {
	t.Helper()
	state, err := EncodeState(entities)
	require.NoError(t, err)
	return state
}

func TestLoad_EmptyBoard(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	m := NewManager(store, testLogger())

	require.NoError(t, m.Load(context.Background(), nil))
	assert.Equal(t, PhaseLive, m.Phase())
	assert.Empty(t, m.Entities())
}

func TestLoad_SnapshotPlusDeltaReplay(t *testing.T) {
	t0 := time.Now().Add(-time.Hour).UTC()
	store := remotetest.NewFakeStore("s1")

	stale := wire.Entity{ID: "e1", Type: wire.EntityRect, Width: 1, UpdatedAt: t0.Add(-time.Minute)}
	store.Snapshot = &wire.Snapshot{State: mustState(t, stale), SavedAt: t0}

	// e1 was mutated after the snapshot, e2 created after it.
	store.Entities["e1"] = wire.Entity{ID: "e1", Type: wire.EntityRect, Width: 42, UpdatedAt: t0.Add(time.Minute)}
	store.Entities["e2"] = wire.Entity{ID: "e2", Type: wire.EntityText, Text: "new", UpdatedAt: t0.Add(2 * time.Minute)}

	m := NewManager(store, testLogger())
	require.NoError(t, m.Load(context.Background(), nil))

	e1, ok := m.Entity("e1")
	require.True(t, ok)
	assert.Equal(t, 42.0, e1.Width, "delta must win over snapshot state")
	_, ok = m.Entity("e2")
	assert.True(t, ok)
}

func TestLoad_TombstonePrecedence(t *testing.T) {
	// Snapshot at T0, delta for E at T1>T0, tombstone for E at T2>T1:
	// replay must end with E absent regardless of fetch order.
	t0 := time.Now().Add(-time.Hour).UTC()
	store := remotetest.NewFakeStore("s1")
	store.Snapshot = &wire.Snapshot{State: mustState(t), SavedAt: t0}
	store.Entities["e1"] = wire.Entity{ID: "e1", UpdatedAt: t0.Add(time.Minute)}
	store.Tombstones["e1"] = wire.Tombstone{EntityID: "e1", DeletedAt: t0.Add(2 * time.Minute)}

	m := NewManager(store, testLogger())
	require.NoError(t, m.Load(context.Background(), nil))

	_, ok := m.Entity("e1")
	assert.False(t, ok, "tombstoned entity must not survive replay")
}

func TestLoad_SnapshotFetchFailure(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	store.LoadSnapshotErr = errors.New("server unavailable")

	m := NewManager(store, testLogger())
	err := m.Load(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, PhaseUnloaded, m.Phase(), "failed load must leave the board unloaded")
}

func TestLoad_ReconcileFailureFallsBackToSnapshot(t *testing.T) {
	t0 := time.Now().Add(-time.Hour).UTC()
	store := remotetest.NewFakeStore("s1")
	known := wire.Entity{ID: "e1", Width: 7, UpdatedAt: t0}
	store.Snapshot = &wire.Snapshot{State: mustState(t, known), SavedAt: t0}
	store.EntitiesErr = errors.New("network down")

	m := NewManager(store, testLogger())
	require.NoError(t, m.Load(context.Background(), nil))

	assert.Equal(t, PhaseLive, m.Phase())
	e1, ok := m.Entity("e1")
	require.True(t, ok, "known-good snapshot state must be served")
	assert.Equal(t, 7.0, e1.Width)
}

func emitUpsert(t *testing.T, store *remotetest.FakeStore, actor string, e wire.Entity) {
	t.Helper()
	event, err := wire.NewEvent(wire.EventEntityUpserted, "b1", actor, time.Now().UTC(), e)
	require.NoError(t, err)
	store.Emit(event)
}

func emitDelete(t *testing.T, store *remotetest.FakeStore, actor, entityID string) {
	t.Helper()
	tomb := wire.Tombstone{EntityID: entityID, DeletedAt: time.Now().UTC()}
	event, err := wire.NewEvent(wire.EventEntityDeleted, "b1", actor, time.Now().UTC(), tomb)
	require.NoError(t, err)
	store.Emit(event)
}

func TestLiveFeed_UpsertAndNotify(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	m := NewManager(store, testLogger())

	var changes []Change
	require.NoError(t, m.Load(context.Background(), func(c Change) { changes = append(changes, c) }))

	emitUpsert(t, store, "other", wire.Entity{ID: "e1", Fill: "#f00", UpdatedAt: time.Now().UTC()})

	e1, ok := m.Entity("e1")
	require.True(t, ok)
	assert.Equal(t, "#f00", e1.Fill)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeUpserted, changes[0].Kind)
	assert.Equal(t, OriginRemote, changes[0].Origin)
}

func TestLiveFeed_SelfEchoSuppressed(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	m := NewManager(store, testLogger())

	var changes []Change
	require.NoError(t, m.Load(context.Background(), func(c Change) { changes = append(changes, c) }))

	emitUpsert(t, store, "s1", wire.Entity{ID: "e1", UpdatedAt: time.Now().UTC()})
	assert.Empty(t, changes, "a session must not re-apply its own echoed write")
}

func TestLiveFeed_StaleUpsertSkipped(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	m := NewManager(store, testLogger())
	require.NoError(t, m.Load(context.Background(), nil))

	now := time.Now().UTC()
	m.LocalUpsert(wire.Entity{ID: "e1", Width: 9, UpdatedAt: now})
	emitUpsert(t, store, "other", wire.Entity{ID: "e1", Width: 1, UpdatedAt: now.Add(-time.Minute)})

	e1, _ := m.Entity("e1")
	assert.Equal(t, 9.0, e1.Width, "older update must lose")
}

func TestLiveFeed_DeleteAppliedImmediately(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	m := NewManager(store, testLogger())

	var changes []Change
	require.NoError(t, m.Load(context.Background(), func(c Change) { changes = append(changes, c) }))

	m.LocalUpsert(wire.Entity{ID: "e1", UpdatedAt: time.Now().UTC()})
	emitDelete(t, store, "other", "e1")

	_, ok := m.Entity("e1")
	assert.False(t, ok)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeDeleted, changes[0].Kind)
}

func TestLiveFeed_MalformedEventSkipped(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	m := NewManager(store, testLogger())
	require.NoError(t, m.Load(context.Background(), nil))

	m.LocalUpsert(wire.Entity{ID: "e1", UpdatedAt: time.Now().UTC()})
	store.Emit(wire.Event{Type: wire.EventEntityUpserted, ActorID: "other", Payload: []byte(`{"id":`)})

	_, ok := m.Entity("e1")
	assert.True(t, ok, "malformed event must not corrupt sibling entities")
}

func TestPauseResume_QueuesAndFlushesInOrder(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	m := NewManager(store, testLogger())

	var changes []Change
	require.NoError(t, m.Load(context.Background(), func(c Change) { changes = append(changes, c) }))

	m.Pause()
	now := time.Now().UTC()
	emitUpsert(t, store, "other", wire.Entity{ID: "e1", Width: 1, UpdatedAt: now})
	emitUpsert(t, store, "other", wire.Entity{ID: "e1", Width: 2, UpdatedAt: now.Add(time.Second)})

	_, ok := m.Entity("e1")
	assert.False(t, ok, "paused manager must not apply live events")

	m.Resume()
	e1, ok := m.Entity("e1")
	require.True(t, ok)
	assert.Equal(t, 2.0, e1.Width)

	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, OriginReplay, c.Origin, "flushed queue entries must be tagged as replay")
	}
}

func TestSaveSnapshotNow(t *testing.T) {
	store := remotetest.NewFakeStore("s1")
	m := NewManager(store, testLogger())
	require.NoError(t, m.Load(context.Background(), nil))

	m.LocalUpsert(wire.Entity{ID: "e1", Fill: "#0f0", UpdatedAt: time.Now().UTC()})
	require.NoError(t, m.SaveSnapshotNow(context.Background()))

	require.NotNil(t, store.Snapshot)
	decoded, err := DecodeState(store.Snapshot.State)
	require.NoError(t, err)
	assert.Contains(t, decoded, "e1")
}

func TestDecodeState_Malformed(t *testing.T) {
	_, err := DecodeState([]byte("{nope"))
	assert.Error(t, err)

	empty, err := DecodeState(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
