// Package remotetest provides an in-memory Store used by engine tests.
package remotetest

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/client/remote"
	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

// FakeStore keeps board state in maps and records every publish, so tests
// can assert on what the engine wrote and when. Feed events are injected
// with Emit.
type FakeStore struct {
	mu sync.Mutex

	sessionID string

	Snapshot   *wire.Snapshot
	Entities   map[string]wire.Entity
	Tombstones map[string]wire.Tombstone
	Assets     map[string]wire.Asset

	PutCalls      map[string]int
	SnapshotSaves int
	DeleteOrder   []string

	PresenceLog []wire.PresenceUpdate
	CursorLog   []wire.CursorUpdate
	DragLog     []wire.DragPosition
	DragEnded   []string

	// Error injection. When set, the corresponding operation fails.
	// PutErrFor scopes the failure to a single entity id.
	PutErr          error
	PutErrFor       map[string]error
	DeleteErr       error
	LoadSnapshotErr error
	SnapshotErr     error
	EntitiesErr     error
	CreateAssetErr  error
	UploadURLErr    error
	AssetReadyErr   error
	PresenceErr     error

	// UploadURLFn overrides AssetUploadURL when set.
	UploadURLFn func(assetID string) (*wire.UploadURL, error)

	handler remote.EventHandler
	closed  bool
}

var _ remote.Store = (*FakeStore)(nil)

func NewFakeStore(sessionID string) *FakeStore {
	return &FakeStore{
		sessionID:  sessionID,
		Entities:   make(map[string]wire.Entity),
		Tombstones: make(map[string]wire.Tombstone),
		Assets:     make(map[string]wire.Asset),
		PutCalls:   make(map[string]int),
	}
}

func (f *FakeStore) SessionID() string { return f.sessionID }

func (f *FakeStore) LoadSnapshot(ctx context.Context) (*wire.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadSnapshotErr != nil {
		return nil, f.LoadSnapshotErr
	}
	if f.Snapshot == nil {
		return nil, common.ErrNotFound
	}
	snap := *f.Snapshot
	return &snap, nil
}

func (f *FakeStore) EntitiesSince(ctx context.Context, since time.Time) ([]wire.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EntitiesErr != nil {
		return nil, f.EntitiesErr
	}
	var result []wire.Entity
	for _, e := range f.Entities {
		if e.UpdatedAt.After(since) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (f *FakeStore) TombstonesSince(ctx context.Context, since time.Time) ([]wire.Tombstone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []wire.Tombstone
	for _, t := range f.Tombstones {
		if t.DeletedAt.After(since) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (f *FakeStore) PutEntity(ctx context.Context, entity wire.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls[entity.ID]++
	if f.PutErr != nil {
		return f.PutErr
	}
	if err, ok := f.PutErrFor[entity.ID]; ok {
		return err
	}
	entity.UpdatedAt = time.Now().UTC()
	f.Entities[entity.ID] = entity
	return nil
}

func (f *FakeStore) DeleteEntity(ctx context.Context, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	// Tombstone first, record removal second, mirroring the server.
	f.Tombstones[entityID] = wire.Tombstone{EntityID: entityID, DeletedAt: time.Now().UTC()}
	delete(f.Entities, entityID)
	f.DeleteOrder = append(f.DeleteOrder, entityID)
	return nil
}

func (f *FakeStore) SaveSnapshot(ctx context.Context, state []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SnapshotErr != nil {
		return f.SnapshotErr
	}
	f.SnapshotSaves++
	f.Snapshot = &wire.Snapshot{State: state, SavedAt: time.Now().UTC(), SavedBy: f.sessionID}
	return nil
}

func (f *FakeStore) PublishPresence(ctx context.Context, update wire.PresenceUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PresenceErr != nil {
		return f.PresenceErr
	}
	f.PresenceLog = append(f.PresenceLog, update)
	return nil
}

func (f *FakeStore) PublishCursor(ctx context.Context, x, y float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CursorLog = append(f.CursorLog, wire.CursorUpdate{X: x, Y: y})
	return nil
}

func (f *FakeStore) PublishDrag(ctx context.Context, entityID string, x, y float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DragLog = append(f.DragLog, wire.DragPosition{EntityID: entityID, X: x, Y: y})
	return nil
}

func (f *FakeStore) EndDrag(ctx context.Context, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DragEnded = append(f.DragEnded, entityID)
	return nil
}

func (f *FakeStore) CreateAsset(ctx context.Context, asset wire.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateAssetErr != nil {
		return f.CreateAssetErr
	}
	asset.CreatedAt = time.Now().UTC()
	asset.UpdatedAt = asset.CreatedAt
	f.Assets[asset.ID] = asset
	return nil
}

func (f *FakeStore) AssetUploadURL(ctx context.Context, assetID string) (*wire.UploadURL, error) {
	f.mu.Lock()
	fn := f.UploadURLFn
	err := f.UploadURLErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(assetID)
	}
	return &wire.UploadURL{URL: "http://storage.local/" + assetID, Src: "s3://assets/" + assetID}, nil
}

func (f *FakeStore) MarkAssetReady(ctx context.Context, assetID, src string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AssetReadyErr != nil {
		return f.AssetReadyErr
	}
	asset, ok := f.Assets[assetID]
	if !ok {
		return common.ErrNotFound
	}
	asset.Status = wire.AssetStatusReady
	asset.Src = src
	asset.UpdatedAt = time.Now().UTC()
	f.Assets[assetID] = asset
	return nil
}

func (f *FakeStore) Subscribe(ctx context.Context, handler remote.EventHandler) (func(), error) {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.handler = nil
		f.mu.Unlock()
	}, nil
}

// Emit delivers a feed event to the current subscriber, if any.
func (f *FakeStore) Emit(event wire.Event) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

// PutCount returns how many PutEntity calls were made for the entity.
func (f *FakeStore) PutCount(entityID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PutCalls[entityID]
}

// Entity returns the stored record and whether it exists.
// Asset returns the current remote asset record for the id.
func (f *FakeStore) Asset(assetID string) (wire.Asset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.Assets[assetID]
	return a, ok
}

func (f *FakeStore) Entity(entityID string) (wire.Entity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.Entities[entityID]
	return e, ok
}

func (f *FakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
