// Package session wires the per-board client engine together: the write
// coordinator, the consistency manager, the presence tracker, the drag
// smoother and the upload queue, all sharing one remote store connection.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/boardsync/internal/client/consistency"
	"github.com/dmitrijs2005/boardsync/internal/client/presence"
	"github.com/dmitrijs2005/boardsync/internal/client/remote"
	repo "github.com/dmitrijs2005/boardsync/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/boardsync/internal/client/smoother"
	"github.com/dmitrijs2005/boardsync/internal/client/uploads"
	"github.com/dmitrijs2005/boardsync/internal/client/writer"
	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

// AssetListener is notified when any session's pending asset becomes ready.
type AssetListener func(assetID, src string)

// Session is the client's engine for one joined board.
type Session struct {
	store   *remote.Fanout
	logger  logging.Logger
	boardID string

	manager  *consistency.Manager
	coord    *writer.Coordinator
	tracker  *presence.Tracker
	smoother *smoother.Smoother
	queue    *uploads.Queue

	onAsset    AssetListener
	cancelFeed func()
	commits    sync.WaitGroup
}

type Option func(*options)

type options struct {
	coordOpts    []writer.Option
	trackerOpts  []presence.Option
	smootherOpts []smoother.Option
	queueOpts    []uploads.Option
	onAsset      AssetListener
}

// WithCoordinatorOptions forwards options to the write coordinator.
func WithCoordinatorOptions(opts ...writer.Option) Option {
	return func(o *options) { o.coordOpts = append(o.coordOpts, opts...) }
}

// WithTrackerOptions forwards options to the presence tracker.
func WithTrackerOptions(opts ...presence.Option) Option {
	return func(o *options) { o.trackerOpts = append(o.trackerOpts, opts...) }
}

// WithSmootherOptions forwards options to the drag smoother.
func WithSmootherOptions(opts ...smoother.Option) Option {
	return func(o *options) { o.smootherOpts = append(o.smootherOpts, opts...) }
}

// WithQueueOptions forwards options to the upload queue.
func WithQueueOptions(opts ...uploads.Option) Option {
	return func(o *options) { o.queueOpts = append(o.queueOpts, opts...) }
}

// WithAssetListener installs a callback for asset-ready feed events, fired
// for every session's uploads including this one's.
func WithAssetListener(l AssetListener) Option {
	return func(o *options) { o.onAsset = l }
}

// New assembles a session over a joined store. render receives smoothed
// positions for remotely dragged entities.
func New(store remote.Store, staging repo.Repository, boardID string, render smoother.RenderFunc, logger logging.Logger, opts ...Option) *Session {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fan := remote.NewFanout(store)
	s := &Session{
		store:   fan,
		logger:  logger.With("boardId", boardID),
		boardID: boardID,
		onAsset: o.onAsset,
	}

	s.manager = consistency.NewManager(fan, logger)
	// Deleting an entity perturbs more than its own record (ordering, group
	// membership), so each deletion is followed by a full snapshot save.
	deleteHook := writer.WithDeleteHook(func(ctx context.Context) {
		if err := s.manager.SaveSnapshotNow(ctx); err != nil {
			s.logger.Error(ctx, "snapshot after delete failed", "error", err)
		}
	})
	s.coord = writer.NewCoordinator(fan, logger, append([]writer.Option{deleteHook}, o.coordOpts...)...)
	s.tracker = presence.NewTracker(fan, logger, o.trackerOpts...)
	s.smoother = smoother.NewSmoother(render, o.smootherOpts...)
	s.queue = uploads.NewQueue(fan, staging, boardID, logger, o.queueOpts...)
	return s
}

// Load performs the snapshot + delta + tombstone load, starts presence and
// subscribes the ephemeral streams. listener receives document changes from
// the live feed; onUsers receives roster updates.
func (s *Session) Load(ctx context.Context, displayName, color string, listener consistency.Listener, onUsers presence.UsersListener) error {
	if err := s.manager.Load(ctx, listener); err != nil {
		return err
	}

	cancel, err := s.store.Subscribe(ctx, s.handleEvent)
	if err != nil {
		return err
	}
	s.cancelFeed = cancel

	if err := s.tracker.Start(ctx, displayName, color, onUsers); err != nil {
		s.cancelFeed()
		s.cancelFeed = nil
		return err
	}
	return nil
}

// handleEvent routes ephemeral feed events. Document events are handled by
// the consistency manager's own subscription.
func (s *Session) handleEvent(event wire.Event) {
	ctx := context.Background()

	switch event.Type {
	case wire.EventPresenceState:
		s.tracker.HandleEvent(event)

	case wire.EventDrag:
		if event.ActorID == s.store.SessionID() {
			return
		}
		var drag wire.DragPosition
		if err := event.Decode(&drag); err != nil || drag.EntityID == "" {
			s.logger.Warn(ctx, "skipping malformed drag event", "error", err)
			return
		}
		s.smoother.Apply(drag.EntityID, drag.X, drag.Y)

	case wire.EventDragEnd:
		var end wire.DragEnd
		if err := event.Decode(&end); err != nil || end.EntityID == "" {
			s.logger.Warn(ctx, "skipping malformed drag-end event", "error", err)
			return
		}
		s.smoother.Remove(end.EntityID)

	case wire.EventAssetUpdated:
		if s.onAsset == nil {
			return
		}
		var ready wire.AssetReady
		if err := event.Decode(&ready); err != nil || ready.AssetID == "" {
			s.logger.Warn(ctx, "skipping malformed asset event", "error", err)
			return
		}
		s.onAsset(ready.AssetID, ready.Src)
	}
}

// UpsertEntity records a local mutation and schedules its debounced write.
// The write captures the entity's state at flush time, not at call time.
func (s *Session) UpsertEntity(entity wire.Entity) error {
	s.manager.LocalUpsert(entity)
	id := entity.ID
	return s.coord.ScheduleWrite(id, func() (wire.Entity, bool) {
		return s.manager.Entity(id)
	})
}

// FlushEntity persists any pending write for the entity immediately.
func (s *Session) FlushEntity(ctx context.Context, entityID string) error {
	return s.coord.ScheduleImmediateWrite(ctx, entityID)
}

// DeleteEntity removes the entity locally and durably: tombstone first, then
// the record, then a priority snapshot of the surviving state.
func (s *Session) DeleteEntity(ctx context.Context, entityID string) error {
	s.manager.LocalDelete(entityID)
	return s.coord.ScheduleDelete(ctx, entityID)
}

// SaveSnapshot writes a full snapshot of the current state immediately.
func (s *Session) SaveSnapshot(ctx context.Context) error {
	return s.manager.SaveSnapshotNow(ctx)
}

// Entity returns the local record for the id.
func (s *Session) Entity(entityID string) (wire.Entity, bool) {
	return s.manager.Entity(entityID)
}

// Entities returns the local document in render order.
func (s *Session) Entities() []wire.Entity {
	return s.manager.Entities()
}

// PublishCursor forwards a throttled cursor position.
func (s *Session) PublishCursor(ctx context.Context, x, y float64) error {
	return s.tracker.PublishCursor(ctx, x, y)
}

// PublishDrag forwards one positional sample of a local drag in progress.
func (s *Session) PublishDrag(ctx context.Context, entityID string, x, y float64) error {
	return s.store.PublishDrag(ctx, entityID, x, y)
}

// EndDrag retracts the local drag state for the entity.
func (s *Session) EndDrag(ctx context.Context, entityID string) error {
	return s.store.EndDrag(ctx, entityID)
}

// RemoteUsers returns the known online roster, excluding this session.
func (s *Session) RemoteUsers() []wire.Presence {
	return s.tracker.Users()
}

// StageUpload stages a blob durably and starts its commit in the background.
// The returned asset carries the local placeholder src until the commit
// promotes it.
func (s *Session) StageUpload(ctx context.Context, blob []byte, mimeType string) (*wire.Asset, error) {
	asset, err := s.queue.Stage(ctx, blob, mimeType)
	if err != nil {
		return nil, err
	}

	s.commits.Add(1)
	go func() {
		defer s.commits.Done()
		if err := s.queue.Commit(context.Background(), asset.ID); err != nil {
			// The staged row survives; Resume retries it on the next run.
			s.logger.Warn(context.Background(), "upload commit deferred", "assetId", asset.ID, "error", err)
		}
	}()
	return asset, nil
}

// ResumeUploads replays staged uploads left over from earlier runs.
func (s *Session) ResumeUploads(ctx context.Context) error {
	return s.queue.Resume(ctx)
}

// Close flushes pending writes, retracts presence, stops the smoother and
// waits for in-flight upload commits. Authorization failures during teardown
// are ignored; the server reaps the session via its own heartbeat timeout.
func (s *Session) Close(ctx context.Context) error {
	var firstErr error

	if err := s.coord.Close(ctx); err != nil && !errors.Is(err, common.ErrUnauthorized) {
		firstErr = err
	}
	s.tracker.Stop(ctx)
	s.smoother.Close()
	s.commits.Wait()

	if s.cancelFeed != nil {
		s.cancelFeed()
		s.cancelFeed = nil
	}
	s.manager.Close()

	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
