// Package services implements the server's board and asset operations on top
// of the repositories.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/dbx"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/server/models"
	"github.com/dmitrijs2005/boardsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

// Broadcaster publishes a feed event to every subscriber of a board.
type Broadcaster interface {
	Broadcast(boardID string, event wire.Event)
}

// NopBroadcaster discards events. Used until the hub is attached and in tests
// that only exercise persistence.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, wire.Event) {}

// BoardService owns authoritative board state: entities, tombstones and
// snapshots. All timestamps are server-assigned.
type BoardService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
	feed   Broadcaster
}

func NewBoardService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *BoardService {
	return &BoardService{
		db:     db,
		repos:  repos,
		logger: logger.With("service", "board"),
		feed:   NopBroadcaster{},
	}
}

// AttachFeed wires the live feed broadcaster. Must be called before serving.
func (s *BoardService) AttachFeed(b Broadcaster) {
	s.feed = b
}

func (s *BoardService) broadcast(ctx context.Context, eventType, boardID, actorID string, payload any) {
	event, err := wire.NewEvent(eventType, boardID, actorID, time.Now().UTC(), payload)
	if err != nil {
		s.logger.Error(ctx, "failed to build feed event", "type", eventType, "error", err)
		return
	}
	s.feed.Broadcast(boardID, event)
}

// LoadSnapshot returns the board's latest snapshot.
func (s *BoardService) LoadSnapshot(ctx context.Context, boardID string) (*wire.Snapshot, error) {
	record, err := s.repos.Snapshots(s.db).Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return &wire.Snapshot{State: record.State, SavedAt: record.SavedAt, SavedBy: record.SavedBy}, nil
}

// EntitiesSince returns entities updated strictly after since. Records whose
// stored document no longer parses are logged and skipped rather than
// failing the whole sync.
func (s *BoardService) EntitiesSince(ctx context.Context, boardID string, since time.Time) ([]wire.Entity, error) {
	records, err := s.repos.Entities(s.db).SelectSince(ctx, boardID, since)
	if err != nil {
		return nil, err
	}

	result := make([]wire.Entity, 0, len(records))
	for _, record := range records {
		var entity wire.Entity
		if err := json.Unmarshal(record.Data, &entity); err != nil {
			s.logger.Warn(ctx, "skipping malformed entity record", "entityId", record.EntityID, "error", err)
			continue
		}
		entity.UpdatedAt = record.UpdatedAt
		result = append(result, entity)
	}
	return result, nil
}

// TombstonesSince returns tombstones with deletedAt strictly after since.
func (s *BoardService) TombstonesSince(ctx context.Context, boardID string, since time.Time) ([]wire.Tombstone, error) {
	records, err := s.repos.Tombstones(s.db).SelectSince(ctx, boardID, since)
	if err != nil {
		return nil, err
	}

	result := make([]wire.Tombstone, 0, len(records))
	for _, record := range records {
		result = append(result, wire.Tombstone{EntityID: record.EntityID, DeletedAt: record.DeletedAt})
	}
	return result, nil
}

// UpsertEntity persists the entity with a server-assigned updatedAt and
// announces it on the feed. The stored entity is returned.
func (s *BoardService) UpsertEntity(ctx context.Context, boardID, actorID string, entity wire.Entity) (*wire.Entity, error) {
	if entity.ID == "" || entity.Type == "" {
		return nil, fmt.Errorf("entity missing id or type: %w", common.ErrMalformedRecord)
	}

	entity.UpdatedAt = time.Now().UTC()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = entity.UpdatedAt
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}

	record := &models.EntityRecord{
		BoardID:   boardID,
		EntityID:  entity.ID,
		Data:      data,
		UpdatedAt: entity.UpdatedAt,
	}
	if err := s.repos.Entities(s.db).Upsert(ctx, record); err != nil {
		return nil, err
	}

	s.broadcast(ctx, wire.EventEntityUpserted, boardID, actorID, entity)
	return &entity, nil
}

// DeleteEntity writes the tombstone and removes the record in one
// transaction, tombstone first, then announces the deletion. Deleting an
// unknown entity still leaves a tombstone; the operation is idempotent.
func (s *BoardService) DeleteEntity(ctx context.Context, boardID, actorID, entityID string) error {
	if entityID == "" {
		return fmt.Errorf("missing entity id: %w", common.ErrMalformedRecord)
	}

	deletedAt := time.Now().UTC()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tomb := &models.TombstoneRecord{BoardID: boardID, EntityID: entityID, DeletedAt: deletedAt}
		if err := s.repos.Tombstones(tx).Insert(ctx, tomb); err != nil {
			return err
		}
		return s.repos.Entities(tx).Delete(ctx, boardID, entityID)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.broadcast(ctx, wire.EventEntityDeleted, boardID, actorID,
		wire.Tombstone{EntityID: entityID, DeletedAt: deletedAt})
	return nil
}

// SaveSnapshot replaces the board's snapshot. The state blob is opaque to
// the server.
func (s *BoardService) SaveSnapshot(ctx context.Context, boardID, actorID string, state []byte) error {
	record := &models.SnapshotRecord{
		BoardID: boardID,
		State:   state,
		SavedAt: time.Now().UTC(),
		SavedBy: actorID,
	}
	if err := s.repos.Snapshots(s.db).Save(ctx, record); err != nil {
		return err
	}

	s.broadcast(ctx, wire.EventSnapshotSaved, boardID, actorID,
		wire.Snapshot{SavedAt: record.SavedAt, SavedBy: actorID})
	return nil
}
