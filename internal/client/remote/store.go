// Package remote defines the client's view of the board server: a Store
// bound to one board and one session. The production implementation speaks
// HTTP for authoritative reads and writes and a websocket for the ephemeral
// streams and the live change feed.
package remote

import (
	"context"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/wire"
)

// EventHandler receives live feed events. Handlers run on the feed goroutine
// and must not block.
type EventHandler func(event wire.Event)

// Store is the remote document store as seen by one session on one board.
type Store interface {
	// SessionID returns the id assigned to this session at join time.
	SessionID() string

	// LoadSnapshot returns the latest snapshot, or common.ErrNotFound if the
	// board was never saved.
	LoadSnapshot(ctx context.Context) (*wire.Snapshot, error)

	// EntitiesSince returns entities with updatedAt strictly after since.
	EntitiesSince(ctx context.Context, since time.Time) ([]wire.Entity, error)

	// TombstonesSince returns tombstones with deletedAt strictly after since.
	TombstonesSince(ctx context.Context, since time.Time) ([]wire.Tombstone, error)

	// PutEntity upserts a single entity record. The server assigns updatedAt.
	PutEntity(ctx context.Context, entity wire.Entity) error

	// DeleteEntity writes the tombstone and removes the record, in that order.
	DeleteEntity(ctx context.Context, entityID string) error

	// SaveSnapshot replaces the board's snapshot document.
	SaveSnapshot(ctx context.Context, state []byte) error

	// PublishPresence announces, refreshes or retracts this session's
	// presence record.
	PublishPresence(ctx context.Context, update wire.PresenceUpdate) error

	// PublishCursor pushes a cursor position in document coordinates.
	PublishCursor(ctx context.Context, x, y float64) error

	// PublishDrag pushes one positional sample of an in-progress drag.
	PublishDrag(ctx context.Context, entityID string, x, y float64) error

	// EndDrag drops the ephemeral drag state for the entity.
	EndDrag(ctx context.Context, entityID string) error

	// CreateAsset writes a remote asset record, normally with status pending.
	CreateAsset(ctx context.Context, asset wire.Asset) error

	// AssetUploadURL returns a presigned PUT URL for the asset's blob and the
	// permanent src the record will get once uploaded.
	AssetUploadURL(ctx context.Context, assetID string) (*wire.UploadURL, error)

	// MarkAssetReady promotes the asset record to ready with its final src.
	MarkAssetReady(ctx context.Context, assetID, src string) error

	// Subscribe starts delivering feed events to handler until cancel is
	// called or the context is done.
	Subscribe(ctx context.Context, handler EventHandler) (cancel func(), err error)

	// Close tears down the feed connection.
	Close() error
}
