package assets

import (
	"context"

	"github.com/dmitrijs2005/boardsync/internal/server/models"
)

type Repository interface {
	// Upsert inserts the asset, or refreshes a still-pending record when the
	// client repeats registration after a partial upload attempt.
	Upsert(ctx context.Context, record *models.AssetRecord) error

	// Get returns the record, or common.ErrNotFound.
	Get(ctx context.Context, boardID, assetID string) (*models.AssetRecord, error)

	// SetStorageKey stores the object key reserved for the asset's blob.
	SetStorageKey(ctx context.Context, boardID, assetID, key string) error

	// MarkReady promotes the asset to ready with its permanent src.
	MarkReady(ctx context.Context, boardID, assetID, src string) error
}
