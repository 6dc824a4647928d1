package snapshots

import (
	"context"

	"github.com/dmitrijs2005/boardsync/internal/server/models"
)

type Repository interface {
	// Save replaces the board's snapshot.
	Save(ctx context.Context, record *models.SnapshotRecord) error

	// Get returns the latest snapshot, or common.ErrNotFound if the board
	// was never saved.
	Get(ctx context.Context, boardID string) (*models.SnapshotRecord, error)
}
