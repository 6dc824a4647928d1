package tombstones

import (
	"context"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/server/models"
)

type Repository interface {
	// Insert writes the tombstone. Re-deleting keeps the earliest deleted_at.
	Insert(ctx context.Context, record *models.TombstoneRecord) error

	// SelectSince returns tombstones with deleted_at strictly after since.
	SelectSince(ctx context.Context, boardID string, since time.Time) ([]*models.TombstoneRecord, error)
}
