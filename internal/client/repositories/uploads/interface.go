package uploads

import (
	"context"

	"github.com/dmitrijs2005/boardsync/internal/client/models"
)

// Repository describes the durable local staging store for pending uploads.
// Implementations are backed by a local SQLite database so staged blobs
// survive process restarts.
type Repository interface {
	// Insert stages a new upload row.
	Insert(ctx context.Context, upload *models.PendingUpload) error

	// GetByAssetID returns one staged upload, or common.ErrNotFound.
	GetByAssetID(ctx context.Context, assetID string) (*models.PendingUpload, error)

	// GetByBoard returns all staged uploads for a board, oldest first.
	GetByBoard(ctx context.Context, boardID string) ([]*models.PendingUpload, error)

	// IncrementRetry bumps the retry counter and returns the new value.
	IncrementRetry(ctx context.Context, assetID string) (int, error)

	// Delete removes a staged upload after a successful commit or once its
	// retries are exhausted.
	Delete(ctx context.Context, assetID string) error
}
