package entities

import (
	"context"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/server/models"
)

type Repository interface {
	// Upsert inserts or replaces the record by (board_id, entity_id).
	Upsert(ctx context.Context, record *models.EntityRecord) error

	// SelectSince returns records with updated_at strictly after since.
	SelectSince(ctx context.Context, boardID string, since time.Time) ([]*models.EntityRecord, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, boardID, entityID string) error
}
