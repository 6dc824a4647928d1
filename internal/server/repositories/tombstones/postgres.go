// Package tombstones provides PostgreSQL-backed deletion markers.
package tombstones

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/dbx"
	"github.com/dmitrijs2005/boardsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, record *models.TombstoneRecord) error {
	query := `
		INSERT INTO tombstones (board_id, entity_id, deleted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (board_id, entity_id) DO NOTHING;
	`
	_, err := r.db.ExecContext(ctx, query, record.BoardID, record.EntityID, record.DeletedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SelectSince(ctx context.Context, boardID string, since time.Time) ([]*models.TombstoneRecord, error) {
	query := `SELECT entity_id, deleted_at FROM tombstones
		WHERE board_id=$1 AND deleted_at>$2
		ORDER BY deleted_at`
	rows, err := r.db.QueryContext(ctx, query, boardID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select tombstones: %w", err)
	}
	defer rows.Close()

	var result []*models.TombstoneRecord
	for rows.Next() {
		item := models.TombstoneRecord{BoardID: boardID}
		if err := rows.Scan(&item.EntityID, &item.DeletedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
