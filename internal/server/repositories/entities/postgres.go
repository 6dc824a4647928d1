// Package entities provides PostgreSQL-backed storage for canvas entity
// records and their sync queries.
package entities

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/dbx"
	"github.com/dmitrijs2005/boardsync/internal/server/models"
)

// PostgresRepository implements entity storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, record *models.EntityRecord) error {
	query := `
		INSERT INTO entities (board_id, entity_id, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (board_id, entity_id)
		DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at;
	`
	res, err := r.db.ExecContext(ctx, query,
		record.BoardID, record.EntityID, record.Data, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// SelectSince returns records updated strictly after since, oldest first.
func (r *PostgresRepository) SelectSince(ctx context.Context, boardID string, since time.Time) ([]*models.EntityRecord, error) {
	query := `SELECT entity_id, data, updated_at FROM entities
		WHERE board_id=$1 AND updated_at>$2
		ORDER BY updated_at`
	rows, err := r.db.QueryContext(ctx, query, boardID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select entities: %w", err)
	}
	defer rows.Close()

	var result []*models.EntityRecord
	for rows.Next() {
		item := models.EntityRecord{BoardID: boardID}
		if err := rows.Scan(&item.EntityID, &item.Data, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, boardID, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM entities WHERE board_id=$1 AND entity_id=$2`, boardID, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return nil
}
