// Package snapshots provides PostgreSQL-backed full-state snapshots.
package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/dbx"
	"github.com/dmitrijs2005/boardsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, record *models.SnapshotRecord) error {
	query := `
		INSERT INTO snapshots (board_id, state, saved_at, saved_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (board_id)
		DO UPDATE SET
			state = EXCLUDED.state,
			saved_at = EXCLUDED.saved_at,
			saved_by = EXCLUDED.saved_by;
	`
	res, err := r.db.ExecContext(ctx, query,
		record.BoardID, record.State, record.SavedAt, record.SavedBy)
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

func (r *PostgresRepository) Get(ctx context.Context, boardID string) (*models.SnapshotRecord, error) {
	query := `SELECT state, saved_at, saved_by FROM snapshots WHERE board_id=$1`
	row := r.db.QueryRowContext(ctx, query, boardID)

	record := models.SnapshotRecord{BoardID: boardID}
	if err := row.Scan(&record.State, &record.SavedAt, &record.SavedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &record, nil
}
