package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardsync/internal/client/models"
	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, u *models.PendingUpload) error {
	query := `INSERT INTO pending_uploads (asset_id, board_id, blob, mime_type, size, retry_count, staged_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		u.AssetID, u.BoardID, u.Blob, u.MimeType, u.Size, u.RetryCount, u.StagedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert pending upload: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByAssetID(ctx context.Context, assetID string) (*models.PendingUpload, error) {
	query := `SELECT asset_id, board_id, blob, mime_type, size, retry_count, staged_at
			FROM pending_uploads WHERE asset_id=?`
	row := r.db.QueryRowContext(ctx, query, assetID)

	u := &models.PendingUpload{}
	err := row.Scan(&u.AssetID, &u.BoardID, &u.Blob, &u.MimeType, &u.Size, &u.RetryCount, &u.StagedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select pending upload: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetByBoard(ctx context.Context, boardID string) ([]*models.PendingUpload, error) {
	query := `SELECT asset_id, board_id, blob, mime_type, size, retry_count, staged_at
			FROM pending_uploads WHERE board_id=? ORDER BY staged_at`
	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending uploads: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingUpload
	for rows.Next() {
		u := &models.PendingUpload{}
		if err := rows.Scan(&u.AssetID, &u.BoardID, &u.Blob, &u.MimeType, &u.Size, &u.RetryCount, &u.StagedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) IncrementRetry(ctx context.Context, assetID string) (int, error) {
	query := `UPDATE pending_uploads SET retry_count = retry_count + 1 WHERE asset_id=?`
	res, err := r.db.ExecContext(ctx, query, assetID)
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return 0, common.ErrNotFound
	}

	var count int
	row := r.db.QueryRowContext(ctx, `SELECT retry_count FROM pending_uploads WHERE asset_id=?`, assetID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read retry count: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, assetID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_uploads WHERE asset_id=?`, assetID)
	if err != nil {
		return fmt.Errorf("failed to delete pending upload: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}
