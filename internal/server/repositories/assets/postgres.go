// Package assets provides PostgreSQL-backed asset records for the two-phase
// blob upload flow.
package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/dbx"
	"github.com/dmitrijs2005/boardsync/internal/server/models"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, record *models.AssetRecord) error {
	// A ready asset is immutable; the conflict clause only refreshes rows
	// still waiting for their blob.
	query := `
		INSERT INTO assets (id, board_id, status, src, storage_key, mime_type, size, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET
			src = EXCLUDED.src,
			mime_type = EXCLUDED.mime_type,
			size = EXCLUDED.size,
			updated_at = EXCLUDED.updated_at
			WHERE assets.status = 'pending';
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.BoardID, record.Status, record.Src, record.StorageKey,
		record.MimeType, record.Size, record.UploadedBy, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, boardID, assetID string) (*models.AssetRecord, error) {
	query := `SELECT status, src, storage_key, mime_type, size, uploaded_by, created_at, updated_at
		FROM assets WHERE board_id=$1 AND id=$2`
	row := r.db.QueryRowContext(ctx, query, boardID, assetID)

	record := models.AssetRecord{ID: assetID, BoardID: boardID}
	if err := row.Scan(&record.Status, &record.Src, &record.StorageKey,
		&record.MimeType, &record.Size, &record.UploadedBy, &record.CreatedAt, &record.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &record, nil
}

func (r *PostgresRepository) SetStorageKey(ctx context.Context, boardID, assetID, key string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets SET storage_key=$3, updated_at=NOW() WHERE board_id=$1 AND id=$2`,
		boardID, assetID, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkReady(ctx context.Context, boardID, assetID, src string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets SET status=$3, src=$4, updated_at=NOW() WHERE board_id=$1 AND id=$2`,
		boardID, assetID, string(wire.AssetStatusReady), src)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrNotFound
	}
	return nil
}
