package uploads

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/boardsync/internal/client/models"
	"github.com/dmitrijs2005/boardsync/internal/common"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE pending_uploads (
  asset_id TEXT PRIMARY KEY,
  board_id TEXT NOT NULL,
  blob BLOB NOT NULL,
  mime_type TEXT NOT NULL,
  size INTEGER NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 0,
  staged_at TIMESTAMP NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func stage(t *testing.T, r *SQLiteRepository, assetID, boardID string) {
	t.Helper()
	require.NoError(t, r.Insert(context.Background(), &models.PendingUpload{
		AssetID:  assetID,
		BoardID:  boardID,
		Blob:     []byte("blob-" + assetID),
		MimeType: "image/png",
		Size:     9,
		StagedAt: time.Now().UTC(),
	}))
}

func TestInsertAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	stage(t, r, "a1", "b1")

	got, err := r.GetByAssetID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "b1", got.BoardID)
	assert.Equal(t, []byte("blob-a1"), got.Blob)
	assert.Equal(t, 0, got.RetryCount)
}

func TestGetByAssetID_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	_, err := r.GetByAssetID(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByBoard_FiltersAndOrders(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"a1", "a2"} {
		require.NoError(t, r.Insert(ctx, &models.PendingUpload{
			AssetID: id, BoardID: "b1", Blob: []byte{1}, MimeType: "image/png", Size: 1,
			StagedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	stage(t, r, "other", "b2")

	got, err := r.GetByBoard(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].AssetID)
	assert.Equal(t, "a2", got[1].AssetID)
}

func TestIncrementRetry(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	stage(t, r, "a1", "b1")
	ctx := context.Background()

	n, err := r.IncrementRetry(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.IncrementRetry(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = r.IncrementRetry(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	stage(t, r, "a1", "b1")
	ctx := context.Background()

	require.NoError(t, r.Delete(ctx, "a1"))
	_, err := r.GetByAssetID(ctx, "a1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Error(t, r.Delete(ctx, "a1"), "deleting a missing row must error")
}
