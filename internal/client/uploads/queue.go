// Package uploads implements the client's durable asset upload queue.
//
// An upload goes through two phases. Stage validates the blob and writes it
// to the local staging database before anything touches the network, so a
// crash or offline period cannot lose it. Commit performs the remote
// sequence: ensure the pending asset record exists, obtain a presigned URL,
// upload the blob, promote the record to ready and drop the staged row.
// Resume replays staged uploads left over from earlier runs.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/boardsync/internal/client/models"
	"github.com/dmitrijs2005/boardsync/internal/client/remote"
	repo "github.com/dmitrijs2005/boardsync/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/netx"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

const (
	// MaxBlobSize is the largest asset blob accepted for staging.
	MaxBlobSize = 10 << 20

	// MaxRetries is the persistent retry budget per staged upload. The
	// counter survives restarts; once exhausted the staged row is dropped.
	MaxRetries = 3
)

var allowedMimeTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// Uploader sends a blob to a presigned PUT URL.
type Uploader func(url string, blob []byte, contentType string) error

// ReadyHook is called after an asset is promoted to ready, with its
// permanent src.
type ReadyHook func(assetID, src string)

type Queue struct {
	store   remote.Store
	repo    repo.Repository
	logger  logging.Logger
	boardID string
	upload  Uploader
	onReady ReadyHook
}

type Option func(*Queue)

// WithUploader replaces the presigned-URL uploader.
func WithUploader(u Uploader) Option {
	return func(q *Queue) { q.upload = u }
}

// WithReadyHook installs a callback invoked after each successful commit.
func WithReadyHook(h ReadyHook) Option {
	return func(q *Queue) { q.onReady = h }
}

func NewQueue(store remote.Store, r repo.Repository, boardID string, logger logging.Logger, opts ...Option) *Queue {
	q := &Queue{
		store:   store,
		repo:    r,
		logger:  logger.With("component", "uploads"),
		boardID: boardID,
		upload:  netx.UploadToPresignedURL,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// LocalSrc is the placeholder src carried by an asset record while its blob
// has not reached remote storage yet. Only the staging client can resolve it.
func LocalSrc(assetID string) string {
	return "local://" + assetID
}

// Stage validates the blob and persists it locally, then registers the
// pending asset record remotely. The remote registration is best-effort when
// the server is unreachable; Commit and Resume re-register before uploading.
func (q *Queue) Stage(ctx context.Context, blob []byte, mimeType string) (*wire.Asset, error) {
	if int64(len(blob)) > MaxBlobSize {
		return nil, fmt.Errorf("blob is %d bytes: %w", len(blob), common.ErrAssetTooLarge)
	}
	if !allowedMimeTypes[mimeType] {
		return nil, fmt.Errorf("mime type %q: %w", mimeType, common.ErrUnsupportedMimeType)
	}

	assetID := uuid.NewString()
	upload := &models.PendingUpload{
		AssetID:  assetID,
		BoardID:  q.boardID,
		Blob:     blob,
		MimeType: mimeType,
		Size:     int64(len(blob)),
		StagedAt: time.Now().UTC(),
	}
	if err := q.repo.Insert(ctx, upload); err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}

	asset := wire.Asset{
		ID:       assetID,
		Status:   wire.AssetStatusPending,
		Src:      LocalSrc(assetID),
		MimeType: mimeType,
		Size:     int64(len(blob)),
	}
	if err := q.store.CreateAsset(ctx, asset); err != nil {
		// The blob is staged durably, so losing this registration only
		// delays the pending record until Commit or Resume runs.
		q.logger.Warn(ctx, "deferred pending asset registration", "assetId", assetID, "error", err)
	}
	return &asset, nil
}

// Commit uploads one staged blob and promotes its asset record to ready.
// The staged row is removed only after the promotion succeeds.
func (q *Queue) Commit(ctx context.Context, assetID string) error {
	upload, err := q.repo.GetByAssetID(ctx, assetID)
	if err != nil {
		return fmt.Errorf("failed to read staged upload: %w", err)
	}

	// Asset creation on the server is an upsert, so repeating it after a
	// partial earlier attempt is safe.
	asset := wire.Asset{
		ID:       upload.AssetID,
		Status:   wire.AssetStatusPending,
		Src:      LocalSrc(upload.AssetID),
		MimeType: upload.MimeType,
		Size:     upload.Size,
	}
	if err := q.store.CreateAsset(ctx, asset); err != nil {
		return fmt.Errorf("failed to register pending asset: %w", err)
	}

	target, err := q.store.AssetUploadURL(ctx, assetID)
	if err != nil {
		return fmt.Errorf("failed to get upload url: %w", err)
	}

	if err := q.upload(target.URL, upload.Blob, upload.MimeType); err != nil {
		return fmt.Errorf("failed to upload blob: %w", err)
	}

	if err := q.store.MarkAssetReady(ctx, assetID, target.Src); err != nil {
		return fmt.Errorf("failed to mark asset ready: %w", err)
	}

	if err := q.repo.Delete(ctx, assetID); err != nil {
		return fmt.Errorf("failed to remove staged upload: %w", err)
	}

	if q.onReady != nil {
		q.onReady(assetID, target.Src)
	}
	return nil
}

// Resume replays every staged upload for the queue's board, oldest first.
// Each failed upload gets its persistent retry counter bumped; uploads past
// the retry budget are dropped from the staging store.
func (q *Queue) Resume(ctx context.Context) error {
	pending, err := q.repo.GetByBoard(ctx, q.boardID)
	if err != nil {
		return fmt.Errorf("failed to list staged uploads: %w", err)
	}

	for _, upload := range pending {
		backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := q.Commit(ctx, upload.AssetID); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return err
				}
				return retry.RetryableError(err)
			}
			return nil
		})
		if err == nil {
			continue
		}
		if errors.Is(err, common.ErrNotFound) {
			continue
		}

		count, rerr := q.repo.IncrementRetry(ctx, upload.AssetID)
		if rerr != nil {
			q.logger.Error(ctx, "failed to record upload retry", "assetId", upload.AssetID, "error", rerr)
			continue
		}
		if count >= MaxRetries {
			if derr := q.repo.Delete(ctx, upload.AssetID); derr != nil {
				q.logger.Error(ctx, "failed to drop exhausted upload", "assetId", upload.AssetID, "error", derr)
				continue
			}
			q.logger.Warn(ctx, "dropped upload after exhausting retries",
				"assetId", upload.AssetID, "retries", count, "error", common.ErrRetriesExhausted)
			continue
		}
		q.logger.Warn(ctx, "upload still pending", "assetId", upload.AssetID, "retries", count, "error", err)
	}
	return nil
}
