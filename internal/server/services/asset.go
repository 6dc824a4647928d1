package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	sc "github.com/dmitrijs2005/boardsync/internal/server/config"
	"github.com/dmitrijs2005/boardsync/internal/server/models"
	"github.com/dmitrijs2005/boardsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

const (
	// MaxAssetSize mirrors the client-side staging cap.
	MaxAssetSize = 10 << 20

	presignExpiry = 15 * time.Minute
)

var allowedMimeTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// AssetService manages asset records and their presigned blob uploads.
type AssetService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	config *sc.Config
	logger logging.Logger
	feed   Broadcaster
}

func NewAssetService(db *sql.DB, repos repomanager.RepositoryManager, config *sc.Config, logger logging.Logger) *AssetService {
	return &AssetService{
		db:     db,
		repos:  repos,
		config: config,
		logger: logger.With("service", "asset"),
		feed:   NopBroadcaster{},
	}
}

// AttachFeed wires the live feed broadcaster. Must be called before serving.
func (s *AssetService) AttachFeed(b Broadcaster) {
	s.feed = b
}

func storageKey(boardID string) string {
	d := time.Now()
	return fmt.Sprintf("boards/%s/%d/%d/%d/%v", boardID, d.Year(), d.Month(), d.Day(), uuid.New())
}

// Create registers a pending asset record. Repeating the registration for a
// still-pending asset refreshes it; ready assets are immutable.
func (s *AssetService) Create(ctx context.Context, boardID, actorID string, asset wire.Asset) error {
	if asset.ID == "" {
		return fmt.Errorf("asset missing id: %w", common.ErrMalformedRecord)
	}
	if asset.Size > MaxAssetSize {
		return fmt.Errorf("asset is %d bytes: %w", asset.Size, common.ErrAssetTooLarge)
	}
	if !allowedMimeTypes[asset.MimeType] {
		return fmt.Errorf("mime type %q: %w", asset.MimeType, common.ErrUnsupportedMimeType)
	}

	now := time.Now().UTC()
	record := &models.AssetRecord{
		ID:         asset.ID,
		BoardID:    boardID,
		Status:     string(wire.AssetStatusPending),
		Src:        asset.Src,
		MimeType:   asset.MimeType,
		Size:       asset.Size,
		UploadedBy: actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s.repos.Assets(s.db).Upsert(ctx, record)
}

func (s *AssetService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// UploadURL reserves an object key for the asset and returns a presigned PUT
// URL plus the permanent src the record will carry once uploaded.
func (s *AssetService) UploadURL(ctx context.Context, boardID, assetID string) (*wire.UploadURL, error) {
	record, err := s.repos.Assets(s.db).Get(ctx, boardID, assetID)
	if err != nil {
		return nil, err
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := record.StorageKey
	if key == "" {
		key = storageKey(boardID)
		if err := s.repos.Assets(s.db).SetStorageKey(ctx, boardID, assetID, key); err != nil {
			return nil, err
		}
	}

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(record.MimeType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, err
	}

	return &wire.UploadURL{URL: req.URL, Src: s.permanentSrc(key)}, nil
}

func (s *AssetService) permanentSrc(key string) string {
	return strings.TrimSuffix(s.config.S3BaseEndpoint, "/") + "/" + s.config.S3Bucket + "/" + key
}

// MarkReady promotes the asset and announces it on the feed.
func (s *AssetService) MarkReady(ctx context.Context, boardID, actorID, assetID, src string) error {
	if err := s.repos.Assets(s.db).MarkReady(ctx, boardID, assetID, src); err != nil {
		return err
	}

	event, err := wire.NewEvent(wire.EventAssetUpdated, boardID, actorID, time.Now().UTC(),
		wire.AssetReady{AssetID: assetID, Src: src})
	if err != nil {
		s.logger.Error(ctx, "failed to build asset event", "error", err)
		return nil
	}
	s.feed.Broadcast(boardID, event)
	return nil
}
