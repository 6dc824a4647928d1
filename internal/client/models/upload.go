// Package models defines client-side data models for the boardsync engine.
package models

import "time"

// PendingUpload is a locally staged binary asset awaiting its remote
// commit. The row is the source of truth for the blob until the remote
// asset record reaches ready; then it is discarded.
type PendingUpload struct {
	// AssetID is the globally unique id shared with the remote Asset record.
	AssetID string

	// BoardID scopes recovery to the board the blob belongs to.
	BoardID string

	// Blob is the raw binary content.
	Blob []byte

	// MimeType is the declared content type, validated at staging time.
	MimeType string

	// Size is len(Blob), kept denormalized for queries.
	Size int64

	// RetryCount is incremented on every failed commit attempt; rows past
	// the bound are dropped and the remote record stays pending.
	RetryCount int

	// StagedAt is the staging time in UTC.
	StagedAt time.Time
}
