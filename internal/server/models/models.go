// Package models defines the server-side persistence records for boards.
package models

import "time"

// EntityRecord is one stored canvas entity. Data holds the full entity
// document as JSON; BoardID and UpdatedAt are lifted out for sync queries.
type EntityRecord struct {
	BoardID   string
	EntityID  string
	Data      []byte
	UpdatedAt time.Time
}

// TombstoneRecord marks an entity as deleted. Tombstones outlive their
// records so a rejoining client can distinguish "deleted" from "never seen".
type TombstoneRecord struct {
	BoardID   string
	EntityID  string
	DeletedAt time.Time
}

// SnapshotRecord is the latest full-state document of a board.
type SnapshotRecord struct {
	BoardID string
	State   []byte
	SavedAt time.Time
	SavedBy string
}

// AssetRecord tracks a binary blob through its two-phase upload.
type AssetRecord struct {
	ID         string
	BoardID    string
	Status     string
	Src        string
	StorageKey string
	MimeType   string
	Size       int64
	UploadedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
