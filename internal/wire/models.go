// Package wire defines the records and messages exchanged between boardsync
// clients and the board server. All timestamps are server-assigned UTC and
// serialized as RFC3339Nano; they are the last-writer-wins authority.
package wire

import "time"

// EntityType enumerates the addressable object kinds on a board.
type EntityType string

const (
	EntityRect    EntityType = "rect"
	EntityEllipse EntityType = "ellipse"
	EntityLine    EntityType = "line"
	EntityText    EntityType = "text"
	EntityImage   EntityType = "image"
	EntityPage    EntityType = "page"
)

// Entity is a single addressable shape or page in the shared document.
// Identity is globally unique and stable for the entity's lifetime; the
// record is owned by whichever session last wrote it.
type Entity struct {
	ID          string     `json:"id"`
	Type        EntityType `json:"type"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	Rotation    float64    `json:"rotation,omitempty"`
	Fill        string     `json:"fill,omitempty"`
	Stroke      string     `json:"stroke,omitempty"`
	StrokeWidth float64    `json:"strokeWidth,omitempty"`
	Text        string     `json:"text,omitempty"`
	AssetID     string     `json:"assetId,omitempty"`
	ParentID    string     `json:"parentId,omitempty"`
	OrderIndex  float64    `json:"orderIndex"`
	Owner       string     `json:"owner,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Tombstone records that an entity was deleted. It is written exactly once,
// before the entity record is removed, and is never resurrected. Replay uses
// it to propagate deletions past stale snapshots.
type Tombstone struct {
	EntityID  string    `json:"entityId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Snapshot is a full-state checkpoint of a board. State is an opaque
// serialized entity map; the server never inspects it.
type Snapshot struct {
	State   []byte    `json:"state"`
	SavedAt time.Time `json:"savedAt"`
	SavedBy string    `json:"savedBy,omitempty"`
}

// Cursor is a pointer position in document coordinates.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Presence is one session's published liveness, identity and cursor state.
// It exists only while the session is active; the server force-clears Online
// and Cursor when the connection drops.
type Presence struct {
	SessionID   string    `json:"sessionId"`
	DisplayName string    `json:"displayName"`
	Color       string    `json:"color"`
	Cursor      *Cursor   `json:"cursor,omitempty"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"lastSeen"`
}

// AssetStatus is the upload state machine: pending until the blob is
// confirmed in remote storage, then ready. Assets that exhaust their retry
// bound stay pending for manual intervention.
type AssetStatus string

const (
	AssetStatusPending AssetStatus = "pending"
	AssetStatusReady   AssetStatus = "ready"
)

// Asset is the remote record for a binary blob referenced by image entities.
// While Status is pending, Src is a client-local placeholder and the blob is
// only guaranteed to exist in the uploading client's staging store.
type Asset struct {
	ID         string      `json:"id"`
	Status     AssetStatus `json:"status"`
	Src        string      `json:"src"`
	MimeType   string      `json:"mimeType"`
	Size       int64       `json:"size"`
	UploadedBy string      `json:"uploadedBy,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}
