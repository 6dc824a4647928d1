package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types sent from a client to the server over the board websocket.
// Authoritative writes (entities, tombstones, snapshots, assets) go over the
// HTTP API so the caller gets a definite success or failure to retry on; the
// websocket carries only the ephemeral streams and the live feed.
const (
	MsgPresence = "presence"
	MsgCursor   = "cursor"
	MsgDrag     = "drag"
	MsgDragEnd  = "drag_end"
	MsgPing     = "ping"
)

// Feed event types sent from the server to subscribed clients.
const (
	EventEntityUpserted = "entity_upserted"
	EventEntityDeleted  = "entity_deleted"
	EventSnapshotSaved  = "snapshot_saved"
	EventPresenceState  = "presence_state"
	EventDrag           = "drag"
	EventDragEnd        = "drag_end"
	EventAssetUpdated   = "asset_updated"
	EventPong           = "pong"
)

// Message is a client-originated frame. Payload holds the type-specific body.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(msgType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("empty %s payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// SnapshotSave is the body of the snapshot-save endpoint.
type SnapshotSave struct {
	State []byte `json:"state"`
}

// PresenceUpdate announces or refreshes the sender's presence record.
// A zero DisplayName with Online=true is a heartbeat that only renews
// lastSeen.
type PresenceUpdate struct {
	DisplayName string `json:"displayName,omitempty"`
	Color       string `json:"color,omitempty"`
	Online      bool   `json:"online"`
}

// CursorUpdate is a throttled pointer position in document coordinates.
type CursorUpdate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DragPosition is one sample of an entity drag in progress.
type DragPosition struct {
	EntityID string  `json:"entityId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// DragEnd announces that the sender finished dragging the entity.
type DragEnd struct {
	EntityID string `json:"entityId"`
}

// AssetReady promotes a pending asset after its blob reached remote storage.
type AssetReady struct {
	AssetID string `json:"assetId"`
	Src     string `json:"src"`
}

// UploadURL is the response of the asset upload-url endpoint: a presigned
// PUT target and the permanent location the blob will have once stored.
type UploadURL struct {
	URL string `json:"url"`
	Src string `json:"src"`
}

// Event is a server-originated feed frame. ActorID identifies the session
// whose action produced the event; clients compare it against their own id
// to suppress re-application of their own echoed writes.
type Event struct {
	Type    string          `json:"type"`
	BoardID string          `json:"boardId"`
	ActorID string          `json:"actorId,omitempty"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an Event of the given type.
func NewEvent(eventType, boardID, actorID string, at time.Time, payload any) (Event, error) {
	e := Event{Type: eventType, BoardID: boardID, ActorID: actorID, At: at}
	if payload == nil {
		return e, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	e.Payload = raw
	return e, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("empty %s payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s event: %w", e.Type, err)
	}
	return nil
}

// PresenceState is the full filtered view of online sessions on a board.
type PresenceState struct {
	Users []Presence `json:"users"`
}

// JoinRequest is the body of POST /api/boards/{id}/join.
type JoinRequest struct {
	DisplayName string `json:"displayName"`
	Color       string `json:"color,omitempty"`
}

// JoinResponse carries the session identity and its board token.
type JoinResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// EntityList is the body of the delta-fetch endpoint.
type EntityList struct {
	Entities []Entity `json:"entities"`
}

// TombstoneList is the body of the tombstone-fetch endpoint.
type TombstoneList struct {
	Tombstones []Tombstone `json:"tombstones"`
}
