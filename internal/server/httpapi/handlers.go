package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/server/auth"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, common.ErrMalformedRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, common.ErrAssetTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, common.ErrUnsupportedMimeType):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// join issues a fresh session identity and its board token.
func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["board"]

	var req wire.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed join request", http.StatusBadRequest)
		return
	}

	sessionID := uuid.NewString()
	token, err := auth.GenerateToken(sessionID, boardID, h.secretKey, h.tokenValidity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info(r.Context(), "session joined",
		"boardId", boardID, "sessionId", sessionID, "displayName", req.DisplayName)
	h.writeJSON(r.Context(), w, http.StatusOK, wire.JoinResponse{SessionID: sessionID, Token: token})
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.boards.LoadSnapshot(r.Context(), mux.Vars(r)["board"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(r.Context(), w, http.StatusOK, snap)
}

func (h *Handler) putSnapshot(w http.ResponseWriter, r *http.Request) {
	var req wire.SnapshotSave
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed snapshot", http.StatusBadRequest)
		return
	}

	err := h.boards.SaveSnapshot(r.Context(), mux.Vars(r)["board"], sessionFromContext(r.Context()), req.State)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sinceParam parses the optional since query parameter. Absent means the
// zero time, which selects everything.
func sinceParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	since, err := sinceParam(r)
	if err != nil {
		http.Error(w, "malformed since parameter", http.StatusBadRequest)
		return
	}

	entities, err := h.boards.EntitiesSince(r.Context(), mux.Vars(r)["board"], since)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(r.Context(), w, http.StatusOK, wire.EntityList{Entities: entities})
}

func (h *Handler) listTombstones(w http.ResponseWriter, r *http.Request) {
	since, err := sinceParam(r)
	if err != nil {
		http.Error(w, "malformed since parameter", http.StatusBadRequest)
		return
	}

	tombstones, err := h.boards.TombstonesSince(r.Context(), mux.Vars(r)["board"], since)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(r.Context(), w, http.StatusOK, wire.TombstoneList{Tombstones: tombstones})
}

func (h *Handler) putEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var entity wire.Entity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		http.Error(w, "malformed entity", http.StatusBadRequest)
		return
	}
	if entity.ID == "" {
		entity.ID = vars["entity"]
	}
	if entity.ID != vars["entity"] {
		http.Error(w, "entity id does not match path", http.StatusBadRequest)
		return
	}

	updated, err := h.boards.UpsertEntity(r.Context(), vars["board"], sessionFromContext(r.Context()), entity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(r.Context(), w, http.StatusOK, updated)
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.boards.DeleteEntity(r.Context(), vars["board"], sessionFromContext(r.Context()), vars["entity"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createAsset(w http.ResponseWriter, r *http.Request) {
	var asset wire.Asset
	if err := json.NewDecoder(r.Body).Decode(&asset); err != nil {
		http.Error(w, "malformed asset", http.StatusBadRequest)
		return
	}

	err := h.assets.Create(r.Context(), mux.Vars(r)["board"], sessionFromContext(r.Context()), asset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) assetUploadURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uploadURL, err := h.assets.UploadURL(r.Context(), vars["board"], vars["asset"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(r.Context(), w, http.StatusOK, uploadURL)
}

func (h *Handler) assetReady(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req wire.AssetReady
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed asset-ready request", http.StatusBadRequest)
		return
	}

	err := h.assets.MarkReady(r.Context(), vars["board"], sessionFromContext(r.Context()), vars["asset"], req.Src)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
