package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/server/auth"
	"github.com/dmitrijs2005/boardsync/internal/server/ws"
)

// serveWS authenticates the session and hands the upgraded connection to
// the hub. It blocks for the lifetime of the connection.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["board"]

	token := r.Header.Get(common.AuthTokenHeaderName)
	if token == "" {
		http.Error(w, "missing board token", http.StatusUnauthorized)
		return
	}
	sessionID, tokenBoardID, err := auth.ParseToken(token, h.secretKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if tokenBoardID != boardID {
		http.Error(w, "token issued for another board", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	ws.NewClient(h.hub, conn, boardID, sessionID).Run()
}
