// Package httpapi exposes the board server's HTTP surface: the join
// endpoint, the authoritative write/read API and the board websocket
// upgrade. Ephemeral traffic flows over the websocket once upgraded.
package httpapi

import (
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/server/services"
	"github.com/dmitrijs2005/boardsync/internal/server/ws"
)

// Handler holds the dependencies shared by all routes.
type Handler struct {
	boards        *services.BoardService
	assets        *services.AssetService
	hub           *ws.Hub
	secretKey     []byte
	tokenValidity time.Duration
	logger        logging.Logger
	upgrader      websocket.Upgrader
}

func NewHandler(boards *services.BoardService, assets *services.AssetService, hub *ws.Hub,
	secretKey []byte, tokenValidity time.Duration, logger logging.Logger) *Handler {
	return &Handler{
		boards:        boards,
		assets:        assets,
		hub:           hub,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
		logger:        logger.With("component", "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router builds the route table. The join endpoint is the only
// unauthenticated one; everything else requires a board token.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.Methods(http.MethodPost).Path("/api/boards/{board}/join").HandlerFunc(h.join)
	r.Methods(http.MethodGet).Path("/ws/boards/{board}").HandlerFunc(h.serveWS)

	api := r.PathPrefix("/api/boards/{board}").Subrouter()
	api.Use(h.requireToken)
	api.Methods(http.MethodGet).Path("/snapshot").HandlerFunc(h.getSnapshot)
	api.Methods(http.MethodPut).Path("/snapshot").HandlerFunc(h.putSnapshot)
	api.Methods(http.MethodGet).Path("/entities").HandlerFunc(h.listEntities)
	api.Methods(http.MethodGet).Path("/tombstones").HandlerFunc(h.listTombstones)
	api.Methods(http.MethodPut).Path("/entities/{entity}").HandlerFunc(h.putEntity)
	api.Methods(http.MethodDelete).Path("/entities/{entity}").HandlerFunc(h.deleteEntity)
	api.Methods(http.MethodPost).Path("/assets").HandlerFunc(h.createAsset)
	api.Methods(http.MethodGet).Path("/assets/{asset}/upload-url").HandlerFunc(h.assetUploadURL)
	api.Methods(http.MethodPost).Path("/assets/{asset}/ready").HandlerFunc(h.assetReady)

	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		h.logger.Info(r.Context(), "handled",
			"method", r.Method, "url", r.URL.String(), "status", m.Code, "duration", m.Duration)
	})
}
