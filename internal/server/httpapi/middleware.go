package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/server/auth"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

// sessionFromContext returns the session id placed there by requireToken.
func sessionFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDKey).(string)
	return sessionID
}

// requireToken validates the board token and rejects tokens issued for a
// different board than the one in the path.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(common.AuthTokenHeaderName)
		if token == "" {
			http.Error(w, "missing board token", http.StatusUnauthorized)
			return
		}

		sessionID, boardID, err := auth.ParseToken(token, h.secretKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if boardID != mux.Vars(r)["board"] {
			http.Error(w, "token issued for another board", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
