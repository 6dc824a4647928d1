package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

const (
	requestTimeout  = 12 * time.Second
	feedWriteWait   = 10 * time.Second
	feedPongWait    = 60 * time.Second
	feedPingPeriod  = (feedPongWait * 9) / 10
	redialBaseDelay = 500 * time.Millisecond
	redialMaxDelay  = 10 * time.Second
)

// HTTPStore implements Store against the board server's HTTP API and board
// websocket. One instance is bound to one (board, session) pair.
type HTTPStore struct {
	baseURL   *url.URL
	boardID   string
	sessionID string
	token     string
	http      *http.Client
	logger    logging.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial joins the board and returns a Store bound to the new session.
func Dial(ctx context.Context, baseURL, boardID, displayName, color string, logger logging.Logger) (*HTTPStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	s := &HTTPStore{
		baseURL: u,
		boardID: boardID,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger.With("module", "remote_store", "board", boardID),
	}

	var resp wire.JoinResponse
	req := wire.JoinRequest{DisplayName: displayName, Color: color}
	if err := s.doJSON(ctx, http.MethodPost, s.apiPath("join"), req, &resp); err != nil {
		return nil, fmt.Errorf("join board: %w", err)
	}

	s.sessionID = resp.SessionID
	s.token = resp.Token
	return s, nil
}

func (s *HTTPStore) SessionID() string {
	return s.sessionID
}

func (s *HTTPStore) apiPath(parts ...string) string {
	u := s.baseURL.JoinPath("api", "boards", s.boardID)
	return u.JoinPath(parts...).String()
}

func (s *HTTPStore) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set(common.AuthTokenHeaderName, s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return common.ErrUnauthorized
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", common.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request rejected: %s: %s", resp.Status, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *HTTPStore) LoadSnapshot(ctx context.Context) (*wire.Snapshot, error) {
	var snap wire.Snapshot
	if err := s.doJSON(ctx, http.MethodGet, s.apiPath("snapshot"), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *HTTPStore) EntitiesSince(ctx context.Context, since time.Time) ([]wire.Entity, error) {
	var list wire.EntityList
	u := s.apiPath("entities") + "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	if err := s.doJSON(ctx, http.MethodGet, u, nil, &list); err != nil {
		return nil, err
	}
	return list.Entities, nil
}

func (s *HTTPStore) TombstonesSince(ctx context.Context, since time.Time) ([]wire.Tombstone, error) {
	var list wire.TombstoneList
	u := s.apiPath("tombstones") + "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	if err := s.doJSON(ctx, http.MethodGet, u, nil, &list); err != nil {
		return nil, err
	}
	return list.Tombstones, nil
}

func (s *HTTPStore) PutEntity(ctx context.Context, entity wire.Entity) error {
	return s.doJSON(ctx, http.MethodPut, s.apiPath("entities", entity.ID), entity, nil)
}

func (s *HTTPStore) DeleteEntity(ctx context.Context, entityID string) error {
	return s.doJSON(ctx, http.MethodDelete, s.apiPath("entities", entityID), nil, nil)
}

func (s *HTTPStore) SaveSnapshot(ctx context.Context, state []byte) error {
	return s.doJSON(ctx, http.MethodPut, s.apiPath("snapshot"), wire.SnapshotSave{State: state}, nil)
}

func (s *HTTPStore) CreateAsset(ctx context.Context, asset wire.Asset) error {
	return s.doJSON(ctx, http.MethodPost, s.apiPath("assets"), asset, nil)
}

func (s *HTTPStore) AssetUploadURL(ctx context.Context, assetID string) (*wire.UploadURL, error) {
	var u wire.UploadURL
	if err := s.doJSON(ctx, http.MethodGet, s.apiPath("assets", assetID, "upload-url"), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *HTTPStore) MarkAssetReady(ctx context.Context, assetID, src string) error {
	body := wire.AssetReady{AssetID: assetID, Src: src}
	return s.doJSON(ctx, http.MethodPost, s.apiPath("assets", assetID, "ready"), body, nil)
}

func (s *HTTPStore) PublishPresence(ctx context.Context, update wire.PresenceUpdate) error {
	return s.send(wire.MsgPresence, update)
}

func (s *HTTPStore) PublishCursor(ctx context.Context, x, y float64) error {
	return s.send(wire.MsgCursor, wire.CursorUpdate{X: x, Y: y})
}

func (s *HTTPStore) PublishDrag(ctx context.Context, entityID string, x, y float64) error {
	return s.send(wire.MsgDrag, wire.DragPosition{EntityID: entityID, X: x, Y: y})
}

func (s *HTTPStore) EndDrag(ctx context.Context, entityID string) error {
	return s.send(wire.MsgDragEnd, wire.DragEnd{EntityID: entityID})
}

func (s *HTTPStore) send(msgType string, payload any) error {
	msg, err := wire.NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return common.ErrUnavailable
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(feedWriteWait)); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	return nil
}

// Subscribe dials the board websocket and delivers feed events to handler.
// The connection is redialed with backoff as long as the subscription lives;
// ephemeral publishes fail with ErrUnavailable during a gap and the next
// heartbeat re-announces presence.
func (s *HTTPStore) Subscribe(ctx context.Context, handler EventHandler) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	if err := s.connect(ctx); err != nil {
		cancel()
		return nil, err
	}

	go s.feedLoop(ctx, handler)

	return cancel, nil
}

func (s *HTTPStore) connect(ctx context.Context) error {
	u := s.baseURL.JoinPath("ws", "boards", s.boardID)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set(common.AuthTokenHeaderName, s.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return common.ErrUnauthorized
		}
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return common.ErrSessionClosed
	}
	s.conn = conn
	s.mu.Unlock()
	return nil
}

func (s *HTTPStore) feedLoop(ctx context.Context, handler EventHandler) {
	delay := redialBaseDelay
	for {
		err := s.pump(ctx, handler)
		if ctx.Err() != nil || s.isClosed() {
			return
		}
		if err != nil {
			s.logger.Warn(ctx, "feed connection lost, redialing", "error", err, "delay", delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		if delay *= 2; delay > redialMaxDelay {
			delay = redialMaxDelay
		}

		if err := s.connect(ctx); err != nil {
			continue
		}
		delay = redialBaseDelay
	}
}

// pump reads feed events until the connection dies, pinging on a ticker to
// keep the server's read deadline fresh.
func (s *HTTPStore) pump(ctx context.Context, handler EventHandler) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return common.ErrUnavailable
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(feedPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				s.mu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		var event wire.Event
		if err := conn.ReadJSON(&event); err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			_ = conn.Close()
			return err
		}
		handler(event)
	}
}

func (s *HTTPStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *HTTPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
