// Package cli is the interactive terminal client for boardsync. It joins a
// board, mirrors its state locally and exposes the editing operations as
// REPL commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/boardsync/internal/client/config"
	"github.com/dmitrijs2005/boardsync/internal/client/consistency"
	"github.com/dmitrijs2005/boardsync/internal/client/localdb"
	"github.com/dmitrijs2005/boardsync/internal/client/presence"
	"github.com/dmitrijs2005/boardsync/internal/client/remote"
	"github.com/dmitrijs2005/boardsync/internal/client/session"
	"github.com/dmitrijs2005/boardsync/internal/client/smoother"
	"github.com/dmitrijs2005/boardsync/internal/client/writer"
	"github.com/dmitrijs2005/boardsync/internal/filex"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

type App struct {
	config  *config.Config
	session *session.Session
	logger  logging.Logger
	reader  *bufio.Reader

	mu    sync.Mutex
	users []wire.Presence
	drags map[string]smoother.Point
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelWarn})))

	dbPath := c.LocalDBPath
	if !filepath.IsAbs(dbPath) && filepath.Dir(dbPath) == "." {
		dir, err := filex.EnsureSubDir("data")
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(dir, dbPath)
	}

	repos, err := localdb.InitDatabase(ctx, dbPath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	store, err := remote.Dial(ctx, c.ServerAddr, c.BoardID, c.DisplayName, c.Color, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		config: c,
		logger: logger,
		reader: bufio.NewReader(os.Stdin),
		drags:  make(map[string]smoother.Point),
	}

	a.session = session.New(store, repos.Uploads, c.BoardID, a.renderDrag, logger,
		session.WithCoordinatorOptions(writer.WithDebounce(c.WriteDebounce)),
		session.WithTrackerOptions(presence.WithHeartbeat(c.Heartbeat)),
		session.WithAssetListener(func(assetID, src string) {
			fmt.Printf("asset %s ready: %s\n", assetID, src)
		}),
	)

	return a, nil
}

// renderDrag keeps only the latest smoothed position per entity; the drags
// command prints them on demand.
func (a *App) renderDrag(entityID string, pos smoother.Point) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drags[entityID] = pos
}

func (a *App) onChange(change consistency.Change) {
	switch change.Kind {
	case consistency.ChangeUpserted:
		fmt.Printf("updated %s (%s)\n", change.EntityID, change.Entity.Type)
	case consistency.ChangeDeleted:
		a.mu.Lock()
		delete(a.drags, change.EntityID)
		a.mu.Unlock()
		fmt.Printf("deleted %s\n", change.EntityID)
	}
}

func (a *App) onUsers(users []wire.Presence) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = users
}

func (a *App) Run(ctx context.Context) error {
	err := a.session.Load(ctx, a.config.DisplayName, a.config.Color, a.onChange, a.onUsers)
	if err != nil {
		return err
	}

	if err := a.session.ResumeUploads(ctx); err != nil {
		a.logger.Warn(ctx, "pending upload replay failed", "error", err)
	}

	log.Printf("Joined board %q on %s (type 'help' for commands)", a.config.BoardID, a.config.ServerAddr)
	runREPL(ctx, a, bufio.NewScanner(os.Stdin))

	return a.session.Close(ctx)
}
