// Package server initializes and runs the board server: it opens the
// database, applies migrations, wires the services to the websocket hub
// and serves the HTTP API until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/server/config"
	"github.com/dmitrijs2005/boardsync/internal/server/httpapi"
	"github.com/dmitrijs2005/boardsync/internal/server/presence"
	"github.com/dmitrijs2005/boardsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardsync/internal/server/services"
	"github.com/dmitrijs2005/boardsync/internal/server/ws"
	"github.com/dmitrijs2005/boardsync/internal/shared"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry *presence.Registry
	hub      *ws.Hub
	handler  *httpapi.Handler
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if c.SecretKey == "" {
		// Tokens signed with an ephemeral secret die with the process.
		secret, err := shared.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("secret generation error: %w", err)
		}
		c.SecretKey = secret
		logger.Warn(context.Background(), "no secret key configured, using an ephemeral one")
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	registry := presence.NewRegistry(logger)
	hub := ws.NewHub(registry, logger)

	boards := services.NewBoardService(db, repos, logger)
	boards.AttachFeed(hub)
	assets := services.NewAssetService(db, repos, c, logger)
	assets.AttachFeed(hub)

	handler := httpapi.NewHandler(boards, assets, hub,
		[]byte(c.SecretKey), c.TokenValidityDuration, logger)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		registry: registry,
		hub:      hub,
		handler:  handler,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting board server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	// Drags abandoned without a drag_end frame are swept and announced.
	app.registry.StartSweeper(ctx, app.hub.DropDrag)
	defer app.registry.Stop()

	httpServer := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler.Router(),
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "server listen failed", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		return fmt.Errorf("db close error: %w", err)
	}
	return nil
}
