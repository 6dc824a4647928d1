// Package writer coalesces rapid local mutations into per-entity remote
// writes. Timers are keyed by entity id: a burst of edits to one entity
// collapses into a single write, and one entity's pending write is never
// cancelled by another entity's schedule.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/boardsync/internal/client/remote"
	"github.com/dmitrijs2005/boardsync/internal/common"
	"github.com/dmitrijs2005/boardsync/internal/logging"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

const (
	// DefaultDebounce is the coalescing window for entity writes.
	DefaultDebounce = 300 * time.Millisecond

	defaultMaxRetries   = 4
	retryBaseDelay      = 100 * time.Millisecond
	flushTimeout        = 15 * time.Second
	closeFlushTimeout   = 5 * time.Second
	deleteRetryAttempts = 2
)

// StateProvider returns the entity's current state at flush time, or false
// if the entity no longer exists locally. Capturing state at fire time, not
// schedule time, is what lets a burst of edits persist the final shape.
type StateProvider func() (wire.Entity, bool)

// Coordinator schedules debounced per-entity writes to the remote store.
type Coordinator struct {
	store    remote.Store
	logger   logging.Logger
	debounce time.Duration
	onDelete func(ctx context.Context)

	mu        sync.Mutex
	timers    map[string]*time.Timer
	providers map[string]StateProvider
	closed    bool

	flushes sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce overrides the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithDeleteHook registers the priority-save callback invoked after every
// successful remote delete.
func WithDeleteHook(fn func(ctx context.Context)) Option {
	return func(c *Coordinator) { c.onDelete = fn }
}

// NewCoordinator returns a Coordinator writing through the given store.
func NewCoordinator(store remote.Store, logger logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		logger:    logger.With("module", "write_coordinator"),
		debounce:  DefaultDebounce,
		timers:    make(map[string]*time.Timer),
		providers: make(map[string]StateProvider),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScheduleWrite arms or resets the entity's debounce timer. When the timer
// fires uninterrupted, the provider is consulted for the entity's current
// state and that state is written.
func (c *Coordinator) ScheduleWrite(entityID string, provider StateProvider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return common.ErrSessionClosed
	}

	c.providers[entityID] = provider

	if t, ok := c.timers[entityID]; ok {
		t.Reset(c.debounce)
		return nil
	}
	c.timers[entityID] = time.AfterFunc(c.debounce, func() {
		c.fire(entityID)
	})
	return nil
}

// fire is the timer callback: it disarms the key and flushes asynchronously
// so a slow write never delays other entities' timers.
func (c *Coordinator) fire(entityID string) {
	c.mu.Lock()
	delete(c.timers, entityID)
	provider, ok := c.providers[entityID]
	if ok {
		delete(c.providers, entityID)
	}
	closed := c.closed
	c.mu.Unlock()

	if !ok || closed {
		return
	}

	c.flushes.Add(1)
	go func() {
		defer c.flushes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := c.flush(ctx, entityID, provider); err != nil {
			c.logger.Error(ctx, "debounced write failed", "entity", entityID, "error", err)
		}
	}()
}

func (c *Coordinator) flush(ctx context.Context, entityID string, provider StateProvider) error {
	entity, ok := provider()
	if !ok {
		// Deleted locally before the timer fired; the delete path owns it.
		return nil
	}
	return c.putWithRetry(ctx, entity)
}

func (c *Coordinator) putWithRetry(ctx context.Context, entity wire.Entity) error {
	backoff := retry.WithMaxRetries(defaultMaxRetries, retry.NewExponential(retryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.store.PutEntity(ctx, entity)
		if errors.Is(err, common.ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("put entity %s: %w", entity.ID, err)
	}
	return nil
}

// ScheduleImmediateWrite cancels the entity's pending timer and writes its
// current state synchronously.
func (c *Coordinator) ScheduleImmediateWrite(ctx context.Context, entityID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return common.ErrSessionClosed
	}
	c.cancelKeyLocked(entityID)
	provider, ok := c.providers[entityID]
	delete(c.providers, entityID)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("entity %s: %w", entityID, common.ErrNotFound)
	}
	return c.flush(ctx, entityID, provider)
}

// ScheduleDelete cancels any pending write for the entity, writes the
// tombstone and removes the remote record, then triggers the priority-save
// hook so a stale queued snapshot cannot resurrect the entity.
func (c *Coordinator) ScheduleDelete(ctx context.Context, entityID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return common.ErrSessionClosed
	}
	c.cancelKeyLocked(entityID)
	delete(c.providers, entityID)
	c.mu.Unlock()

	backoff := retry.WithMaxRetries(deleteRetryAttempts, retry.NewExponential(retryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.store.DeleteEntity(ctx, entityID)
		if errors.Is(err, common.ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete entity %s: %w", entityID, err)
	}

	if c.onDelete != nil {
		c.onDelete(ctx)
	}
	return nil
}

func (c *Coordinator) cancelKeyLocked(entityID string) {
	if t, ok := c.timers[entityID]; ok {
		t.Stop()
		delete(c.timers, entityID)
	}
}

// Pending reports whether the entity has an armed timer. Used by tests and
// the session teardown path.
func (c *Coordinator) Pending(entityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[entityID]
	return ok
}

// Close cancels all timers and makes a final best-effort single-attempt
// flush of every armed entity, then waits for in-flight flushes.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	remaining := make(map[string]StateProvider, len(c.providers))
	for id, p := range c.providers {
		remaining[id] = p
		delete(c.providers, id)
	}
	c.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(ctx, closeFlushTimeout)
	defer cancel()

	var firstErr error
	for id, provider := range remaining {
		entity, ok := provider()
		if !ok {
			continue
		}
		if err := c.store.PutEntity(flushCtx, entity); err != nil {
			if errors.Is(err, common.ErrUnauthorized) {
				// Expected when close races the session's own sign-out.
				continue
			}
			c.logger.Warn(flushCtx, "final flush failed", "entity", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	c.flushes.Wait()
	return firstErr
}
