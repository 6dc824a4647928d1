package remote

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/boardsync/internal/wire"
)

// Fanout wraps a Store whose feed admits a single subscriber and lets several
// consumers subscribe independently. The underlying subscription is opened on
// the first Subscribe and torn down when the last subscriber cancels.
type Fanout struct {
	Store

	mu       sync.Mutex
	nextID   int
	handlers map[int]EventHandler
	cancel   func()
}

func NewFanout(store Store) *Fanout {
	return &Fanout{
		Store:    store,
		handlers: make(map[int]EventHandler),
	}
}

func (f *Fanout) Subscribe(ctx context.Context, handler EventHandler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.handlers) == 0 {
		cancel, err := f.Store.Subscribe(ctx, f.dispatch)
		if err != nil {
			return nil, err
		}
		f.cancel = cancel
	}

	id := f.nextID
	f.nextID++
	f.handlers[id] = handler

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
		if len(f.handlers) == 0 && f.cancel != nil {
			f.cancel()
			f.cancel = nil
		}
	}, nil
}

func (f *Fanout) dispatch(event wire.Event) {
	f.mu.Lock()
	handlers := make([]EventHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}
