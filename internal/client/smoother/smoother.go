// Package smoother turns bursty remote positional streams (drags, cursors)
// into smooth local motion. It renders through a callback and never writes
// to the authoritative store.
package smoother

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultTick approximates the display refresh signal.
	DefaultTick = 16 * time.Millisecond

	// DefaultBlend is the fraction of the residual distance covered per tick.
	DefaultBlend = 0.3

	// DefaultMinDelta ignores target updates closer than this to the current
	// target, in pixels.
	DefaultMinDelta = 2.0

	// DefaultMinInterval ignores updates arriving faster than this.
	DefaultMinInterval = 16 * time.Millisecond

	// DefaultSnapDistance is the residual below which interpolation snaps
	// and stops for an entity.
	DefaultSnapDistance = 0.5
)

// Point is a position in document coordinates.
type Point struct {
	X float64
	Y float64
}

func (p Point) distanceTo(other Point) float64 {
	return math.Hypot(other.X-p.X, other.Y-p.Y)
}

// RenderFunc receives interpolated positions. It is called from the tick
// loop and must not block.
type RenderFunc func(entityID string, pos Point)

type trackState struct {
	current     Point
	target      Point
	lastApplied time.Time
}

// Smoother interpolates tracked entities toward their latest received
// target. One shared tick loop serves all entities; it self-starts when the
// first moving entity appears and self-stops when nothing is left to move.
type Smoother struct {
	render      RenderFunc
	tick        time.Duration
	blend       float64
	minDelta    float64
	minInterval time.Duration
	snapDist    float64

	mu      sync.Mutex
	tracked map[string]*trackState
	running bool
	stop    chan struct{}
}

// Option configures a Smoother.
type Option func(*Smoother)

// WithTick overrides the interpolation tick interval.
func WithTick(d time.Duration) Option {
	return func(s *Smoother) { s.tick = d }
}

// WithBlend overrides the per-tick blend factor.
func WithBlend(f float64) Option {
	return func(s *Smoother) { s.blend = f }
}

// NewSmoother returns a Smoother rendering through render.
func NewSmoother(render RenderFunc, opts ...Option) *Smoother {
	s := &Smoother{
		render:      render,
		tick:        DefaultTick,
		blend:       DefaultBlend,
		minDelta:    DefaultMinDelta,
		minInterval: DefaultMinInterval,
		snapDist:    DefaultSnapDistance,
		tracked:     make(map[string]*trackState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply feeds one received position for the entity. The first sighting snaps
// and renders immediately; afterwards the distance and time guards drop
// redundant updates and only the target moves.
func (s *Smoother) Apply(entityID string, x, y float64) {
	pos := Point{X: x, Y: y}
	now := time.Now()

	s.mu.Lock()
	state, ok := s.tracked[entityID]
	if !ok {
		s.tracked[entityID] = &trackState{current: pos, target: pos, lastApplied: now}
		render := s.render
		s.mu.Unlock()
		if render != nil {
			render(entityID, pos)
		}
		return
	}

	if state.target.distanceTo(pos) < s.minDelta {
		s.mu.Unlock()
		return
	}
	if now.Sub(state.lastApplied) < s.minInterval {
		s.mu.Unlock()
		return
	}

	state.target = pos
	state.lastApplied = now
	s.startLoopLocked()
	s.mu.Unlock()
}

// Remove drops the entity from tracking immediately (drag ended).
func (s *Smoother) Remove(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracked, entityID)
	if !s.anyMovingLocked() {
		s.stopLoopLocked()
	}
}

// Tracked reports whether the entity is currently tracked.
func (s *Smoother) Tracked(entityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tracked[entityID]
	return ok
}

// Current returns the entity's interpolated position.
func (s *Smoother) Current(entityID string) (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.tracked[entityID]
	if !ok {
		return Point{}, false
	}
	return state.current, true
}

// Running reports whether the tick loop is active. It idles at false while
// every tracked entity sits on its target.
func (s *Smoother) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Smoother) anyMovingLocked() bool {
	for _, state := range s.tracked {
		if state.current != state.target {
			return true
		}
	}
	return false
}

func (s *Smoother) startLoopLocked() {
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	go s.loop(s.stop)
}

func (s *Smoother) stopLoopLocked() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.stop = nil
}

func (s *Smoother) loop(stop chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.step()
		case <-stop:
			return
		}
	}
}

type renderedUpdate struct {
	entityID string
	pos      Point
}

// step advances every moving entity one blend increment toward its target,
// snapping when the residual falls under the snap distance. When nothing is
// left moving the loop shuts itself down.
func (s *Smoother) step() {
	s.mu.Lock()
	updates := make([]renderedUpdate, 0, len(s.tracked))
	for id, state := range s.tracked {
		if state.current == state.target {
			continue
		}
		residual := state.current.distanceTo(state.target)
		if residual < s.snapDist {
			state.current = state.target
		} else {
			state.current.X += (state.target.X - state.current.X) * s.blend
			state.current.Y += (state.target.Y - state.current.Y) * s.blend
		}
		updates = append(updates, renderedUpdate{entityID: id, pos: state.current})
	}
	if !s.anyMovingLocked() {
		s.stopLoopLocked()
	}
	render := s.render
	s.mu.Unlock()

	if render == nil {
		return
	}
	for _, u := range updates {
		render(u.entityID, u.pos)
	}
}

// Close stops the loop and drops all tracked entities.
func (s *Smoother) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = make(map[string]*trackState)
	s.stopLoopLocked()
}
