package smoother

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renderLog struct {
	mu      sync.Mutex
	entries []Point
}

func (r *renderLog) render(_ string, pos Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, pos)
}

func (r *renderLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestApply_FirstSightingSnaps(t *testing.T) {
	log := &renderLog{}
	s := NewSmoother(log.render, WithTick(5*time.Millisecond))
	defer s.Close()

	s.Apply("e1", 100, 200)

	pos, ok := s.Current("e1")
	require.True(t, ok)
	assert.Equal(t, Point{X: 100, Y: 200}, pos, "first sighting must snap, not interpolate")
	assert.Equal(t, 1, log.count())
	assert.False(t, s.Running(), "a settled entity must not keep the loop alive")
}

func TestApply_DistanceGuard(t *testing.T) {
	s := NewSmoother(nil, WithTick(5*time.Millisecond))
	defer s.Close()

	s.Apply("e1", 100, 100)
	s.Apply("e1", 101, 100) // under 2px, ignored

	pos, _ := s.Current("e1")
	assert.Equal(t, Point{X: 100, Y: 100}, pos)
	assert.False(t, s.Running())
}

func TestApply_TimeGuard(t *testing.T) {
	s := NewSmoother(nil, WithTick(5*time.Millisecond))
	defer s.Close()

	s.Apply("e1", 0, 0)
	s.Apply("e1", 50, 50) // too soon after the first sighting, ignored

	assert.False(t, s.Running())
	time.Sleep(20 * time.Millisecond)
	s.Apply("e1", 50, 50)
	assert.True(t, s.Running())
}

func TestConvergence_ReachesTargetAndStops(t *testing.T) {
	log := &renderLog{}
	s := NewSmoother(log.render, WithTick(2*time.Millisecond))
	defer s.Close()

	s.Apply("e1", 0, 0)
	time.Sleep(20 * time.Millisecond)
	s.Apply("e1", 100, 0)

	require.Eventually(t, func() bool {
		pos, ok := s.Current("e1")
		return ok && pos == Point{X: 100, Y: 0}
	}, time.Second, 2*time.Millisecond, "interpolation must converge onto the target")

	assert.Eventually(t, func() bool { return !s.Running() },
		time.Second, 2*time.Millisecond, "loop must self-stop once everything settled")
	assert.True(t, s.Tracked("e1"), "settling must not untrack the entity")
}

func TestInterpolation_MovesMonotonically(t *testing.T) {
	log := &renderLog{}
	s := NewSmoother(log.render, WithTick(2*time.Millisecond))
	defer s.Close()

	s.Apply("e1", 0, 0)
	time.Sleep(20 * time.Millisecond)
	s.Apply("e1", 100, 0)

	require.Eventually(t, func() bool {
		pos, _ := s.Current("e1")
		return pos.X == 100
	}, time.Second, 2*time.Millisecond)

	log.mu.Lock()
	defer log.mu.Unlock()
	last := -1.0
	for _, p := range log.entries {
		require.GreaterOrEqual(t, p.X, last, "interpolated X must not move backwards")
		last = p.X
	}
	require.Greater(t, len(log.entries), 3, "motion must be spread over several ticks")
}

func TestRemove_DropsTrackingAndStopsLoop(t *testing.T) {
	s := NewSmoother(nil, WithTick(2*time.Millisecond))
	defer s.Close()

	s.Apply("e1", 0, 0)
	time.Sleep(20 * time.Millisecond)
	s.Apply("e1", 500, 500)
	require.True(t, s.Running())

	s.Remove("e1")
	assert.False(t, s.Tracked("e1"))
	assert.False(t, s.Running(), "removing the last moving entity must stop the loop")
}

func TestMultipleEntities_IndependentTargets(t *testing.T) {
	s := NewSmoother(nil, WithTick(2*time.Millisecond))
	defer s.Close()

	s.Apply("a", 0, 0)
	s.Apply("b", 10, 10)
	time.Sleep(20 * time.Millisecond)
	s.Apply("a", 100, 0)
	s.Apply("b", 10, 110)

	require.Eventually(t, func() bool {
		pa, _ := s.Current("a")
		pb, _ := s.Current("b")
		return pa == Point{X: 100, Y: 0} && pb == Point{X: 10, Y: 110}
	}, time.Second, 2*time.Millisecond)
}
