// Package clock provides the simulation clock. Simulation time only moves
// when something ticks it; the wall clock is never consulted.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// DefaultStep is how far one tick advances the clock.
const DefaultStep = time.Minute

// Sim is a tick-driven clock safe for concurrent use.
type Sim struct {
	mu   sync.RWMutex
	now  time.Time
	step time.Duration
	tick int64
}

// New returns a clock at start that advances step per tick. A non-positive
// step uses DefaultStep.
func New(start time.Time, step time.Duration) *Sim {
	if step <= 0 {
		step = DefaultStep
	}
	return &Sim{now: start.UTC(), step: step}
}

// Now returns the current simulation time.
func (c *Sim) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Step returns the per-tick duration.
func (c *Sim) Step() time.Duration {
	return c.step
}

// Ticks returns how many net ticks have elapsed since the last Set.
func (c *Sim) Ticks() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// Tick advances the clock n steps and returns the new time.
func (c *Sim) Tick(n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, fmt.Errorf("tick: negative step count %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Duration(n) * c.step)
	c.tick += int64(n)
	return c.now, nil
}

// TickBack rewinds the clock n steps, used when a simulation step is rolled
// back.
func (c *Sim) TickBack(n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, fmt.Errorf("tick back: negative step count %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(-time.Duration(n) * c.step)
	c.tick -= int64(n)
	return c.now, nil
}

// Set jumps to t and resets the tick counter.
func (c *Sim) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
	c.tick = 0
}
