// Package sched provides the small scheduling primitives the engine needs:
// trailing-edge debouncing, per-frame coalescing, and per-key cooldowns.
// Everything is timer-based and framework-independent.
package sched

import (
	"sync"
	"time"
)

// Debouncer collapses a burst of Trigger calls into a single callback fired
// after the quiet interval. Only the trailing edge fires.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	fn       func()
	stopped  bool
}

// NewDebouncer creates a debouncer that calls fn once per burst.
func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Trigger arms (or re-arms) the debounce timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fn)
}

// Stop cancels any pending callback. Trigger after Stop is a no-op.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// FrameGate holds at most one pending callback and runs it at the next frame
// boundary. Scheduling while one is pending overwrites the slot, so backlog
// is bounded to a single frame's worth of work.
type FrameGate struct {
	interval time.Duration

	mu      sync.Mutex
	pending func()
	stopCh  chan struct{}
	started bool
}

// NewFrameGate creates a gate ticking at the given frame interval.
func NewFrameGate(interval time.Duration) *FrameGate {
	return &FrameGate{interval: interval, stopCh: make(chan struct{})}
}

// Start launches the frame loop.
func (g *FrameGate) Start() {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-g.stopCh:
				return
			case <-ticker.C:
				g.mu.Lock()
				fn := g.pending
				g.pending = nil
				g.mu.Unlock()
				if fn != nil {
					fn()
				}
			}
		}
	}()
}

// Stop halts the frame loop. A pending callback is discarded.
func (g *FrameGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return
	}
	g.started = false
	close(g.stopCh)
	g.pending = nil
}

// Schedule sets the pending callback, replacing any not-yet-flushed one.
func (g *FrameGate) Schedule(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return
	}
	g.pending = fn
}

// Cooldown tracks per-key lockout windows.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewCooldown creates a cooldown with the given lockout window.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{window: window, last: make(map[string]time.Time), now: time.Now}
}

// Allow reports whether key is outside its lockout window and, if so, starts
// a new window for it.
func (c *Cooldown) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if last, ok := c.last[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[key] = now
	return true
}
