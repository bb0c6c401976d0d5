// Package timectrl drives the simulation tick loop. A TimeController owns
// the simulated clock and invokes registered listeners once per tick, either
// paced against wall-clock time or as fast as the listeners can run.
package timectrl

import (
	"sync"
	"time"
)

// SimClock is a read-only view of simulation time. Components that only
// need timestamps (engines, agents) depend on this rather than on the
// concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances one tick per wall-clock tick interval.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners complete, still
	// stepping simulation time by Tick.
	Accelerated
)

// TimeController advances simulation time and notifies registered listeners
// on every tick. It implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []func(time.Time)

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewTimeController constructs a controller positioned at start.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
		stopped:     make(chan struct{}),
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime repositions the simulated clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// AddListener registers a callback invoked on every tick with the new
// simulation time. Listeners run sequentially on the loop goroutine.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Step advances the clock by one tick synchronously and fires the listeners.
func (tc *TimeController) Step() time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	now := tc.currentTime
	fns := make([]func(time.Time), len(tc.listeners))
	copy(fns, tc.listeners)
	tc.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
	return now
}

// Stop ends a running loop after the current tick completes. Safe to call
// more than once.
func (tc *TimeController) Stop() {
	tc.stopOnce.Do(func() { close(tc.stopped) })
}

// Start runs the tick loop in a separate goroutine for the given simulated
// duration, or until Stop is called when duration is zero or negative. The
// returned channel is closed when the loop finishes.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		tc.currentTime = tc.StartTime
		tc.mu.Unlock()

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(tc.Tick)
			defer ticker.Stop()
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if tc.Mode == RealTime {
				select {
				case <-ticker.C:
				case <-tc.stopped:
					return
				}
			} else {
				select {
				case <-tc.stopped:
					return
				default:
				}
			}
			tc.Step()
			elapsed += tc.Tick
		}
	}()
	return done
}
