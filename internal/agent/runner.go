package agent

import (
	"context"
	"time"

	"github.com/reliefgrid/disaster-simulator/internal/logging"
)

// Ticker is an agent that does one unit of work per tick.
type Ticker interface {
	ID() string
	HandleTick(ctx context.Context)
}

// Starter is an optional one-shot behavior an agent runs before its first
// tick.
type Starter interface {
	Start(ctx context.Context)
}

// Stopper is an optional teardown behavior an agent runs after its last
// tick.
type Stopper interface {
	Stop(ctx context.Context)
}

// Runner drives agents through their lifecycle: every Starter runs once,
// then all agents tick at the configured interval, then every Stopper runs.
// A zero interval ticks without delay.
type Runner struct {
	interval time.Duration
	log      logging.Logger
	agents   []Ticker
}

// NewRunner builds a runner over agents.
func NewRunner(interval time.Duration, log logging.Logger, agents ...Ticker) *Runner {
	if log == nil {
		log = logging.Noop()
	}
	return &Runner{interval: interval, log: log, agents: agents}
}

// Run executes the lifecycle. Agents tick in registration order for cycles
// iterations; cycles <= 0 runs until ctx is cancelled. Stoppers run even
// when the loop exits early. Returns the number of completed cycles.
func (r *Runner) Run(ctx context.Context, cycles int) int {
	for _, a := range r.agents {
		if s, ok := a.(Starter); ok {
			s.Start(ctx)
		}
	}
	defer func() {
		for _, a := range r.agents {
			if s, ok := a.(Stopper); ok {
				s.Stop(ctx)
			}
		}
	}()

	var tick <-chan time.Time
	if r.interval > 0 {
		t := time.NewTicker(r.interval)
		defer t.Stop()
		tick = t.C
	}

	completed := 0
	for cycles <= 0 || completed < cycles {
		if tick != nil {
			select {
			case <-ctx.Done():
				return completed
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return completed
		}
		for _, a := range r.agents {
			a.HandleTick(ctx)
		}
		completed++
		r.log.Debug(ctx, "cycle complete", logging.Int("cycle", completed))
	}
	return completed
}
