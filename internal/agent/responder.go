package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/reliefgrid/disaster-simulator/internal/logging"
	"github.com/reliefgrid/disaster-simulator/model"
	"github.com/reliefgrid/disaster-simulator/policy"
	"github.com/reliefgrid/disaster-simulator/trigger"
)

// RegionReader snapshots the percepts of every monitored location.
type RegionReader interface {
	AllPercepts() []model.Percept
}

// ResponderOption customises a ResponderAgent.
type ResponderOption func(*ResponderAgent)

// WithResponderMetrics attaches a metrics recorder.
func WithResponderMetrics(m MetricsRecorder) ResponderOption {
	return func(r *ResponderAgent) { r.metrics = m }
}

// WithResponderClock overrides the wall clock used for trace headers.
func WithResponderClock(now func() time.Time) ResponderOption {
	return func(r *ResponderAgent) { r.now = now }
}

// WithTracePath makes Stop write the agent's execution trace to path.
func WithTracePath(path string) ResponderOption {
	return func(r *ResponderAgent) { r.tracePath = path }
}

// ResponderAgent owns a trigger deriver, a response policy, and the seen-set
// that deduplicates disaster detections across ticks. Each tick it snapshots
// the region, derives trigger events, and hands them to the policy.
type ResponderAgent struct {
	mu        sync.Mutex
	id        string
	reader    RegionReader
	deriver   *trigger.Deriver
	policy    *policy.ResponsePolicy
	log       logging.Logger
	metrics   MetricsRecorder
	tracer    oteltrace.Tracer
	now       func() time.Time
	tracePath string

	seen   trigger.Seen
	cycles int
	events int
}

// NewResponder builds a responder agent around an already-configured deriver
// and policy.
func NewResponder(id string, reader RegionReader, deriver *trigger.Deriver, pol *policy.ResponsePolicy, log logging.Logger, opts ...ResponderOption) *ResponderAgent {
	r := &ResponderAgent{
		id:      id,
		reader:  reader,
		deriver: deriver,
		policy:  pol,
		log:     log,
		tracer:  otel.Tracer("disaster-simulator/agent"),
		now:     time.Now,
		seen:    trigger.NewSeen(),
	}
	if r.log == nil {
		r.log = logging.Noop()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the agent identifier.
func (r *ResponderAgent) ID() string { return r.id }

// Policy exposes the wrapped response policy for state inspection.
func (r *ResponderAgent) Policy() *policy.ResponsePolicy { return r.policy }

// Start announces the agent and its goals. Part of the runner's one-shot
// phase.
func (r *ResponderAgent) Start(ctx context.Context) {
	goals := r.policy.Goals()
	r.log.Info(ctx, "responder online",
		logging.String("agent_id", r.id),
		logging.String("goal_rescue", goals.RescuePeople),
		logging.String("goal_stabilize", goals.StabilizeInfrastructure),
		logging.String("goal_resources", goals.OptimizeResources),
	)
}

// HandleTick runs one perceive, derive, respond cycle.
func (r *ResponderAgent) HandleTick(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := r.tracer.Start(ctx, "responder.cycle")
	defer span.End()

	percepts := r.reader.AllPercepts()
	events, seen := r.deriver.Derive(percepts, r.seen)
	r.seen = seen
	r.policy.HandleTick(ctx, events)

	r.cycles++
	r.events += len(events)
	span.SetAttributes(
		attribute.Int("trigger.events", len(events)),
		attribute.String("policy.state", string(r.policy.State())),
	)
	if r.metrics != nil {
		r.metrics.IncResponderCycle()
	}
	r.log.Debug(ctx, "responder cycle complete",
		logging.String("agent_id", r.id),
		logging.Int("trigger_events", len(events)),
		logging.String("state", string(r.policy.State())),
	)
}

// Stop writes the execution trace when a trace path is configured. Part of
// the runner's teardown phase.
func (r *ResponderAgent) Stop(ctx context.Context) {
	path := r.tracePath
	if path == "" {
		return
	}
	if err := r.WriteTrace(path); err != nil {
		r.log.Error(ctx, "failed to write responder trace",
			logging.String("agent_id", r.id),
			logging.String("path", path),
			logging.String("error", err.Error()),
		)
		return
	}
	r.log.Info(ctx, "responder trace written",
		logging.String("agent_id", r.id),
		logging.String("path", path),
	)
}

// Cycles returns how many respond cycles the agent has run.
func (r *ResponderAgent) Cycles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles
}

// EventCount returns the total number of trigger events derived so far.
func (r *ResponderAgent) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events
}

// WriteTrace renders the agent's goals, state transitions, and trace log to
// path, creating parent directories as needed.
func (r *ResponderAgent) WriteTrace(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString("DISASTER RESPONSE AGENT TRACE\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Agent: %s\n", r.id)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.now().UTC().Format(time.RFC3339))

	goals := r.policy.Goals()
	b.WriteString("GOALS\n")
	fmt.Fprintf(&b, "  - %s\n", goals.RescuePeople)
	fmt.Fprintf(&b, "  - %s\n", goals.StabilizeInfrastructure)
	fmt.Fprintf(&b, "  - %s\n", goals.OptimizeResources)

	b.WriteString("\nTRANSITIONS\n")
	for _, tr := range r.policy.History() {
		fmt.Fprintf(&b, "  [%s] %s -> %s | %s\n", tr.At.Format("15:04:05"), tr.From, tr.To, tr.Reason)
	}

	b.WriteString("\nTRACE LOG\n")
	for _, line := range r.policy.Trace() {
		fmt.Fprintf(&b, "  %s\n", line)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create trace directory: %w", err)
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
