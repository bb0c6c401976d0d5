// Package policy drives the response state machine. Each call to HandleTick
// consumes one batch of trigger events and moves the machine through
// MONITORING, ASSESSING, DISPATCHING and RECOVERY, recording every transition
// with a reason and keeping a human-readable trace of the run.
package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reliefgrid/disaster-simulator/internal/logging"
	"github.com/reliefgrid/disaster-simulator/model"
	"github.com/reliefgrid/disaster-simulator/trigger"
)

// State names a response posture.
type State string

const (
	StateMonitoring  State = "MONITORING"
	StateAssessing   State = "ASSESSING"
	StateDispatching State = "DISPATCHING"
	StateRecovery    State = "RECOVERY"
)

// Transition reasons. The exact strings are part of the trace contract.
const (
	ReasonEventDetected    = "event detected"
	ReasonAssessmentDone   = "assessment complete"
	ReasonDispatchDone     = "dispatch complete"
	ReasonImpactContained  = "impact under control"
	ReasonRecoveryCycle    = "return to monitor after recovery cycle"
	ReasonNoActiveTriggers = "no active trigger events"
)

// TransitionRecord captures one state change.
type TransitionRecord struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// Goals names the response goals the policy reports against in its trace.
type Goals struct {
	RescuePeople            string
	StabilizeInfrastructure string
	OptimizeResources       string
}

// DefaultGoals returns the standard goal statements.
func DefaultGoals() Goals {
	return Goals{
		RescuePeople:            "Minimize casualties through rapid rescue dispatch",
		StabilizeInfrastructure: "Reduce infrastructure damage escalation",
		OptimizeResources:       "Allocate rescue resources efficiently",
	}
}

// MetricsRecorder receives per-event and per-transition counter updates.
type MetricsRecorder interface {
	RecordTriggerEvent(kind string)
	RecordPolicyTransition(from, to string)
}

// Option customises ResponsePolicy construction.
type Option func(*ResponsePolicy)

// WithClock overrides the wall clock used for trace and history timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *ResponsePolicy) {
		if now != nil {
			p.now = now
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(p *ResponsePolicy) {
		p.metrics = m
	}
}

// WithGoals replaces the default goal statements.
func WithGoals(g Goals) Option {
	return func(p *ResponsePolicy) {
		p.goals = g
	}
}

// WithSteppedTransitions limits HandleTick to at most one transition per
// call instead of cascading through the full cycle. Meant for tests that
// inspect intermediate states; production runs cascade.
func WithSteppedTransitions() Option {
	return func(p *ResponsePolicy) {
		p.stepped = true
	}
}

// ResponsePolicy is the goal-driven response state machine. Safe for
// concurrent use, though ticks are expected from a single driver.
type ResponsePolicy struct {
	mu sync.Mutex

	id      string
	state   State
	goals   Goals
	stepped bool

	now     func() time.Time
	log     logging.Logger
	metrics MetricsRecorder

	history    []TransitionRecord
	trace      []string
	dispatched int
}

// NewResponsePolicy returns a policy starting in MONITORING.
func NewResponsePolicy(id string, log logging.Logger, opts ...Option) *ResponsePolicy {
	if log == nil {
		log = logging.Noop()
	}
	p := &ResponsePolicy{
		id:    id,
		state: StateMonitoring,
		goals: DefaultGoals(),
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// HandleTick consumes one batch of trigger events. With no events the machine
// is forced back to MONITORING (a no-op when already there); with events it
// cascades through the full cycle and ends the tick in MONITORING, unless
// stepped transitions are enabled.
func (p *ResponsePolicy) HandleTick(ctx context.Context, events []trigger.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(events) == 0 {
		p.traceLocked("No trigger events this cycle")
		if p.state != StateMonitoring {
			p.transitionLocked(ctx, StateMonitoring, ReasonNoActiveTriggers)
		}
		p.traceLocked("Action: Continue periodic monitoring")
		return
	}

	for _, ev := range events {
		p.traceLocked(fmt.Sprintf("EVENT %s @ %s | %s", ev.Kind, ev.LocationID, ev.Detail))
		if p.metrics != nil {
			p.metrics.RecordTriggerEvent(string(ev.Kind))
		}
	}

	priority := PriorityEvent(events)

	for {
		switch p.state {
		case StateMonitoring:
			p.transitionLocked(ctx, StateAssessing, ReasonEventDetected)
		case StateAssessing:
			p.assessLocked(priority)
			p.transitionLocked(ctx, StateDispatching, ReasonAssessmentDone)
		case StateDispatching:
			p.dispatchLocked(priority)
			p.transitionLocked(ctx, StateRecovery, ReasonDispatchDone)
		case StateRecovery:
			p.recoverLocked(ctx, priority)
		}
		if p.stepped || p.state == StateMonitoring {
			return
		}
	}
}

func (p *ResponsePolicy) assessLocked(priority *trigger.Event) {
	if priority == nil {
		p.traceLocked("Assessment: No disaster-linked events; maintaining situational awareness")
		return
	}
	d := priority.Disaster
	p.traceLocked(fmt.Sprintf("Assessment: Prioritize %s at %s (Severity %s)", d.Kind, d.LocationID, d.Severity))
}

func (p *ResponsePolicy) dispatchLocked(priority *trigger.Event) {
	if priority == nil {
		p.traceLocked("Dispatch: No disaster target; holding resources in reserve")
		return
	}
	d := priority.Disaster
	p.traceLocked(fmt.Sprintf("Dispatch: Send %d rescue teams and %d medical kits to %s",
		d.ResourcesNeeded[model.ResourceRescueTeams],
		d.ResourcesNeeded[model.ResourceMedicalKits],
		d.LocationID))
	p.traceLocked("Goal Alignment: " + p.goals.RescuePeople)
	p.dispatched++
}

func (p *ResponsePolicy) recoverLocked(ctx context.Context, priority *trigger.Event) {
	if priority != nil && priority.Disaster.Severity <= model.SeverityModerate {
		p.traceLocked("Recovery: Situation is stabilizing; downgrade response level")
		p.transitionLocked(ctx, StateMonitoring, ReasonImpactContained)
		return
	}
	p.traceLocked("Recovery: Continue containment and infrastructure stabilization")
	p.transitionLocked(ctx, StateMonitoring, ReasonRecoveryCycle)
}

func (p *ResponsePolicy) transitionLocked(ctx context.Context, to State, reason string) {
	from := p.state
	p.state = to
	p.history = append(p.history, TransitionRecord{From: from, To: to, Reason: reason, At: p.now()})
	p.traceLocked(fmt.Sprintf("STATE %s -> %s | Reason: %s", from, to, reason))
	p.log.Info(ctx, "policy transition",
		logging.String("agent_id", p.id),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.String("reason", reason),
	)
	if p.metrics != nil {
		p.metrics.RecordPolicyTransition(string(from), string(to))
	}
}

func (p *ResponsePolicy) traceLocked(msg string) {
	p.trace = append(p.trace, fmt.Sprintf("[%s] %s | %s", p.now().Format("15:04:05"), p.id, msg))
}

// ID returns the policy's agent identifier.
func (p *ResponsePolicy) ID() string {
	return p.id
}

// State returns the current state.
func (p *ResponsePolicy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Goals returns the goal statements the policy reports against.
func (p *ResponsePolicy) Goals() Goals {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.goals
}

// History returns a copy of every transition so far, in order.
func (p *ResponsePolicy) History() []TransitionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TransitionRecord, len(p.history))
	copy(out, p.history)
	return out
}

// Trace returns a copy of the trace log lines, in order.
func (p *ResponsePolicy) Trace() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.trace))
	copy(out, p.trace)
	return out
}

// DispatchCount returns how many dispatch actions have run.
func (p *ResponsePolicy) DispatchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatched
}
