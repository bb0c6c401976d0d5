package policy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/reliefgrid/disaster-simulator/internal/logging"
	"github.com/reliefgrid/disaster-simulator/model"
	"github.com/reliefgrid/disaster-simulator/trigger"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestPolicy(t *testing.T, opts ...Option) *ResponsePolicy {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewResponsePolicy("responder-1", logging.Noop(), opts...)
}

func detectionEvent(id string, kind model.DisasterKind, locID string, sev model.Severity, casualties int, damage float64, rescueTeams int) trigger.Event {
	return trigger.Event{
		Kind:       trigger.EventDisasterDetected,
		LocationID: locID,
		Detail:     string(kind),
		Disaster: &model.DisasterEvent{
			ID:                      id,
			Kind:                    kind,
			LocationID:              locID,
			Severity:                sev,
			Casualties:              casualties,
			InfrastructureDamagePct: damage,
			ResourcesNeeded: map[model.ResourceKind]int{
				model.ResourceMedicalKits: 40,
				model.ResourceRescueTeams: rescueTeams,
			},
		},
	}
}

func traceContains(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestHandleTickWithoutEventsKeepsMonitoring(t *testing.T) {
	p := newTestPolicy(t)

	p.HandleTick(context.Background(), nil)

	if got := p.State(); got != StateMonitoring {
		t.Fatalf("state = %q, want MONITORING", got)
	}
	if n := len(p.History()); n != 0 {
		t.Fatalf("recorded %d transitions, want 0", n)
	}
	if !traceContains(p.Trace(), "Action: Continue periodic monitoring") {
		t.Fatalf("trace missing monitoring action: %v", p.Trace())
	}
}

func TestHandleTickCascadesAndReturnsToMonitoring(t *testing.T) {
	p := newTestPolicy(t)

	ev := detectionEvent("D0001", model.DisasterFlood, "accra", model.SeverityCritical, 80, 55, 14)
	p.HandleTick(context.Background(), []trigger.Event{ev})

	if got := p.State(); got != StateMonitoring {
		t.Fatalf("state after tick = %q, want MONITORING", got)
	}

	hist := p.History()
	want := []TransitionRecord{
		{From: StateMonitoring, To: StateAssessing, Reason: ReasonEventDetected},
		{From: StateAssessing, To: StateDispatching, Reason: ReasonAssessmentDone},
		{From: StateDispatching, To: StateRecovery, Reason: ReasonDispatchDone},
		{From: StateRecovery, To: StateMonitoring, Reason: ReasonRecoveryCycle},
	}
	if len(hist) != len(want) {
		t.Fatalf("recorded %d transitions, want %d: %+v", len(hist), len(want), hist)
	}
	for i, rec := range hist {
		if rec.From != want[i].From || rec.To != want[i].To || rec.Reason != want[i].Reason {
			t.Fatalf("transition %d = %+v, want %+v", i, rec, want[i])
		}
		if !rec.At.Equal(fixedClock()) {
			t.Fatalf("transition %d timestamp = %v, want fixed clock", i, rec.At)
		}
	}

	if n := p.DispatchCount(); n != 1 {
		t.Fatalf("dispatch count = %d, want 1", n)
	}
	tr := p.Trace()
	if !traceContains(tr, "Assessment: Prioritize FLOOD at accra (Severity CRITICAL)") {
		t.Fatalf("trace missing assessment line: %v", tr)
	}
	if !traceContains(tr, "Dispatch: Send 14 rescue teams and 40 medical kits to accra") {
		t.Fatalf("trace missing dispatch line: %v", tr)
	}
}

func TestRecoveryReasonDependsOnPrioritySeverity(t *testing.T) {
	cases := []struct {
		sev  model.Severity
		want string
	}{
		{model.SeverityLow, ReasonImpactContained},
		{model.SeverityModerate, ReasonImpactContained},
		{model.SeverityHigh, ReasonRecoveryCycle},
		{model.SeverityCatastrophic, ReasonRecoveryCycle},
	}
	for _, tc := range cases {
		p := newTestPolicy(t)
		ev := detectionEvent("D0001", model.DisasterStorm, "tema", tc.sev, 5, 10, 4)
		p.HandleTick(context.Background(), []trigger.Event{ev})

		hist := p.History()
		last := hist[len(hist)-1]
		if last.Reason != tc.want {
			t.Fatalf("severity %s: final reason = %q, want %q", tc.sev, last.Reason, tc.want)
		}
	}
}

func TestConditionOnlyEventsStillCycle(t *testing.T) {
	p := newTestPolicy(t)

	events := []trigger.Event{{
		Kind:       trigger.EventTempSpike,
		LocationID: "tamale",
		Detail:     "Temperature at 43.0°C",
	}}
	p.HandleTick(context.Background(), events)

	if got := p.State(); got != StateMonitoring {
		t.Fatalf("state = %q, want MONITORING", got)
	}
	if n := p.DispatchCount(); n != 0 {
		t.Fatalf("dispatch count = %d, want 0 without a disaster target", n)
	}
	hist := p.History()
	if len(hist) != 4 || hist[3].Reason != ReasonRecoveryCycle {
		t.Fatalf("history = %+v, want full cycle ending with recovery reason", hist)
	}
	if !traceContains(p.Trace(), "Dispatch: No disaster target; holding resources in reserve") {
		t.Fatalf("trace missing reserve line: %v", p.Trace())
	}
}

func TestSteppedModeAdvancesOneTransitionPerTick(t *testing.T) {
	p := newTestPolicy(t, WithSteppedTransitions())
	ev := detectionEvent("D0001", model.DisasterFire, "kumasi", model.SeverityHigh, 30, 40, 8)
	events := []trigger.Event{ev}
	ctx := context.Background()

	wantStates := []State{StateAssessing, StateDispatching, StateRecovery, StateMonitoring}
	for i, want := range wantStates {
		p.HandleTick(ctx, events)
		if got := p.State(); got != want {
			t.Fatalf("after tick %d state = %q, want %q", i+1, got, want)
		}
	}
}

func TestEmptyTickForcesReturnToMonitoring(t *testing.T) {
	p := newTestPolicy(t, WithSteppedTransitions())
	ev := detectionEvent("D0001", model.DisasterFire, "kumasi", model.SeverityHigh, 30, 40, 8)
	ctx := context.Background()

	// One stepped tick leaves the machine in ASSESSING.
	p.HandleTick(ctx, []trigger.Event{ev})
	if got := p.State(); got != StateAssessing {
		t.Fatalf("state = %q, want ASSESSING", got)
	}

	p.HandleTick(ctx, nil)
	if got := p.State(); got != StateMonitoring {
		t.Fatalf("state after empty tick = %q, want MONITORING", got)
	}
	hist := p.History()
	last := hist[len(hist)-1]
	if last.From != StateAssessing || last.To != StateMonitoring || last.Reason != ReasonNoActiveTriggers {
		t.Fatalf("forced return = %+v, want ASSESSING -> MONITORING (%s)", last, ReasonNoActiveTriggers)
	}
}

func TestPriorityEventRanksSeverityThenCasualtiesThenDamage(t *testing.T) {
	low := detectionEvent("D0001", model.DisasterStorm, "tema", model.SeverityLow, 5, 10, 4)
	high := detectionEvent("D0002", model.DisasterFlood, "accra", model.SeverityHigh, 100, 60, 10)
	critical := detectionEvent("D0003", model.DisasterEarthquake, "kumasi", model.SeverityCritical, 10, 30, 12)

	got := PriorityEvent([]trigger.Event{low, high, critical})
	if got == nil || got.Disaster.ID != "D0003" {
		t.Fatalf("priority = %+v, want D0003 (severity outranks casualties)", got)
	}

	// Same severity: casualties decide.
	fewer := detectionEvent("D0004", model.DisasterFire, "tema", model.SeverityHigh, 20, 90, 6)
	got = PriorityEvent([]trigger.Event{high, fewer})
	if got == nil || got.Disaster.ID != "D0002" {
		t.Fatalf("priority = %+v, want D0002 (more casualties)", got)
	}

	// Same severity and casualties: damage decides.
	harsher := detectionEvent("D0005", model.DisasterFire, "tema", model.SeverityHigh, 100, 95, 6)
	got = PriorityEvent([]trigger.Event{high, harsher})
	if got == nil || got.Disaster.ID != "D0005" {
		t.Fatalf("priority = %+v, want D0005 (more damage)", got)
	}

	// Full tie keeps the earliest.
	twin := detectionEvent("D0006", model.DisasterFlood, "accra", model.SeverityHigh, 100, 60, 10)
	got = PriorityEvent([]trigger.Event{high, twin})
	if got == nil || got.Disaster.ID != "D0002" {
		t.Fatalf("priority = %+v, want D0002 (first occurrence wins ties)", got)
	}

	// Condition-only events carry no disaster.
	spike := trigger.Event{Kind: trigger.EventTempSpike, LocationID: "accra"}
	if got := PriorityEvent([]trigger.Event{spike}); got != nil {
		t.Fatalf("priority = %+v, want nil for condition-only batch", got)
	}
}

type recorderStub struct {
	events      []string
	transitions []string
}

func (r *recorderStub) RecordTriggerEvent(kind string) {
	r.events = append(r.events, kind)
}

func (r *recorderStub) RecordPolicyTransition(from, to string) {
	r.transitions = append(r.transitions, from+">"+to)
}

func TestMetricsRecorderSeesEventsAndTransitions(t *testing.T) {
	rec := &recorderStub{}
	p := newTestPolicy(t, WithMetricsRecorder(rec))

	ev := detectionEvent("D0001", model.DisasterFlood, "accra", model.SeverityModerate, 12, 20, 5)
	spike := trigger.Event{Kind: trigger.EventTempSpike, LocationID: "accra", Detail: "Temperature at 42.5°C"}
	p.HandleTick(context.Background(), []trigger.Event{spike, ev})

	if len(rec.events) != 2 || rec.events[0] != "TEMP_SPIKE" || rec.events[1] != "DISASTER_DETECTED" {
		t.Fatalf("recorded events = %v", rec.events)
	}
	if len(rec.transitions) != 4 {
		t.Fatalf("recorded %d transitions, want 4: %v", len(rec.transitions), rec.transitions)
	}
	if rec.transitions[0] != "MONITORING>ASSESSING" || rec.transitions[3] != "RECOVERY>MONITORING" {
		t.Fatalf("transition labels = %v", rec.transitions)
	}
}
