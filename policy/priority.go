package policy

import (
	"github.com/reliefgrid/disaster-simulator/model"
	"github.com/reliefgrid/disaster-simulator/trigger"
)

// PriorityEvent selects the disaster-linked event to act on: highest
// severity first, then most casualties, then most infrastructure damage.
// A full tie keeps the earliest event in derivation order. Returns nil when
// no event in the batch carries a disaster.
func PriorityEvent(events []trigger.Event) *trigger.Event {
	var best *trigger.Event
	for i := range events {
		ev := &events[i]
		if ev.Disaster == nil {
			continue
		}
		if best == nil || outranks(ev.Disaster, best.Disaster) {
			best = ev
		}
	}
	return best
}

func outranks(a, b *model.DisasterEvent) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.Casualties != b.Casualties {
		return a.Casualties > b.Casualties
	}
	return a.InfrastructureDamagePct > b.InfrastructureDamagePct
}
