// Package trigger derives discrete trigger events from raw percepts. The
// deriver is pure: the same percept batch and seen set always produce the
// same event list, in the same order.
package trigger

import (
	"github.com/reliefgrid/disaster-simulator/model"
)

// EventKind identifies a derivation rule.
type EventKind string

const (
	EventTempSpike          EventKind = "TEMP_SPIKE"
	EventWaterRise          EventKind = "WATER_RISE"
	EventDisasterDetected   EventKind = "DISASTER_DETECTED"
	EventSeverityEscalation EventKind = "SEVERITY_ESCALATION"
	EventResourceShortage   EventKind = "RESOURCE_SHORTAGE"
)

// Event is one derived trigger event. Disaster is set for disaster-linked
// kinds (detected, escalation, shortage) and nil for condition-threshold
// kinds; when set it is a private clone, safe to hold.
type Event struct {
	Kind       EventKind
	LocationID string
	Detail     string
	Disaster   *model.DisasterEvent
}

// Seen tracks which disaster IDs have already produced a DISASTER_DETECTED
// event. Callers thread it through Derive; a nil Seen behaves as empty.
type Seen map[string]struct{}

// NewSeen returns an empty seen set.
func NewSeen() Seen {
	return make(Seen)
}

// Has reports whether id was already detected.
func (s Seen) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy. Cloning a nil set yields an empty one.
func (s Seen) Clone() Seen {
	out := make(Seen, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
