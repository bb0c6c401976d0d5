package model

import "time"

// DisasterKind identifies the category of a disaster event.
type DisasterKind string

const (
	DisasterFlood      DisasterKind = "FLOOD"
	DisasterEarthquake DisasterKind = "EARTHQUAKE"
	DisasterFire       DisasterKind = "FIRE"
	DisasterDrought    DisasterKind = "DROUGHT"
	DisasterStorm      DisasterKind = "STORM"
)

// DisasterKinds lists every kind in its canonical order. The environment
// engine draws uniformly from this slice, so the order is part of the
// deterministic-replay contract.
func DisasterKinds() []DisasterKind {
	return []DisasterKind{
		DisasterFlood,
		DisasterEarthquake,
		DisasterFire,
		DisasterDrought,
		DisasterStorm,
	}
}

// Severity ranks a disaster from LOW (1) to CATASTROPHIC (5).
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityModerate
	SeverityHigh
	SeverityCritical
	SeverityCatastrophic
)

// SeverityCount is the number of defined severity levels.
const SeverityCount = 5

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityModerate:
		return "MODERATE"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	case SeverityCatastrophic:
		return "CATASTROPHIC"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the defined severity levels.
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCatastrophic
}

// ParseSeverity maps a severity name back to its ordinal.
func ParseSeverity(name string) (Severity, bool) {
	for s := SeverityLow; s <= SeverityCatastrophic; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// ResourceKind names a category of relief resource a disaster requires.
type ResourceKind string

const (
	ResourceMedicalKits  ResourceKind = "medical_kits"
	ResourceFoodPackages ResourceKind = "food_packages"
	ResourceWaterBottles ResourceKind = "water_bottles"
	ResourceRescueTeams  ResourceKind = "rescue_teams"
)

// DisasterEvent is an active disaster in the catalog. Events are immutable
// once created; the engine removes them on resolution instead of mutating.
type DisasterEvent struct {
	ID                      string // "D0001" style, strictly increasing
	Kind                    DisasterKind
	LocationID              string
	Severity                Severity
	OccurredAt              time.Time
	AffectedAreaKm2         float64
	Casualties              int
	InfrastructureDamagePct float64
	ResourcesNeeded         map[ResourceKind]int
}

// Clone returns a deep copy so catalog entries can be handed out in percepts
// without aliasing the engine's resource maps.
func (e DisasterEvent) Clone() DisasterEvent {
	out := e
	if e.ResourcesNeeded != nil {
		out.ResourcesNeeded = make(map[ResourceKind]int, len(e.ResourcesNeeded))
		for k, v := range e.ResourcesNeeded {
			out.ResourcesNeeded[k] = v
		}
	}
	return out
}

// RescueTeams is a convenience accessor for the most frequently consulted
// resource requirement.
func (e DisasterEvent) RescueTeams() int {
	return e.ResourcesNeeded[ResourceRescueTeams]
}
