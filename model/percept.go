package model

import "time"

// Percept is a point-in-time sensor snapshot of one location: its current
// conditions plus copies of the catalog entries affecting it. Percepts are
// produced fresh on every sense call and never retained by the engine.
type Percept struct {
	Timestamp       time.Time
	Location        Location
	Condition       Condition
	ActiveDisasters []DisasterEvent
}
