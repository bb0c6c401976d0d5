package trigger

import (
	"errors"
	"fmt"

	"github.com/reliefgrid/disaster-simulator/model"
)

// ErrInvalidConfig indicates deriver construction with out-of-range
// thresholds.
var ErrInvalidConfig = errors.New("invalid deriver config")

// Config carries the derivation thresholds.
type Config struct {
	// TempSpikeC emits TEMP_SPIKE when a location's temperature reaches it.
	TempSpikeC float64
	// WaterRiseM emits WATER_RISE when a location's water level reaches it.
	WaterRiseM float64
	// EscalationSeverity emits SEVERITY_ESCALATION for disasters at or above
	// it, every batch they remain active.
	EscalationSeverity model.Severity
	// RescueTeamShortage emits RESOURCE_SHORTAGE for disasters needing at
	// least this many rescue teams, every batch they remain active.
	RescueTeamShortage int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TempSpikeC:         42,
		WaterRiseM:         1.5,
		EscalationSeverity: model.SeverityCritical,
		RescueTeamShortage: 12,
	}
}

// Validate rejects thresholds no percept could ever satisfy sensibly.
func (c Config) Validate() error {
	if c.WaterRiseM < 0 {
		return fmt.Errorf("%w: water-rise threshold %v is negative", ErrInvalidConfig, c.WaterRiseM)
	}
	if !c.EscalationSeverity.Valid() {
		return fmt.Errorf("%w: escalation severity %d outside 1..%d", ErrInvalidConfig, c.EscalationSeverity, model.SeverityCount)
	}
	if c.RescueTeamShortage < 0 {
		return fmt.Errorf("%w: rescue-team shortage threshold %d is negative", ErrInvalidConfig, c.RescueTeamShortage)
	}
	return nil
}

// Deriver maps percept batches to trigger events.
type Deriver struct {
	cfg Config
}

// NewDeriver validates cfg and returns a deriver.
func NewDeriver(cfg Config) (*Deriver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Deriver{cfg: cfg}, nil
}

// Derive walks the percept batch in the order given and applies every rule to
// each location before moving to the next: TEMP_SPIKE, WATER_RISE, then
// DISASTER_DETECTED for each not-yet-seen disaster in catalog order, then
// SEVERITY_ESCALATION and RESOURCE_SHORTAGE for each qualifying disaster.
// Detection is deduplicated through the seen set; escalation and shortage
// re-emit every batch while the disaster stays active. Derive returns the
// events plus the updated seen set and never mutates the one passed in.
func (d *Deriver) Derive(percepts []model.Percept, seen Seen) ([]Event, Seen) {
	next := seen.Clone()
	var events []Event

	for _, p := range percepts {
		if p.Condition.Temperature >= d.cfg.TempSpikeC {
			events = append(events, Event{
				Kind:       EventTempSpike,
				LocationID: p.Location.ID,
				Detail:     fmt.Sprintf("Temperature at %.1f°C", p.Condition.Temperature),
			})
		}
		if p.Condition.WaterLevelM >= d.cfg.WaterRiseM {
			events = append(events, Event{
				Kind:       EventWaterRise,
				LocationID: p.Location.ID,
				Detail:     fmt.Sprintf("Water level at %.2fm", p.Condition.WaterLevelM),
			})
		}
		for _, dis := range p.ActiveDisasters {
			if next.Has(dis.ID) {
				continue
			}
			next[dis.ID] = struct{}{}
			ev := dis.Clone()
			events = append(events, Event{
				Kind:       EventDisasterDetected,
				LocationID: p.Location.ID,
				Detail:     fmt.Sprintf("%s (%s)", ev.Kind, ev.Severity),
				Disaster:   &ev,
			})
		}
		for _, dis := range p.ActiveDisasters {
			if dis.Severity >= d.cfg.EscalationSeverity {
				ev := dis.Clone()
				events = append(events, Event{
					Kind:       EventSeverityEscalation,
					LocationID: p.Location.ID,
					Detail:     fmt.Sprintf("Severity is %s", ev.Severity),
					Disaster:   &ev,
				})
			}
		}
		for _, dis := range p.ActiveDisasters {
			if dis.RescueTeams() >= d.cfg.RescueTeamShortage {
				ev := dis.Clone()
				events = append(events, Event{
					Kind:       EventResourceShortage,
					LocationID: p.Location.ID,
					Detail:     fmt.Sprintf("Requires %d rescue teams", dis.RescueTeams()),
					Disaster:   &ev,
				})
			}
		}
	}
	return events, next
}
