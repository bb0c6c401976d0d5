// Package agent contains the autonomous agents that observe and act on the
// simulated region: sensor agents that watch a single location, alert on and
// archive the disasters they detect, and a responder agent that turns region
// percepts into trigger events and feeds them to the response policy.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reliefgrid/disaster-simulator/internal/archive"
	"github.com/reliefgrid/disaster-simulator/internal/logging"
	"github.com/reliefgrid/disaster-simulator/model"
	"github.com/reliefgrid/disaster-simulator/trigger"
)

// LocationReader senses the current percept of one location.
type LocationReader interface {
	Sense(locationID string) (model.Percept, error)
}

// MetricsRecorder receives agent activity counters. A nil recorder disables
// metrics.
type MetricsRecorder interface {
	IncSensorAlert(level string)
	IncDetectionArchived(backend string)
	ObserveArchiveWrite(d time.Duration)
	IncResponderCycle()
}

// Alert levels attached to detected disasters.
const (
	AlertCritical = "CRITICAL"
	AlertWarning  = "WARNING"
)

// AnomalyThresholds are the reading levels beyond which a sensor flags its
// location as anomalous. Smoke is always flagged.
type AnomalyThresholds struct {
	TemperatureC    float64
	WindSpeedKmh    float64
	AirQuality      float64
	SeismicActivity float64
	WaterLevelM     float64
}

// DefaultAnomalyThresholds returns the stock alarm levels.
func DefaultAnomalyThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		TemperatureC:    40,
		WindSpeedKmh:    60,
		AirQuality:      200,
		SeismicActivity: 3.0,
		WaterLevelM:     0.5,
	}
}

// SensorOption customises a SensorAgent.
type SensorOption func(*SensorAgent)

// WithSensorArchive attaches a detection archive. Archive failures are
// logged, never fatal.
func WithSensorArchive(b archive.Backend) SensorOption {
	return func(s *SensorAgent) { s.arch = b }
}

// WithSensorMetrics attaches a metrics recorder.
func WithSensorMetrics(m MetricsRecorder) SensorOption {
	return func(s *SensorAgent) { s.metrics = m }
}

// WithAnomalyThresholds overrides the default alarm levels.
func WithAnomalyThresholds(t AnomalyThresholds) SensorOption {
	return func(s *SensorAgent) { s.thresholds = t }
}

// WithSensorRunID pins the run identifier instead of drawing a fresh one.
func WithSensorRunID(runID string) SensorOption {
	return func(s *SensorAgent) { s.runID = runID }
}

// SensorAgent watches one location. Each tick it senses the location's
// percept, logs anomalous readings, and raises an alert and archives a
// detection record for every disaster it has not seen before.
type SensorAgent struct {
	mu         sync.Mutex
	id         string
	runID      string
	locationID string
	reader     LocationReader
	arch       archive.Backend
	log        logging.Logger
	metrics    MetricsRecorder
	thresholds AnomalyThresholds

	seen       trigger.Seen
	alerts     []string
	anomalies  int
	detections int
	cycles     int
}

// NewSensor builds a sensor agent for locationID. A fresh run identifier is
// drawn so archived detections can be grouped per run.
func NewSensor(id, locationID string, reader LocationReader, log logging.Logger, opts ...SensorOption) *SensorAgent {
	s := &SensorAgent{
		id:         id,
		runID:      uuid.NewString(),
		locationID: locationID,
		reader:     reader,
		log:        log,
		thresholds: DefaultAnomalyThresholds(),
		seen:       trigger.NewSeen(),
	}
	if s.log == nil {
		s.log = logging.Noop()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the agent identifier.
func (s *SensorAgent) ID() string { return s.id }

// RunID returns the identifier grouping this agent's archived detections.
func (s *SensorAgent) RunID() string { return s.runID }

// Start announces the agent. Part of the runner's one-shot phase.
func (s *SensorAgent) Start(ctx context.Context) {
	s.log.Info(ctx, "sensor online",
		logging.String("agent_id", s.id),
		logging.String("location_id", s.locationID),
		logging.String("run_id", s.runID),
	)
}

// HandleTick performs one monitoring sweep of the agent's location.
func (s *SensorAgent) HandleTick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycles++
	p, err := s.reader.Sense(s.locationID)
	if err != nil {
		s.log.Error(ctx, "sense failed",
			logging.String("agent_id", s.id),
			logging.String("location_id", s.locationID),
			logging.String("error", err.Error()),
		)
		return
	}

	s.checkReadingsLocked(ctx, p)
	for _, d := range p.ActiveDisasters {
		if s.seen.Has(d.ID) {
			continue
		}
		s.seen[d.ID] = struct{}{}
		s.alertLocked(ctx, d)
		s.archiveLocked(ctx, p, d)
	}
}

func (s *SensorAgent) checkReadingsLocked(ctx context.Context, p model.Percept) {
	flag := func(reading string, value float64) {
		s.anomalies++
		s.log.Warn(ctx, "anomalous reading",
			logging.String("agent_id", s.id),
			logging.String("location_id", p.Location.ID),
			logging.String("reading", reading),
			logging.Float64("value", value),
		)
	}

	c := p.Condition
	if c.Temperature > s.thresholds.TemperatureC {
		flag("temperature_celsius", c.Temperature)
	}
	if c.WindSpeedKmh > s.thresholds.WindSpeedKmh {
		flag("wind_speed_kmh", c.WindSpeedKmh)
	}
	if c.AirQuality > s.thresholds.AirQuality {
		flag("air_quality_index", c.AirQuality)
	}
	if c.SeismicActivity > s.thresholds.SeismicActivity {
		flag("seismic_activity", c.SeismicActivity)
	}
	if c.WaterLevelM > s.thresholds.WaterLevelM {
		flag("water_level_metres", c.WaterLevelM)
	}
	if c.SmokeDetected {
		flag("smoke_detected", 1)
	}
}

// AlertLevel maps a severity to the alert level a sensor raises for it.
func AlertLevel(sev model.Severity) string {
	if sev >= model.SeverityCritical {
		return AlertCritical
	}
	return AlertWarning
}

func (s *SensorAgent) alertLocked(ctx context.Context, d model.DisasterEvent) {
	level := AlertLevel(d.Severity)
	line := fmt.Sprintf("%s | %s at %s | Severity: %s | People Affected: %d | Resources: %d teams",
		level, d.Kind, d.LocationID, d.Severity, d.Casualties, d.RescueTeams())
	s.alerts = append(s.alerts, line)
	s.log.Warn(ctx, "disaster alert",
		logging.String("agent_id", s.id),
		logging.String("event_id", d.ID),
		logging.String("alert", line),
	)
	if s.metrics != nil {
		s.metrics.IncSensorAlert(level)
	}
}

func (s *SensorAgent) archiveLocked(ctx context.Context, p model.Percept, d model.DisasterEvent) {
	if s.arch == nil {
		return
	}
	rec := model.NewDetectionRecord(s.runID, s.id, d, p.Timestamp)
	started := time.Now()
	err := s.arch.RecordDetection(ctx, rec)
	if s.metrics != nil {
		s.metrics.ObserveArchiveWrite(time.Since(started))
	}
	if err != nil {
		s.log.Error(ctx, "failed to archive detection",
			logging.String("agent_id", s.id),
			logging.String("event_id", d.ID),
			logging.String("error", err.Error()),
		)
		return
	}
	s.detections++
	if s.metrics != nil {
		s.metrics.IncDetectionArchived(s.arch.Name())
	}
}

// Cycles returns how many monitoring sweeps the agent has run.
func (s *SensorAgent) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// Anomalies returns how many anomalous readings were flagged.
func (s *SensorAgent) Anomalies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anomalies
}

// Detections returns how many disasters were successfully archived.
func (s *SensorAgent) Detections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detections
}

// Alerts returns a copy of every alert line raised so far.
func (s *SensorAgent) Alerts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Summary renders a digest of the agent's activity.
func (s *SensorAgent) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("SENSOR AGENT SUMMARY\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Agent: %s\n", s.id)
	fmt.Fprintf(&b, "Location: %s\n", s.locationID)
	fmt.Fprintf(&b, "Cycles Run: %d\n", s.cycles)
	fmt.Fprintf(&b, "Anomalous Readings: %d\n", s.anomalies)
	fmt.Fprintf(&b, "Disasters Seen: %d\n", len(s.seen))
	fmt.Fprintf(&b, "Alerts Raised: %d\n", len(s.alerts))
	if len(s.alerts) > 0 {
		b.WriteString("Recent Alerts:\n")
		recent := s.alerts
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		for _, a := range recent {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
	}
	return b.String()
}
