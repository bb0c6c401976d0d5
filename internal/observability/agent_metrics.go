package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AgentCollector exposes agent-side Prometheus metrics: alerts raised by the
// sensor, records written to the archive, and responder cycle counts.
type AgentCollector struct {
	gatherer prometheus.Gatherer

	SensorAlerts         *prometheus.CounterVec
	DetectionsArchived   *prometheus.CounterVec
	ArchiveWriteDuration prometheus.Histogram
	ResponderCycles      prometheus.Counter
}

// NewAgentCollector registers agent metrics against the provided registerer.
func NewAgentCollector(reg prometheus.Registerer) (*AgentCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	alerts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensor_alerts_total",
		Help: "Alerts raised by the sensor agent, labeled by level.",
	}, []string{"level"}), "sensor_alerts_total")
	if err != nil {
		return nil, err
	}

	archived, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "detections_archived_total",
		Help: "Detection records written to the archive, labeled by backend.",
	}, []string{"backend"}), "detections_archived_total")
	if err != nil {
		return nil, err
	}

	writeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archive_write_duration_seconds",
		Help:    "Duration of single archive writes.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	writeDuration, err = registerHistogram(reg, writeDuration, "archive_write_duration_seconds")
	if err != nil {
		return nil, err
	}

	cycles := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "responder_cycles_total",
		Help: "Cumulative sense-derive-act cycles run by the responder agent.",
	})
	cycles, err = registerCounter(reg, cycles, "responder_cycles_total")
	if err != nil {
		return nil, err
	}

	return &AgentCollector{
		gatherer:             gatherer,
		SensorAlerts:         alerts,
		DetectionsArchived:   archived,
		ArchiveWriteDuration: writeDuration,
		ResponderCycles:      cycles,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *AgentCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// IncSensorAlert counts one raised alert at the given level.
func (c *AgentCollector) IncSensorAlert(level string) {
	if c == nil || c.SensorAlerts == nil {
		return
	}
	c.SensorAlerts.WithLabelValues(level).Inc()
}

// IncDetectionArchived counts one record written through the given backend.
func (c *AgentCollector) IncDetectionArchived(backend string) {
	if c == nil || c.DetectionsArchived == nil {
		return
	}
	c.DetectionsArchived.WithLabelValues(backend).Inc()
}

// ObserveArchiveWrite records the duration of one archive write.
func (c *AgentCollector) ObserveArchiveWrite(d time.Duration) {
	if c == nil || c.ArchiveWriteDuration == nil {
		return
	}
	c.ArchiveWriteDuration.Observe(d.Seconds())
}

// IncResponderCycle counts one responder cycle.
func (c *AgentCollector) IncResponderCycle() {
	if c == nil || c.ResponderCycles == nil {
		return
	}
	c.ResponderCycles.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
