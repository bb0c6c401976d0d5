package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation: spawn and
// resolution counters, trigger-event and policy-transition counters, region
// gauges and tick latency. It satisfies both the engine's and the policy's
// metrics recorder interfaces so either can drive it directly.
type SimCollector struct {
	gatherer prometheus.Gatherer

	DisastersSpawned  *prometheus.CounterVec
	DisastersResolved *prometheus.CounterVec
	TriggerEvents     *prometheus.CounterVec
	PolicyTransitions *prometheus.CounterVec

	RegionLocations       prometheus.Gauge
	RegionActiveDisasters prometheus.Gauge
	LocationCondition     *prometheus.GaugeVec

	TickDuration prometheus.Histogram
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	spawned, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "disasters_spawned_total",
		Help: "Total disasters spawned, labeled by kind.",
	}, []string{"kind"}), "disasters_spawned_total")
	if err != nil {
		return nil, err
	}
	resolved, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "disasters_resolved_total",
		Help: "Total disasters resolved, labeled by kind.",
	}, []string{"kind"}), "disasters_resolved_total")
	if err != nil {
		return nil, err
	}
	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trigger_events_total",
		Help: "Total trigger events consumed by the response policy, labeled by type.",
	}, []string{"type"}), "trigger_events_total")
	if err != nil {
		return nil, err
	}
	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policy_transitions_total",
		Help: "Total response policy transitions, labeled by from and to states.",
	}, []string{"from", "to"}), "policy_transitions_total")
	if err != nil {
		return nil, err
	}

	locations, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "region_locations",
		Help: "Number of monitored locations in the region.",
	}), "region_locations")
	if err != nil {
		return nil, err
	}
	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "region_active_disasters",
		Help: "Current number of active disasters in the catalog.",
	}), "region_active_disasters")
	if err != nil {
		return nil, err
	}
	condition, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "location_condition",
		Help: "Current environmental reading per location and field; booleans report as 0 or 1.",
	}, []string{"location", "field"}), "location_condition")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_duration_seconds",
		Help:    "Wall time of one engine tick in seconds.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:              gatherer,
		DisastersSpawned:      spawned,
		DisastersResolved:     resolved,
		TriggerEvents:         events,
		PolicyTransitions:     transitions,
		RegionLocations:       locations,
		RegionActiveDisasters: active,
		LocationCondition:     condition,
		TickDuration:          tickDuration,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordDisasterSpawned counts one spawned disaster of the given kind.
func (c *SimCollector) RecordDisasterSpawned(kind string) {
	if c == nil || c.DisastersSpawned == nil {
		return
	}
	c.DisastersSpawned.WithLabelValues(kind).Inc()
}

// RecordDisasterResolved counts one resolved disaster of the given kind.
func (c *SimCollector) RecordDisasterResolved(kind string) {
	if c == nil || c.DisastersResolved == nil {
		return
	}
	c.DisastersResolved.WithLabelValues(kind).Inc()
}

// RecordTriggerEvent counts one trigger event of the given type.
func (c *SimCollector) RecordTriggerEvent(kind string) {
	if c == nil || c.TriggerEvents == nil {
		return
	}
	c.TriggerEvents.WithLabelValues(kind).Inc()
}

// RecordPolicyTransition counts one state transition.
func (c *SimCollector) RecordPolicyTransition(from, to string) {
	if c == nil || c.PolicyTransitions == nil {
		return
	}
	c.PolicyTransitions.WithLabelValues(from, to).Inc()
}

// SetRegionCounts drives the region gauges from the engine's mutators.
func (c *SimCollector) SetRegionCounts(locations, activeDisasters int) {
	if c == nil {
		return
	}
	if c.RegionLocations != nil {
		c.RegionLocations.Set(float64(locations))
	}
	if c.RegionActiveDisasters != nil {
		c.RegionActiveDisasters.Set(float64(activeDisasters))
	}
}

// SetLocationCondition records one environmental reading.
func (c *SimCollector) SetLocationCondition(locationID, field string, value float64) {
	if c == nil || c.LocationCondition == nil {
		return
	}
	c.LocationCondition.WithLabelValues(locationID, field).Set(value)
}

// ObserveAdvanceSeconds records the wall time of one engine tick.
func (c *SimCollector) ObserveAdvanceSeconds(seconds float64) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(seconds)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
