package core

import (
	"fmt"
	"time"

	"github.com/reliefgrid/disaster-simulator/internal/logging"
	"github.com/reliefgrid/disaster-simulator/model"
)

// Drift and generation bounds. Deliberate drill knobs, not physical
// constants; the draw order in Advance is what replay depends on, not these
// values.
const (
	driftTempC       = 2.0
	driftHumidityPct = 5.0
	driftWindKmh     = 5.0
	driftAirQuality  = 10.0

	floodWaterMinM    = 1.0
	floodWaterMaxM    = 5.0
	floodHumidityRise = 20.0

	fireTempRiseMinC  = 10.0
	fireTempRiseMaxC  = 30.0
	fireAirQualityMin = 100.0
	fireAirQualityMax = 300.0

	quakeSeismicMin = 3.0
	quakeSeismicMax = 8.0

	droughtTempRiseMinC = 5.0
	droughtTempRiseMaxC = 15.0
	droughtHumidityDrop = 30.0

	stormWindMinKmh   = 50.0
	stormWindMaxKmh   = 150.0
	stormHumidityRise = 15.0

	areaMinKm2 = 0.5
	areaMaxKm2 = 50.0

	casualtiesPerSeverity = 50
	damageMinPerSeverity  = 5.0
	damageMaxPerSeverity  = 20.0

	medicalKitsMin  = 10
	medicalKitsMax  = 100
	foodPackagesMin = 50
	foodPackagesMax = 500
	waterBottlesMin = 100
	waterBottlesMax = 1000
	rescueTeamsMin  = 2
	rescueTeamsMax  = 20
)

// Advance runs one simulation tick: drift every location's conditions, roll
// for one new disaster, then roll resolution for every catalog entry
// including any disaster spawned this same tick. Values are clamped back into
// range after every update. The draw sequence is fixed, so a given Rand seed
// always replays the identical tick history.
func (e *Engine) Advance() {
	started := time.Now()

	e.mu.Lock()
	for _, loc := range e.locations {
		e.driftLocked(loc.ID)
	}
	if e.rng.Float64() < e.cfg.SpawnProbability {
		e.spawnLocked()
	}
	e.resolveLocked()
	e.updateMetricsLocked()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ObserveAdvanceSeconds(time.Since(started).Seconds())
	}
}

// driftLocked nudges one location's ambient readings. Caller must hold e.mu.
func (e *Engine) driftLocked(locationID string) {
	cond := e.conditions[locationID]
	cond.Temperature += e.uniform(-driftTempC, driftTempC)
	cond.Humidity += e.uniform(-driftHumidityPct, driftHumidityPct)
	cond.WindSpeedKmh += e.uniform(-driftWindKmh, driftWindKmh)
	cond.AirQuality += e.uniform(-driftAirQuality, driftAirQuality)
	cond.Clamp()
}

// spawnLocked creates one disaster: kind, location and severity are drawn
// uniformly, the location's conditions take the kind's side effects, and the
// event is appended to the catalog. Caller must hold e.mu.
func (e *Engine) spawnLocked() {
	kind := e.kinds[e.rng.Intn(len(e.kinds))]
	loc := e.locations[e.rng.Intn(len(e.locations))]
	severity := model.Severity(1 + e.rng.Intn(model.SeverityCount))

	cond := e.conditions[loc.ID]
	switch kind {
	case model.DisasterFlood:
		cond.WaterLevelM = e.uniform(floodWaterMinM, floodWaterMaxM)
		cond.Humidity += floodHumidityRise
	case model.DisasterEarthquake:
		cond.SeismicActivity = e.uniform(quakeSeismicMin, quakeSeismicMax)
	case model.DisasterFire:
		cond.SmokeDetected = true
		cond.Temperature += e.uniform(fireTempRiseMinC, fireTempRiseMaxC)
		cond.AirQuality += e.uniform(fireAirQualityMin, fireAirQualityMax)
	case model.DisasterDrought:
		cond.Temperature += e.uniform(droughtTempRiseMinC, droughtTempRiseMaxC)
		cond.Humidity -= droughtHumidityDrop
	case model.DisasterStorm:
		cond.WindSpeedKmh = e.uniform(stormWindMinKmh, stormWindMaxKmh)
		cond.Humidity += stormHumidityRise
	}
	cond.Clamp()

	sev := int(severity)
	area := e.uniform(areaMinKm2, areaMaxKm2)
	casualties := e.rng.Intn(sev*casualtiesPerSeverity + 1)
	damage := e.uniform(float64(sev)*damageMinPerSeverity, float64(sev)*damageMaxPerSeverity)
	medical := medicalKitsMin + e.rng.Intn(medicalKitsMax-medicalKitsMin+1)
	food := foodPackagesMin + e.rng.Intn(foodPackagesMax-foodPackagesMin+1)
	water := waterBottlesMin + e.rng.Intn(waterBottlesMax-waterBottlesMin+1)
	rescue := rescueTeamsMin + e.rng.Intn(rescueTeamsMax-rescueTeamsMin+1)

	e.eventCounter++
	ev := model.DisasterEvent{
		ID:                      fmt.Sprintf("D%04d", e.eventCounter),
		Kind:                    kind,
		LocationID:              loc.ID,
		Severity:                severity,
		OccurredAt:              e.now(),
		AffectedAreaKm2:         area,
		Casualties:              casualties,
		InfrastructureDamagePct: damage,
		ResourcesNeeded: map[model.ResourceKind]int{
			model.ResourceMedicalKits:  medical,
			model.ResourceFoodPackages: food,
			model.ResourceWaterBottles: water,
			model.ResourceRescueTeams:  rescue,
		},
	}
	e.catalog = append(e.catalog, ev)

	e.logEvent("disaster spawned",
		logging.String("event_id", ev.ID),
		logging.String("kind", string(kind)),
		logging.String("location_id", loc.ID),
		logging.String("severity", severity.String()),
		logging.Int("casualties", casualties),
	)
	if e.metrics != nil {
		e.metrics.RecordDisasterSpawned(string(kind))
	}
}

// resolveLocked rolls resolution for every catalog entry in spawn order.
// A resolved disaster resets the condition field its kind disturbed and
// leaves the catalog. Caller must hold e.mu.
func (e *Engine) resolveLocked() {
	survivors := e.catalog[:0]
	for _, d := range e.catalog {
		if e.rng.Float64() >= e.cfg.ResolveProbability {
			survivors = append(survivors, d)
			continue
		}

		cond := e.conditions[d.LocationID]
		switch d.Kind {
		case model.DisasterFlood:
			cond.WaterLevelM = 0
		case model.DisasterFire:
			cond.SmokeDetected = false
		case model.DisasterEarthquake:
			cond.SeismicActivity = 0
		}
		cond.Clamp()

		e.logEvent("disaster resolved",
			logging.String("event_id", d.ID),
			logging.String("kind", string(d.Kind)),
			logging.String("location_id", d.LocationID),
		)
		if e.metrics != nil {
			e.metrics.RecordDisasterResolved(string(d.Kind))
		}
	}
	e.catalog = survivors
}
