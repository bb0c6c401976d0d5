package core

import (
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/reliefgrid/disaster-simulator/internal/logging"
	"github.com/reliefgrid/disaster-simulator/model"
	"github.com/reliefgrid/disaster-simulator/region"
)

// scriptedRand replays queued draws so a tick unfolds exactly as written.
// Exhausted queues fall back to midpoint floats and zero ints.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (s *scriptedRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0.5
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func repeatFloats(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func mustRegistry(t *testing.T) *region.Registry {
	t.Helper()
	reg, err := region.NewRegistry(region.DefaultLocations())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func floatNear(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	reg := mustRegistry(t)
	bad := []Config{
		{SpawnProbability: 1.5, ResolveProbability: 0.2},
		{SpawnProbability: -0.1, ResolveProbability: 0.2},
		{SpawnProbability: 0.8, ResolveProbability: 2},
		{SpawnProbability: 0.8, ResolveProbability: -1},
	}
	for i, cfg := range bad {
		if _, err := NewEngine(reg, cfg, nil, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("config %d: error = %v, want ErrInvalidConfig", i, err)
		}
	}

	if _, err := NewEngine(nil, DefaultConfig(), nil, nil); err == nil {
		t.Fatal("nil registry accepted")
	}
}

func TestSenseUnknownLocation(t *testing.T) {
	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rand.New(rand.NewSource(1)), logging.Noop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := e.Sense("atlantis"); !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("error = %v, want ErrLocationNotFound", err)
	}
}

func TestAdvanceKeepsConditionsInRange(t *testing.T) {
	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rand.New(rand.NewSource(42)), logging.Noop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	for tick := 0; tick < 200; tick++ {
		e.Advance()
		for _, p := range e.AllPercepts() {
			c := p.Condition
			if c.Temperature < model.MinTemperatureC || c.Temperature > model.MaxTemperatureC {
				t.Fatalf("tick %d %s: temperature %v out of range", tick, p.Location.ID, c.Temperature)
			}
			if c.Humidity < model.MinHumidityPct || c.Humidity > model.MaxHumidityPct {
				t.Fatalf("tick %d %s: humidity %v out of range", tick, p.Location.ID, c.Humidity)
			}
			if c.AirQuality < model.MinAirQuality || c.AirQuality > model.MaxAirQuality {
				t.Fatalf("tick %d %s: air quality %v out of range", tick, p.Location.ID, c.AirQuality)
			}
			if c.WindSpeedKmh < 0 || c.WaterLevelM < 0 {
				t.Fatalf("tick %d %s: negative wind or water (%v, %v)", tick, p.Location.ID, c.WindSpeedKmh, c.WaterLevelM)
			}
			if c.SeismicActivity < model.MinSeismic || c.SeismicActivity > model.MaxSeismic {
				t.Fatalf("tick %d %s: seismic %v out of range", tick, p.Location.ID, c.SeismicActivity)
			}
		}
	}
}

func TestSpawnedDisastersRespectMagnitudeBounds(t *testing.T) {
	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rand.New(rand.NewSource(7)), logging.Noop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	checked := 0
	for tick := 0; tick < 100; tick++ {
		e.Advance()
		for _, d := range e.ActiveDisasters() {
			checked++
			sev := int(d.Severity)
			if !d.Severity.Valid() {
				t.Fatalf("%s: invalid severity %d", d.ID, d.Severity)
			}
			if d.AffectedAreaKm2 < areaMinKm2 || d.AffectedAreaKm2 > areaMaxKm2 {
				t.Fatalf("%s: area %v out of range", d.ID, d.AffectedAreaKm2)
			}
			if d.Casualties < 0 || d.Casualties > sev*casualtiesPerSeverity {
				t.Fatalf("%s: casualties %d out of range for severity %d", d.ID, d.Casualties, sev)
			}
			if d.InfrastructureDamagePct < float64(sev)*damageMinPerSeverity || d.InfrastructureDamagePct > float64(sev)*damageMaxPerSeverity {
				t.Fatalf("%s: damage %v out of range for severity %d", d.ID, d.InfrastructureDamagePct, sev)
			}
			if n := d.ResourcesNeeded[model.ResourceMedicalKits]; n < medicalKitsMin || n > medicalKitsMax {
				t.Fatalf("%s: medical kits %d out of range", d.ID, n)
			}
			if n := d.ResourcesNeeded[model.ResourceFoodPackages]; n < foodPackagesMin || n > foodPackagesMax {
				t.Fatalf("%s: food packages %d out of range", d.ID, n)
			}
			if n := d.ResourcesNeeded[model.ResourceWaterBottles]; n < waterBottlesMin || n > waterBottlesMax {
				t.Fatalf("%s: water bottles %d out of range", d.ID, n)
			}
			if n := d.ResourcesNeeded[model.ResourceRescueTeams]; n < rescueTeamsMin || n > rescueTeamsMax {
				t.Fatalf("%s: rescue teams %d out of range", d.ID, n)
			}
		}
	}
	if checked == 0 {
		t.Fatal("no disasters spawned over 100 ticks at p=0.8")
	}
}

func TestScriptedFloodAtFirstLocation(t *testing.T) {
	// Draw order per tick: one spawn-roll float after the per-location drift
	// draws, then kind/location/severity ints, side-effect floats, magnitude
	// draws, then one resolve roll per catalog entry.
	rng := &scriptedRand{
		floats: append(repeatFloats(0.5, 40), // init + drift, midpoints keep values put
			0.0,  // spawn roll, below 0.8
			0.5,  // flood water level: 3.0m
			0.5,  // affected area: 25.25
			0.5,  // damage: 37.5 at HIGH
			0.99, // resolve roll, survives
		),
		ints: []int{
			0,   // kind: FLOOD
			0,   // location: accra
			2,   // severity index: HIGH
			42,  // casualties
			30,  // medical kits offset: 40
			100, // food packages offset: 150
			400, // water bottles offset: 500
			11,  // rescue teams offset: 13
		},
	}

	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rng, logging.Noop(), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Advance()

	active := e.ActiveDisasters()
	if len(active) != 1 {
		t.Fatalf("active disasters = %d, want 1", len(active))
	}
	d := active[0]
	if d.ID != "D0001" {
		t.Fatalf("ID = %q, want D0001", d.ID)
	}
	if d.Kind != model.DisasterFlood || d.LocationID != "accra" || d.Severity != model.SeverityHigh {
		t.Fatalf("got %s %s at %s, want HIGH FLOOD at accra", d.Severity, d.Kind, d.LocationID)
	}
	if d.Casualties != 42 || !floatNear(d.AffectedAreaKm2, 25.25) || !floatNear(d.InfrastructureDamagePct, 37.5) {
		t.Fatalf("magnitudes = %+v", d)
	}
	wantRes := map[model.ResourceKind]int{
		model.ResourceMedicalKits:  40,
		model.ResourceFoodPackages: 150,
		model.ResourceWaterBottles: 500,
		model.ResourceRescueTeams:  13,
	}
	if !reflect.DeepEqual(d.ResourcesNeeded, wantRes) {
		t.Fatalf("resources = %v, want %v", d.ResourcesNeeded, wantRes)
	}
	if !d.OccurredAt.Equal(fixedClock()) {
		t.Fatalf("occurred at %v, want fixed clock", d.OccurredAt)
	}

	p, err := e.Sense("accra")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	if !floatNear(p.Condition.WaterLevelM, 3.0) {
		t.Fatalf("water level = %v, want 3.0", p.Condition.WaterLevelM)
	}
	if !floatNear(p.Condition.Humidity, 95) {
		t.Fatalf("humidity = %v, want 95 after flood rise", p.Condition.Humidity)
	}
	if len(p.ActiveDisasters) != 1 || p.ActiveDisasters[0].ID != "D0001" {
		t.Fatalf("percept disasters = %+v", p.ActiveDisasters)
	}

	// Other locations are untouched by the spawn.
	q, err := e.Sense("kumasi")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	if q.Condition.WaterLevelM != 0 || len(q.ActiveDisasters) != 0 {
		t.Fatalf("kumasi percept = %+v, want clear", q)
	}
}

func TestFireResolutionClearsSmokeAndCatalog(t *testing.T) {
	rng := &scriptedRand{
		floats: append(repeatFloats(0.5, 40),
			0.0,  // spawn roll
			0.5,  // fire temperature rise: +20
			0.5,  // fire air quality rise: +200
			0.5,  // area
			0.5,  // damage
			0.99, // first tick: fire survives
			// second tick
			0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5,
			0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, // drift
			0.9, // spawn roll, no spawn
			0.0, // resolve roll, fire resolves
		),
		ints: []int{
			2, // kind: FIRE
			1, // location: kumasi
			3, // severity index: CRITICAL
			7, 0, 0, 0, 0,
		},
	}

	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rng, logging.Noop(), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	e.Advance()
	p, err := e.Sense("kumasi")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	if !p.Condition.SmokeDetected {
		t.Fatal("smoke not set after fire spawn")
	}
	if !floatNear(p.Condition.Temperature, model.MaxTemperatureC) {
		t.Fatalf("temperature = %v, want clamped to %v", p.Condition.Temperature, model.MaxTemperatureC)
	}
	if len(p.ActiveDisasters) != 1 || p.ActiveDisasters[0].Kind != model.DisasterFire {
		t.Fatalf("percept disasters = %+v", p.ActiveDisasters)
	}
	id := p.ActiveDisasters[0].ID

	e.Advance()
	p, err = e.Sense("kumasi")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	if p.Condition.SmokeDetected {
		t.Fatal("smoke still set after fire resolution")
	}
	for _, d := range p.ActiveDisasters {
		if d.ID == id {
			t.Fatalf("%s still in catalog after resolution", id)
		}
	}
	if n := len(e.ActiveDisasters()); n != 0 {
		t.Fatalf("catalog size = %d, want 0", n)
	}
}

func TestSenseIsIdempotentBetweenTicks(t *testing.T) {
	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rand.New(rand.NewSource(11)), logging.Noop(), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for i := 0; i < 5; i++ {
		e.Advance()
	}

	first, err := e.Sense("tema")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	second, err := e.Sense("tema")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated sense differs:\n%+v\n%+v", first, second)
	}

	all1 := e.AllPercepts()
	all2 := e.AllPercepts()
	if !reflect.DeepEqual(all1, all2) {
		t.Fatal("repeated AllPercepts differs")
	}
}

func TestPerceptsAreIsolatedFromEngineState(t *testing.T) {
	rng := &scriptedRand{
		floats: append(repeatFloats(0.5, 40), 0.0, 0.5, 0.5, 0.5, 0.99),
		ints:   []int{0, 0, 2, 42, 30, 100, 400, 11},
	}
	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rng, logging.Noop(), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Advance()

	p, err := e.Sense("accra")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	p.Condition.Temperature = -100
	p.ActiveDisasters[0].Casualties = 9999
	p.ActiveDisasters[0].ResourcesNeeded[model.ResourceRescueTeams] = 9999

	q, err := e.Sense("accra")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	if q.Condition.Temperature == -100 {
		t.Fatal("condition mutated through percept")
	}
	if q.ActiveDisasters[0].Casualties == 9999 {
		t.Fatal("catalog mutated through percept")
	}
	if q.ActiveDisasters[0].ResourcesNeeded[model.ResourceRescueTeams] == 9999 {
		t.Fatal("resource map aliased through percept")
	}
}

func TestEventIDsAreSequential(t *testing.T) {
	floats := repeatFloats(0.5, 20)
	// Three ticks, each spawning one disaster that never resolves.
	for tick := 0; tick < 3; tick++ {
		floats = append(floats, repeatFloats(0.5, 20)...) // drift
		floats = append(floats, 0.0)                      // spawn roll
		floats = append(floats, 0.5, 0.5, 0.5)            // water, area, damage
		floats = append(floats, repeatFloats(0.99, tick+1)...)
	}
	rng := &scriptedRand{
		floats: floats,
		ints:   []int{0, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 2, 0, 1, 0, 0, 0, 0},
	}

	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rng, logging.Noop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for i := 0; i < 3; i++ {
		e.Advance()
	}

	active := e.ActiveDisasters()
	if len(active) != 3 {
		t.Fatalf("active = %d, want 3", len(active))
	}
	for i, want := range []string{"D0001", "D0002", "D0003"} {
		if active[i].ID != want {
			t.Fatalf("catalog[%d].ID = %q, want %q", i, active[i].ID, want)
		}
	}
}

func TestAdvanceAndSenseRunConcurrently(t *testing.T) {
	e, err := NewEngine(mustRegistry(t), DefaultConfig(), rand.New(rand.NewSource(3)), logging.Noop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	const readers = 4
	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(1 + readers)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			e.Advance()
		}
	}()
	for r := 0; r < readers; r++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				p, err := e.Sense("accra")
				if err != nil {
					t.Errorf("Sense: %v", err)
					return
				}
				if p.Condition.Temperature < model.MinTemperatureC || p.Condition.Temperature > model.MaxTemperatureC {
					t.Errorf("observed out-of-range temperature %v", p.Condition.Temperature)
					return
				}
				e.AllPercepts()
			}
		}()
	}
	wg.Wait()
}
