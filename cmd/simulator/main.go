package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/reliefgrid/disaster-simulator/core"
	"github.com/reliefgrid/disaster-simulator/internal/agent"
	"github.com/reliefgrid/disaster-simulator/internal/archive"
	"github.com/reliefgrid/disaster-simulator/internal/config"
	"github.com/reliefgrid/disaster-simulator/internal/logging"
	"github.com/reliefgrid/disaster-simulator/policy"
	"github.com/reliefgrid/disaster-simulator/region"
	"github.com/reliefgrid/disaster-simulator/timectrl"
	"github.com/reliefgrid/disaster-simulator/trigger"
)

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	cycles := flag.Int("cycles", 0, "simulation cycles to run (0 = value from config)")
	tick := flag.Duration("tick", 0, "tick interval (0 = value from config)")
	seed := flag.Int64("seed", 0, "random seed (0 = value from config)")
	regionPath := flag.String("region", "", "region definition JSON (empty = value from config, or the built-in region)")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	tracePath := flag.String("trace", "responder_trace.txt", "file the responder writes its execution trace to")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *cycles > 0 {
		cfg.Simulation.Cycles = *cycles
	}
	if *tick > 0 {
		cfg.Simulation.TickInterval = *tick
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *regionPath != "" {
		cfg.Simulation.RegionFile = *regionPath
	}

	log, closeLog, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	reg, err := buildRegistry(cfg.Simulation.RegionFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build region: %v\n", err)
		os.Exit(1)
	}

	var rng core.Rand
	if cfg.Simulation.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Simulation.Seed))
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.Simulation.TickInterval, mode)

	// Percept timestamps follow simulation time, not the wall clock.
	eng, err := core.NewEngine(reg, cfg.EngineConfig(), rng, log, core.WithClock(tc.Now))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}

	backend, err := archive.NewBackend(archive.Options{
		Kind:       cfg.Archive.Backend,
		OutputDir:  cfg.Archive.OutputDir,
		SQLitePath: cfg.Archive.SQLitePath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "build archive: %v\n", err)
		os.Exit(1)
	}
	if err := backend.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init archive backend %q: %v\n", backend.Name(), err)
		os.Exit(1)
	}
	defer backend.Close()

	ctx := context.Background()

	sensors := make([]*agent.SensorAgent, 0, reg.Len())
	for _, loc := range reg.Locations() {
		sensors = append(sensors, agent.NewSensor("sensor-"+loc.ID, loc.ID, eng, log,
			agent.WithSensorArchive(backend)))
	}

	deriver, err := trigger.NewDeriver(cfg.DeriverConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "build deriver: %v\n", err)
		os.Exit(1)
	}
	pol := policy.NewResponsePolicy("responder-1", log)
	responder := agent.NewResponder("responder-1", eng, deriver, pol, log,
		agent.WithTracePath(*tracePath))

	for _, s := range sensors {
		s.Start(ctx)
	}
	responder.Start(ctx)

	tc.AddListener(func(time.Time) {
		eng.Advance()
		for _, s := range sensors {
			s.HandleTick(ctx)
		}
		responder.HandleTick(ctx)
	})

	stopCtx, stopNotify := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stopNotify()
	go func() {
		<-stopCtx.Done()
		tc.Stop()
	}()

	total := time.Duration(cfg.Simulation.Cycles) * cfg.Simulation.TickInterval
	fmt.Printf("Starting simulation: cycles=%d, tick=%s, archive=%s\n",
		cfg.Simulation.Cycles, cfg.Simulation.TickInterval, backend.Name())
	<-tc.Start(total)

	responder.Stop(ctx)

	fmt.Println()
	fmt.Println(eng.Summary())
	for _, s := range sensors {
		fmt.Println(s.Summary())
	}
	fmt.Printf("Responder finished in state %s after %d cycles (%d trigger events, %d dispatches)\n",
		pol.State(), responder.Cycles(), responder.EventCount(), pol.DispatchCount())
	fmt.Println("Simulation complete.")
}

func buildLogger(cfg config.LoggingConfig) (logging.Logger, func() error, error) {
	base := logging.Config{Level: cfg.Level, Format: cfg.Format}
	if cfg.File != "" {
		return logging.NewFileTee(base, cfg.File)
	}
	return logging.New(base), func() error { return nil }, nil
}

func buildRegistry(path string) (*region.Registry, error) {
	if path == "" {
		return region.NewRegistry(region.DefaultLocations())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open region definition %q: %w", path, err)
	}
	defer f.Close()
	return core.LoadRegion(f)
}
