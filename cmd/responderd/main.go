package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/reliefgrid/disaster-simulator/core"
	"github.com/reliefgrid/disaster-simulator/internal/agent"
	"github.com/reliefgrid/disaster-simulator/internal/archive"
	"github.com/reliefgrid/disaster-simulator/internal/config"
	"github.com/reliefgrid/disaster-simulator/internal/logging"
	"github.com/reliefgrid/disaster-simulator/internal/observability"
	"github.com/reliefgrid/disaster-simulator/policy"
	"github.com/reliefgrid/disaster-simulator/region"
	"github.com/reliefgrid/disaster-simulator/timectrl"
	"github.com/reliefgrid/disaster-simulator/trigger"
)

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for /metrics and /statusz")
	tracePath := flag.String("trace", "", "optional file the responder writes its execution trace to on shutdown")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	agentMetrics, err := observability.NewAgentCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise agent metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	reg, err := buildRegistry(cfg.Simulation.RegionFile)
	if err != nil {
		log.Error(ctx, "failed to build region", logging.String("error", err.Error()))
		os.Exit(1)
	}

	var rng core.Rand
	if cfg.Simulation.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Simulation.Seed))
	}

	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.Simulation.TickInterval, timectrl.RealTime)

	eng, err := core.NewEngine(reg, cfg.EngineConfig(), rng, log,
		core.WithClock(tc.Now),
		core.WithMetricsRecorder(collector),
	)
	if err != nil {
		log.Error(ctx, "failed to build engine", logging.String("error", err.Error()))
		os.Exit(1)
	}

	backend, err := archive.NewBackend(archive.Options{
		Kind:       cfg.Archive.Backend,
		OutputDir:  cfg.Archive.OutputDir,
		SQLitePath: cfg.Archive.SQLitePath,
	})
	if err != nil {
		log.Error(ctx, "failed to build archive backend", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if err := backend.Init(); err != nil {
		log.Error(ctx, "failed to init archive backend",
			logging.String("backend", backend.Name()),
			logging.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer backend.Close()

	sensors := make([]*agent.SensorAgent, 0, reg.Len())
	for _, loc := range reg.Locations() {
		sensors = append(sensors, agent.NewSensor("sensor-"+loc.ID, loc.ID, eng, log,
			agent.WithSensorArchive(backend),
			agent.WithSensorMetrics(agentMetrics),
		))
	}

	deriver, err := trigger.NewDeriver(cfg.DeriverConfig())
	if err != nil {
		log.Error(ctx, "failed to build deriver", logging.String("error", err.Error()))
		os.Exit(1)
	}
	pol := policy.NewResponsePolicy("responderd", log, policy.WithMetricsRecorder(collector))

	responderOpts := []agent.ResponderOption{agent.WithResponderMetrics(agentMetrics)}
	if *tracePath != "" {
		responderOpts = append(responderOpts, agent.WithTracePath(*tracePath))
	}
	responder := agent.NewResponder("responderd", eng, deriver, pol, log, responderOpts...)

	httpSrv := serveHTTP(*httpAddr, collector, statusHandler(log, eng, pol, responder), log)

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

	log.Info(ctx, "starting responder daemon",
		logging.String("tick", cfg.Simulation.TickInterval.String()),
		logging.Int("locations", reg.Len()),
		logging.String("archive", backend.Name()),
	)
	done := tc.Start(0)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down responder daemon")
	tc.Stop()
	<-done

	responder.Stop(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

func serveHTTP(addr string, collector *observability.SimCollector, status http.Handler, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/statusz", status)

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "http server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving metrics and status", logging.String("addr", addr))
	return srv
}

func statusHandler(log logging.Logger, eng *core.Engine, pol *policy.ResponsePolicy, responder *agent.ResponderAgent) http.Handler {
	type status struct {
		State           string    `json:"state"`
		Cycles          int       `json:"cycles"`
		TriggerEvents   int       `json:"trigger_events"`
		Dispatches      int       `json:"dispatches"`
		ActiveDisasters int       `json:"active_disasters"`
		GeneratedAt     time.Time `json:"generated_at"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, reqLog := logging.WithRequestLogger(r.Context(), log)
		st := status{
			State:           string(pol.State()),
			Cycles:          responder.Cycles(),
			TriggerEvents:   responder.EventCount(),
			Dispatches:      pol.DispatchCount(),
			ActiveDisasters: len(eng.ActiveDisasters()),
			GeneratedAt:     time.Now().UTC(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st); err != nil {
			reqLog.Warn(ctx, "failed to encode status", logging.String("error", err.Error()))
		}
	})
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
