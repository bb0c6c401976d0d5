// Package config loads the simulator's file configuration. Values come from
// a JSON config file layered over defaults; anything out of range fails at
// load time rather than surfacing mid-run.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/reliefgrid/disaster-simulator/core"
	"github.com/reliefgrid/disaster-simulator/model"
	"github.com/reliefgrid/disaster-simulator/trigger"
)

// FileName is the config file looked up in the search paths.
const FileName = "responder.cfg.json"

// ErrInvalidConfig indicates a config file with out-of-range values.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the on-disk configuration tree.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation" json:"simulation"`
	Thresholds ThresholdConfig  `mapstructure:"thresholds" json:"thresholds"`
	Archive    ArchiveConfig    `mapstructure:"archive" json:"archive"`
	Logging    LoggingConfig    `mapstructure:"logging" json:"logging"`
}

// SimulationConfig drives the engine and the run loop.
type SimulationConfig struct {
	TickInterval       time.Duration `mapstructure:"tickInterval" json:"tickInterval"`
	Cycles             int           `mapstructure:"cycles" json:"cycles"`
	SpawnProbability   float64       `mapstructure:"spawnProbability" json:"spawnProbability"`
	ResolveProbability float64       `mapstructure:"resolveProbability" json:"resolveProbability"`
	// Seed fixes the random source for reproducible runs; 0 seeds from time.
	Seed int64 `mapstructure:"seed" json:"seed"`
	// RegionFile points at a JSON region definition; empty uses the built-in
	// default locations.
	RegionFile string `mapstructure:"regionFile" json:"regionFile"`
}

// ThresholdConfig drives trigger-event derivation.
type ThresholdConfig struct {
	TempSpikeCelsius   float64 `mapstructure:"tempSpikeCelsius" json:"tempSpikeCelsius"`
	WaterRiseMetres    float64 `mapstructure:"waterRiseMetres" json:"waterRiseMetres"`
	EscalationSeverity string  `mapstructure:"escalationSeverity" json:"escalationSeverity"`
	RescueTeamShortage int     `mapstructure:"rescueTeamShortage" json:"rescueTeamShortage"`
}

// ArchiveConfig selects and parameterises the detection archive backend.
type ArchiveConfig struct {
	Backend    string `mapstructure:"backend" json:"backend"`
	OutputDir  string `mapstructure:"outputDir" json:"outputDir"`
	SQLitePath string `mapstructure:"sqlitePath" json:"sqlitePath"`
}

// LoggingConfig mirrors the logging package's Config plus an optional file
// tee target.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
	File   string `mapstructure:"file" json:"file"`
}

// Load reads FileName from dir (and the working directory as a fallback),
// layers it over defaults and validates the result. A missing file is fine;
// a malformed or out-of-range one is not.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("json")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without touching the disk.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.tickInterval", "2s")
	v.SetDefault("simulation.cycles", 10)
	v.SetDefault("simulation.spawnProbability", 0.80)
	v.SetDefault("simulation.resolveProbability", 0.20)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.regionFile", "")

	v.SetDefault("thresholds.tempSpikeCelsius", 42.0)
	v.SetDefault("thresholds.waterRiseMetres", 1.5)
	v.SetDefault("thresholds.escalationSeverity", "CRITICAL")
	v.SetDefault("thresholds.rescueTeamShortage", 12)

	v.SetDefault("archive.backend", "memory")
	v.SetDefault("archive.outputDir", "archive")
	v.SetDefault("archive.sqlitePath", "archive/detections.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// Validate rejects values the components downstream would refuse or, worse,
// silently misbehave on.
func (c *Config) Validate() error {
	if c.Simulation.TickInterval < 0 {
		return fmt.Errorf("%w: negative tick interval %v", ErrInvalidConfig, c.Simulation.TickInterval)
	}
	if c.Simulation.Cycles < 0 {
		return fmt.Errorf("%w: negative cycle count %d", ErrInvalidConfig, c.Simulation.Cycles)
	}
	if p := c.Simulation.SpawnProbability; p < 0 || p > 1 {
		return fmt.Errorf("%w: spawn probability %v outside [0,1]", ErrInvalidConfig, p)
	}
	if p := c.Simulation.ResolveProbability; p < 0 || p > 1 {
		return fmt.Errorf("%w: resolve probability %v outside [0,1]", ErrInvalidConfig, p)
	}
	if c.Thresholds.WaterRiseMetres < 0 {
		return fmt.Errorf("%w: negative water-rise threshold %v", ErrInvalidConfig, c.Thresholds.WaterRiseMetres)
	}
	if _, ok := model.ParseSeverity(c.Thresholds.EscalationSeverity); !ok {
		return fmt.Errorf("%w: unknown escalation severity %q", ErrInvalidConfig, c.Thresholds.EscalationSeverity)
	}
	if c.Thresholds.RescueTeamShortage < 0 {
		return fmt.Errorf("%w: negative rescue-team shortage threshold %d", ErrInvalidConfig, c.Thresholds.RescueTeamShortage)
	}
	switch c.Archive.Backend {
	case "memory", "jsonfile", "sqlite":
	default:
		return fmt.Errorf("%w: unknown archive backend %q", ErrInvalidConfig, c.Archive.Backend)
	}
	return nil
}

// EngineConfig maps the simulation section onto the engine's tunables.
func (c *Config) EngineConfig() core.Config {
	return core.Config{
		SpawnProbability:   c.Simulation.SpawnProbability,
		ResolveProbability: c.Simulation.ResolveProbability,
	}
}

// DeriverConfig maps the thresholds section onto the deriver's tunables.
func (c *Config) DeriverConfig() trigger.Config {
	sev, _ := model.ParseSeverity(c.Thresholds.EscalationSeverity)
	return trigger.Config{
		TempSpikeC:         c.Thresholds.TempSpikeCelsius,
		WaterRiseM:         c.Thresholds.WaterRiseMetres,
		EscalationSeverity: sev,
		RescueTeamShortage: c.Thresholds.RescueTeamShortage,
	}
}
