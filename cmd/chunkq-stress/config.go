package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"
)

// Config holds the stress run settings. Defaults come from DefaultConfig,
// CHUNKQ_* environment variables override them and command-line flags
// override both.
type Config struct {
	Duration       time.Duration
	Agents         int
	Food           int
	HostileRatio   float64
	WorldRegions   int // regions per side, centered on the origin
	RegionSize     float64
	SenseRadius    float64
	EatRadius      float64
	Speed          float64
	ChurnEvery     uint64
	Seed           int64
	MetricsAddr    string
	GCPauseMetrics bool
}

func DefaultConfig() Config {
	return Config{
		Duration:     10 * time.Second,
		Agents:       10000,
		Food:         2000,
		HostileRatio: 0.1,
		WorldRegions: 32,
		RegionSize:   16,
		SenseRadius:  24,
		EatRadius:    1.5,
		Speed:        8,
		ChurnEvery:   30,
		Seed:         1,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %s", c.Duration))
	}
	if c.Agents < 0 || c.Food < 0 {
		errs = append(errs, fmt.Errorf("entity counts must not be negative, got agents=%d food=%d", c.Agents, c.Food))
	}
	if c.HostileRatio < 0 || c.HostileRatio > 1 {
		errs = append(errs, fmt.Errorf("hostile ratio must be in [0, 1], got %g", c.HostileRatio))
	}
	if c.WorldRegions <= 0 {
		errs = append(errs, fmt.Errorf("world regions must be positive, got %d", c.WorldRegions))
	}
	if !(c.RegionSize > 0) {
		errs = append(errs, fmt.Errorf("region size must be positive, got %g", c.RegionSize))
	}
	if c.SenseRadius < 0 || c.EatRadius < 0 {
		errs = append(errs, fmt.Errorf("radii must not be negative, got sense=%g eat=%g", c.SenseRadius, c.EatRadius))
	}
	return errors.Join(errs...)
}

// RegisterFlags binds every field to fs, using the current values as the
// flag defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.Duration, "duration", c.Duration, "The total duration the test should run for.")
	fs.IntVar(&c.Agents, "agents", c.Agents, "The initial number of wandering agents.")
	fs.IntVar(&c.Food, "food", c.Food, "The number of food entities kept in the world.")
	fs.Float64Var(&c.HostileRatio, "hostile-ratio", c.HostileRatio, "Fraction of agents that are also hostile.")
	fs.IntVar(&c.WorldRegions, "regions", c.WorldRegions, "Loaded regions per side.")
	fs.Float64Var(&c.RegionSize, "region-size", c.RegionSize, "Region side length in world units.")
	fs.Float64Var(&c.SenseRadius, "sense-radius", c.SenseRadius, "Perception query radius.")
	fs.Float64Var(&c.EatRadius, "eat-radius", c.EatRadius, "Distance at which an agent eats food.")
	fs.Float64Var(&c.Speed, "speed", c.Speed, "Agent speed in world units per second.")
	fs.Uint64Var(&c.ChurnEvery, "churn-every", c.ChurnEvery, "Unload and reload one region every N ticks. Zero disables.")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Random seed.")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve /metrics and /stats on this address. Empty disables.")
	fs.BoolVar(&c.GCPauseMetrics, "gc-pause-metrics", c.GCPauseMetrics, "Enable detailed GC pause metrics in the report.")
}

// ApplyEnv overrides fields from CHUNKQ_* variables found through lookup.
// Unset variables leave the field alone; malformed ones are reported.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envVar(lookup, "CHUNKQ_DURATION", &c.Duration, time.ParseDuration))
	collect(envVar(lookup, "CHUNKQ_AGENTS", &c.Agents, strconv.Atoi))
	collect(envVar(lookup, "CHUNKQ_FOOD", &c.Food, strconv.Atoi))
	collect(envVar(lookup, "CHUNKQ_HOSTILE_RATIO", &c.HostileRatio, parseFloat))
	collect(envVar(lookup, "CHUNKQ_REGIONS", &c.WorldRegions, strconv.Atoi))
	collect(envVar(lookup, "CHUNKQ_REGION_SIZE", &c.RegionSize, parseFloat))
	collect(envVar(lookup, "CHUNKQ_SENSE_RADIUS", &c.SenseRadius, parseFloat))
	collect(envVar(lookup, "CHUNKQ_EAT_RADIUS", &c.EatRadius, parseFloat))
	collect(envVar(lookup, "CHUNKQ_SPEED", &c.Speed, parseFloat))
	collect(envVar(lookup, "CHUNKQ_CHURN_EVERY", &c.ChurnEvery, func(v string) (uint64, error) {
		return strconv.ParseUint(v, 10, 64)
	}))
	collect(envVar(lookup, "CHUNKQ_SEED", &c.Seed, func(v string) (int64, error) {
		return strconv.ParseInt(v, 10, 64)
	}))
	if v, ok := lookup("CHUNKQ_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	collect(envVar(lookup, "CHUNKQ_GC_PAUSE_METRICS", &c.GCPauseMetrics, strconv.ParseBool))

	return errors.Join(errs...)
}

// envVar parses key into dst when it is set and non-empty.
func envVar[T any](lookup func(string) (string, bool), key string, dst *T, parse func(string) (T, error)) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := parse(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func parseFloat(v string) (float64, error) {
	return strconv.ParseFloat(v, 64)
}
