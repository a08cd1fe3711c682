package query

import "log/slog"

// Config tunes an Engine.
type Config struct {
	// InitialNearestRadius is the first ring radius for NearestEntity.
	// Zero means one region size.
	InitialNearestRadius float64
	// MaxNearestIterations caps the number of rings NearestEntity will try.
	// The last permitted ring always covers the whole loaded world (bounded by
	// the caller's MaxRadius), so the cap never causes a missed match.
	MaxNearestIterations int
	// Observer, when set, receives per-call statistics.
	Observer Observer
	Logger   *slog.Logger
}

// DefaultConfig returns the configuration used when a zero Config is passed.
func DefaultConfig() Config {
	return Config{
		MaxNearestIterations: 16,
		Logger:               slog.Default(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxNearestIterations <= 0 {
		c.MaxNearestIterations = def.MaxNearestIterations
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	return c
}
