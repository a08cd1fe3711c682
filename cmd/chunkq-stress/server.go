package main

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plus3/chunkq/world"
)

// Snapshot is the JSON body served on /stats.
type Snapshot struct {
	Tick          uint64          `json:"tick"`
	Entities      int             `json:"entities"`
	LoadedRegions int             `json:"loadedRegions"`
	Caches        int             `json:"caches"`
	DirtyCaches   int             `json:"dirtyCaches"`
	Unindexed     int             `json:"unindexed"`
	Tags          map[string]int  `json:"tags"`
	Perception    PerceptionStats `json:"perception"`
	Systems       []SystemSummary `json:"systems"`
}

type SystemSummary struct {
	Name       string  `json:"name"`
	Executions int64   `json:"executions"`
	AvgMicros  float64 `json:"avgMicros"`
	MaxMicros  float64 `json:"maxMicros"`
	LastMicros float64 `json:"lastMicros"`
}

// SnapshotSystem publishes a Snapshot every Every ticks. The simulation
// goroutine writes it and HTTP handlers read it through an atomic pointer,
// so the world itself is never touched off the simulation goroutine.
type SnapshotSystem struct {
	Every      uint64
	Scheduler  *world.Scheduler
	Perception *PerceptionSystem

	latest atomic.Pointer[Snapshot]
}

func (s *SnapshotSystem) Execute(frame *world.Frame) {
	if frame.Tick%max(s.Every, 1) != 0 {
		return
	}
	s.latest.Store(s.capture(frame.World))
}

// Latest returns the most recent snapshot, or nil before the first one.
func (s *SnapshotSystem) Latest() *Snapshot {
	return s.latest.Load()
}

func (s *SnapshotSystem) capture(w *world.World) *Snapshot {
	stats := w.CollectStats()
	snap := &Snapshot{
		Tick:          stats.Tick,
		Entities:      stats.EntityCount,
		LoadedRegions: stats.LoadedRegions,
		Caches:        stats.CacheCount,
		DirtyCaches:   stats.DirtyCaches,
		Unindexed:     stats.Unindexed,
		Tags:          make(map[string]int, len(stats.TagCounts)),
	}
	for _, tc := range stats.TagCounts {
		snap.Tags[tc.Tag.Name()] = tc.Count
	}
	if s.Perception != nil {
		snap.Perception = s.Perception.Stats
	}
	if s.Scheduler != nil {
		for _, sys := range s.Scheduler.GetStats().Systems {
			snap.Systems = append(snap.Systems, SystemSummary{
				Name:       sys.Name,
				Executions: sys.ExecutionCount,
				AvgMicros:  float64(sys.AvgDuration.Nanoseconds()) / 1e3,
				MaxMicros:  float64(sys.MaxDuration.Nanoseconds()) / 1e3,
				LastMicros: float64(sys.LastDuration.Nanoseconds()) / 1e3,
			})
		}
	}
	return snap
}

// NewRouter serves Prometheus metrics from gatherer on /metrics and the
// latest snapshot on /stats.
func NewRouter(gatherer prometheus.Gatherer, snapshots *SnapshotSystem) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		snap := snapshots.Latest()
		if snap == nil {
			http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return r
}
