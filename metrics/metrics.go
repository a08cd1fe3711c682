// Package metrics exports query engine and world statistics to Prometheus.
//
// Label values are bounded: query kinds, outcomes, tag type names and system
// names. Nothing is labelled per entity or per region.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/plus3/chunkq/query"
	"github.com/plus3/chunkq/world"
)

var _ query.Observer = (*Collector)(nil)

var kinds = []query.Kind{query.KindRadius, query.KindNearest, query.KindHas, query.KindCount}

// kindMetrics are the per-kind children, resolved once so ObserveQuery does
// no label lookups.
type kindMetrics struct {
	ok         prometheus.Counter
	failed     prometheus.Counter
	duration   prometheus.Observer
	regions    prometheus.Observer
	candidates prometheus.Counter
	stale      prometheus.Counter
	rebuilds   prometheus.Counter
	results    prometheus.Observer
}

// Collector records query statistics and world snapshots.
type Collector struct {
	byKind []kindMetrics
	rings  prometheus.Histogram

	tick          prometheus.Gauge
	entities      prometheus.Gauge
	loadedRegions prometheus.Gauge
	caches        prometheus.Gauge
	dirtyCaches   prometheus.Gauge
	unindexed     prometheus.Gauge
	tagEntities   *prometheus.GaugeVec

	systemDuration   *prometheus.GaugeVec
	systemExecutions *prometheus.GaugeVec
	flushErrors      prometheus.Gauge
}

// New registers the collector's metrics with reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Collector {
	factory := promauto.With(reg)

	queries := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Spatial queries executed, by kind and outcome.",
	}, []string{"kind", "outcome"})

	duration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Spatial query latency.",
		Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3},
	}, []string{"kind"})

	regions := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_regions",
		Help:      "Region caches read per query.",
		Buckets:   []float64{1, 4, 9, 25, 49, 100, 400},
	}, []string{"kind"})

	results := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_results",
		Help:      "Matches returned per query.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	}, []string{"kind"})

	candidates := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_candidates_total",
		Help:      "Indexed ids that reached the exact distance check.",
	}, []string{"kind"})

	stale := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_stale_ids_total",
		Help:      "Indexed ids that no longer resolved to a live entity.",
	}, []string{"kind"})

	rebuilds := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_rebuilds_total",
		Help:      "Dirty region caches rebuilt on read.",
	}, []string{"kind"})

	c := &Collector{
		byKind: make([]kindMetrics, len(kinds)),
		rings: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nearest_rings",
			Help:      "Expanding-ring passes per nearest query.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		tick: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_tick",
			Help:      "Current world tick.",
		}),
		entities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_entities",
			Help:      "Live entities.",
		}),
		loadedRegions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_loaded_regions",
			Help:      "Loaded regions.",
		}),
		caches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_region_caches",
			Help:      "Region caches in the registry.",
		}),
		dirtyCaches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_dirty_caches",
			Help:      "Region caches awaiting a rebuild.",
		}),
		unindexed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_unindexed_entities",
			Help:      "Entities standing in regions that are not loaded.",
		}),
		tagEntities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_indexed_entities",
			Help:      "Indexed entities per capability tag over clean caches.",
		}, []string{"tag"}),
		systemDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_avg_duration_seconds",
			Help:      "Average execution time per system.",
		}, []string{"system"}),
		systemExecutions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_executions",
			Help:      "Executions per system.",
		}, []string{"system"}),
		flushErrors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "command_flush_errors",
			Help:      "Ticks whose command flush reported an error.",
		}),
	}

	for _, kind := range kinds {
		k := kind.String()
		c.byKind[kind] = kindMetrics{
			ok:         queries.WithLabelValues(k, "ok"),
			failed:     queries.WithLabelValues(k, "error"),
			duration:   duration.WithLabelValues(k),
			regions:    regions.WithLabelValues(k),
			candidates: candidates.WithLabelValues(k),
			stale:      stale.WithLabelValues(k),
			rebuilds:   rebuilds.WithLabelValues(k),
			results:    results.WithLabelValues(k),
		}
	}
	return c
}

// ObserveQuery implements query.Observer.
func (c *Collector) ObserveQuery(stats query.QueryStats) {
	if int(stats.Kind) >= len(c.byKind) {
		return
	}
	m := &c.byKind[stats.Kind]

	if stats.Err != nil {
		m.failed.Inc()
		return
	}
	m.ok.Inc()
	m.duration.Observe(stats.Duration.Seconds())
	m.regions.Observe(float64(stats.Regions))
	m.results.Observe(float64(stats.Results))
	m.candidates.Add(float64(stats.Candidates))
	m.stale.Add(float64(stats.Stale))
	m.rebuilds.Add(float64(stats.Rebuilds))
	if stats.Kind == query.KindNearest {
		c.rings.Observe(float64(stats.Rings))
	}
}

// ObserveWorld records a world snapshot.
func (c *Collector) ObserveWorld(stats world.Stats) {
	c.tick.Set(float64(stats.Tick))
	c.entities.Set(float64(stats.EntityCount))
	c.loadedRegions.Set(float64(stats.LoadedRegions))
	c.caches.Set(float64(stats.CacheCount))
	c.dirtyCaches.Set(float64(stats.DirtyCaches))
	c.unindexed.Set(float64(stats.Unindexed))

	c.tagEntities.Reset()
	for _, tc := range stats.TagCounts {
		c.tagEntities.WithLabelValues(tc.Tag.String()).Set(float64(tc.Count))
	}
}

// ObserveScheduler records per-system timings.
func (c *Collector) ObserveScheduler(stats *world.SchedulerStats) {
	c.flushErrors.Set(float64(stats.FlushErrors))
	for _, s := range stats.Systems {
		c.systemDuration.WithLabelValues(s.Name).Set(s.AvgDuration.Seconds())
		c.systemExecutions.WithLabelValues(s.Name).Set(float64(s.ExecutionCount))
	}
}
