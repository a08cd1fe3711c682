package world

import (
	"slices"
	"strings"

	"github.com/plus3/chunkq/spatial"
)

// Stats is a snapshot of the world's size and index state.
type Stats struct {
	Tick          uint64
	EntityCount   int
	LoadedRegions int
	CacheCount    int
	DirtyCaches   int
	// Unindexed counts entities standing in regions that are not loaded.
	Unindexed int
	// TagCounts sums the per-tag cache sizes over clean caches.
	TagCounts []TagCount
	Regions   []RegionStats
}

type TagCount struct {
	Tag   Tag
	Count int
}

// RegionStats describes one loaded region.
type RegionStats struct {
	Coord      spatial.RegionCoord
	Population int
	Indexed    int
	Dirty      bool
	LastUpdate uint64
}

// CollectStats walks every loaded region and returns a snapshot. Regions are
// ordered by coordinate, tags by name.
func (w *World) CollectStats() Stats {
	stats := Stats{
		Tick:          w.tick,
		EntityCount:   w.slots.len(),
		LoadedRegions: w.loaded.Len(),
		CacheCount:    w.caches.Len(),
		Regions:       make([]RegionStats, 0, w.loaded.Len()),
	}

	tagCounts := make(map[Tag]int)
	populated := 0
	for coord, cache := range w.caches.All() {
		cs := cache.Stats()
		population := w.RegionPopulation(coord)
		populated += population

		rs := RegionStats{
			Coord:      coord,
			Population: population,
			Dirty:      cs.Dirty,
			LastUpdate: cs.LastUpdate,
		}
		if cs.Dirty {
			stats.DirtyCaches++
		} else {
			rs.Indexed = cs.Unique
			for tag, n := range cs.Counts {
				tagCounts[tag] += n
			}
		}
		stats.Regions = append(stats.Regions, rs)
	}
	stats.Unindexed = stats.EntityCount - populated

	for tag, n := range tagCounts {
		stats.TagCounts = append(stats.TagCounts, TagCount{Tag: tag, Count: n})
	}
	slices.SortFunc(stats.TagCounts, func(a, b TagCount) int {
		return strings.Compare(a.Tag.String(), b.Tag.String())
	})
	slices.SortFunc(stats.Regions, func(a, b RegionStats) int {
		if a.Coord.Y != b.Coord.Y {
			return int(a.Coord.Y) - int(b.Coord.Y)
		}
		return int(a.Coord.X) - int(b.Coord.X)
	})
	return stats
}
