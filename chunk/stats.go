package chunk

import (
	"github.com/kamstrup/intmap"
	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/spatial"
)

// Stats summarizes a cache's contents.
type Stats[K comparable] struct {
	Coord      spatial.RegionCoord
	Dirty      bool
	LastUpdate uint64
	// Counts holds the number of ids per tag; tags with empty sets are omitted.
	Counts map[K]int
	// Unique is the number of distinct ids across all tags.
	Unique int
}

// Stats returns per-tag counts for the cache. Counts are only computed on
// request and memoized until the next mutation, so Add and Remove stay O(1).
// The returned Counts map is shared with the cache and must not be modified.
func (c *Cache[K]) Stats() Stats[K] {
	if c.statsValid {
		c.stats.Dirty = c.dirty
		c.stats.LastUpdate = c.lastUpdate
		return c.stats
	}

	counts := make(map[K]int, len(c.sets))
	unique := intmap.New[entity.Id, struct{}](defaultSetCapacity)
	for tag, set := range c.sets {
		n := set.Len()
		if n == 0 {
			continue
		}
		counts[tag] = n
		set.ForEach(func(id entity.Id, _ struct{}) bool {
			unique.Put(id, struct{}{})
			return true
		})
	}

	c.stats = Stats[K]{
		Coord:      c.coord,
		Dirty:      c.dirty,
		LastUpdate: c.lastUpdate,
		Counts:     counts,
		Unique:     unique.Len(),
	}
	c.statsValid = true
	return c.stats
}
