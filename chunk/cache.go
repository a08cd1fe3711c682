// Package chunk holds the per-region entity index: one Cache per loaded region,
// owned by a Registry that follows the region load/unload lifecycle.
package chunk

import (
	"iter"

	"github.com/kamstrup/intmap"
	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/spatial"
)

const defaultSetCapacity = 16

// Cache is the derived index for a single region: for each capability tag the
// set of entity ids believed to reside in the region.
//
// A Cache is either Clean, in which case its sets exactly match the owning
// world, or Dirty, in which case it must be rebuilt through RebuildIfDirty
// before anyone reads it. The cache never knows how to rebuild itself; the
// rebuild function is supplied by the collaborator that owns entity positions.
type Cache[K comparable] struct {
	coord      spatial.RegionCoord
	sets       map[K]*intmap.Map[entity.Id, struct{}]
	dirty      bool
	lastUpdate uint64

	stats      Stats[K]
	statsValid bool
}

// NewCache creates an empty, clean cache for the region at coord.
func NewCache[K comparable](coord spatial.RegionCoord) *Cache[K] {
	return &Cache[K]{
		coord: coord,
		sets:  make(map[K]*intmap.Map[entity.Id, struct{}]),
	}
}

// Coord returns the region this cache indexes.
func (c *Cache[K]) Coord() spatial.RegionCoord {
	return c.coord
}

// Add records that id holds tag and resides in this region.
// Adding an id that is already present is a no-op.
func (c *Cache[K]) Add(tag K, id entity.Id) {
	set := c.sets[tag]
	if set == nil {
		set = intmap.New[entity.Id, struct{}](defaultSetCapacity)
		c.sets[tag] = set
	}
	if _, ok := set.Get(id); ok {
		return
	}
	set.Put(id, struct{}{})
	c.statsValid = false
}

// Remove drops id from the tag's set. Removing an absent id is a no-op.
func (c *Cache[K]) Remove(tag K, id entity.Id) {
	set := c.sets[tag]
	if set == nil {
		return
	}
	if set.Del(id) {
		c.statsValid = false
	}
}

// RemoveAll drops id from every tag set.
func (c *Cache[K]) RemoveAll(id entity.Id) {
	for _, set := range c.sets {
		if set.Del(id) {
			c.statsValid = false
		}
	}
}

// Entities returns a read-only view of the ids indexed under tag.
// The view is empty when the tag has never been seen in this region.
func (c *Cache[K]) Entities(tag K) IDSet {
	return IDSet{m: c.sets[tag]}
}

// Tags iterates over every tag that has a (possibly empty) set in this cache.
func (c *Cache[K]) Tags() iter.Seq[K] {
	return func(yield func(K) bool) {
		for tag := range c.sets {
			if !yield(tag) {
				return
			}
		}
	}
}

// MarkDirty flags the cache as out of sync with true membership.
func (c *Cache[K]) MarkDirty() {
	c.dirty = true
	c.statsValid = false
}

// Dirty reports whether the cache must be rebuilt before it is read.
func (c *Cache[K]) Dirty() bool {
	return c.dirty
}

// RebuildIfDirty clears every set and calls rebuild to repopulate them when the
// cache is dirty, then marks it clean. It reports whether a rebuild happened.
func (c *Cache[K]) RebuildIfDirty(rebuild func(*Cache[K])) bool {
	if !c.dirty {
		return false
	}
	if rebuild == nil {
		panic("chunk: RebuildIfDirty called on a dirty cache without a rebuild func")
	}

	for _, set := range c.sets {
		set.Clear()
	}
	rebuild(c)

	c.dirty = false
	c.statsValid = false
	return true
}

// Touch records the tick of the most recent mutation applied to this cache.
func (c *Cache[K]) Touch(tick uint64) {
	c.lastUpdate = tick
}

// LastUpdate returns the tick passed to the latest Touch.
func (c *Cache[K]) LastUpdate() uint64 {
	return c.lastUpdate
}

// IDSet is a read-only view over one tag's id set.
type IDSet struct {
	m *intmap.Map[entity.Id, struct{}]
}

// Len returns the number of ids in the set.
func (s IDSet) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Has reports whether id is in the set.
func (s IDSet) Has(id entity.Id) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m.Get(id)
	return ok
}

// Each calls fn for every id until fn returns false.
// The set must not be mutated during iteration.
func (s IDSet) Each(fn func(entity.Id) bool) {
	if s.m == nil {
		return
	}
	s.m.ForEach(func(id entity.Id, _ struct{}) bool {
		return fn(id)
	})
}

// All returns an iterator over the ids in the set.
func (s IDSet) All() iter.Seq[entity.Id] {
	return func(yield func(entity.Id) bool) {
		s.Each(yield)
	}
}

// AppendTo appends every id in the set to dst.
func (s IDSet) AppendTo(dst []entity.Id) []entity.Id {
	s.Each(func(id entity.Id) bool {
		dst = append(dst, id)
		return true
	})
	return dst
}
