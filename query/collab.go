package query

import (
	"iter"

	"github.com/plus3/chunkq/chunk"
	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/spatial"
)

// Regions is the chunk-lifecycle side of the world as seen by the engine.
//
// Every region for which IsLoaded reports true must have a cache in Caches();
// a loaded region without one is reported as ErrMissingRegionCache.
type Regions[K comparable] interface {
	// RegionSize is the side length of a region in world units.
	RegionSize() float64
	IsLoaded(coord spatial.RegionCoord) bool
	LoadedCount() int
	// LoadedBounds returns the smallest rectangle of region coordinates
	// containing every loaded region. ok is false when nothing is loaded.
	LoadedBounds() (lo, hi spatial.RegionCoord, ok bool)
	LoadedRegions() iter.Seq[spatial.RegionCoord]
	Caches() *chunk.Registry[K]
	// Rebuild repopulates a dirty cache from the entity table.
	Rebuild(cache *chunk.Cache[K])
}

// Positions resolves an entity id to its current position. ok is false for ids
// that no longer refer to a live, positioned entity.
type Positions interface {
	Position(id entity.Id) (pos spatial.Vec2, ok bool)
}

// Tags reports which capability tags are recognized.
type Tags[K comparable] interface {
	Known(tag K) bool
}

// TagSet is a fixed set of recognized tags.
type TagSet[K comparable] map[K]struct{}

// NewTagSet creates a TagSet holding tags.
func NewTagSet[K comparable](tags ...K) TagSet[K] {
	s := make(TagSet[K], len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Known reports whether tag is in the set.
func (s TagSet[K]) Known(tag K) bool {
	_, ok := s[tag]
	return ok
}
