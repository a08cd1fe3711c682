package chunk

import (
	"iter"

	"github.com/kamstrup/intmap"
	"github.com/plus3/chunkq/spatial"
)

// Registry owns one Cache per region coordinate. The chunk-lifecycle owner
// creates and removes caches in lockstep with region load and unload; queries
// only ever read through it.
type Registry[K comparable] struct {
	caches *intmap.Map[uint64, *Cache[K]]
}

// NewRegistry creates an empty registry sized for roughly capacity regions.
func NewRegistry[K comparable](capacity int) *Registry[K] {
	if capacity <= 0 {
		capacity = 64
	}
	return &Registry[K]{
		caches: intmap.New[uint64, *Cache[K]](capacity),
	}
}

// GetOrCreate returns the cache for coord, creating an empty clean one when
// none exists yet.
func (r *Registry[K]) GetOrCreate(coord spatial.RegionCoord) *Cache[K] {
	key := coord.Pack()
	if cache, ok := r.caches.Get(key); ok {
		return cache
	}
	cache := NewCache[K](coord)
	r.caches.Put(key, cache)
	return cache
}

// Get returns the cache for coord, if one exists.
func (r *Registry[K]) Get(coord spatial.RegionCoord) (*Cache[K], bool) {
	return r.caches.Get(coord.Pack())
}

// Remove destroys the cache for coord. It reports whether a cache existed.
func (r *Registry[K]) Remove(coord spatial.RegionCoord) bool {
	return r.caches.Del(coord.Pack())
}

// Len returns the number of caches.
func (r *Registry[K]) Len() int {
	return r.caches.Len()
}

// Enumerate yields the cache for every coordinate in coords that has one, in
// the order of coords. Coordinates without a cache are skipped; callers that
// treat a missing cache as a fault compare the yielded coordinates with their
// input.
func (r *Registry[K]) Enumerate(coords iter.Seq[spatial.RegionCoord]) iter.Seq2[spatial.RegionCoord, *Cache[K]] {
	return func(yield func(spatial.RegionCoord, *Cache[K]) bool) {
		for coord := range coords {
			cache, ok := r.caches.Get(coord.Pack())
			if !ok {
				continue
			}
			if !yield(coord, cache) {
				return
			}
		}
	}
}

// All yields every cache in the registry in no particular order.
// The registry must not be modified during iteration.
func (r *Registry[K]) All() iter.Seq2[spatial.RegionCoord, *Cache[K]] {
	return func(yield func(spatial.RegionCoord, *Cache[K]) bool) {
		r.caches.ForEach(func(key uint64, cache *Cache[K]) bool {
			return yield(spatial.UnpackRegion(key), cache)
		})
	}
}
