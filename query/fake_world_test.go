package query_test

import (
	"cmp"
	"iter"
	"slices"

	"github.com/plus3/chunkq/chunk"
	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/query"
	"github.com/plus3/chunkq/spatial"
)

// fakeWorld is a minimal collaborator: a flat entity table plus a set of
// loaded regions, keeping string-tagged caches in sync on every mutation.
type fakeWorld struct {
	size      float64
	pos       map[entity.Id]spatial.Vec2
	tags      map[entity.Id][]string
	loaded    map[spatial.RegionCoord]bool
	registry  *chunk.Registry[string]
	nextIndex uint32
	rebuilds  int
}

var knownTags = query.NewTagSet("Agent", "Hostile", "Food")

func newFakeWorld(size float64) *fakeWorld {
	return &fakeWorld{
		size:     size,
		pos:      make(map[entity.Id]spatial.Vec2),
		tags:     make(map[entity.Id][]string),
		loaded:   make(map[spatial.RegionCoord]bool),
		registry: chunk.NewRegistry[string](0),
	}
}

func (w *fakeWorld) engine(cfg query.Config) *query.Engine[string] {
	return query.New[string](w, w, knownTags, cfg)
}

func (w *fakeWorld) loadArea(minX, minY, maxX, maxY int32) {
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			w.load(spatial.RegionCoord{X: x, Y: y})
		}
	}
}

func (w *fakeWorld) load(coord spatial.RegionCoord) {
	w.loaded[coord] = true
	w.registry.GetOrCreate(coord).MarkDirty()
}

func (w *fakeWorld) spawn(x, y float64, tags ...string) entity.Id {
	w.nextIndex++
	id := entity.NewId(1, w.nextIndex)
	p := spatial.V(x, y)
	w.pos[id] = p
	w.tags[id] = tags
	if cache, ok := w.cacheAt(p); ok {
		for _, tag := range tags {
			cache.Add(tag, id)
		}
	}
	return id
}

func (w *fakeWorld) move(id entity.Id, x, y float64) {
	old := w.pos[id]
	p := spatial.V(x, y)
	w.pos[id] = p
	if spatial.RegionOf(old, w.size) == spatial.RegionOf(p, w.size) {
		return
	}
	if cache, ok := w.cacheAt(old); ok {
		cache.RemoveAll(id)
	}
	if cache, ok := w.cacheAt(p); ok {
		for _, tag := range w.tags[id] {
			cache.Add(tag, id)
		}
	}
}

// vanish forgets the entity without touching the index, leaving a stale id.
func (w *fakeWorld) vanish(id entity.Id) {
	delete(w.pos, id)
	delete(w.tags, id)
}

func (w *fakeWorld) cacheAt(p spatial.Vec2) (*chunk.Cache[string], bool) {
	coord := spatial.RegionOf(p, w.size)
	if !w.loaded[coord] {
		return nil, false
	}
	return w.registry.GetOrCreate(coord), true
}

// bruteForce is the reference answer: a scan over every entity.
func (w *fakeWorld) bruteForce(origin spatial.Vec2, radius float64, tags []string) []query.Result {
	var out []query.Result
	for id, p := range w.pos {
		if !w.loaded[spatial.RegionOf(p, w.size)] {
			continue
		}
		if !slices.ContainsFunc(w.tags[id], func(t string) bool { return slices.Contains(tags, t) }) {
			continue
		}
		if spatial.Distance(origin, p) <= radius {
			out = append(out, query.Result{ID: id, Distance: spatial.Distance(origin, p)})
		}
	}
	slices.SortFunc(out, func(a, b query.Result) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (w *fakeWorld) RegionSize() float64 { return w.size }

func (w *fakeWorld) IsLoaded(coord spatial.RegionCoord) bool { return w.loaded[coord] }

func (w *fakeWorld) LoadedCount() int { return len(w.loaded) }

func (w *fakeWorld) LoadedBounds() (lo, hi spatial.RegionCoord, ok bool) {
	for coord := range w.loaded {
		if !ok {
			lo, hi, ok = coord, coord, true
			continue
		}
		lo.X, lo.Y = min(lo.X, coord.X), min(lo.Y, coord.Y)
		hi.X, hi.Y = max(hi.X, coord.X), max(hi.Y, coord.Y)
	}
	return lo, hi, ok
}

func (w *fakeWorld) LoadedRegions() iter.Seq[spatial.RegionCoord] {
	return func(yield func(spatial.RegionCoord) bool) {
		for coord := range w.loaded {
			if !yield(coord) {
				return
			}
		}
	}
}

func (w *fakeWorld) Caches() *chunk.Registry[string] { return w.registry }

func (w *fakeWorld) Rebuild(cache *chunk.Cache[string]) {
	w.rebuilds++
	for id, p := range w.pos {
		if spatial.RegionOf(p, w.size) != cache.Coord() {
			continue
		}
		for _, tag := range w.tags[id] {
			cache.Add(tag, id)
		}
	}
}

func (w *fakeWorld) Position(id entity.Id) (spatial.Vec2, bool) {
	p, ok := w.pos[id]
	return p, ok
}
