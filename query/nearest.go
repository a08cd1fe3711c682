package query

import (
	"math"

	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/spatial"
)

// NearestEntity returns the entity holding one of tags closest to (x, y).
// ok is false when nothing matches within opts.MaxRadius (or anywhere in the
// loaded world when MaxRadius is zero); the returned Result is then the zero
// value and must not be used. Because zero means unbounded, a search limited
// to the exact point is EntitiesInRadius with radius 0 and Limit 1.
//
// The search starts with a small ring and doubles its radius until a match
// survives the distance check, so nearby answers never pay for a world scan.
// Ties are broken by ascending id.
func (e *Engine[K]) NearestEntity(x, y float64, tags []K, opts Options) (res Result, ok bool, err error) {
	start := e.begin(KindNearest)
	res, ok, err = e.nearest(spatial.V(x, y), tags, &opts)
	e.finish(start, boolToInt(ok), err)
	return res, ok, err
}

func (e *Engine[K]) nearest(origin spatial.Vec2, tags []K, opts *Options) (Result, bool, error) {
	if err := e.validate(0, tags, opts); err != nil {
		return Result{}, false, err
	}
	if len(tags) == 0 {
		return Result{}, false, nil
	}

	limit := opts.MaxRadius
	if limit == 0 {
		limit = math.Inf(1)
	}

	size := e.regions.RegionSize()
	extent, loaded := e.extent(spatial.RegionOf(origin, size))
	if !loaded {
		return Result{}, false, nil
	}

	radius := e.cfg.InitialNearestRadius
	if radius <= 0 {
		radius = size
	}

	for ring := 1; ; ring++ {
		// The last ring searches out to the limit. Once the ring's region span
		// covers every loaded region there is nothing left to widen into, so
		// that ring is also the last one.
		last := ring >= e.cfg.MaxNearestIterations ||
			radius >= limit ||
			spatial.RegionSpan(radius, size) >= extent
		if last {
			radius = limit
		}

		e.stats.Rings++
		res, found, err := e.closest(origin, radius, tags, opts)
		if err != nil || found || last {
			return res, found, err
		}
		radius *= 2
	}
}

// closest returns the best match within radius. Candidates are compared by
// exact distance then id, the same order EntitiesInRadius sorts by.
func (e *Engine[K]) closest(origin spatial.Vec2, radius float64, tags []K, opts *Options) (Result, bool, error) {
	var best Result
	found := false

	err := e.scan(origin, radius, tags, opts, func(id entity.Id, pos spatial.Vec2) bool {
		d := spatial.Distance(origin, pos)
		if !found || d < best.Distance || (d == best.Distance && id < best.ID) {
			best = Result{ID: id, Distance: d}
			found = true
		}
		return true
	})
	if err != nil || !found {
		return Result{}, false, err
	}
	return best, true, nil
}
