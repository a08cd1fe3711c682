// Package query answers "which entities holding one of these tags are near
// point P?" over a set of per-region caches.
//
// Every operation runs the same three phases:
//
//   - broad: pick every loaded region within Chebyshev distance
//     ceil(radius / regionSize) of the origin's region,
//   - narrow: union the ids indexed under any requested tag in those regions,
//     dropping excluded and filtered ids,
//   - final: resolve each id's current position and keep it only if its true
//     distance is within the radius.
//
// The engine keeps scratch buffers between calls and is not safe for
// concurrent use. Callers must not mutate the world while a query runs.
package query

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kamstrup/intmap"
	"github.com/plus3/chunkq/chunk"
	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/spatial"
)

// excludeLinearMax is the Options.Exclude length up to which exclusion is a
// linear scan instead of a set lookup.
const excludeLinearMax = 8

// Result is a single match and its exact distance from the query origin.
type Result struct {
	ID       entity.Id
	Distance float64
}

// Options narrows a query. The zero value applies no limit, exclusion or filter.
type Options struct {
	// Limit truncates EntitiesInRadius results after sorting. Zero means no limit.
	Limit int
	// MaxRadius bounds NearestEntity. Zero means unbounded, not "this point
	// only"; use EntitiesInRadius with radius 0 for that.
	MaxRadius float64
	// Exclude lists ids that must never be returned, e.g. the querying entity.
	Exclude []entity.Id
	// Filter, when set, must return true for an id to be considered.
	Filter func(id entity.Id) bool
}

// Engine is the spatial query engine over externally owned region caches.
type Engine[K comparable] struct {
	regions   Regions[K]
	positions Positions
	tags      Tags[K]
	cfg       Config
	rebuild   func(*chunk.Cache[K])

	coords  []spatial.RegionCoord
	caches  []*chunk.Cache[K]
	seen    *intmap.Map[entity.Id, struct{}]
	exclude *intmap.Map[entity.Id, struct{}]
	stats   QueryStats
}

// New creates an Engine reading region caches from regions, entity positions
// from positions, and validating capability tags against tags.
func New[K comparable](regions Regions[K], positions Positions, tags Tags[K], cfg Config) *Engine[K] {
	return &Engine[K]{
		regions:   regions,
		positions: positions,
		tags:      tags,
		cfg:       cfg.withDefaults(),
		rebuild:   regions.Rebuild,
		coords:    make([]spatial.RegionCoord, 0, 9),
		caches:    make([]*chunk.Cache[K], 0, 9),
		seen:      intmap.New[entity.Id, struct{}](64),
		exclude:   intmap.New[entity.Id, struct{}](excludeLinearMax * 2),
	}
}

// LastStats returns the statistics of the most recent call.
func (e *Engine[K]) LastStats() QueryStats {
	return e.stats
}

// EntitiesInRadius returns every entity holding at least one of tags whose
// distance from (x, y) is at most radius, sorted by ascending distance with
// ties broken by ascending id. An empty tag list yields an empty result.
func (e *Engine[K]) EntitiesInRadius(x, y, radius float64, tags []K, opts Options) ([]Result, error) {
	return e.AppendEntitiesInRadius(nil, x, y, radius, tags, opts)
}

// AppendEntitiesInRadius is EntitiesInRadius appending into dst, so callers
// that query every tick can reuse one result buffer.
func (e *Engine[K]) AppendEntitiesInRadius(dst []Result, x, y, radius float64, tags []K, opts Options) ([]Result, error) {
	start := e.begin(KindRadius)
	base := len(dst)

	dst, err := e.appendInRadius(dst, spatial.V(x, y), radius, tags, &opts)
	if err != nil {
		dst = dst[:base]
	}

	e.finish(start, len(dst)-base, err)
	return dst, err
}

func (e *Engine[K]) appendInRadius(dst []Result, origin spatial.Vec2, radius float64, tags []K, opts *Options) ([]Result, error) {
	if err := e.validate(radius, tags, opts); err != nil {
		return dst, err
	}
	if len(tags) == 0 {
		return dst, nil
	}

	base := len(dst)
	err := e.scan(origin, radius, tags, opts, func(id entity.Id, pos spatial.Vec2) bool {
		dst = append(dst, Result{ID: id, Distance: spatial.Distance(origin, pos)})
		return true
	})
	if err != nil {
		return dst, err
	}

	slices.SortFunc(dst[base:], compareResults)
	if opts.Limit > 0 && len(dst)-base > opts.Limit {
		dst = dst[:base+opts.Limit]
	}
	return dst, nil
}

// HasEntityInRadius reports whether any entity holding one of tags lies
// within radius of (x, y). It stops at the first match.
func (e *Engine[K]) HasEntityInRadius(x, y, radius float64, tags []K, opts Options) (bool, error) {
	start := e.begin(KindHas)
	origin := spatial.V(x, y)

	found := false
	err := e.validate(radius, tags, &opts)
	if err == nil && len(tags) > 0 {
		err = e.scan(origin, radius, tags, &opts, func(entity.Id, spatial.Vec2) bool {
			found = true
			return false
		})
	}
	if err != nil {
		found = false
	}

	e.finish(start, boolToInt(found), err)
	return found, err
}

// CountEntitiesInRadius returns how many entities holding one of tags lie
// within radius of (x, y). Region membership is only an upper bound, so every
// candidate still goes through the exact distance check.
func (e *Engine[K]) CountEntitiesInRadius(x, y, radius float64, tags []K, opts Options) (int, error) {
	start := e.begin(KindCount)
	origin := spatial.V(x, y)

	count := 0
	err := e.validate(radius, tags, &opts)
	if err == nil && len(tags) > 0 {
		err = e.scan(origin, radius, tags, &opts, func(entity.Id, spatial.Vec2) bool {
			count++
			return true
		})
	}
	if err != nil {
		count = 0
	}

	e.finish(start, count, err)
	return count, err
}

func (e *Engine[K]) validate(radius float64, tags []K, opts *Options) error {
	if math.IsNaN(radius) || radius < 0 {
		return fmt.Errorf("%w: radius %v", ErrInvalidArgument, radius)
	}
	if opts.Limit < 0 {
		return fmt.Errorf("%w: limit %d", ErrInvalidArgument, opts.Limit)
	}
	if math.IsNaN(opts.MaxRadius) || opts.MaxRadius < 0 {
		return fmt.Errorf("%w: max radius %v", ErrInvalidArgument, opts.MaxRadius)
	}
	for _, tag := range tags {
		if !e.tags.Known(tag) {
			return fmt.Errorf("%w: unknown capability tag %v", ErrInvalidArgument, tag)
		}
	}
	return nil
}

// scan runs the three phases and calls visit for every id that survives the
// final distance check. visit returns false to stop the scan early.
func (e *Engine[K]) scan(origin spatial.Vec2, radius float64, tags []K, opts *Options, visit func(entity.Id, spatial.Vec2) bool) error {
	size := e.regions.RegionSize()
	if err := e.collect(spatial.RegionOf(origin, size), spatial.RegionSpan(radius, size)); err != nil {
		return err
	}

	// An id can only appear once per tag set, and a clean index holds each
	// entity in exactly one region, so dedup is only needed across tags.
	dedupe := len(tags) > 1
	if dedupe {
		e.seen.Clear()
	}
	e.loadExclude(opts)

	stopped := false
	each := func(id entity.Id) bool {
		if e.excluded(id, opts) {
			return true
		}
		if dedupe {
			if _, ok := e.seen.Get(id); ok {
				return true
			}
			e.seen.Put(id, struct{}{})
		}
		if opts.Filter != nil && !opts.Filter(id) {
			return true
		}

		e.stats.Candidates++
		pos, ok := e.positions.Position(id)
		if !ok {
			e.stats.Stale++
			return true
		}
		if !spatial.IsWithinRadius(origin, pos, radius) {
			return true
		}
		if !visit(id, pos) {
			stopped = true
			return false
		}
		return true
	}

	for _, cache := range e.caches {
		for _, tag := range tags {
			cache.Entities(tag).Each(each)
			if stopped {
				return nil
			}
		}
	}
	return nil
}

// collect fills e.caches with the cache of every loaded region within span of
// origin, rebuilding dirty caches on the way. The square is clipped to the
// loaded bounds; when it still holds more coordinates than there are loaded
// regions, the loaded set is walked instead. Both yield the same regions.
func (e *Engine[K]) collect(origin spatial.RegionCoord, span int) error {
	e.caches = e.caches[:0]
	e.coords = e.coords[:0]

	lo, hi, ok := e.regions.LoadedBounds()
	if !ok {
		return nil
	}

	minX := max(int(origin.X)-span, int(lo.X))
	maxX := min(int(origin.X)+span, int(hi.X))
	minY := max(int(origin.Y)-span, int(lo.Y))
	maxY := min(int(origin.Y)+span, int(hi.Y))
	if minX > maxX || minY > maxY {
		return nil
	}

	w, h, n := maxX-minX+1, maxY-minY+1, e.regions.LoadedCount()
	if w > n || h > n || w*h > n {
		for coord := range e.regions.LoadedRegions() {
			if spatial.RegionDistance(origin, coord) <= span {
				e.coords = append(e.coords, coord)
			}
		}
	} else {
		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				coord := spatial.RegionCoord{X: int32(x), Y: int32(y)}
				if e.regions.IsLoaded(coord) {
					e.coords = append(e.coords, coord)
				}
			}
		}
	}
	return e.resolve()
}

// resolve looks up the caches of e.coords. Enumerate keeps the order of its
// input and skips coordinates without a cache, so the first coordinate it
// does not yield in turn is a loaded region whose cache is missing.
func (e *Engine[K]) resolve() error {
	i := 0
	for coord, cache := range e.regions.Caches().Enumerate(slices.Values(e.coords)) {
		if coord != e.coords[i] {
			return e.missingCache(e.coords[i])
		}
		i++
		if cache.RebuildIfDirty(e.rebuild) {
			e.stats.Rebuilds++
		}
		e.stats.Regions++
		e.caches = append(e.caches, cache)
	}
	if i < len(e.coords) {
		return e.missingCache(e.coords[i])
	}
	return nil
}

func (e *Engine[K]) missingCache(coord spatial.RegionCoord) error {
	e.cfg.Logger.Error("loaded region has no cache", "region", coord)
	return fmt.Errorf("%w: region %v", ErrMissingRegionCache, coord)
}

// extent returns the largest Chebyshev distance from origin to the loaded
// bounds: a span at least this large covers every loaded region.
func (e *Engine[K]) extent(origin spatial.RegionCoord) (int, bool) {
	lo, hi, ok := e.regions.LoadedBounds()
	if !ok {
		return 0, false
	}
	return max(
		abs(int(origin.X)-int(lo.X)),
		abs(int(hi.X)-int(origin.X)),
		abs(int(origin.Y)-int(lo.Y)),
		abs(int(hi.Y)-int(origin.Y)),
	), true
}

func (e *Engine[K]) loadExclude(opts *Options) {
	if len(opts.Exclude) <= excludeLinearMax {
		return
	}
	e.exclude.Clear()
	for _, id := range opts.Exclude {
		e.exclude.Put(id, struct{}{})
	}
}

func (e *Engine[K]) excluded(id entity.Id, opts *Options) bool {
	switch {
	case len(opts.Exclude) == 0:
		return false
	case len(opts.Exclude) <= excludeLinearMax:
		return slices.Contains(opts.Exclude, id)
	default:
		_, ok := e.exclude.Get(id)
		return ok
	}
}

func (e *Engine[K]) begin(kind Kind) time.Time {
	e.stats = QueryStats{Kind: kind}
	if e.cfg.Observer == nil {
		return time.Time{}
	}
	return time.Now()
}

func (e *Engine[K]) finish(start time.Time, results int, err error) {
	e.stats.Results = results
	e.stats.Err = err
	if e.cfg.Observer == nil {
		return
	}
	e.stats.Duration = time.Since(start)
	e.cfg.Observer.ObserveQuery(e.stats)
}

func compareResults(a, b Result) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
