// Package world is a single-threaded entity table that owns region lifecycle
// and keeps the per-region caches in step with every mutation. A query.Engine
// reading through a World sees every change applied earlier in the tick.
//
// Entities may live anywhere, including in regions that are not loaded. Only
// loaded regions have caches, and only cached entities are visible to queries.
package world

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"slices"

	"github.com/kamstrup/intmap"
	"github.com/plus3/chunkq/chunk"
	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/query"
	"github.com/plus3/chunkq/spatial"
)

var (
	ErrUnknownEntity   = errors.New("world: unknown entity")
	ErrUnknownTag      = errors.New("world: unknown tag")
	ErrInvalidPosition = errors.New("world: invalid position")
)

var (
	_ query.Regions[Tag] = (*World)(nil)
	_ query.Positions    = (*World)(nil)
	_ query.Tags[Tag]    = (*TagRegistry)(nil)
)

// Config tunes a World.
type Config struct {
	// RegionSize is the side length of a region in world units.
	RegionSize float64
	// Capacity is a hint for the number of entities.
	Capacity int
	Logger   *slog.Logger
	// Query configures the engine returned by World.Query. Its Logger
	// defaults to the world's.
	Query query.Config
}

// DefaultConfig returns a Config with 16-unit regions.
func DefaultConfig() Config {
	return Config{
		RegionSize: 16,
		Capacity:   1024,
		Logger:     slog.Default(),
		Query:      query.DefaultConfig(),
	}
}

type memberSet = intmap.Map[entity.Id, struct{}]

// World owns entity positions, tags and region membership.
type World struct {
	cfg    Config
	logger *slog.Logger
	tags   *TagRegistry
	slots  slots

	// members holds every entity per region, loaded or not. Rebuilds read it
	// instead of scanning the whole table.
	members *intmap.Map[uint64, *memberSet]
	loaded  *intmap.Map[uint64, struct{}]
	caches  *chunk.Registry[Tag]
	bounds  loadedBounds

	tick   uint64
	engine *query.Engine[Tag]
}

type loadedBounds struct {
	lo, hi spatial.RegionCoord
	ok     bool
	stale  bool
}

// New creates an empty World whose capability tags come from tags.
func New(tags *TagRegistry, cfg Config) *World {
	def := DefaultConfig()
	if !(cfg.RegionSize > 0) || math.IsInf(cfg.RegionSize, 1) {
		cfg.RegionSize = def.RegionSize
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Query.Logger == nil {
		cfg.Query.Logger = cfg.Logger
	}

	w := &World{
		cfg:     cfg,
		logger:  cfg.Logger,
		tags:    tags,
		slots:   newSlots(cfg.Capacity),
		members: intmap.New[uint64, *memberSet](64),
		loaded:  intmap.New[uint64, struct{}](64),
		caches:  chunk.NewRegistry[Tag](64),
	}
	w.engine = query.New[Tag](w, w, tags, cfg.Query)
	return w
}

// Query returns the engine bound to this world.
func (w *World) Query() *query.Engine[Tag] {
	return w.engine
}

func (w *World) Tags() *TagRegistry {
	return w.tags
}

func (w *World) Logger() *slog.Logger {
	return w.logger
}

// Tick returns the current tick.
func (w *World) Tick() uint64 {
	return w.tick
}

// Advance moves to the next tick and returns it.
func (w *World) Advance() uint64 {
	w.tick++
	return w.tick
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.slots.len()
}

// Spawn creates an entity at pos holding tags. Duplicate tags are collapsed.
func (w *World) Spawn(pos spatial.Vec2, tags ...Tag) (entity.Id, error) {
	if err := w.checkPosition(pos); err != nil {
		return 0, err
	}
	for _, tag := range tags {
		if !w.tags.Known(tag) {
			return 0, fmt.Errorf("%w: %v", ErrUnknownTag, tag)
		}
	}

	id, rec := w.slots.alloc()
	rec.pos = pos
	rec.region = spatial.RegionOf(pos, w.cfg.RegionSize)
	rec.tags = make([]Tag, 0, len(tags))
	for _, tag := range tags {
		if !rec.hasTag(tag) {
			rec.tags = append(rec.tags, tag)
		}
	}

	w.join(id, rec)
	return id, nil
}

// Destroy removes the entity and its cache entries. Its id goes stale; the
// slot is reused under a new generation.
func (w *World) Destroy(id entity.Id) error {
	rec := w.slots.get(id)
	if rec == nil {
		return fmt.Errorf("%w: %v", ErrUnknownEntity, id)
	}
	w.leave(id, rec)
	w.slots.free(id)
	return nil
}

// Attach gives the entity tag. Attaching a tag it already holds is a no-op.
func (w *World) Attach(id entity.Id, tag Tag) error {
	if !w.tags.Known(tag) {
		return fmt.Errorf("%w: %v", ErrUnknownTag, tag)
	}
	rec := w.slots.get(id)
	if rec == nil {
		return fmt.Errorf("%w: %v", ErrUnknownEntity, id)
	}
	if rec.hasTag(tag) {
		return nil
	}

	rec.tags = append(rec.tags, tag)
	if cache := w.loadedCache(rec.region); cache != nil {
		cache.Add(tag, id)
		cache.Touch(w.tick)
	}
	return nil
}

// Detach removes tag from the entity. Detaching a tag it does not hold is a
// no-op.
func (w *World) Detach(id entity.Id, tag Tag) error {
	if !w.tags.Known(tag) {
		return fmt.Errorf("%w: %v", ErrUnknownTag, tag)
	}
	rec := w.slots.get(id)
	if rec == nil {
		return fmt.Errorf("%w: %v", ErrUnknownEntity, id)
	}
	i := slices.Index(rec.tags, tag)
	if i < 0 {
		return nil
	}

	rec.tags = slices.Delete(rec.tags, i, i+1)
	if cache := w.loadedCache(rec.region); cache != nil {
		cache.Remove(tag, id)
		cache.Touch(w.tick)
	}
	return nil
}

// Move sets the entity's position. When the move crosses a region boundary
// the entity leaves the old region's cache and joins the new one in the same
// call, so no query can observe it in both or neither.
func (w *World) Move(id entity.Id, pos spatial.Vec2) error {
	if err := w.checkPosition(pos); err != nil {
		return err
	}
	rec := w.slots.get(id)
	if rec == nil {
		return fmt.Errorf("%w: %v", ErrUnknownEntity, id)
	}

	rec.pos = pos
	region := spatial.RegionOf(pos, w.cfg.RegionSize)
	if region == rec.region {
		return nil
	}

	w.leave(id, rec)
	rec.region = region
	w.join(id, rec)
	return nil
}

// Position returns the entity's current position. ok is false for stale or
// unknown ids.
func (w *World) Position(id entity.Id) (spatial.Vec2, bool) {
	rec := w.slots.get(id)
	if rec == nil {
		return spatial.Vec2{}, false
	}
	return rec.pos, true
}

// Alive reports whether id refers to a live entity.
func (w *World) Alive(id entity.Id) bool {
	return w.slots.get(id) != nil
}

func (w *World) HasTag(id entity.Id, tag Tag) bool {
	rec := w.slots.get(id)
	return rec != nil && rec.hasTag(tag)
}

// TagsOf returns a copy of the entity's tags, or nil for unknown ids.
func (w *World) TagsOf(id entity.Id) []Tag {
	rec := w.slots.get(id)
	if rec == nil {
		return nil
	}
	return slices.Clone(rec.tags)
}

// Entities yields every live entity and its position in slot order.
func (w *World) Entities() iter.Seq2[entity.Id, spatial.Vec2] {
	return func(yield func(entity.Id, spatial.Vec2) bool) {
		for id, rec := range w.slots.all() {
			if !yield(id, rec.pos) {
				return
			}
		}
	}
}

// LoadRegion loads the region at coord and creates its cache. The cache
// starts dirty, so entities already standing in the region are indexed by
// the first query that reads it. It reports false if the region was already
// loaded.
func (w *World) LoadRegion(coord spatial.RegionCoord) bool {
	key := coord.Pack()
	if _, ok := w.loaded.Get(key); ok {
		return false
	}

	w.loaded.Put(key, struct{}{})
	w.caches.GetOrCreate(coord).MarkDirty()
	w.bounds.extend(coord)

	w.logger.Debug("region loaded", "region", coord)
	return true
}

// UnloadRegion drops the region's cache. Entities in it stay alive but are
// invisible to queries until the region loads again.
func (w *World) UnloadRegion(coord spatial.RegionCoord) bool {
	if !w.loaded.Del(coord.Pack()) {
		return false
	}

	w.caches.Remove(coord)
	w.bounds.stale = true

	w.logger.Debug("region unloaded", "region", coord)
	return true
}

// MarkRegionDirty forces the region's cache to be rebuilt from the entity
// table on its next read. It reports false if the region is not loaded.
func (w *World) MarkRegionDirty(coord spatial.RegionCoord) bool {
	cache, ok := w.caches.Get(coord)
	if !ok {
		return false
	}
	cache.MarkDirty()
	return true
}

func (w *World) RegionSize() float64 {
	return w.cfg.RegionSize
}

func (w *World) IsLoaded(coord spatial.RegionCoord) bool {
	_, ok := w.loaded.Get(coord.Pack())
	return ok
}

func (w *World) LoadedCount() int {
	return w.loaded.Len()
}

// LoadedBounds returns the bounding rectangle of the loaded regions. It is
// kept incrementally on load and recomputed lazily after an unload.
func (w *World) LoadedBounds() (lo, hi spatial.RegionCoord, ok bool) {
	if w.bounds.stale {
		w.bounds = loadedBounds{}
		w.loaded.ForEach(func(key uint64, _ struct{}) bool {
			w.bounds.extend(spatial.UnpackRegion(key))
			return true
		})
	}
	return w.bounds.lo, w.bounds.hi, w.bounds.ok
}

func (w *World) LoadedRegions() iter.Seq[spatial.RegionCoord] {
	return func(yield func(spatial.RegionCoord) bool) {
		w.loaded.ForEach(func(key uint64, _ struct{}) bool {
			return yield(spatial.UnpackRegion(key))
		})
	}
}

func (w *World) Caches() *chunk.Registry[Tag] {
	return w.caches
}

// Rebuild repopulates cache from the entities standing in its region.
func (w *World) Rebuild(cache *chunk.Cache[Tag]) {
	coord := cache.Coord()
	n := 0
	if set, ok := w.members.Get(coord.Pack()); ok {
		set.ForEach(func(id entity.Id, _ struct{}) bool {
			rec := w.slots.get(id)
			if rec == nil {
				w.logger.Error("region member has no entity record", "region", coord, "entity", id)
				return true
			}
			for _, tag := range rec.tags {
				cache.Add(tag, id)
			}
			n++
			return true
		})
	}
	cache.Touch(w.tick)

	w.logger.Debug("region cache rebuilt", "region", coord, "entities", n)
}

// RegionPopulation returns the number of entities standing in the region,
// whether or not it is loaded.
func (w *World) RegionPopulation(coord spatial.RegionCoord) int {
	set, ok := w.members.Get(coord.Pack())
	if !ok {
		return 0
	}
	return set.Len()
}

// join records the entity as standing in rec.region and indexes it if the
// region is loaded.
func (w *World) join(id entity.Id, rec *record) {
	key := rec.region.Pack()
	set, ok := w.members.Get(key)
	if !ok {
		set = intmap.New[entity.Id, struct{}](8)
		w.members.Put(key, set)
	}
	set.Put(id, struct{}{})

	if cache := w.loadedCache(rec.region); cache != nil {
		for _, tag := range rec.tags {
			cache.Add(tag, id)
		}
		cache.Touch(w.tick)
	}
}

// leave undoes join for rec.region.
func (w *World) leave(id entity.Id, rec *record) {
	key := rec.region.Pack()
	if set, ok := w.members.Get(key); ok {
		set.Del(id)
		if set.Len() == 0 {
			w.members.Del(key)
		}
	}

	if cache := w.loadedCache(rec.region); cache != nil {
		cache.RemoveAll(id)
		cache.Touch(w.tick)
	}
}

// loadedCache returns the cache of a loaded region. A loaded region whose
// cache went missing is left alone so the engine reports it.
func (w *World) loadedCache(coord spatial.RegionCoord) *chunk.Cache[Tag] {
	if !w.IsLoaded(coord) {
		return nil
	}
	cache, _ := w.caches.Get(coord)
	return cache
}

func (b *loadedBounds) extend(coord spatial.RegionCoord) {
	if b.stale {
		return
	}
	if !b.ok {
		b.lo, b.hi, b.ok = coord, coord, true
		return
	}
	b.lo.X, b.lo.Y = min(b.lo.X, coord.X), min(b.lo.Y, coord.Y)
	b.hi.X, b.hi.Y = max(b.hi.X, coord.X), max(b.hi.Y, coord.Y)
}

// checkPosition rejects positions whose region coordinate does not fit in an
// int32, NaN and infinities included.
func (w *World) checkPosition(pos spatial.Vec2) error {
	limit := float64(math.MaxInt32) * w.cfg.RegionSize
	if !(math.Abs(pos.X) < limit) || !(math.Abs(pos.Y) < limit) {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}
	return nil
}
