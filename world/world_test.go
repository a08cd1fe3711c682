package world_test

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/query"
	"github.com/plus3/chunkq/spatial"
	"github.com/plus3/chunkq/world"
)

type Agent struct{}
type Hostile struct{}
type Food struct{}

var (
	agent   = world.TagOf[Agent]()
	hostile = world.TagOf[Hostile]()
	food    = world.TagOf[Food]()
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	tags := world.NewTagRegistry()
	world.RegisterTag[Agent](tags)
	world.RegisterTag[Hostile](tags)
	world.RegisterTag[Food](tags)
	return world.New(tags, world.Config{RegionSize: 16})
}

func loadArea(w *world.World, minX, minY, maxX, maxY int32) {
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			w.LoadRegion(spatial.RegionCoord{X: x, Y: y})
		}
	}
}

func spawn(t *testing.T, w *world.World, x, y float64, tags ...world.Tag) entity.Id {
	t.Helper()
	id, err := w.Spawn(spatial.V(x, y), tags...)
	require.NoError(t, err)
	return id
}

func radius(t *testing.T, w *world.World, x, y, r float64, tags ...world.Tag) []entity.Id {
	t.Helper()
	results, err := w.Query().EntitiesInRadius(x, y, r, tags, query.Options{})
	require.NoError(t, err)
	out := make([]entity.Id, len(results))
	for i, res := range results {
		out[i] = res.ID
	}
	return out
}

func TestWorldRadiusQuery(t *testing.T) {
	w := newTestWorld(t)
	loadArea(w, -4, -4, 4, 4)
	a := spawn(t, w, 0, 0, agent)
	b := spawn(t, w, 5, 5, agent)
	spawn(t, w, 50, 50, agent)

	results, err := w.Query().EntitiesInRadius(0, 0, 10, []world.Tag{agent}, query.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, a, results[0].ID)
	assert.Equal(t, 0.0, results[0].Distance)
	assert.Equal(t, b, results[1].ID)
	assert.InDelta(t, 7.0710678, results[1].Distance, 1e-6)
}

func TestWorldMoveAcrossRegions(t *testing.T) {
	w := newTestWorld(t)
	loadArea(w, 0, 0, 3, 0)
	id := spawn(t, w, 8, 8, agent)

	assert.Equal(t, []entity.Id{id}, radius(t, w, 8, 8, 1, agent))

	require.NoError(t, w.Move(id, spatial.V(56, 8)))

	assert.Empty(t, radius(t, w, 8, 8, 4, agent))
	assert.Equal(t, []entity.Id{id}, radius(t, w, 56, 8, 4, agent))

	old, ok := w.Caches().Get(spatial.RegionCoord{X: 0, Y: 0})
	require.True(t, ok)
	assert.False(t, old.Entities(agent).Has(id))

	cur, ok := w.Caches().Get(spatial.RegionCoord{X: 3, Y: 0})
	require.True(t, ok)
	assert.True(t, cur.Entities(agent).Has(id))
}

func TestWorldMoveWithinRegion(t *testing.T) {
	w := newTestWorld(t)
	w.LoadRegion(spatial.RegionCoord{})
	id := spawn(t, w, 1, 1, agent)

	require.NoError(t, w.Move(id, spatial.V(15, 15)))
	pos, ok := w.Position(id)
	require.True(t, ok)
	assert.Equal(t, spatial.V(15, 15), pos)
	assert.Empty(t, radius(t, w, 1, 1, 2, agent))
	assert.Equal(t, []entity.Id{id}, radius(t, w, 15, 15, 0, agent))
}

func TestWorldRegionLifecycle(t *testing.T) {
	w := newTestWorld(t)
	id := spawn(t, w, 20, 20, agent)

	t.Run("unloaded regions are invisible", func(t *testing.T) {
		assert.Empty(t, radius(t, w, 20, 20, 5, agent))
		assert.False(t, w.IsLoaded(spatial.RegionCoord{X: 1, Y: 1}))
	})

	t.Run("load indexes existing entities", func(t *testing.T) {
		require.True(t, w.LoadRegion(spatial.RegionCoord{X: 1, Y: 1}))
		require.False(t, w.LoadRegion(spatial.RegionCoord{X: 1, Y: 1}))

		cache, ok := w.Caches().Get(spatial.RegionCoord{X: 1, Y: 1})
		require.True(t, ok)
		assert.True(t, cache.Dirty())

		assert.Equal(t, []entity.Id{id}, radius(t, w, 20, 20, 5, agent))
		assert.False(t, cache.Dirty())
	})

	t.Run("unload drops the cache", func(t *testing.T) {
		require.True(t, w.UnloadRegion(spatial.RegionCoord{X: 1, Y: 1}))
		require.False(t, w.UnloadRegion(spatial.RegionCoord{X: 1, Y: 1}))

		_, ok := w.Caches().Get(spatial.RegionCoord{X: 1, Y: 1})
		assert.False(t, ok)
		assert.Empty(t, radius(t, w, 20, 20, 5, agent))
		assert.True(t, w.Alive(id))
	})

	t.Run("moving into an unloaded region hides the entity", func(t *testing.T) {
		w.LoadRegion(spatial.RegionCoord{X: 1, Y: 1})
		require.NoError(t, w.Move(id, spatial.V(-20, -20)))
		assert.Empty(t, radius(t, w, -20, -20, 5, agent))
		assert.Equal(t, 1, w.RegionPopulation(spatial.RegionCoord{X: -2, Y: -2}))
		assert.Zero(t, w.RegionPopulation(spatial.RegionCoord{X: 1, Y: 1}))
	})
}

func TestWorldLoadedBounds(t *testing.T) {
	w := newTestWorld(t)

	_, _, ok := w.LoadedBounds()
	assert.False(t, ok)

	w.LoadRegion(spatial.RegionCoord{X: -3, Y: 1})
	w.LoadRegion(spatial.RegionCoord{X: 2, Y: -4})
	w.LoadRegion(spatial.RegionCoord{X: 0, Y: 0})

	lo, hi, ok := w.LoadedBounds()
	require.True(t, ok)
	assert.Equal(t, spatial.RegionCoord{X: -3, Y: -4}, lo)
	assert.Equal(t, spatial.RegionCoord{X: 2, Y: 1}, hi)

	w.UnloadRegion(spatial.RegionCoord{X: -3, Y: 1})
	lo, hi, ok = w.LoadedBounds()
	require.True(t, ok)
	assert.Equal(t, spatial.RegionCoord{X: 0, Y: -4}, lo)
	assert.Equal(t, spatial.RegionCoord{X: 2, Y: 0}, hi)

	assert.Equal(t, 2, w.LoadedCount())
	assert.ElementsMatch(t,
		[]spatial.RegionCoord{{X: 2, Y: -4}, {X: 0, Y: 0}},
		slices.Collect(w.LoadedRegions()))
}

func TestWorldDestroy(t *testing.T) {
	w := newTestWorld(t)
	w.LoadRegion(spatial.RegionCoord{})
	id := spawn(t, w, 1, 1, agent, hostile)

	require.NoError(t, w.Destroy(id))
	assert.False(t, w.Alive(id))
	assert.Empty(t, radius(t, w, 1, 1, 5, agent, hostile))

	_, ok := w.Position(id)
	assert.False(t, ok)
	assert.ErrorIs(t, w.Destroy(id), world.ErrUnknownEntity)

	reused := spawn(t, w, 2, 2, agent)
	assert.Equal(t, id.Index(), reused.Index())
	assert.NotEqual(t, id, reused)
	assert.False(t, w.Alive(id))
	assert.True(t, w.Alive(reused))
	assert.Equal(t, 1, w.Len())
}

func TestWorldTags(t *testing.T) {
	w := newTestWorld(t)
	w.LoadRegion(spatial.RegionCoord{})
	id := spawn(t, w, 1, 1, agent, agent)

	assert.Equal(t, []world.Tag{agent}, w.TagsOf(id))

	require.NoError(t, w.Attach(id, hostile))
	require.NoError(t, w.Attach(id, hostile))
	assert.True(t, w.HasTag(id, hostile))
	assert.Equal(t, []entity.Id{id}, radius(t, w, 0, 0, 5, hostile))

	require.NoError(t, w.Detach(id, agent))
	require.NoError(t, w.Detach(id, agent))
	assert.False(t, w.HasTag(id, agent))
	assert.Empty(t, radius(t, w, 0, 0, 5, agent))
	assert.Equal(t, []entity.Id{id}, radius(t, w, 0, 0, 5, agent, hostile))

	t.Run("unknown tag", func(t *testing.T) {
		type Ghost struct{}
		ghost := world.TagOf[Ghost]()

		_, err := w.Spawn(spatial.V(0, 0), ghost)
		assert.ErrorIs(t, err, world.ErrUnknownTag)
		assert.ErrorIs(t, w.Attach(id, ghost), world.ErrUnknownTag)
		assert.ErrorIs(t, w.Detach(id, ghost), world.ErrUnknownTag)

		_, err = w.Query().EntitiesInRadius(0, 0, 5, []world.Tag{ghost}, query.Options{})
		assert.ErrorIs(t, err, query.ErrInvalidArgument)
	})

	t.Run("unknown entity", func(t *testing.T) {
		missing := entity.NewId(7, 7)
		assert.ErrorIs(t, w.Attach(missing, agent), world.ErrUnknownEntity)
		assert.ErrorIs(t, w.Detach(missing, agent), world.ErrUnknownEntity)
		assert.ErrorIs(t, w.Move(missing, spatial.V(1, 1)), world.ErrUnknownEntity)
		assert.Nil(t, w.TagsOf(missing))
		assert.False(t, w.HasTag(missing, agent))
	})
}

func TestWorldInvalidPosition(t *testing.T) {
	w := newTestWorld(t)
	for _, p := range []spatial.Vec2{
		spatial.V(math.NaN(), 0),
		spatial.V(0, math.Inf(-1)),
		spatial.V(1e300, 0),
	} {
		_, err := w.Spawn(p, agent)
		assert.ErrorIs(t, err, world.ErrInvalidPosition, "%v", p)
	}

	id := spawn(t, w, 0, 0, agent)
	assert.ErrorIs(t, w.Move(id, spatial.V(math.NaN(), 0)), world.ErrInvalidPosition)
	pos, _ := w.Position(id)
	assert.Equal(t, spatial.V(0, 0), pos)
}

func TestWorldMarkRegionDirty(t *testing.T) {
	w := newTestWorld(t)
	assert.False(t, w.MarkRegionDirty(spatial.RegionCoord{}))

	w.LoadRegion(spatial.RegionCoord{})
	id := spawn(t, w, 3, 3, food)
	assert.Equal(t, []entity.Id{id}, radius(t, w, 0, 0, 10, food))

	require.True(t, w.MarkRegionDirty(spatial.RegionCoord{}))
	assert.Equal(t, []entity.Id{id}, radius(t, w, 0, 0, 10, food))
	assert.Equal(t, 1, w.Query().LastStats().Rebuilds)
}

func TestWorldMissingCacheSurfaces(t *testing.T) {
	w := newTestWorld(t)
	loadArea(w, 0, 0, 3, 0)
	near := spawn(t, w, 4, 4, agent)

	broken := spatial.RegionCoord{X: 3, Y: 0}
	require.True(t, w.Caches().Remove(broken))
	spawn(t, w, 52, 4, agent)

	_, err := w.Query().EntitiesInRadius(4, 4, 64, []world.Tag{agent}, query.Options{})
	require.ErrorIs(t, err, query.ErrMissingRegionCache)
	_, ok := w.Caches().Get(broken)
	assert.False(t, ok, "mutations never recreate a lost cache")

	assert.Equal(t, []entity.Id{near}, radius(t, w, 4, 4, 1, agent), "queries that avoid the region still work")
}

func TestWorldQueriesAcrossDistantRegions(t *testing.T) {
	tags := world.NewTagRegistry()
	world.RegisterTag[Agent](tags)
	w := world.New(tags, world.Config{RegionSize: 1})

	w.LoadRegion(spatial.RegionCoord{X: -2e9})
	w.LoadRegion(spatial.RegionCoord{X: 2e9})
	id := spawn(t, w, 2e9+0.5, 0.5, agent)

	q := w.Query()
	results, err := q.EntitiesInRadius(-2e9+0.5, 0.5, 5e9, []world.Tag{agent}, query.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, 4e9, results[0].Distance)

	n, err := q.CountEntitiesInRadius(-2e9+0.5, 0.5, math.Inf(1), []world.Tag{agent}, query.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, ok, err := q.NearestEntity(-2e9+0.5, 0.5, []world.Tag{agent}, query.Options{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, res.ID)
}

func TestWorldCollectStats(t *testing.T) {
	w := newTestWorld(t)
	loadArea(w, 0, 0, 1, 0)
	spawn(t, w, 1, 1, agent)
	spawn(t, w, 2, 2, agent, hostile)
	spawn(t, w, 20, 2, food)
	spawn(t, w, 100, 100, food)
	w.Advance()

	stats := w.CollectStats()
	assert.Equal(t, uint64(1), stats.Tick)
	assert.Equal(t, 4, stats.EntityCount)
	assert.Equal(t, 2, stats.LoadedRegions)
	assert.Equal(t, 2, stats.CacheCount)
	assert.Equal(t, 2, stats.DirtyCaches)
	assert.Equal(t, 1, stats.Unindexed)
	assert.Empty(t, stats.TagCounts)

	_, err := w.Query().CountEntitiesInRadius(0, 0, 40, []world.Tag{agent}, query.Options{})
	require.NoError(t, err)

	stats = w.CollectStats()
	assert.Zero(t, stats.DirtyCaches)
	require.Len(t, stats.Regions, 2)
	assert.Equal(t, spatial.RegionCoord{X: 0, Y: 0}, stats.Regions[0].Coord)
	assert.Equal(t, 2, stats.Regions[0].Population)
	assert.Equal(t, 2, stats.Regions[0].Indexed)
	assert.Equal(t, uint64(1), stats.Regions[0].LastUpdate)
	assert.Equal(t, 1, stats.Regions[1].Indexed)

	counts := map[world.Tag]int{}
	for _, tc := range stats.TagCounts {
		counts[tc.Tag] = tc.Count
	}
	assert.Equal(t, map[world.Tag]int{agent: 2, hostile: 1, food: 1}, counts)
}

// TestWorldMatchesBruteForce drives random mutations and region churn and
// checks every query against a scan of the entity table.
func TestWorldMatchesBruteForce(t *testing.T) {
	w := newTestWorld(t)
	rng := rand.New(rand.NewPCG(42, 43))
	tags := []world.Tag{agent, hostile, food}

	loadArea(w, -4, -4, 4, 4)
	var live []entity.Id
	for range 300 {
		live = append(live, spawn(t, w, rng.Float64()*200-100, rng.Float64()*200-100, tags[rng.IntN(3)]))
	}

	brute := func(origin spatial.Vec2, r float64, tag world.Tag) []entity.Id {
		var out []query.Result
		for id, p := range w.Entities() {
			if !w.HasTag(id, tag) || !w.IsLoaded(spatial.RegionOf(p, w.RegionSize())) {
				continue
			}
			if d := spatial.Distance(origin, p); d <= r {
				out = append(out, query.Result{ID: id, Distance: d})
			}
		}
		slices.SortFunc(out, func(a, b query.Result) int {
			if a.Distance != b.Distance {
				if a.Distance < b.Distance {
					return -1
				}
				return 1
			}
			if a.ID < b.ID {
				return -1
			}
			if a.ID > b.ID {
				return 1
			}
			return 0
		})
		ids := make([]entity.Id, len(out))
		for i, res := range out {
			ids[i] = res.ID
		}
		return ids
	}

	for step := range 400 {
		switch rng.IntN(6) {
		case 0:
			i := rng.IntN(len(live))
			require.NoError(t, w.Destroy(live[i]))
			live = slices.Delete(live, i, i+1)
			live = append(live, spawn(t, w, rng.Float64()*200-100, rng.Float64()*200-100, tags[rng.IntN(3)]))
		case 1:
			coord := spatial.RegionCoord{X: int32(rng.IntN(12) - 6), Y: int32(rng.IntN(12) - 6)}
			if w.IsLoaded(coord) {
				w.UnloadRegion(coord)
			} else {
				w.LoadRegion(coord)
			}
		case 2:
			id := live[rng.IntN(len(live))]
			tag := tags[rng.IntN(3)]
			if w.HasTag(id, tag) {
				require.NoError(t, w.Detach(id, tag))
			} else {
				require.NoError(t, w.Attach(id, tag))
			}
		default:
			for range 20 {
				id := live[rng.IntN(len(live))]
				pos, _ := w.Position(id)
				require.NoError(t, w.Move(id, pos.Add(spatial.V(rng.Float64()*20-10, rng.Float64()*20-10))))
			}
		}

		origin := spatial.V(rng.Float64()*200-100, rng.Float64()*200-100)
		r := rng.Float64() * 40
		tag := tags[rng.IntN(3)]
		require.Equal(t, brute(origin, r, tag), radius(t, w, origin.X, origin.Y, r, tag), "step %d", step)
	}
}
