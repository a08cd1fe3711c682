package main

import (
	"math"
	"math/rand"

	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/query"
	"github.com/plus3/chunkq/spatial"
	"github.com/plus3/chunkq/world"
)

// Capability tags carried by stress entities.
type (
	Agent   struct{}
	Hostile struct{}
	Food    struct{}
)

func NewTagRegistry() *world.TagRegistry {
	tags := world.NewTagRegistry()
	world.RegisterTag[Agent](tags)
	world.RegisterTag[Hostile](tags)
	world.RegisterTag[Food](tags)
	return tags
}

// Arena is the square area covered by the loaded regions.
type Arena struct {
	Lo       int32 // lowest region coordinate on each axis
	Regions  int32
	Min, Max float64
}

func NewArena(cfg Config) Arena {
	lo := -int32(cfg.WorldRegions / 2)
	return Arena{
		Lo:      lo,
		Regions: int32(cfg.WorldRegions),
		Min:     float64(lo) * cfg.RegionSize,
		Max:     float64(lo+int32(cfg.WorldRegions)) * cfg.RegionSize,
	}
}

// Random returns a uniformly distributed point inside the arena.
func (a Arena) Random(rng *rand.Rand) spatial.Vec2 {
	span := a.Max - a.Min
	return a.Clamp(spatial.V(a.Min+rng.Float64()*span, a.Min+rng.Float64()*span))
}

// Clamp pulls p back inside the arena. The upper edge is exclusive so a
// clamped point never lands in a region outside the loaded square.
func (a Arena) Clamp(p spatial.Vec2) spatial.Vec2 {
	hi := math.Nextafter(a.Max, math.Inf(-1))
	return spatial.V(
		min(max(p.X, a.Min), hi),
		min(max(p.Y, a.Min), hi),
	)
}

// Load loads every region covering the arena.
func (a Arena) Load(w *world.World) {
	for x := a.Lo; x < a.Lo+a.Regions; x++ {
		for y := a.Lo; y < a.Lo+a.Regions; y++ {
			w.LoadRegion(spatial.RegionCoord{X: x, Y: y})
		}
	}
}

// Populate spawns the configured agents and food at random positions.
func Populate(w *world.World, cfg Config, rng *rand.Rand) error {
	arena := NewArena(cfg)
	agent := world.TagOf[Agent]()
	hostile := world.TagOf[Hostile]()
	food := world.TagOf[Food]()

	for i := 0; i < cfg.Agents; i++ {
		tags := []world.Tag{agent}
		if rng.Float64() < cfg.HostileRatio {
			tags = append(tags, hostile)
		}
		if _, err := w.Spawn(arena.Random(rng), tags...); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.Food; i++ {
		if _, err := w.Spawn(arena.Random(rng), food); err != nil {
			return err
		}
	}
	return nil
}

// WanderSystem moves every agent one random step per tick.
type WanderSystem struct {
	Arena Arena
	Speed float64
	Rng   *rand.Rand
}

func (s *WanderSystem) Execute(frame *world.Frame) {
	agent := world.TagOf[Agent]()
	step := s.Speed * frame.DeltaTime
	if step <= 0 {
		return
	}

	for id, pos := range frame.World.Entities() {
		if !frame.World.HasTag(id, agent) {
			continue
		}
		angle := s.Rng.Float64() * 2 * math.Pi
		next := pos.Add(spatial.V(math.Cos(angle), math.Sin(angle)).Scale(step))
		frame.Commands.Move(id, s.Arena.Clamp(next))
	}
}

// PerceptionStats counts what PerceptionSystem saw.
type PerceptionStats struct {
	Queries    int64 `json:"queries"`
	Errors     int64 `json:"errors"`
	Sensed     int64 `json:"sensed"`
	Eaten      int64 `json:"eaten"`
	Threatened int64 `json:"threatened"`
	Tracked    int64 `json:"tracked"`
	PackSize   int64 `json:"packSize"`
}

// PerceptionSystem runs the spatial queries of a typical agent tick:
//
//   - every agent looks for food within SenseRadius and eats the closest one
//     inside EatRadius, which respawns elsewhere,
//   - every agent checks whether a hostile is within SenseRadius,
//   - every hostile finds the nearest non-hostile agent within twice
//     SenseRadius and counts the hostiles around itself.
type PerceptionSystem struct {
	Arena       Arena
	SenseRadius float64
	EatRadius   float64
	Rng         *rand.Rand
	Stats       PerceptionStats

	results []query.Result
	exclude [1]entity.Id
	claimed map[entity.Id]struct{}
}

func (s *PerceptionSystem) Execute(frame *world.Frame) {
	w := frame.World
	q := frame.Query()

	agent := world.TagOf[Agent]()
	hostile := world.TagOf[Hostile]()
	food := world.TagOf[Food]()
	foodTags := []world.Tag{food}
	hostileTags := []world.Tag{hostile}
	agentTags := []world.Tag{agent}
	prey := func(id entity.Id) bool {
		return !w.HasTag(id, hostile)
	}

	if s.claimed == nil {
		s.claimed = make(map[entity.Id]struct{})
	}
	clear(s.claimed)

	for id, pos := range w.Entities() {
		if !w.HasTag(id, agent) {
			continue
		}
		s.exclude[0] = id
		near := query.Options{Exclude: s.exclude[:]}

		results, err := q.AppendEntitiesInRadius(s.results[:0], pos.X, pos.Y, s.SenseRadius, foodTags, query.Options{Limit: 8})
		s.Stats.Queries++
		if err != nil {
			s.fail(w, id, err)
			continue
		}
		s.results = results
		s.Stats.Sensed += int64(len(results))
		s.eat(frame, results)

		threatened, err := q.HasEntityInRadius(pos.X, pos.Y, s.SenseRadius, hostileTags, near)
		s.Stats.Queries++
		if err != nil {
			s.fail(w, id, err)
			continue
		}
		if threatened {
			s.Stats.Threatened++
		}

		if !w.HasTag(id, hostile) {
			continue
		}

		_, found, err := q.NearestEntity(pos.X, pos.Y, agentTags, query.Options{
			Exclude:   near.Exclude,
			MaxRadius: 2 * s.SenseRadius,
			Filter:    prey,
		})
		s.Stats.Queries++
		if err != nil {
			s.fail(w, id, err)
			continue
		}
		if found {
			s.Stats.Tracked++
		}

		pack, err := q.CountEntitiesInRadius(pos.X, pos.Y, s.SenseRadius, hostileTags, near)
		s.Stats.Queries++
		if err != nil {
			s.fail(w, id, err)
			continue
		}
		s.Stats.PackSize += int64(pack)
	}
}

// eat consumes the closest unclaimed food within EatRadius. Results are
// sorted by distance.
func (s *PerceptionSystem) eat(frame *world.Frame, results []query.Result) {
	for _, r := range results {
		if r.Distance > s.EatRadius {
			return
		}
		if _, taken := s.claimed[r.ID]; taken {
			continue
		}
		s.claimed[r.ID] = struct{}{}
		frame.Commands.Destroy(r.ID)
		frame.Commands.Spawn(s.Arena.Random(s.Rng), world.TagOf[Food]())
		s.Stats.Eaten++
		return
	}
}

func (s *PerceptionSystem) fail(w *world.World, id entity.Id, err error) {
	s.Stats.Errors++
	w.Logger().Warn("perception query failed", "entity", id, "error", err)
}

// ChurnSystem unloads and reloads one random region every Every ticks, so
// queries keep meeting freshly dirtied caches.
type ChurnSystem struct {
	Arena   Arena
	Every   uint64
	Rng     *rand.Rand
	Churned int64
}

func (s *ChurnSystem) Execute(frame *world.Frame) {
	if s.Every == 0 || s.Arena.Regions <= 0 || frame.Tick%s.Every != 0 {
		return
	}
	coord := spatial.RegionCoord{
		X: s.Arena.Lo + s.Rng.Int31n(s.Arena.Regions),
		Y: s.Arena.Lo + s.Rng.Int31n(s.Arena.Regions),
	}
	w := frame.World
	frame.Commands.Defer(func() {
		w.UnloadRegion(coord)
		w.LoadRegion(coord)
	})
	s.Churned++
}
