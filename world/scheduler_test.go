package world_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/query"
	"github.com/plus3/chunkq/spatial"
	"github.com/plus3/chunkq/world"
)

// DriftSystem moves every agent right by Speed units per second.
type DriftSystem struct {
	Speed        float64
	ExecuteCount int
}

func (s *DriftSystem) Execute(frame *world.Frame) {
	s.ExecuteCount++
	for id, pos := range frame.World.Entities() {
		if frame.World.HasTag(id, agent) {
			frame.Commands.Move(id, pos.Add(spatial.V(s.Speed*frame.DeltaTime, 0)))
		}
	}
}

// SenseSystem counts food within Range of each agent.
type SenseSystem struct {
	Range  float64
	Counts map[entity.Id]int
}

func (s *SenseSystem) Execute(frame *world.Frame) {
	s.Counts = make(map[entity.Id]int)
	tags := []world.Tag{food}
	for id, pos := range frame.World.Entities() {
		if !frame.World.HasTag(id, agent) {
			continue
		}
		n, err := frame.Query().CountEntitiesInRadius(pos.X, pos.Y, s.Range, tags, query.Options{})
		if err != nil {
			panic(err)
		}
		s.Counts[id] = n
	}
}

func TestScheduler(t *testing.T) {
	t.Run("systems run in order and see last tick's commands", func(t *testing.T) {
		w := newTestWorld(t)
		loadArea(w, 0, 0, 3, 0)
		a := spawn(t, w, 0, 8, agent)
		spawn(t, w, 20, 8, food)

		drift := &DriftSystem{Speed: 10}
		sense := &SenseSystem{Range: 5}
		scheduler := world.NewScheduler(w)
		scheduler.Register(drift)
		scheduler.Register(sense)

		require.NoError(t, scheduler.Once(1))
		assert.Equal(t, 0, sense.Counts[a], "drift is deferred until the flush")
		pos, _ := w.Position(a)
		assert.Equal(t, spatial.V(10, 8), pos)

		require.NoError(t, scheduler.Once(1))
		assert.Equal(t, 0, sense.Counts[a])
		require.NoError(t, scheduler.Once(1))
		assert.Equal(t, 1, sense.Counts[a])

		assert.Equal(t, uint64(3), w.Tick())
		assert.Equal(t, 3, drift.ExecuteCount)
	})

	t.Run("frame carries tick and delta", func(t *testing.T) {
		w := newTestWorld(t)
		scheduler := world.NewScheduler(w)

		var ticks []uint64
		var deltas []float64
		scheduler.RegisterNamed("recorder", world.SystemFunc(func(f *world.Frame) {
			ticks = append(ticks, f.Tick)
			deltas = append(deltas, f.DeltaTime)
		}))

		require.NoError(t, scheduler.Once(0.5))
		require.NoError(t, scheduler.Once(0.25))
		assert.Equal(t, []uint64{1, 2}, ticks)
		assert.Equal(t, []float64{0.5, 0.25}, deltas)
	})

	t.Run("flush errors are returned and counted", func(t *testing.T) {
		w := newTestWorld(t)
		scheduler := world.NewScheduler(w)
		scheduler.RegisterNamed("bad", world.SystemFunc(func(f *world.Frame) {
			f.Commands.Destroy(entity.NewId(9, 9))
		}))

		err := scheduler.Once(1)
		assert.ErrorIs(t, err, world.ErrUnknownEntity)
		assert.Equal(t, int64(1), scheduler.GetStats().FlushErrors)
	})

	t.Run("stats", func(t *testing.T) {
		w := newTestWorld(t)
		scheduler := world.NewScheduler(w)
		scheduler.Register(&DriftSystem{})
		scheduler.RegisterNamed("idle", world.SystemFunc(func(*world.Frame) {}))

		stats := scheduler.GetStats()
		assert.Equal(t, 2, stats.SystemCount)
		assert.Zero(t, stats.Systems[0].MinDuration)

		for range 3 {
			require.NoError(t, scheduler.Once(1))
		}

		stats = scheduler.GetStats()
		assert.Equal(t, uint64(3), stats.Tick)
		assert.Equal(t, int64(6), stats.TotalExecutions)
		require.Len(t, stats.Systems, 2)
		assert.Equal(t, "DriftSystem", stats.Systems[0].Name)
		assert.Equal(t, "idle", stats.Systems[1].Name)
		for _, s := range stats.Systems {
			assert.Equal(t, int64(3), s.ExecutionCount)
			assert.LessOrEqual(t, s.MinDuration, s.MaxDuration)
			assert.LessOrEqual(t, s.MinDuration, s.AvgDuration)
			assert.Equal(t, s.TotalDuration/3, s.AvgDuration)
		}

		stats.Systems[0].Name = "changed"
		assert.Equal(t, "DriftSystem", scheduler.GetStats().Systems[0].Name, "stats are a copy")
	})

	t.Run("run stops on cancel", func(t *testing.T) {
		w := newTestWorld(t)
		scheduler := world.NewScheduler(w)
		drift := &DriftSystem{}
		scheduler.Register(drift)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			scheduler.Run(ctx, time.Millisecond)
			close(done)
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
			t.Fatal("scheduler did not stop after context cancellation")
		}
		assert.Positive(t, drift.ExecuteCount)
	})
}
