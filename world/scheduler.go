package world

import (
	"context"
	"reflect"
	"time"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	Tick            uint64
	SystemCount     int
	TotalExecutions int64
	FlushErrors     int64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

// record folds one execution into the running totals.
func (st *SystemStats) record(d time.Duration) {
	if st.ExecutionCount == 0 || d < st.MinDuration {
		st.MinDuration = d
	}
	st.MaxDuration = max(st.MaxDuration, d)
	st.ExecutionCount++
	st.LastDuration = d
	st.TotalDuration += d
	st.AvgDuration = st.TotalDuration / time.Duration(st.ExecutionCount)
}

type scheduled struct {
	system System
	stats  SystemStats
}

// Scheduler runs systems against a World once per tick, in registration
// order, and flushes their commands at the end of the tick.
type Scheduler struct {
	world       *World
	systems     []*scheduled
	flushErrors int64
}

func NewScheduler(w *World) *Scheduler {
	return &Scheduler{world: w}
}

// Register adds a system, named after its type.
func (s *Scheduler) Register(system System) {
	t := reflect.TypeOf(system)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s.RegisterNamed(t.Name(), system)
}

// RegisterNamed adds a system under an explicit name, for SystemFunc values
// and other types whose name says nothing.
func (s *Scheduler) RegisterNamed(name string, system System) {
	s.systems = append(s.systems, &scheduled{system: system, stats: SystemStats{Name: name}})
}

// Once advances the world one tick, executes every system with the given
// delta time and flushes the frame's commands. It returns the flush errors.
func (s *Scheduler) Once(dt float64) error {
	frame := newFrame(s.world.Advance(), dt, s.world)

	for _, sc := range s.systems {
		began := time.Now()
		sc.system.Execute(frame)
		sc.stats.record(time.Since(began))
	}

	err := frame.Commands.Flush(s.world)
	if err != nil {
		s.flushErrors++
	}
	return err
}

// Run executes ticks at the given interval until the context is cancelled.
// Flush errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			if err := s.Once(dt); err != nil {
				s.world.logger.Error("command flush failed", "tick", s.world.Tick(), "error", err)
			}
		}
	}
}

// GetStats returns a copy of the per-system execution statistics.
func (s *Scheduler) GetStats() *SchedulerStats {
	stats := &SchedulerStats{
		Tick:        s.world.Tick(),
		SystemCount: len(s.systems),
		FlushErrors: s.flushErrors,
		Systems:     make([]SystemStats, 0, len(s.systems)),
	}
	for _, sc := range s.systems {
		stats.Systems = append(stats.Systems, sc.stats)
		stats.TotalExecutions += sc.stats.ExecutionCount
	}
	return stats
}
