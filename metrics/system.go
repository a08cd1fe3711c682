package metrics

import "github.com/plus3/chunkq/world"

// WorldSystem snapshots the world into a Collector every Every ticks.
// Register it last so the snapshot reflects the other systems' work.
type WorldSystem struct {
	Collector *Collector
	Scheduler *world.Scheduler
	Every     uint64
}

func (s *WorldSystem) Execute(frame *world.Frame) {
	every := max(s.Every, 1)
	if frame.Tick%every != 0 {
		return
	}
	s.Collector.ObserveWorld(frame.World.CollectStats())
	if s.Scheduler != nil {
		s.Collector.ObserveScheduler(s.Scheduler.GetStats())
	}
}
