// Package debugui provides Dear ImGui inspector panels for a chunkq world:
// world and scheduler statistics, a region browser over the loaded caches,
// and an interactive query runner.
package debugui

import (
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/chunkq/world"
)

// InputState tracks Dear ImGui's input capture state. Game code should
// ignore mouse or keyboard input while the matching flag is set.
type InputState struct {
	WantCaptureMouse    bool
	WantCaptureKeyboard bool
}

// Inspector is a world.System that defers its panels' render functions onto
// the frame's command buffer, so they draw after the tick's mutations have
// been flushed.
type Inspector struct {
	Input InputState

	scheduler *world.Scheduler
	stats     *StatsPanel
	regions   *RegionBrowser
	queries   *QueryPanel
	items     []func()
}

// NewInspector creates an inspector. scheduler may be nil, in which case the
// stats panel omits per-system timings.
func NewInspector(scheduler *world.Scheduler) *Inspector {
	return &Inspector{
		scheduler: scheduler,
		stats:     NewStatsPanel(120),
		regions:   NewRegionBrowser(100),
		queries:   NewQueryPanel(),
	}
}

// Add registers an extra render function drawn every frame.
func (i *Inspector) Add(render func()) {
	i.items = append(i.items, render)
}

func (i *Inspector) Execute(frame *world.Frame) {
	io := imgui.CurrentIO()
	i.Input.WantCaptureMouse = io.WantCaptureMouse()
	i.Input.WantCaptureKeyboard = io.WantCaptureKeyboard()

	w, dt := frame.World, frame.DeltaTime
	frame.Commands.Defer(func() { i.stats.Render(w, i.scheduler, dt) })
	frame.Commands.Defer(func() { i.regions.Render(w) })
	frame.Commands.Defer(func() { i.queries.Render(w) })
	for _, item := range i.items {
		frame.Commands.Defer(item)
	}
}
