package debugui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/chunkq/world"
)

// StatsPanel shows world counts, a frame time graph and per-system timings.
type StatsPanel struct {
	historyFrames int
	frameHistory  []float32
	frameIndex    int
	recorded      int
}

func NewStatsPanel(historyFrames int) *StatsPanel {
	historyFrames = max(historyFrames, 1)
	return &StatsPanel{
		historyFrames: historyFrames,
		frameHistory:  make([]float32, historyFrames),
	}
}

// Record stores one frame's delta time in seconds.
func (ps *StatsPanel) Record(deltaTime float64) {
	ps.frameHistory[ps.frameIndex] = float32(deltaTime * 1000.0)
	ps.frameIndex = (ps.frameIndex + 1) % ps.historyFrames
	ps.recorded = min(ps.recorded+1, ps.historyFrames)
}

// AverageFrameTime returns the mean of the recorded frame times in ms.
func (ps *StatsPanel) AverageFrameTime() float32 {
	if ps.recorded == 0 {
		return 0
	}
	var total float32
	for _, ft := range ps.frameHistory {
		total += ft
	}
	return total / float32(ps.recorded)
}

func (ps *StatsPanel) Render(w *world.World, scheduler *world.Scheduler, deltaTime float64) {
	if !imgui.BeginV("World Stats", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	ps.Record(deltaTime)
	stats := w.CollectStats()

	imgui.Text(fmt.Sprintf("Tick: %d", stats.Tick))
	imgui.Text(fmt.Sprintf("Entities: %d (%d outside loaded regions)", stats.EntityCount, stats.Unindexed))
	imgui.Text(fmt.Sprintf("Loaded Regions: %d", stats.LoadedRegions))
	imgui.Text(fmt.Sprintf("Caches: %d (%d dirty)", stats.CacheCount, stats.DirtyCaches))

	if avg := ps.AverageFrameTime(); avg > 0 {
		imgui.Text(fmt.Sprintf("Avg Frame Time: %.2f ms (%.0f FPS)", avg, 1000.0/avg))
	}

	imgui.Separator()
	imgui.Text("Frame Time Graph (ms)")
	imgui.PlotLinesFloatPtr("##frametime", &ps.frameHistory[0], int32(len(ps.frameHistory)))

	if imgui.TreeNodeStr("Indexed Tags") {
		for _, tc := range stats.TagCounts {
			imgui.BulletText(fmt.Sprintf("%s: %d", tc.Tag, tc.Count))
		}
		imgui.TreePop()
	}

	if scheduler != nil && imgui.TreeNodeStr("Systems") {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("SystemsTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("System")
			imgui.TableSetupColumn("Runs")
			imgui.TableSetupColumn("Avg")
			imgui.TableSetupColumn("Max")
			imgui.TableHeadersRow()

			for _, s := range scheduler.GetStats().Systems {
				imgui.TableNextRow()
				imgui.TableNextColumn()
				imgui.Text(s.Name)
				imgui.TableNextColumn()
				imgui.Text(fmt.Sprintf("%d", s.ExecutionCount))
				imgui.TableNextColumn()
				imgui.Text(s.AvgDuration.String())
				imgui.TableNextColumn()
				imgui.Text(s.MaxDuration.String())
			}

			imgui.EndTable()
		}
		imgui.TreePop()
	}

	imgui.End()
}
