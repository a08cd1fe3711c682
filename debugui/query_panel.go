package debugui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/chunkq/query"
	"github.com/plus3/chunkq/world"
)

// QueryPanel runs ad-hoc spatial queries against the world and shows the
// results with the engine's per-call statistics.
type QueryPanel struct {
	Kind     query.Kind
	X, Y     float32
	Radius   float32
	Limit    int32
	selected map[world.Tag]bool

	results []query.Result
	found   bool
	count   int
	stats   query.QueryStats
	err     error
	ran     bool
}

func NewQueryPanel() *QueryPanel {
	return &QueryPanel{
		Kind:     query.KindRadius,
		Radius:   32,
		selected: make(map[world.Tag]bool),
	}
}

// Toggle selects or deselects tag.
func (qp *QueryPanel) Toggle(tag world.Tag, on bool) {
	if on {
		qp.selected[tag] = true
	} else {
		delete(qp.selected, tag)
	}
}

// Tags returns the selected tags in registry order.
func (qp *QueryPanel) Tags(w *world.World) []world.Tag {
	var tags []world.Tag
	for _, tag := range w.Tags().All() {
		if qp.selected[tag] {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Run executes the configured query. Radius and nearest queries fill
// Results; every kind sets Found and Count.
func (qp *QueryPanel) Run(w *world.World) {
	q := w.Query()
	x, y, r := float64(qp.X), float64(qp.Y), float64(qp.Radius)
	tags := qp.Tags(w)
	opts := query.Options{Limit: int(qp.Limit)}

	qp.results = qp.results[:0]
	qp.found, qp.count, qp.err = false, 0, nil

	switch qp.Kind {
	case query.KindNearest:
		opts.MaxRadius = r
		var res query.Result
		res, qp.found, qp.err = q.NearestEntity(x, y, tags, opts)
		if qp.found {
			qp.results = append(qp.results, res)
		}
	case query.KindHas:
		qp.found, qp.err = q.HasEntityInRadius(x, y, r, tags, opts)
	case query.KindCount:
		qp.count, qp.err = q.CountEntitiesInRadius(x, y, r, tags, opts)
	default:
		qp.results, qp.err = q.AppendEntitiesInRadius(qp.results, x, y, r, tags, opts)
	}

	switch qp.Kind {
	case query.KindRadius, query.KindNearest:
		qp.count = len(qp.results)
		qp.found = qp.count > 0
	case query.KindHas:
		if qp.found {
			qp.count = 1
		}
	case query.KindCount:
		qp.found = qp.count > 0
	}
	qp.stats = q.LastStats()
	qp.ran = true
}

func (qp *QueryPanel) Results() []query.Result { return qp.results }
func (qp *QueryPanel) Found() bool             { return qp.found }
func (qp *QueryPanel) Count() int              { return qp.count }
func (qp *QueryPanel) Stats() query.QueryStats { return qp.stats }
func (qp *QueryPanel) Err() error              { return qp.err }

func (qp *QueryPanel) Render(w *world.World) {
	if !imgui.BeginV("Spatial Query", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	imgui.Text("Capability Tags:")
	if imgui.Button("Clear All") {
		qp.selected = make(map[world.Tag]bool)
	}
	for _, tag := range w.Tags().All() {
		selected := qp.selected[tag]
		if imgui.Checkbox(tag.String(), &selected) {
			qp.Toggle(tag, selected)
		}
	}

	imgui.Separator()
	for _, kind := range []query.Kind{query.KindRadius, query.KindNearest, query.KindHas, query.KindCount} {
		if imgui.SelectableBoolV(kind.String(), qp.Kind == kind, imgui.SelectableFlagsNone, imgui.NewVec2(80, 0)) {
			qp.Kind = kind
		}
		imgui.SameLine()
	}
	imgui.NewLine()

	imgui.InputFloat("X", &qp.X)
	imgui.InputFloat("Y", &qp.Y)
	imgui.SliderFloat("Radius", &qp.Radius, 0, float32(w.RegionSize()*16))
	if qp.Kind == query.KindRadius {
		imgui.InputInt("Limit", &qp.Limit)
	}

	if imgui.Button("Run") {
		qp.Run(w)
	}

	if !qp.ran {
		imgui.End()
		return
	}

	imgui.Separator()
	if qp.err != nil {
		imgui.Text(fmt.Sprintf("Error: %v", qp.err))
		imgui.End()
		return
	}

	s := qp.stats
	imgui.Text(fmt.Sprintf("Found: %v  Count: %d", qp.found, qp.count))
	imgui.Text(fmt.Sprintf("Regions: %d  Candidates: %d  Stale: %d  Rebuilds: %d  Rings: %d",
		s.Regions, s.Candidates, s.Stale, s.Rebuilds, s.Rings))

	if len(qp.results) > 0 && imgui.TreeNodeStr("Results") {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("QueryResultTable", 2, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("Entity")
			imgui.TableSetupColumn("Distance")
			imgui.TableHeadersRow()

			for _, res := range qp.results {
				imgui.TableNextRow()
				imgui.TableNextColumn()
				imgui.Text(res.ID.String())
				imgui.TableNextColumn()
				imgui.Text(fmt.Sprintf("%.3f", res.Distance))
			}

			imgui.EndTable()
		}
		imgui.TreePop()
	}

	imgui.End()
}
