package debugui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/spatial"
	"github.com/plus3/chunkq/world"
)

const (
	regionColumnCoord = iota
	regionColumnPopulation
	regionColumnIndexed
	regionColumnLastUpdate
)

// RegionBrowser lists loaded regions and the entities indexed in the selected
// one.
type RegionBrowser struct {
	rows          []world.RegionStats
	filterText    string
	sortColumn    int
	sortAscending bool

	selected     *spatial.RegionCoord
	members      []EntityRow
	perPage      int
	currentPage  int
	lastRefresh  uint64
	hasRefreshed bool
}

// EntityRow is one entity listed under the selected region.
type EntityRow struct {
	ID   entity.Id
	Pos  spatial.Vec2
	Tags []string
}

func NewRegionBrowser(perPage int) *RegionBrowser {
	return &RegionBrowser{
		sortColumn: regionColumnPopulation,
		perPage:    max(perPage, 1),
	}
}

// Refresh rebuilds the region rows from w, at most once per tick.
func (rb *RegionBrowser) Refresh(w *world.World) {
	if rb.hasRefreshed && rb.lastRefresh == w.Tick() {
		return
	}
	rb.rows = w.CollectStats().Regions
	rb.lastRefresh = w.Tick()
	rb.hasRefreshed = true
	rb.sortRows()

	if rb.selected != nil {
		rb.members = RegionEntities(w, *rb.selected)
	}
}

// Select makes coord the selected region.
func (rb *RegionBrowser) Select(w *world.World, coord spatial.RegionCoord) {
	rb.selected = &coord
	rb.currentPage = 0
	rb.members = RegionEntities(w, coord)
}

// Rows returns the region rows that pass the filter, in display order.
func (rb *RegionBrowser) Rows() []world.RegionStats {
	if rb.filterText == "" {
		return rb.rows
	}
	filtered := make([]world.RegionStats, 0, len(rb.rows))
	for _, row := range rb.rows {
		if strings.Contains(row.Coord.String(), rb.filterText) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func (rb *RegionBrowser) SetFilter(text string) {
	rb.filterText = text
}

// SetSort orders rows by column.
func (rb *RegionBrowser) SetSort(column int, ascending bool) {
	rb.sortColumn = column
	rb.sortAscending = ascending
	rb.sortRows()
}

func (rb *RegionBrowser) sortRows() {
	slices.SortStableFunc(rb.rows, func(a, b world.RegionStats) int {
		var c int
		switch rb.sortColumn {
		case regionColumnIndexed:
			c = a.Indexed - b.Indexed
		case regionColumnLastUpdate:
			c = compareUint(a.LastUpdate, b.LastUpdate)
		case regionColumnCoord:
			c = compareCoord(a.Coord, b.Coord)
		default:
			c = a.Population - b.Population
		}
		if c == 0 {
			c = compareCoord(a.Coord, b.Coord)
		} else if !rb.sortAscending {
			c = -c
		}
		return c
	})
}

// RegionEntities lists the entities indexed in the region's cache, rebuilding
// it first if it is dirty. Rows are ordered by id.
func RegionEntities(w *world.World, coord spatial.RegionCoord) []EntityRow {
	cache, ok := w.Caches().Get(coord)
	if !ok {
		return nil
	}
	cache.RebuildIfDirty(w.Rebuild)

	byID := make(map[entity.Id]*EntityRow)
	for tag := range cache.Tags() {
		for id := range cache.Entities(tag).All() {
			row, ok := byID[id]
			if !ok {
				pos, _ := w.Position(id)
				row = &EntityRow{ID: id, Pos: pos}
				byID[id] = row
			}
			row.Tags = append(row.Tags, tag.String())
		}
	}

	rows := make([]EntityRow, 0, len(byID))
	for _, row := range byID {
		slices.Sort(row.Tags)
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b EntityRow) int {
		return compareUint(uint64(a.ID), uint64(b.ID))
	})
	return rows
}

func (rb *RegionBrowser) Render(w *world.World) {
	if !imgui.BeginV("Region Browser", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	rb.Refresh(w)

	imgui.InputTextWithHint("##regionsearch", "Filter [x,y]...", &rb.filterText, imgui.InputTextFlagsNone, nil)
	imgui.SameLine()
	if imgui.Button("Clear Filter") {
		rb.filterText = ""
	}

	rows := rb.Rows()
	maxPopulation := 0
	for _, row := range rows {
		maxPopulation = max(maxPopulation, row.Population)
	}

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("RegionTable", 4, tableFlags, imgui.NewVec2(0, 240), 0) {
		imgui.TableSetupColumn("Region")
		imgui.TableSetupColumn("Population")
		imgui.TableSetupColumn("Indexed")
		imgui.TableSetupColumn("Last Update")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			rb.SetSort(int(spec.ColumnIndex()), spec.SortDirection() == imgui.SortDirectionAscending)
			sortSpecs.SetSpecsDirty(false)
		}

		for _, row := range rows {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			isSelected := rb.selected != nil && *rb.selected == row.Coord
			label := row.Coord.String()
			if row.Dirty {
				label += " *"
			}
			if imgui.SelectableBoolV(label, isSelected, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				rb.Select(w, row.Coord)
			}

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.Population))
			if maxPopulation > 0 {
				barWidth := float32(row.Population) / float32(maxPopulation) * 80.0
				imgui.SameLine()
				drawList := imgui.WindowDrawList()
				pos := imgui.CursorScreenPos()
				color := imgui.ColorU32Vec4(imgui.NewVec4(0.2, 0.6, 0.8, 0.6))
				drawList.AddRectFilled(pos, imgui.NewVec2(pos.X+barWidth, pos.Y+10), color)
			}

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.Indexed))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.LastUpdate))
		}

		imgui.EndTable()
	}

	imgui.Text(fmt.Sprintf("Total: %d regions (* = dirty)", len(rows)))

	if rb.selected != nil {
		imgui.Separator()
		imgui.Text(fmt.Sprintf("Region %v: %d indexed entities", *rb.selected, len(rb.members)))
		rb.renderMembers()
	}

	imgui.End()
}

func (rb *RegionBrowser) renderMembers() {
	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
	if imgui.BeginTableV("MemberTable", 3, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Entity")
		imgui.TableSetupColumn("Position")
		imgui.TableSetupColumn("Tags")
		imgui.TableHeadersRow()

		start := min(rb.currentPage*rb.perPage, len(rb.members))
		end := min(start+rb.perPage, len(rb.members))
		for _, row := range rb.members[start:end] {
			imgui.TableNextRow()
			imgui.TableNextColumn()
			imgui.Text(row.ID.String())
			imgui.TableNextColumn()
			imgui.Text(row.Pos.String())
			imgui.TableNextColumn()
			imgui.Text(strings.Join(row.Tags, ", "))
		}

		imgui.EndTable()
	}

	if len(rb.members) > rb.perPage {
		totalPages := (len(rb.members) + rb.perPage - 1) / rb.perPage
		imgui.Text(fmt.Sprintf("Page %d / %d", rb.currentPage+1, totalPages))
		imgui.SameLine()
		if imgui.Button("Prev") && rb.currentPage > 0 {
			rb.currentPage--
		}
		imgui.SameLine()
		if imgui.Button("Next") && rb.currentPage < totalPages-1 {
			rb.currentPage++
		}
	}
}

func compareCoord(a, b spatial.RegionCoord) int {
	if a.Y != b.Y {
		return int(a.Y) - int(b.Y)
	}
	return int(a.X) - int(b.X)
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
