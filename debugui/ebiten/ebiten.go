// Package ebiten hosts a chunkq world in an Ebiten window with the Dear ImGui
// inspector drawn on top.
package ebiten

import (
	"image/color"

	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/plus3/chunkq/debugui"
	"github.com/plus3/chunkq/spatial"
	"github.com/plus3/chunkq/world"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend
}

// Host implements ebiten.Game. Each Update runs one scheduler tick between
// the ImGui frame markers; Draw renders the loaded regions and entities, then
// the ImGui overlay.
type Host struct {
	Backend   ImguiBackend
	World     *world.World
	Scheduler *world.Scheduler
	Inspector *debugui.Inspector
	// Camera maps world units to screen pixels.
	Camera Camera
}

// Camera is a pan and zoom over world coordinates.
type Camera struct {
	Center spatial.Vec2
	Zoom   float64
}

// ToScreen converts a world position to screen pixels for a screen of the
// given size.
func (c Camera) ToScreen(p spatial.Vec2, width, height int) (float32, float32) {
	d := p.Sub(c.Center).Scale(c.scale())
	return float32(d.X + float64(width)/2), float32(d.Y + float64(height)/2)
}

func (c Camera) scale() float64 {
	if !(c.Zoom > 0) {
		return 1
	}
	return c.Zoom
}

// NewHost creates a host and registers the inspector as the scheduler's last
// system.
func NewHost(backend *ebitenbackend.EbitenBackend, w *world.World, scheduler *world.Scheduler) *Host {
	inspector := debugui.NewInspector(scheduler)
	scheduler.Register(inspector)
	return &Host{
		Backend:   ImguiBackend{EbitenBackend: backend},
		World:     w,
		Scheduler: scheduler,
		Inspector: inspector,
		Camera:    Camera{Zoom: 2},
	}
}

func (h *Host) Update() error {
	h.Backend.BeginFrame()
	err := h.Scheduler.Once(1.0 / float64(ebiten.TPS()))
	h.Backend.EndFrame()
	if err != nil {
		h.World.Logger().Error("command flush failed", "tick", h.World.Tick(), "error", err)
	}
	return nil
}

var (
	regionColor = color.RGBA{R: 0x30, G: 0x50, B: 0x70, A: 0xff}
	entityColor = color.RGBA{R: 0xe0, G: 0xc0, B: 0x40, A: 0xff}
)

func (h *Host) Draw(screen *ebiten.Image) {
	bounds := screen.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	size := h.World.RegionSize()
	side := float32(size * h.Camera.scale())

	for coord := range h.World.LoadedRegions() {
		x, y := h.Camera.ToScreen(coord.Origin(size), width, height)
		vector.StrokeRect(screen, x, y, side, side, 1, regionColor, false)
	}
	for _, pos := range h.World.Entities() {
		x, y := h.Camera.ToScreen(pos, width, height)
		vector.DrawFilledRect(screen, x-1, y-1, 3, 3, entityColor, false)
	}

	h.Backend.Draw(screen)
}

func (h *Host) Layout(outsideWidth, outsideHeight int) (int, int) {
	h.Backend.Layout(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}
