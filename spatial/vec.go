// Package spatial holds the position and region math shared by the chunk index
// and the query engine. Everything here is pure and allocation free.
package spatial

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec2 is a position in world space.
type Vec2 struct {
	X, Y float64
}

// V is shorthand for Vec2{X: x, Y: y}.
func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Pos lets a bare Vec2 be used wherever a Positioned item is expected.
func (v Vec2) Pos() Vec2 {
	return v
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Scale returns v * s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return v.mgl().Len()
}

func (v Vec2) mgl() mgl64.Vec2 {
	return mgl64.Vec2{v.X, v.Y}
}

func fromMgl(m mgl64.Vec2) Vec2 {
	return Vec2{X: m.X(), Y: m.Y()}
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%g, %g)", v.X, v.Y)
}

// RegionCoord identifies a fixed-size square region ("chunk") of world space.
type RegionCoord struct {
	X, Y int32
}

// RegionOf maps a world position to the region containing it: floor(pos / size)
// on each axis, so negative positions land in negative regions. Coordinates
// beyond the int32 range saturate and NaN maps to 0.
func RegionOf(p Vec2, regionSize float64) RegionCoord {
	return RegionCoord{
		X: regionIndex(p.X / regionSize),
		Y: regionIndex(p.Y / regionSize),
	}
}

func regionIndex(v float64) int32 {
	switch f := math.Floor(v); {
	case math.IsNaN(f):
		return 0
	case f <= math.MinInt32:
		return math.MinInt32
	case f >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(f)
	}
}

// Pack encodes the coordinate into a single integer key (X in the upper 32
// bits, Y in the lower 32 bits).
func (c RegionCoord) Pack() uint64 {
	return uint64(uint32(c.X))<<32 | uint64(uint32(c.Y))
}

// UnpackRegion is the inverse of RegionCoord.Pack.
func UnpackRegion(key uint64) RegionCoord {
	return RegionCoord{
		X: int32(uint32(key >> 32)),
		Y: int32(uint32(key & 0xFFFFFFFF)),
	}
}

// Origin returns the world position of the region's minimum corner.
func (c RegionCoord) Origin(regionSize float64) Vec2 {
	return Vec2{X: float64(c.X) * regionSize, Y: float64(c.Y) * regionSize}
}

func (c RegionCoord) String() string {
	return fmt.Sprintf("[%d,%d]", c.X, c.Y)
}
