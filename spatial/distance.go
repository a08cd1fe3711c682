package spatial

import (
	"cmp"
	"math"
	"slices"
)

// Positioned is anything with a world position.
type Positioned interface {
	Pos() Vec2
}

// boundaryBand is the relative width around r² inside which IsWithinRadius
// falls back to the exact distance.
const boundaryBand = 1e-9

// RegionDistance is the Chebyshev distance between two region coordinates,
// max(|dx|, |dy|). A region at RegionDistance d from the origin region can only
// contain points farther than (d-1)*regionSize from the origin, so selecting
// regions by this distance never misses coverage.
func RegionDistance(a, b RegionCoord) int {
	dx := int(a.X) - int(b.X)
	dy := int(a.Y) - int(b.Y)
	return max(abs(dx), abs(dy))
}

// MaxRegionSpan is the largest Chebyshev distance between two int32 region
// coordinates, plus one.
const MaxRegionSpan = 1 << 32

// RegionSpan returns ceil(radius / regionSize), the number of regions in each
// direction a radius query must visit. Infinite or huge radii saturate at
// MaxRegionSpan, which reaches every region from any origin.
func RegionSpan(radius, regionSize float64) int {
	if !(radius > 0) {
		return 0
	}
	span := math.Ceil(radius / regionSize)
	if span >= MaxRegionSpan {
		return MaxRegionSpan
	}
	return int(span)
}

// DistanceSquared is the squared Euclidean distance between a and b.
func DistanceSquared(a, b Vec2) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// Distance is the exact Euclidean distance between a and b.
func Distance(a, b Vec2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// IsWithinRadius reports Distance(a, b) <= r without a square root in the
// common case. Only pairs whose squared distance sits within a tiny band of r²
// are resolved with the exact distance, so the result always agrees with
// Distance.
func IsWithinRadius(a, b Vec2, r float64) bool {
	if !(r >= 0) {
		return false
	}
	d2 := DistanceSquared(a, b)
	r2 := r * r
	if d2 < r2*(1-boundaryBand) {
		return true
	}
	if d2 > r2*(1+boundaryBand) {
		return false
	}
	return Distance(a, b) <= r
}

// ManhattanDistance is |dx| + |dy|.
func ManhattanDistance(a, b Vec2) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y)
}

// Direction returns the unit vector pointing from "from" to "to", or the zero
// vector when both points coincide.
func Direction(from, to Vec2) Vec2 {
	d := to.mgl().Sub(from.mgl())
	if d.Len() == 0 {
		return Vec2{}
	}
	return fromMgl(d.Normalize())
}

// FindNearest returns the item closest to origin together with its distance.
// Ties keep the earliest item. ok is false for an empty input.
func FindNearest[T Positioned](origin Vec2, items []T) (nearest T, dist float64, ok bool) {
	best := math.Inf(1)
	for _, item := range items {
		d2 := DistanceSquared(origin, item.Pos())
		if !ok || d2 < best {
			nearest, best, ok = item, d2, true
		}
	}
	if !ok {
		return nearest, 0, false
	}
	return nearest, Distance(origin, nearest.Pos()), true
}

// SortByDistance sorts items in place by ascending distance from origin.
// The sort is stable, so equidistant items keep their input order.
func SortByDistance[T Positioned](origin Vec2, items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(DistanceSquared(origin, a.Pos()), DistanceSquared(origin, b.Pos()))
	})
}

// FilterWithinRadius returns the items whose distance from origin is <= r,
// preserving input order. The input slice is not modified.
func FilterWithinRadius[T Positioned](origin Vec2, items []T, r float64) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if IsWithinRadius(origin, item.Pos(), r) {
			out = append(out, item)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
