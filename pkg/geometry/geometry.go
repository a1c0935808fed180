// Package geometry provides the box arithmetic used by detection filtering and fusion.
package geometry

import "github.com/menta2k/meal-analyzer/pkg/types"

// Area returns max(0, x2-x1) * max(0, y2-y1)
func Area(b types.Box) int {
	return b.Width() * b.Height()
}

// IoU calculates the Intersection over Union between two boxes.
//
// Returns 0 when the boxes do not overlap or the union is empty.
func IoU(a, b types.Box) float64 {
	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH

	union := Area(a) + Area(b) - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// IsContained reports whether inner lies fully inside outer and covers at most
// ratio of its area. Boxes of nearly equal size are left to IoU; the ratio only
// separates a small object nested in a big one from a duplicate, so it is a
// tunable heuristic rather than a geometric law.
func IsContained(inner, outer types.Box, ratio float64) bool {
	inside := inner.X1 >= outer.X1 && inner.Y1 >= outer.Y1 &&
		inner.X2 <= outer.X2 && inner.Y2 <= outer.Y2
	if !inside {
		return false
	}
	innerArea := Area(inner)
	if innerArea == 0 {
		return true
	}
	outerArea := Area(outer)
	if outerArea == 0 {
		return false
	}
	return float64(innerArea)/float64(outerArea) <= ratio
}

// PadBox grows every side by padRatio of the box's side length, clipped to the frame
func PadBox(b types.Box, frameW, frameH int, padRatio float64) types.Box {
	w := max(1, b.X2-b.X1)
	h := max(1, b.Y2-b.Y1)
	px := int(float64(w) * padRatio)
	py := int(float64(h) * padRatio)

	return types.Box{
		X1: max(0, b.X1-px),
		Y1: max(0, b.Y1-py),
		X2: min(frameW, b.X2+px),
		Y2: min(frameH, b.Y2+py),
	}
}

// Clip canonicalizes the box so x1<=x2, y1<=y2 and clamps it to the frame
func Clip(b types.Box, frameW, frameH int) types.Box {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return types.Box{
		X1: clamp(b.X1, 0, frameW),
		Y1: clamp(b.Y1, 0, frameH),
		X2: clamp(b.X2, 0, frameW),
		Y2: clamp(b.Y2, 0, frameH),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
