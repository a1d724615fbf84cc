package texture

import "math"

// MinDim is the smallest dimension a resized texture may have; it is one
// compression block.
const MinDim = 4

// TargetDims returns the dimensions an image of w×h is resized to so that
// neither side exceeds target. Images already within target are returned
// unchanged with resized false.
//
// The scale is min(target/w, target/h). Each scaled side is truncated to an
// integer, snapped down to a multiple of 4, and floored at MinDim, so
// 1000×700 at 512 becomes 512×356.
func TargetDims(w, h, target int) (nw, nh int, resized bool) {
	if target <= 0 || (w <= target && h <= target) {
		return w, h, false
	}
	scale := math.Min(float64(target)/float64(w), float64(target)/float64(h))
	return snap(float64(w) * scale), snap(float64(h) * scale), true
}

func snap(v float64) int {
	// The epsilon absorbs products like 1000*0.512 landing just below 512.
	n := int(math.Floor(v + 1e-9))
	n -= n % 4
	return max(MinDim, n)
}
