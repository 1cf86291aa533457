// Package region defines the value types the tiled executor uses to talk
// about rectangles of pixels and the memory ceilings of the device it is
// currently bound to.
package region

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/vfxgo/compute/utils"
)

// Region is an axis-aligned rectangle of non-negative pixel coordinates.
// Regions are value types; two regions with equal fields are equal.
type Region struct {
	X, Y, W, H int
}

// New builds a Region and validates it against the given image bounds.
// W and H must be strictly positive and the region must not run past
// (imgW, imgH).
func New(x, y, w, h, imgW, imgH int) (Region, error) {
	r := Region{X: x, Y: y, W: w, H: h}
	if w <= 0 || h <= 0 {
		return Region{}, fmt.Errorf("region: non-positive dimension %dx%d", w, h)
	}
	if x < 0 || y < 0 {
		return Region{}, fmt.Errorf("region: negative origin (%d,%d)", x, y)
	}
	if x+w > imgW || y+h > imgH {
		return Region{}, fmt.Errorf("region: %v exceeds image bounds %dx%d", r, imgW, imgH)
	}
	return r, nil
}

// Full returns the region covering the whole of a (w,h) image.
func Full(w, h int) Region {
	return Region{X: 0, Y: 0, W: w, H: h}
}

// Pixels returns the pixel count of the region.
func (r Region) Pixels() int { return r.W * r.H }

// Bytes returns the byte footprint of the region for a buffer of the given
// channel count, stored as 32-bit floats.
func (r Region) Bytes(channels int) int64 {
	return int64(r.W) * int64(r.H) * int64(channels) * 4
}

// Contains reports whether the pixel (x, y) is inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.W && y < r.Y+r.H
}

// Intersect returns the overlap between r and o. ok is false when the
// regions do not overlap, in which case the returned Region is the zero
// value and must not be used.
func (r Region) Intersect(o Region) (out Region, ok bool) {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+r.W, o.X+o.W)
	y1 := min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Region{}, false
	}
	return Region{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

// Expand grows the region by pad pixels on every side, clipping the result
// to [0,0,imgW,imgH]. It is used to compute a tile's footprint for
// non-pointwise ops (blur radius, resize filter support).
func (r Region) Expand(pad, imgW, imgH int) Region {
	x0 := r.X - pad
	y0 := r.Y - pad
	x1 := r.X + r.W + pad
	y1 := r.Y + r.H + pad

	x0 = clamp(x0, 0, imgW)
	y0 = clamp(y0, 0, imgH)
	x1 = clamp(x1, 0, imgW)
	y1 = clamp(y1, 0, imgH)

	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return Region{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	return utils.Max(lo, utils.Min(v, hi))
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}
