// Package transform is the backend-neutral, pure value form of the color
// pipeline: the tagged Transform/ImageOp unions of spec.md §3, their
// construction-time validation rules, and the fusion optimisation of §4.E.
package transform

import (
	"fmt"
	"math"
)

// Transform is the tagged union of color operations. Concrete types below
// implement it as a marker; backends switch on the concrete type.
type Transform interface {
	isTransform()
}

// Matrix is an affine color transform in the row-vector convention
// x' = x*M with x = [r, g, b, 1]: rows 0-2 weight the input channels and
// row 3 is a constant offset. Only output columns 0-2 are computed;
// column 3 is unused, and an alpha channel, if present, is not fed into
// the matrix and passes through unchanged.
type Matrix struct {
	M [4][4]float64
}

func (Matrix) isTransform() {}

// Identity4 returns the 4x4 identity matrix.
func Identity4() Matrix {
	var m Matrix
	for i := 0; i < 4; i++ {
		m.M[i][i] = 1
	}
	return m
}

// Mul returns a*b (b applied after a, i.e. row-vector convention x' = x*M:
// x*(a*b) = (x*a)*b applies a first, then b).
func (a Matrix) Mul(b Matrix) Matrix {
	var out Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += a.M[i][k] * b.M[k][j]
			}
			out.M[i][j] = sum
		}
	}
	return out
}

// Invert returns the inverse of m, failing with a Validation-flavoured
// error when |det| < 1e-10 (spec.md §9 Open Question 3 — stricter than an
// unguarded inverse that would silently produce NaNs).
func (m Matrix) Invert() (Matrix, error) {
	a := m.M
	det := determinant4(a)
	if math.Abs(det) < 1e-10 {
		return Matrix{}, fmt.Errorf("transform: singular matrix (det=%g, threshold 1e-10)", det)
	}
	var cof [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			cof[j][i] = cofactor4(a, i, j) / det
		}
	}
	return Matrix{M: cof}, nil
}

func determinant4(m [4][4]float64) float64 {
	var det float64
	for j := 0; j < 4; j++ {
		det += m[0][j] * cofactorSign(0, j) * minor4(m, 0, j)
	}
	return det
}

func cofactor4(m [4][4]float64, i, j int) float64 {
	return cofactorSign(i, j) * minor4(m, i, j)
}

func cofactorSign(i, j int) float64 {
	if (i+j)%2 == 0 {
		return 1
	}
	return -1
}

func minor4(m [4][4]float64, ri, rj int) float64 {
	var sub [3][3]float64
	oi := 0
	for i := 0; i < 4; i++ {
		if i == ri {
			continue
		}
		oj := 0
		for j := 0; j < 4; j++ {
			if j == rj {
				continue
			}
			sub[oi][oj] = m[i][j]
			oj++
		}
		oi++
	}
	return sub[0][0]*(sub[1][1]*sub[2][2]-sub[1][2]*sub[2][1]) -
		sub[0][1]*(sub[1][0]*sub[2][2]-sub[1][2]*sub[2][0]) +
		sub[0][2]*(sub[1][0]*sub[2][1]-sub[1][1]*sub[2][0])
}

// Cdl is the ASC CDL v1.2 slope/offset/power/saturation transform. Order
// of application: slope -> offset -> clamp-to->=0 -> power -> saturation,
// with Rec.709 luma weights (0.2126, 0.7152, 0.0722).
type Cdl struct {
	Slope      [3]float64
	Offset     [3]float64
	Power      [3]float64
	Saturation float64
}

func (Cdl) isTransform() {}

// Rec709Luma are the luma weights the CDL saturation stage uses.
var Rec709Luma = [3]float64{0.2126, 0.7152, 0.0722}

// Lut1D is a per-channel or shared 1-D lookup table, linearly
// interpolated, clamped to the table domain at the edges.
type Lut1D struct {
	Table    []float64
	Channels int // 1 (shared across channels) or 3/4 (per-channel)
}

func (Lut1D) isTransform() {}

// Lut3D is an N*N*N*3 RGB lattice, tetrahedrally interpolated.
type Lut3D struct {
	Table []float64
	Size  int
}

func (Lut3D) isTransform() {}

// TransferStyle is the closed catalog of transfer-function curves this
// engine knows about (spec.md §9 Open Question 1, fixed here).
type TransferStyle int

const (
	TransferSRGB TransferStyle = iota
	TransferRec709
	TransferPQ
	TransferHLG
	TransferGammaLinearSegment
	TransferACEScct
	TransferACEScc
	TransferCineon
	TransferSLog3
	TransferLogC3
)

// Transfer applies a closed-catalog transfer-function curve. Forward
// applies scene-linear -> encoded; Forward=false applies encoded ->
// scene-linear.
type Transfer struct {
	Style   TransferStyle
	Forward bool
	// Gamma and LinearSegment only apply to TransferGammaLinearSegment.
	Gamma         float64
	LinearSegment float64
}

func (Transfer) isTransform() {}

// Exposure applies a scene-linear stop adjustment: out = in * 2^stops.
type Exposure struct {
	Stops float64
}

func (Exposure) isTransform() {}

// Contrast applies out = (in-pivot)*x + pivot per channel.
type Contrast struct {
	X     float64
	Pivot float64
}

func (Contrast) isTransform() {}

// Range remaps [InLo,InHi] to [OutLo,OutHi], optionally clamping the
// result to the output range.
type Range struct {
	InLo, InHi   float64
	OutLo, OutHi float64
	Clamp        bool
}

func (Range) isTransform() {}

// Group is a sequential composition of transforms. An empty Group is the
// identity; Group(Group(a), Group(b)) is associative with
// Group(concat(a,b)).
type Group struct {
	Members []Transform
}

func (Group) isTransform() {}

// Flatten returns an equivalent Group with nested Groups spliced into
// their parent, implementing the associativity law of spec.md §4.E.
func (g Group) Flatten() Group {
	out := make([]Transform, 0, len(g.Members))
	for _, m := range g.Members {
		if sub, ok := m.(Group); ok {
			out = append(out, sub.Flatten().Members...)
		} else {
			out = append(out, m)
		}
	}
	return Group{Members: out}
}

// ResizeFilter enumerates the resampling kernels ImageOp.Resize supports.
type ResizeFilter int

const (
	FilterNearest ResizeFilter = iota
	FilterBilinear
	FilterBicubic
	FilterLanczos3
	FilterMitchell
)

// ImageOp is the tagged union of non-pointwise image operations.
type ImageOp interface {
	isImageOp()
	// Halo returns the number of pixels the op needs to read beyond a
	// tile's own bounds on every side, in terms of the *destination*
	// tile it is asked to produce.
	Halo() int
}

// Resize changes an image's dimensions under the given filter.
type Resize struct {
	W, H   int
	Filter ResizeFilter
}

func (Resize) isImageOp() {}

// Halo for resize is filter-dependent. It returns the kernel support in
// destination-pixel units as a conservative default and does not account
// for the source/destination scale ratio.
func (r Resize) Halo() int {
	switch r.Filter {
	case FilterNearest, FilterBilinear:
		return 1
	case FilterBicubic, FilterMitchell:
		return 2
	case FilterLanczos3:
		return 3
	default:
		return 1
	}
}

// Blur applies a separable blur of the given pixel radius.
type Blur struct {
	Radius float64
}

func (Blur) isImageOp() {}

func (b Blur) Halo() int {
	return int(math.Ceil(b.Radius))
}
