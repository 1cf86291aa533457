// Package colorscience implements the pointwise and small-kernel numeric
// math shared by every backend: CDL, matrix, 1-D/3-D LUT, transfer-
// function and tonescale formulas, plus the resize/blur kernels. Backends
// parallelise calls into this package across row chunks; the formulas
// themselves are single-threaded and deterministic, matching spec.md's
// "single-pass CPU output is the reference" requirement (§8).
package colorscience

import (
	"fmt"
	"math"

	"github.com/vfxgo/compute/transform"
)

// ApplyGroup applies every member of g, in order, to buf in place. buf is
// row-major, channel-interleaved with the given channel count.
func ApplyGroup(buf []float32, channels int, g transform.Group) error {
	for _, t := range g.Members {
		if err := Apply(buf, channels, t); err != nil {
			return err
		}
	}
	return nil
}

// Apply dispatches a single Transform over every pixel of buf.
func Apply(buf []float32, channels int, t transform.Transform) error {
	switch v := t.(type) {
	case transform.Matrix:
		applyMatrix(buf, channels, v)
	case transform.Cdl:
		applyCdl(buf, channels, v)
	case transform.Lut1D:
		applyLut1D(buf, channels, v)
	case transform.Lut3D:
		applyLut3D(buf, channels, v)
	case transform.Transfer:
		applyTransfer(buf, channels, v)
	case transform.Exposure:
		applyExposure(buf, channels, v)
	case transform.Contrast:
		applyContrast(buf, channels, v)
	case transform.Range:
		applyRange(buf, channels, v)
	case transform.Group:
		return ApplyGroup(buf, channels, v)
	default:
		return fmt.Errorf("colorscience: unhandled transform %T", t)
	}
	return nil
}

func forEachPixel(buf []float32, channels int, fn func(px []float32)) {
	n := len(buf) / channels
	for i := 0; i < n; i++ {
		fn(buf[i*channels : i*channels+channels])
	}
}

// applyMatrix treats each pixel as the row vector [r,g,b,1] and computes
// x' = x*M, writing back the first min(channels,3) outputs. Alpha (a 4th
// channel, if present) passes through unchanged, matching the spec's
// "alpha passthrough for the 3x3 case".
func applyMatrix(buf []float32, channels int, m transform.Matrix) {
	forEachPixel(buf, channels, func(px []float32) {
		var x [4]float64
		x[0] = float64(px[0])
		if channels > 1 {
			x[1] = float64(px[1])
		}
		if channels > 2 {
			x[2] = float64(px[2])
		}
		x[3] = 1
		var out [3]float64
		for j := 0; j < 3; j++ {
			out[j] = x[0]*m.M[0][j] + x[1]*m.M[1][j] + x[2]*m.M[2][j] + x[3]*m.M[3][j]
		}
		if channels > 0 {
			px[0] = float32(out[0])
		}
		if channels > 1 {
			px[1] = float32(out[1])
		}
		if channels > 2 {
			px[2] = float32(out[2])
		}
		// channel 3 (alpha), if present, is left untouched.
	})
}

// applyCdl implements ASC CDL v1.2: slope -> offset -> clamp>=0 -> power
// -> saturation, with Rec.709 luma weights.
func applyCdl(buf []float32, channels int, c transform.Cdl) {
	lw := transform.Rec709Luma
	forEachPixel(buf, channels, func(px []float32) {
		var rgb [3]float64
		for i := 0; i < 3 && i < channels; i++ {
			v := float64(px[i])*c.Slope[i] + c.Offset[i]
			if v < 0 {
				v = 0
			}
			v = math.Pow(v, c.Power[i])
			rgb[i] = v
		}
		luma := rgb[0]*lw[0] + rgb[1]*lw[1] + rgb[2]*lw[2]
		for i := 0; i < 3 && i < channels; i++ {
			px[i] = float32(luma + c.Saturation*(rgb[i]-luma))
		}
	})
}

func applyExposure(buf []float32, channels int, e transform.Exposure) {
	scale := float32(math.Pow(2, e.Stops))
	forEachPixel(buf, channels, func(px []float32) {
		for i := 0; i < 3 && i < channels; i++ {
			px[i] *= scale
		}
	})
}

func applyContrast(buf []float32, channels int, c transform.Contrast) {
	x := float32(c.X)
	pivot := float32(c.Pivot)
	forEachPixel(buf, channels, func(px []float32) {
		for i := 0; i < 3 && i < channels; i++ {
			px[i] = (px[i]-pivot)*x + pivot
		}
	})
}

func applyRange(buf []float32, channels int, r transform.Range) {
	scale := float32((r.OutHi - r.OutLo) / (r.InHi - r.InLo))
	inLo := float32(r.InLo)
	outLo := float32(r.OutLo)
	outLoClamp, outHiClamp := float32(r.OutLo), float32(r.OutHi)
	if outLoClamp > outHiClamp {
		outLoClamp, outHiClamp = outHiClamp, outLoClamp
	}
	forEachPixel(buf, channels, func(px []float32) {
		for i := 0; i < 3 && i < channels; i++ {
			v := (px[i]-inLo)*scale + outLo
			if r.Clamp {
				if v < outLoClamp {
					v = outLoClamp
				} else if v > outHiClamp {
					v = outHiClamp
				}
			}
			px[i] = v
		}
	})
}
