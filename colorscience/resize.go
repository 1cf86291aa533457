package colorscience

import (
	"github.com/disintegration/imaging"
	"github.com/vfxgo/compute/transform"
)

// filterFor maps a transform.ResizeFilter to an imaging.ResampleFilter,
// reusing the library's published kernel weight functions directly on our
// float32 planar buffers instead of routing through imaging's own (8-bit,
// image.Image-based) Resize entry point — the kernels are plain
// `func(float64) float64` weight functions and a Support radius, equally
// valid against HDR floating-point samples.
func filterFor(f transform.ResizeFilter) imaging.ResampleFilter {
	switch f {
	case transform.FilterBilinear:
		return imaging.Linear
	case transform.FilterBicubic:
		return imaging.CatmullRom
	case transform.FilterLanczos3:
		return imaging.Lanczos
	case transform.FilterMitchell:
		return imaging.MitchellNetravali
	default:
		return imaging.Linear
	}
}

// Resize resamples src (srcW x srcH, channels-interleaved) into a buffer
// of dstW x dstH using a separable two-pass (horizontal then vertical)
// convolution with the filter's kernel. FilterNearest bypasses the
// kernel machinery entirely.
func Resize(src []float32, srcW, srcH, channels int, dstW, dstH int, filter transform.ResizeFilter) []float32 {
	if filter == transform.FilterNearest {
		return resizeNearest(src, srcW, srcH, channels, dstW, dstH)
	}
	rf := filterFor(filter)
	horiz := resample1D(src, srcW, srcH, channels, dstW, true, rf)
	return resample1D(horiz, srcH, dstW, channels, dstH, false, rf)
}

func resizeNearest(src []float32, srcW, srcH, channels, dstW, dstH int) []float32 {
	out := make([]float32, dstW*dstH*channels)
	xScale := float64(srcW) / float64(dstW)
	yScale := float64(srcH) / float64(dstH)
	for dy := 0; dy < dstH; dy++ {
		sy := int(float64(dy) * yScale)
		if sy >= srcH {
			sy = srcH - 1
		}
		for dx := 0; dx < dstW; dx++ {
			sx := int(float64(dx) * xScale)
			if sx >= srcW {
				sx = srcW - 1
			}
			srcOff := (sy*srcW + sx) * channels
			dstOff := (dy*dstW + dx) * channels
			copy(out[dstOff:dstOff+channels], src[srcOff:srcOff+channels])
		}
	}
	return out
}

type kernelTap struct {
	idx    int
	weight float64
}

// resample1D resamples along one axis (horizontal when horiz is true,
// vertical otherwise), producing an image of dstLen along that axis and
// the other axis unchanged (otherLen).
func resample1D(src []float32, srcLen, otherLen, channels, dstLen int, horiz bool, f imaging.ResampleFilter) []float32 {
	taps := make([][]kernelTap, dstLen)
	scale := float64(srcLen) / float64(dstLen)
	filterScale := scale
	if filterScale < 1 {
		filterScale = 1
	}
	support := f.Support * filterScale
	for d := 0; d < dstLen; d++ {
		center := (float64(d)+0.5)*scale - 0.5
		lo := int(center - support)
		hi := int(center + support)
		if lo < 0 {
			lo = 0
		}
		if hi > srcLen-1 {
			hi = srcLen - 1
		}
		var sum float64
		row := make([]kernelTap, 0, hi-lo+1)
		for s := lo; s <= hi; s++ {
			w := f.Kernel((float64(s) - center) / filterScale)
			if w == 0 {
				continue
			}
			row = append(row, kernelTap{idx: s, weight: w})
			sum += w
		}
		if sum != 0 {
			for i := range row {
				row[i].weight /= sum
			}
		}
		taps[d] = row
	}

	var out []float32
	if horiz {
		out = make([]float32, dstLen*otherLen*channels)
		for y := 0; y < otherLen; y++ {
			rowOff := y * srcLen * channels
			dstRowOff := y * dstLen * channels
			for d := 0; d < dstLen; d++ {
				acc := make([]float64, channels)
				for _, t := range taps[d] {
					off := rowOff + t.idx*channels
					for c := 0; c < channels; c++ {
						acc[c] += float64(src[off+c]) * t.weight
					}
				}
				dOff := dstRowOff + d*channels
				for c := 0; c < channels; c++ {
					out[dOff+c] = float32(acc[c])
				}
			}
		}
		return out
	}

	out = make([]float32, otherLen*dstLen*channels)
	for d := 0; d < dstLen; d++ {
		dstRowOff := d * otherLen * channels
		for x := 0; x < otherLen; x++ {
			acc := make([]float64, channels)
			for _, t := range taps[d] {
				off := t.idx*otherLen*channels + x*channels
				for c := 0; c < channels; c++ {
					acc[c] += float64(src[off+c]) * t.weight
				}
			}
			dOff := dstRowOff + x*channels
			for c := 0; c < channels; c++ {
				out[dOff+c] = float32(acc[c])
			}
		}
	}
	return out
}
