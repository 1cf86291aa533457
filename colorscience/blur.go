package colorscience

import "math"

// Blur applies a separable Gaussian blur of the given pixel radius to a
// channels-interleaved w x h buffer, two passes (horizontal then
// vertical), mirroring the teacher's stackblur two-pass row/column
// structure but with a true Gaussian kernel in place of stackblur's
// 8-bit box-sum approximation, since the engine's buffers are
// unbounded-range float32 rather than clamped 8-bit samples.
func Blur(src []float32, w, h, channels int, radius float64) []float32 {
	if radius <= 0 {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}
	kernel, half := gaussianKernel(radius)
	horiz := blurPass(src, w, h, channels, kernel, half, true)
	return blurPass(horiz, w, h, channels, kernel, half, false)
}

func gaussianKernel(radius float64) ([]float64, int) {
	sigma := radius / 3.0
	if sigma < 1e-6 {
		sigma = 1e-6
	}
	half := int(math.Ceil(radius))
	k := make([]float64, 2*half+1)
	var sum float64
	for i := -half; i <= half; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+half] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k, half
}

func blurPass(src []float32, w, h, channels int, kernel []float64, half int, horiz bool) []float32 {
	out := make([]float32, len(src))
	acc := make([]float64, channels)
	if horiz {
		for y := 0; y < h; y++ {
			rowOff := y * w * channels
			for x := 0; x < w; x++ {
				for c := range acc {
					acc[c] = 0
				}
				for k := -half; k <= half; k++ {
					sx := x + k
					if sx < 0 {
						sx = 0
					} else if sx >= w {
						sx = w - 1
					}
					wgt := kernel[k+half]
					off := rowOff + sx*channels
					for c := 0; c < channels; c++ {
						acc[c] += float64(src[off+c]) * wgt
					}
				}
				dOff := rowOff + x*channels
				for c := 0; c < channels; c++ {
					out[dOff+c] = float32(acc[c])
				}
			}
		}
		return out
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for c := range acc {
				acc[c] = 0
			}
			for k := -half; k <= half; k++ {
				sy := y + k
				if sy < 0 {
					sy = 0
				} else if sy >= h {
					sy = h - 1
				}
				wgt := kernel[k+half]
				off := (sy*w + x) * channels
				for c := 0; c < channels; c++ {
					acc[c] += float64(src[off+c]) * wgt
				}
			}
			dOff := (y*w + x) * channels
			for c := 0; c < channels; c++ {
				out[dOff+c] = float32(acc[c])
			}
		}
	}
	return out
}
