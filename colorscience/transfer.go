package colorscience

import (
	"math"

	"github.com/vfxgo/compute/transform"
)

func applyTransfer(buf []float32, channels int, t transform.Transfer) {
	fn := transferFunc(t)
	forEachPixel(buf, channels, func(px []float32) {
		for i := 0; i < 3 && i < channels; i++ {
			px[i] = float32(fn(float64(px[i])))
		}
	})
}

func transferFunc(t transform.Transfer) func(float64) float64 {
	switch t.Style {
	case transform.TransferSRGB:
		if t.Forward {
			return srgbEncode
		}
		return srgbDecode
	case transform.TransferRec709:
		if t.Forward {
			return rec709Encode
		}
		return rec709Decode
	case transform.TransferPQ:
		if t.Forward {
			return pqEncode
		}
		return pqDecode
	case transform.TransferHLG:
		if t.Forward {
			return hlgEncode
		}
		return hlgDecode
	case transform.TransferGammaLinearSegment:
		g, ls := t.Gamma, t.LinearSegment
		if g == 0 {
			g = 2.2
		}
		if t.Forward {
			return func(v float64) float64 { return gammaLinearEncode(v, g, ls) }
		}
		return func(v float64) float64 { return gammaLinearDecode(v, g, ls) }
	case transform.TransferACEScct:
		if t.Forward {
			return acesCCTEncode
		}
		return acesCCTDecode
	case transform.TransferACEScc:
		if t.Forward {
			return acesCCEncode
		}
		return acesCCDecode
	case transform.TransferCineon:
		if t.Forward {
			return cineonEncode
		}
		return cineonDecode
	case transform.TransferSLog3:
		if t.Forward {
			return sLog3Encode
		}
		return sLog3Decode
	case transform.TransferLogC3:
		if t.Forward {
			return logC3Encode
		}
		return logC3Decode
	default:
		return func(v float64) float64 { return v }
	}
}

// sRGB (IEC 61966-2-1).
func srgbEncode(l float64) float64 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math.Pow(l, 1/2.4) - 0.055
}

func srgbDecode(e float64) float64 {
	if e <= 0.04045 {
		return e / 12.92
	}
	return math.Pow((e+0.055)/1.055, 2.4)
}

// Rec.709 (ITU-R BT.709), distinct knee constants from sRGB.
func rec709Encode(l float64) float64 {
	if l < 0.018 {
		return l * 4.5
	}
	return 1.099*math.Pow(l, 0.45) - 0.099
}

func rec709Decode(e float64) float64 {
	if e < 0.081 {
		return e / 4.5
	}
	return math.Pow((e+0.099)/1.099, 1/0.45)
}

// ST 2084 PQ, normalised so 1.0 scene-linear maps to 10,000 nits.
const (
	pqM1 = 2610.0 / 16384.0
	pqM2 = 2523.0 / 4096.0 * 128.0
	pqC1 = 3424.0 / 4096.0
	pqC2 = 2413.0 / 4096.0 * 32.0
	pqC3 = 2392.0 / 4096.0 * 32.0
)

func pqEncode(l float64) float64 {
	if l < 0 {
		l = 0
	}
	ym1 := math.Pow(l, pqM1)
	return math.Pow((pqC1+pqC2*ym1)/(1+pqC3*ym1), pqM2)
}

func pqDecode(e float64) float64 {
	em2 := math.Pow(e, 1/pqM2)
	num := em2 - pqC1
	if num < 0 {
		num = 0
	}
	return math.Pow(num/(pqC2-pqC3*em2), 1/pqM1)
}

// Hybrid Log-Gamma (ARIB STD-B67).
const (
	hlgA = 0.17883277
	hlgB = 1 - 4*hlgA
)

func hlgEncode(l float64) float64 {
	if l <= 1.0/12.0 {
		return math.Sqrt(3 * l)
	}
	return hlgA*math.Log(12*l-hlgB) + (0.5 - hlgA*math.Log(1-hlgB))
}

func hlgDecode(e float64) float64 {
	c := 0.5 - hlgA*math.Log(1-hlgB)
	if e <= 0.5 {
		return e * e / 3
	}
	return (math.Exp((e-c)/hlgA) + hlgB) / 12
}

// Simple power-law gamma with an optional linear toe segment, the form
// used by display-referred gamma spaces that avoid an infinite slope at
// black.
func gammaLinearEncode(l float64, gamma, seg float64) float64 {
	if seg > 0 && l < seg {
		return l / seg * math.Pow(seg, 1/gamma)
	}
	if l < 0 {
		return 0
	}
	return math.Pow(l, 1/gamma)
}

func gammaLinearDecode(e float64, gamma, seg float64) float64 {
	segEnc := 0.0
	if seg > 0 {
		segEnc = seg / seg * math.Pow(seg, 1/gamma)
	}
	if seg > 0 && e < segEnc {
		return e / math.Pow(seg, 1/gamma) * seg
	}
	if e < 0 {
		return 0
	}
	return math.Pow(e, gamma)
}

// ACEScct: a log curve with a linear toe below a fixed break point.
const (
	acesCCTBreak = 0.0078125 // 2^-7
	acesCCTSlope = 10.5402377416545
	acesCCTOff   = 0.0729055341958355
)

func acesCCTEncode(lin float64) float64 {
	if lin <= acesCCTBreak {
		return acesCCTSlope*lin + acesCCTOff
	}
	return (math.Log2(lin) + 9.72) / 17.52
}

func acesCCTDecode(code float64) float64 {
	if code <= 0.155251141552511 {
		return (code - acesCCTOff) / acesCCTSlope
	}
	return math.Exp2(code*17.52 - 9.72)
}

// ACEScc, the pure-log predecessor to ACEScct (no linear toe, with a
// separate near-black asymptote handled per the published transform).
func acesCCEncode(lin float64) float64 {
	if lin <= 0 {
		return (math.Log2(math.Exp2(-16)) + 9.72) / 17.52 // floor of the curve; guards log(0)
	}
	if lin < math.Exp2(-15) {
		return (math.Log2(math.Exp2(-16)+lin*0.5) + 9.72) / 17.52
	}
	return (math.Log2(lin) + 9.72) / 17.52
}

func acesCCDecode(code float64) float64 {
	if code < -0.3014 {
		return (math.Exp2(code*17.52-9.72) - math.Exp2(-16)) * 2
	}
	return math.Exp2(code*17.52 - 9.72)
}

// Cineon (Kodak printing density), the canonical film-log curve.
const (
	cineonBlack  = 95.0
	cineonWhite  = 685.0
	cineonGamma  = 0.6
	cineonRange  = 1023.0
)

func cineonEncode(lin float64) float64 {
	off := math.Pow(10, (cineonBlack-cineonWhite)*0.002/cineonGamma)
	v := lin*(1-off) + off
	if v <= 0 {
		v = 1e-10
	}
	return (cineonWhite + math.Log10(v)*cineonGamma/0.002) / cineonRange
}

func cineonDecode(code float64) float64 {
	off := math.Pow(10, (cineonBlack-cineonWhite)*0.002/cineonGamma)
	c := code * cineonRange
	return (math.Pow(10, (c-cineonWhite)*0.002/cineonGamma) - off) / (1 - off)
}

// Sony S-Log3.
func sLog3Encode(lin float64) float64 {
	if lin >= 0.01125000 {
		return (420.0 + math.Log10((lin+0.01)/(0.18+0.01))*261.5) / 1023.0
	}
	return (lin*(171.2102946929-95.0)/0.01125000 + 95.0) / 1023.0
}

func sLog3Decode(code float64) float64 {
	c := code * 1023.0
	if c >= 171.2102946929 {
		return math.Pow(10, (c-420.0)/261.5)*(0.18+0.01) - 0.01
	}
	return (c - 95.0) * 0.01125000 / (171.2102946929 - 95.0)
}

// ARRI LogC3 (EI 800).
const (
	logC3Cut   = 0.010591
	logC3A     = 5.555556
	logC3B     = 0.052272
	logC3C     = 0.247190
	logC3D     = 0.385537
	logC3E     = 5.367655
	logC3F     = 0.092809
)

func logC3Encode(lin float64) float64 {
	if lin > logC3Cut {
		return logC3C*math.Log10(logC3A*lin+logC3B) + logC3D
	}
	return logC3E*lin + logC3F
}

func logC3Decode(code float64) float64 {
	cutEnc := logC3E*logC3Cut + logC3F
	if code > cutEnc {
		return (math.Pow(10, (code-logC3D)/logC3C) - logC3B) / logC3A
	}
	return (code - logC3F) / logC3E
}
