package colorscience

import "github.com/vfxgo/compute/transform"

// applyLut1D linearly interpolates a 1-D table over each pixel, clamping
// at the domain edges. Channels==1 shares one curve across R, G and B;
// Channels==3 or 4 applies a per-channel curve.
func applyLut1D(buf []float32, channels int, l transform.Lut1D) {
	if l.Channels == 1 {
		curve := l.Table
		forEachPixel(buf, channels, func(px []float32) {
			for i := 0; i < 3 && i < channels; i++ {
				px[i] = float32(lut1Dlookup(curve, float64(px[i])))
			}
		})
		return
	}
	stride := len(l.Table) / l.Channels
	forEachPixel(buf, channels, func(px []float32) {
		for i := 0; i < 3 && i < channels && i < l.Channels; i++ {
			curve := l.Table[i*stride : (i+1)*stride]
			px[i] = float32(lut1Dlookup(curve, float64(px[i])))
		}
	})
}

func lut1Dlookup(table []float64, x float64) float64 {
	n := len(table)
	if n == 1 {
		return table[0]
	}
	pos := x * float64(n-1)
	if pos <= 0 {
		return table[0]
	}
	if pos >= float64(n-1) {
		return table[n-1]
	}
	lo := int(pos)
	frac := pos - float64(lo)
	return table[lo]*(1-frac) + table[lo+1]*frac
}

// applyLut3D evaluates an RGB lattice with tetrahedral interpolation,
// which unlike trilinear interpolation preserves straight hue lines
// through the neutral axis — standard practice for display/color-grade
// LUTs (OCIO, ACES). The lattice is Size^3 entries of 3 floats, indexed
// [r][g][b] with r the slowest-varying axis.
func applyLut3D(buf []float32, channels int, l transform.Lut3D) {
	n := l.Size
	get := func(ri, gi, bi int) (float64, float64, float64) {
		idx := ((ri*n+gi)*n + bi) * 3
		return l.Table[idx], l.Table[idx+1], l.Table[idx+2]
	}
	forEachPixel(buf, channels, func(px []float32) {
		if channels < 3 {
			return
		}
		r, g, b := lut3DLookup(float64(px[0]), float64(px[1]), float64(px[2]), n, get)
		px[0] = float32(r)
		px[1] = float32(g)
		px[2] = float32(b)
	})
}

func lut3DLookup(r, g, b float64, n int, get func(ri, gi, bi int) (float64, float64, float64)) (float64, float64, float64) {
	clampUnit := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	r, g, b = clampUnit(r), clampUnit(g), clampUnit(b)
	scale := float64(n - 1)
	rf, gf, bf := r*scale, g*scale, b*scale
	r0, g0, b0 := int(rf), int(gf), int(bf)
	if r0 >= n-1 {
		r0 = n - 2
	}
	if g0 >= n-1 {
		g0 = n - 2
	}
	if b0 >= n-1 {
		b0 = n - 2
	}
	if n == 1 {
		return get(0, 0, 0)
	}
	fr, fg, fb := rf-float64(r0), gf-float64(g0), bf-float64(b0)

	c000r, c000g, c000b := get(r0, g0, b0)
	c100r, c100g, c100b := get(r0+1, g0, b0)
	c010r, c010g, c010b := get(r0, g0+1, b0)
	c001r, c001g, c001b := get(r0, g0, b0+1)
	c110r, c110g, c110b := get(r0+1, g0+1, b0)
	c101r, c101g, c101b := get(r0+1, g0, b0+1)
	c011r, c011g, c011b := get(r0, g0+1, b0+1)
	c111r, c111g, c111b := get(r0+1, g0+1, b0+1)

	mix3 := func(t float64, ar, ag, ab, br_, bg, bb float64) (float64, float64, float64) {
		return ar + t*(br_-ar), ag + t*(bg-ag), ab + t*(bb-ab)
	}

	var or_, og, ob float64
	switch {
	case fr >= fg && fg >= fb:
		or_, og, ob = mix3(fr, c000r, c000g, c000b, c100r, c100g, c100b)
		dr, dg, db := mix3(fg, 0, 0, 0, c110r-c100r, c110g-c100g, c110b-c100b)
		or_, og, ob = or_+dr, og+dg, ob+db
		dr2, dg2, db2 := mix3(fb, 0, 0, 0, c111r-c110r, c111g-c110g, c111b-c110b)
		or_, og, ob = or_+dr2, og+dg2, ob+db2
	case fr >= fb && fb >= fg:
		or_, og, ob = mix3(fr, c000r, c000g, c000b, c100r, c100g, c100b)
		or_, og, ob = or_+fb*(c101r-c100r), og+fb*(c101g-c100g), ob+fb*(c101b-c100b)
		or_, og, ob = or_+fg*(c111r-c101r), og+fg*(c111g-c101g), ob+fg*(c111b-c101b)
	case fb >= fr && fr >= fg:
		or_, og, ob = c000r+fb*(c001r-c000r), c000g+fb*(c001g-c000g), c000b+fb*(c001b-c000b)
		or_, og, ob = or_+fr*(c101r-c001r), og+fr*(c101g-c001g), ob+fr*(c101b-c001b)
		or_, og, ob = or_+fg*(c111r-c101r), og+fg*(c111g-c101g), ob+fg*(c111b-c101b)
	case fb >= fg && fg >= fr:
		or_, og, ob = c000r+fb*(c001r-c000r), c000g+fb*(c001g-c000g), c000b+fb*(c001b-c000b)
		or_, og, ob = or_+fg*(c011r-c001r), og+fg*(c011g-c001g), ob+fg*(c011b-c001b)
		or_, og, ob = or_+fr*(c111r-c011r), og+fr*(c111g-c011g), ob+fr*(c111b-c011b)
	case fg >= fb && fb >= fr:
		or_, og, ob = c000r+fg*(c010r-c000r), c000g+fg*(c010g-c000g), c000b+fg*(c010b-c000b)
		or_, og, ob = or_+fb*(c011r-c010r), og+fb*(c011g-c010g), ob+fb*(c011b-c010b)
		or_, og, ob = or_+fr*(c111r-c011r), og+fr*(c111g-c011g), ob+fr*(c111b-c011b)
	default: // fg >= fr >= fb
		or_, og, ob = c000r+fg*(c010r-c000r), c000g+fg*(c010g-c000g), c000b+fg*(c010b-c000b)
		or_, og, ob = or_+fr*(c110r-c010r), og+fr*(c110g-c010g), ob+fr*(c110b-c010b)
		or_, og, ob = or_+fb*(c111r-c110r), og+fb*(c111g-c110g), ob+fb*(c111b-c110b)
	}
	return or_, og, ob
}
