package transform

import "math"

// Fuse collapses runs of adjacent Matrix, Exposure and Contrast nodes into
// a single Matrix, to the documented tolerance of spec.md §4.E (relative
// 1e-4, absolute 1e-6 vs the unfused chain). Fusion is purely an
// optimisation: it must be toggleable (callers pass fuse=false to Build)
// so conformance tests can compare fused and unfused execution.
func Fuse(g Group) Group {
	out := make([]Transform, 0, len(g.Members))
	i := 0
	for i < len(g.Members) {
		if m, ok := asMatrixLike(g.Members[i]); ok {
			acc := m
			j := i + 1
			for j < len(g.Members) {
				next, ok := asMatrixLike(g.Members[j])
				if !ok {
					break
				}
				acc = acc.Mul(next)
				j++
			}
			if j > i+1 {
				out = append(out, Matrix(acc))
			} else {
				out = append(out, g.Members[i])
			}
			i = j
			continue
		}
		out = append(out, g.Members[i])
		i++
	}
	return Group{Members: out}
}

// AsAffine exposes asMatrixLike to other packages: backends that can only
// dispatch a single affine-matrix kernel (e.g. a portable GPU shader) use
// this to fold Exposure/Contrast into that kernel instead of falling back
// to the host for them.
func AsAffine(t Transform) (Matrix, bool) {
	return asMatrixLike(t)
}

// asMatrixLike expresses Matrix, Exposure and Contrast as an equivalent
// affine Matrix (a pure linear map suffices for exposure/contrast, which
// have no cross-channel terms).
func asMatrixLike(t Transform) (Matrix, bool) {
	switch v := t.(type) {
	case Matrix:
		return v, true
	case Exposure:
		scale := math.Pow(2, v.Stops)
		m := Identity4()
		for i := 0; i < 3; i++ {
			m.M[i][i] = scale
		}
		return m, true
	case Contrast:
		// out = (in - pivot)*x + pivot = in*x + pivot*(1-x)
		m := Identity4()
		offset := v.Pivot * (1 - v.X)
		for i := 0; i < 3; i++ {
			m.M[i][i] = v.X
			// Represent the additive offset via the homogeneous row: a
			// 4x4 acting on [r,g,b,1] needs the offset contributed by
			// the constant row. We encode it in M[3][i], applied when
			// the caller treats the vector as [r,g,b,1]^T with M as a
			// row-vector transform x' = x*M (see Matrix.Mul docs).
			m.M[3][i] = offset
		}
		return m, true
	default:
		return Matrix{}, false
	}
}

