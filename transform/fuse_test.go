package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseCollapsesAdjacentMatrixLike(t *testing.T) {
	g := Group{Members: []Transform{
		Exposure{Stops: 1},
		Contrast{X: 1.2, Pivot: 0.5},
	}}
	fused := Fuse(g)
	require.Len(t, fused.Members, 1)
	_, ok := fused.Members[0].(Matrix)
	assert.True(t, ok)
}

func TestFuseLeavesNonMatrixNodesAlone(t *testing.T) {
	g := Group{Members: []Transform{
		Exposure{Stops: 1},
		Lut1D{Table: []float64{0, 1}, Channels: 1},
		Contrast{X: 1.1, Pivot: 0.5},
	}}
	fused := Fuse(g)
	require.Len(t, fused.Members, 3)
	_, isExposure := fused.Members[0].(Exposure)
	assert.True(t, isExposure, "lone Exposure run of length 1 stays as-is, not promoted to Matrix")
	_, isLut := fused.Members[1].(Lut1D)
	assert.True(t, isLut)
}

func TestFuseSingleRunIsNotPromoted(t *testing.T) {
	g := Group{Members: []Transform{Exposure{Stops: 2}}}
	fused := Fuse(g)
	require.Len(t, fused.Members, 1)
	_, ok := fused.Members[0].(Exposure)
	assert.True(t, ok, "a run of length 1 must not be rewritten into a Matrix")
}

func TestFuseEmptyGroup(t *testing.T) {
	fused := Fuse(Group{})
	assert.Empty(t, fused.Members)
}

// applyPoint applies m to a single [r,g,b,1] row vector under the
// x' = x*M convention used throughout (see Matrix.Mul and
// colorscience.applyMatrix).
func applyPoint(m Matrix, r, g, b float64) (float64, float64, float64) {
	x := [4]float64{r, g, b, 1}
	var out [3]float64
	for j := 0; j < 3; j++ {
		out[j] = x[0]*m.M[0][j] + x[1]*m.M[1][j] + x[2]*m.M[2][j] + x[3]*m.M[3][j]
	}
	return out[0], out[1], out[2]
}

// TestFuseMatchesSequentialApplication is the regression test for the
// fusion-order bug: fusing Exposure then Contrast must produce the same
// result as applying them one at a time, not the reverse composition.
func TestFuseMatchesSequentialApplication(t *testing.T) {
	g := Group{Members: []Transform{
		Exposure{Stops: 1},
		Contrast{X: 2, Pivot: 0.5},
	}}
	fused := Fuse(g)
	require.Len(t, fused.Members, 1)
	m, ok := fused.Members[0].(Matrix)
	require.True(t, ok)

	r0 := 0.3
	exp, _ := asMatrixLike(Exposure{Stops: 1})
	r1, _, _ := applyPoint(exp, r0, r0, r0)
	con, _ := asMatrixLike(Contrast{X: 2, Pivot: 0.5})
	want, _, _ := applyPoint(con, r1, r1, r1)

	got, _, _ := applyPoint(m, r0, r0, r0)
	assert.InDelta(t, want, got, 1e-9)
	assert.InDelta(t, 0.7, want, 1e-9, "sequential application should match the hand-derived reference value")
}
