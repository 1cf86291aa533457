package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixInvertRoundTrip(t *testing.T) {
	m := Matrix{M: [4][4]float64{
		{2, 0, 0, 0},
		{0, 3, 0, 0},
		{0, 0, 0.5, 0},
		{1, 1, 1, 1},
	}}
	inv, err := m.Invert()
	require.NoError(t, err)
	id := m.Mul(inv)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, id.M[i][j], 1e-9)
		}
	}
}

func TestMatrixInvertSingular(t *testing.T) {
	m := Matrix{} // all zero, determinant 0
	_, err := m.Invert()
	require.Error(t, err)
}

func TestMatrixInvertNearSingularThreshold(t *testing.T) {
	// A matrix with determinant well below 1e-10 must be rejected even
	// though it is not exactly singular.
	m := Identity4()
	m.M[2][2] = 1e-12
	_, err := m.Invert()
	require.Error(t, err)
}

func TestGroupFlattenAssociativity(t *testing.T) {
	a := Exposure{Stops: 1}
	b := Exposure{Stops: -1}
	c := Contrast{X: 1.1, Pivot: 0.5}
	nested := Group{Members: []Transform{
		Group{Members: []Transform{a, b}},
		Group{Members: []Transform{Group{Members: []Transform{c}}}},
	}}
	flat := nested.Flatten()
	require.Len(t, flat.Members, 3)
	assert.Equal(t, a, flat.Members[0])
	assert.Equal(t, b, flat.Members[1])
	assert.Equal(t, c, flat.Members[2])
}

func TestValidateMatrixNonFinite(t *testing.T) {
	m := Identity4()
	m.M[1][2] = math.NaN()
	err := Validate(m)
	require.Error(t, err)
}

func TestValidateCdlNegativePower(t *testing.T) {
	c := Cdl{Slope: [3]float64{1, 1, 1}, Power: [3]float64{1, 1, -0.5}, Saturation: 1}
	err := Validate(c)
	require.Error(t, err)
}

func TestValidateLut1DTooShort(t *testing.T) {
	err := Validate(Lut1D{Table: []float64{0.1}, Channels: 1})
	require.Error(t, err)
}

func TestValidateLut1DChannelMismatch(t *testing.T) {
	err := Validate(Lut1D{Table: make([]float64, 10), Channels: 3})
	require.Error(t, err)
}

func TestValidateLut3DLength(t *testing.T) {
	err := Validate(Lut3D{Table: make([]float64, 10), Size: 3})
	require.Error(t, err)

	ok := Validate(Lut3D{Table: make([]float64, 3*3*3*3), Size: 3})
	require.NoError(t, ok)
}

func TestValidateRangeOrdering(t *testing.T) {
	err := Validate(Range{InLo: 1, InHi: 1, OutLo: 0, OutHi: 1})
	require.Error(t, err)

	require.NoError(t, Validate(Range{InLo: 0, InHi: 1, OutLo: 0, OutHi: 1}))
}

func TestValidateGroupRecurses(t *testing.T) {
	bad := Group{Members: []Transform{Cdl{Power: [3]float64{-1, 1, 1}}}}
	require.Error(t, Validate(bad))
}
