package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRejectsBadChannelCount(t *testing.T) {
	_, err := NewBuilder(0).Build(false)
	require.Error(t, err)

	_, err = NewBuilder(5).Build(false)
	require.Error(t, err)
}

func TestBuilderRejectsInvalidTransform(t *testing.T) {
	_, err := NewBuilder(3).
		Add(Cdl{Power: [3]float64{-1, 1, 1}}).
		Build(false)
	require.Error(t, err)
}

func TestBuilderSingleImageOp(t *testing.T) {
	b := NewBuilder(3).WithImageOp(Resize{W: 10, H: 10, Filter: FilterLanczos3})
	b.WithImageOp(Blur{Radius: 2})
	_, err := b.Build(false)
	require.Error(t, err)
}

func TestBuilderBuildsAndFuses(t *testing.T) {
	p, err := NewBuilder(3).
		Add(Exposure{Stops: 1}).
		Add(Contrast{X: 1.1, Pivot: 0.5}).
		Add(Lut1D{Table: []float64{0, 0.5, 1}, Channels: 1}).
		Build(true)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Channels)
	require.Len(t, p.Color.Members, 2) // Exposure+Contrast fused, Lut1D stays
	_, ok := p.Color.Members[0].(Matrix)
	assert.True(t, ok)
}

func TestBuilderBuildsWithoutFusing(t *testing.T) {
	p, err := NewBuilder(3).
		Add(Exposure{Stops: 1}).
		Add(Contrast{X: 1.1, Pivot: 0.5}).
		Build(false)
	require.NoError(t, err)
	require.Len(t, p.Color.Members, 2)
}
