package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfxgo/compute/region"
)

func TestChooseRejectsBadDimensions(t *testing.T) {
	_, err := Choose(Params{Width: 0, Height: 10, Channels: 3, SourceFitsInHostMemory: true}, region.DeviceLimits{})
	require.Error(t, err)
}

func TestChooseSinglePassWhenItFits(t *testing.T) {
	limits := region.DeviceLimits{
		Detected:              true,
		MaxTileDim:            4096,
		AvailableDeviceMemory: 1 << 30, // 1 GiB, far more than a tiny image needs
	}
	p, err := Choose(Params{Width: 64, Height: 64, Channels: 4, SourceFitsInHostMemory: true}, limits)
	require.NoError(t, err)
	assert.Equal(t, SinglePass, p.Strategy)
}

func TestChooseTiledWhenDeviceIsSmall(t *testing.T) {
	limits := region.DeviceLimits{
		Detected:              true,
		MaxTileDim:            512,
		AvailableDeviceMemory: 4 << 20, // 4 MiB — far too small for a large image in one pass
	}
	p, err := Choose(Params{Width: 8192, Height: 8192, Channels: 4, SourceFitsInHostMemory: true}, limits)
	require.NoError(t, err)
	assert.Equal(t, Tiled, p.Strategy)
	assert.GreaterOrEqual(t, p.TileDim, region.MinTileDim)
	assert.LessOrEqual(t, p.TileDim, limits.MaxTileDim)
}

func TestChooseStreamingWhenSourceDoesNotFitHost(t *testing.T) {
	limits := region.DeviceLimits{Detected: false}
	p, err := Choose(Params{
		Width: 4096, Height: 4096, Channels: 4,
		SourceFitsInHostMemory: false,
		HostMemoryBudget:       64 << 20,
		Halo:                   2,
	}, limits)
	require.NoError(t, err)
	assert.Equal(t, Streaming, p.Strategy)
	assert.Greater(t, p.TileDim, 0)
}

func TestChooseTileDimIsPowerOfTwo(t *testing.T) {
	limits := region.DeviceLimits{Detected: true, MaxTileDim: 2048, AvailableDeviceMemory: 16 << 20}
	p, err := Choose(Params{Width: 4096, Height: 4096, Channels: 4, SourceFitsInHostMemory: true}, limits)
	require.NoError(t, err)
	if p.Strategy == Tiled {
		v := p.TileDim
		assert.Equal(t, v&(v-1), 0, "tile dimension must be a power of two")
	}
}
