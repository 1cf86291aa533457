package imageio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfxgo/compute/region"
)

func TestRawRoundTripExactFloats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.vfx")
	sink, err := NewRawSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Init(4, 3, 3))

	buf := make([]float32, 4*3*3)
	for i := range buf {
		buf[i] = float32(i) * 1.2345
	}
	require.NoError(t, sink.WriteRegion(region.Region{X: 0, Y: 0, W: 4, H: 3}, buf))
	require.NoError(t, sink.Finish())
	require.NoError(t, sink.Close())

	src, err := OpenRawSource(path)
	require.NoError(t, err)
	defer src.Close()
	w, h, c := src.Dims()
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)
	assert.Equal(t, 3, c)

	out, err := src.ReadRegion(region.Region{X: 0, Y: 0, W: 4, H: 3})
	require.NoError(t, err)
	require.Len(t, out, len(buf))
	for i := range buf {
		assert.Equal(t, buf[i], out[i])
	}
}

func TestRawWriteRegionOutOfOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.vfx")
	sink, err := NewRawSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Init(4, 4, 1))

	bottom := []float32{1, 2, 3, 4}
	top := []float32{5, 6, 7, 8}
	require.NoError(t, sink.WriteRegion(region.Region{X: 0, Y: 2, W: 4, H: 1}, bottom))
	require.NoError(t, sink.WriteRegion(region.Region{X: 0, Y: 0, W: 4, H: 1}, top))
	require.NoError(t, sink.Finish())
	require.NoError(t, sink.Close())

	src, err := OpenRawSource(path)
	require.NoError(t, err)
	defer src.Close()

	row0, err := src.ReadRegion(region.Region{X: 0, Y: 0, W: 4, H: 1})
	require.NoError(t, err)
	assert.Equal(t, top, row0)

	row2, err := src.ReadRegion(region.Region{X: 0, Y: 2, W: 4, H: 1})
	require.NoError(t, err)
	assert.Equal(t, bottom, row2)
}

func TestOpenRawSourceRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.vfx")
	require.NoError(t, os.WriteFile(path, make([]byte, 16), 0o644))
	_, err := OpenRawSource(path)
	assert.Error(t, err)
}

func TestRawSinkRejectsRegionOutOfBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.vfx")
	sink, err := NewRawSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Init(2, 2, 1))
	err = sink.WriteRegion(region.Region{X: 1, Y: 1, W: 4, H: 4}, make([]float32, 16))
	assert.Error(t, err)
}
