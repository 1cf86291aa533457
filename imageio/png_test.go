package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfxgo/compute/region"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestOpenPNGSourceDecodesDims(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	writeTestPNG(t, path, 6, 4)

	src, err := OpenPNGSource(path)
	require.NoError(t, err)
	w, h, c := src.Dims()
	assert.Equal(t, 6, w)
	assert.Equal(t, 4, h)
	assert.Equal(t, 4, c)
}

func TestPNGSourceReadRegionMatchesPixel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	writeTestPNG(t, path, 6, 4)

	src, err := OpenPNGSource(path)
	require.NoError(t, err)

	buf, err := src.ReadRegion(region.Region{X: 2, Y: 1, W: 1, H: 1})
	require.NoError(t, err)
	require.Len(t, buf, 4)
	assert.InDelta(t, float32(20)/255, buf[0], 1e-6)
	assert.InDelta(t, float32(10)/255, buf[1], 1e-6)
}

func TestPNGSinkRoundTripsApproximately(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	sink := NewPNGSink(path)
	require.NoError(t, sink.Init(4, 2, 3))
	buf := make([]float32, 4*2*3)
	for i := range buf {
		buf[i] = 0.5
	}
	require.NoError(t, sink.WriteRegion(region.Region{X: 0, Y: 0, W: 4, H: 2}, buf))
	require.NoError(t, sink.Finish())

	src, err := OpenPNGSource(path)
	require.NoError(t, err)
	w, h, _ := src.Dims()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)
	out, err := src.ReadRegion(region.Region{X: 0, Y: 0, W: 4, H: 2})
	require.NoError(t, err)
	for _, v := range out[:4] {
		assert.InDelta(t, 0.5, v, 0.01)
	}
}

func TestPNGSinkRejectsDoubleInit(t *testing.T) {
	sink := NewPNGSink(filepath.Join(t.TempDir(), "x.png"))
	require.NoError(t, sink.Init(2, 2, 3))
	assert.Error(t, sink.Init(2, 2, 3))
}

func TestPNGSinkRejectsWriteOutOfBounds(t *testing.T) {
	sink := NewPNGSink(filepath.Join(t.TempDir(), "x.png"))
	require.NoError(t, sink.Init(2, 2, 3))
	err := sink.WriteRegion(region.Region{X: 1, Y: 1, W: 5, H: 5}, make([]float32, 5*5*3))
	assert.Error(t, err)
}

func TestQuantClampsRange(t *testing.T) {
	assert.Equal(t, uint8(0), quant(-1))
	assert.Equal(t, uint8(255), quant(2))
	assert.Equal(t, uint8(128), quant(0.5))
}
