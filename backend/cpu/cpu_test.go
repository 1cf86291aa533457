package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfxgo/compute/transform"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	b := New(2, 0)
	pix := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	h, err := b.Upload(pix, 1, 2, 3)
	require.NoError(t, err)
	got, err := b.Download(h)
	require.NoError(t, err)
	assert.Equal(t, pix, got)
}

func TestUploadRejectsMismatchedLength(t *testing.T) {
	b := New(1, 0)
	_, err := b.Upload([]float32{0.1}, 2, 2, 3)
	require.Error(t, err)
}

func TestExecColorExposureDoublesValue(t *testing.T) {
	b := New(4, 0)
	pix := make([]float32, 4*4*3)
	for i := range pix {
		pix[i] = 0.1
	}
	src, err := b.Upload(pix, 4, 4, 3)
	require.NoError(t, err)
	dst, err := b.Allocate(4, 4, 3)
	require.NoError(t, err)

	err = b.ExecColor(src, dst, transform.Exposure{Stops: 1})
	require.NoError(t, err)

	out, err := b.Download(dst)
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 0.2, v, 1e-6)
	}
}

func TestExecColorMismatchedDimsErrors(t *testing.T) {
	b := New(1, 0)
	src, _ := b.Allocate(4, 4, 3)
	dst, _ := b.Allocate(2, 2, 3)
	err := b.ExecColor(src, dst, transform.Exposure{Stops: 1})
	require.Error(t, err)
}

func TestExecResizeChangesDimensions(t *testing.T) {
	b := New(2, 0)
	pix := make([]float32, 8*8*3)
	for i := range pix {
		pix[i] = 0.5
	}
	src, _ := b.Upload(pix, 8, 8, 3)
	dst, _ := b.Allocate(4, 4, 3)
	err := b.ExecResize(src, dst, transform.FilterLanczos3)
	require.NoError(t, err)
	out, err := b.Download(dst)
	require.NoError(t, err)
	require.Len(t, out, 4*4*3)
	for _, v := range out {
		assert.InDelta(t, 0.5, v, 1e-3)
	}
}

func TestExecBlurPreservesFlatField(t *testing.T) {
	b := New(2, 0)
	pix := make([]float32, 16*16*3)
	for i := range pix {
		pix[i] = 0.3
	}
	src, _ := b.Upload(pix, 16, 16, 3)
	dst, _ := b.Allocate(16, 16, 3)
	err := b.ExecBlur(src, dst, 3)
	require.NoError(t, err)
	out, err := b.Download(dst)
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 0.3, v, 1e-3)
	}
}
