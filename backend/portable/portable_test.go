package portable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Actual shader dispatch (ExecColor, etc.) requires a live Ebiten
// graphics context (a running game loop) and is exercised by the
// cmd/vfxc integration path rather than here; these tests cover the
// backend's pure host-side logic.

func TestQuantizeDequantizeRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 0.25, 0.5, 0.75, 1} {
		q := quantize(v)
		back := dequantize(q)
		assert.InDelta(t, float64(v), float64(back), 1.0/255)
	}
}

func TestQuantizeClampsOutOfRange(t *testing.T) {
	assert.Equal(t, uint8(0), quantize(-1))
	assert.Equal(t, uint8(255), quantize(2))
}

func TestHandleDims(t *testing.T) {
	h := &Handle{w: 4, h: 8, c: 3}
	w, ht, c := h.Dims()
	assert.Equal(t, 4, w)
	assert.Equal(t, 8, ht)
	assert.Equal(t, 3, c)
}
