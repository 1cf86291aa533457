// Package portable implements the portable GPU backend (spec.md §4.D):
// a single Kage shader pipeline that Ebiten compiles to whatever the
// platform actually has (OpenGL, Metal, Direct3D 11 or WebGPU), so one
// shader source runs everywhere without per-vendor forks.
//
// Ebiten's public pixel I/O (WritePixels/ReadPixels) is 8-bit-per-channel
// RGBA; this backend therefore accelerates the subset of color ops that
// tolerate that precision (Matrix, Exposure, Contrast and CDL, all
// expressible as a single affine-or-CDL fragment shader) and falls back
// to the colorscience reference math, run on the host, for everything
// else (Range, Lut1D, Lut3D, Transfer, Group, Resize, Blur). Full-precision GPU execution of
// those ops lives in backend/vendor. This split is documented in
// DESIGN.md rather than hidden behind a silently-degrading code path.
package portable

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/vfxgo/compute/backend"
	"github.com/vfxgo/compute/colorscience"
	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/transform"
)

// Handle holds the engine's source-of-truth float32 buffer. The Ebiten
// texture is created lazily, only when a shader-eligible op needs it.
type Handle struct {
	w, h, c int
	pix     []float32
	img     *ebiten.Image
}

func (h *Handle) Dims() (int, int, int) { return h.w, h.h, h.c }

// Backend wraps an Ebiten-driven shader pipeline.
type Backend struct {
	shader *ebiten.Shader
	limits region.DeviceLimits
}

// New compiles the affine/CDL shader once and reports a conservative
// fixed tile budget: Ebiten's shared texture atlas has real platform
// limits but exposes none of them directly, so this backend advertises a
// deliberately modest MaxTileDim rather than probing.
func New() (*Backend, error) {
	s, err := ebiten.NewShader([]byte(kageSource))
	if err != nil {
		return nil, fmt.Errorf("portable: compiling shader: %w", err)
	}
	return &Backend{
		shader: s,
		limits: region.DeviceLimits{
			MaxTileDim:            2048,
			AvailableDeviceMemory: 256 << 20,
			TotalDeviceMemory:     256 << 20,
			Detected:              false,
		},
	}, nil
}

func (b *Backend) Name() string               { return "portable" }
func (b *Backend) Limits() region.DeviceLimits { return b.limits }

func (b *Backend) Upload(data []float32, w, h, c int) (backend.Handle, error) {
	if len(data) != w*h*c {
		return nil, backend.New(backend.KindValidation, b.Name(), "upload", nil,
			fmt.Errorf("buffer length %d does not match %dx%dx%d", len(data), w, h, c))
	}
	buf := make([]float32, len(data))
	copy(buf, data)
	return &Handle{w: w, h: h, c: c, pix: buf}, nil
}

func (b *Backend) Allocate(w, h, c int) (backend.Handle, error) {
	if w <= 0 || h <= 0 || c <= 0 {
		return nil, backend.New(backend.KindValidation, b.Name(), "allocate", nil,
			fmt.Errorf("invalid dims %dx%dx%d", w, h, c))
	}
	return &Handle{w: w, h: h, c: c, pix: make([]float32, w*h*c)}, nil
}

func (b *Backend) Download(h backend.Handle) ([]float32, error) {
	hh, ok := h.(*Handle)
	if !ok {
		return nil, backend.New(backend.KindInternal, b.Name(), "download", nil, fmt.Errorf("foreign handle type %T", h))
	}
	out := make([]float32, len(hh.pix))
	copy(out, hh.pix)
	return out, nil
}

func (b *Backend) Release(h backend.Handle) {
	if hh, ok := h.(*Handle); ok {
		hh.img = nil
	}
}

func asHandle(h backend.Handle, who string) (*Handle, error) {
	hh, ok := h.(*Handle)
	if !ok {
		return nil, fmt.Errorf("%s: foreign handle type %T", who, h)
	}
	return hh, nil
}

// toTexture quantizes a 3/4-channel float32 buffer in [0,1] into an
// Ebiten image, creating it on first use.
func (h *Handle) toTexture() *ebiten.Image {
	if h.img == nil {
		h.img = ebiten.NewImage(h.w, h.h)
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, h.w, h.h))
	for y := 0; y < h.h; y++ {
		for x := 0; x < h.w; x++ {
			off := (y*h.w + x) * h.c
			var r, g, b, a uint8 = 0, 0, 0, 255
			if h.c > 0 {
				r = quantize(h.pix[off])
			}
			if h.c > 1 {
				g = quantize(h.pix[off+1])
			}
			if h.c > 2 {
				b = quantize(h.pix[off+2])
			}
			if h.c > 3 {
				a = quantize(h.pix[off+3])
			}
			nrgba.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
		}
	}
	h.img.WritePixels(nrgba.Pix)
	return h.img
}

func (h *Handle) fromTexture(img *ebiten.Image) {
	nrgba := image.NewNRGBA(image.Rect(0, 0, h.w, h.h))
	img.ReadPixels(nrgba.Pix)
	for y := 0; y < h.h; y++ {
		for x := 0; x < h.w; x++ {
			off := (y*h.w + x) * h.c
			c := nrgba.NRGBAAt(x, y)
			if h.c > 0 {
				h.pix[off] = dequantize(c.R)
			}
			if h.c > 1 {
				h.pix[off+1] = dequantize(c.G)
			}
			if h.c > 2 {
				h.pix[off+2] = dequantize(c.B)
			}
			if h.c > 3 {
				h.pix[off+3] = dequantize(c.A)
			}
		}
	}
}

func quantize(v float32) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

func dequantize(v uint8) float32 {
	return float32(v) / 255
}

func (b *Backend) ExecColor(src, dst backend.Handle, t transform.Transform) error {
	s, err := asHandle(src, "exec")
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	d, err := asHandle(dst, "exec")
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	if s.w != d.w || s.h != d.h || s.c != d.c {
		return backend.New(backend.KindValidation, b.Name(), "exec", nil, fmt.Errorf("src/dst dimension mismatch"))
	}

	if m, ok := transform.AsAffine(t); ok {
		b.runAffine(s, d, m)
		return nil
	}
	if cdl, ok := t.(transform.Cdl); ok {
		b.runCdl(s, d, cdl)
		return nil
	}

	// Fall back to the host reference math for ops this shader cannot
	// express (Range, Lut1D, Lut3D, Transfer, arbitrary Group trees).
	copy(d.pix, s.pix)
	if err := colorscience.Apply(d.pix, d.c, t); err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	return nil
}

func (b *Backend) runAffine(s, d *Handle, m transform.Matrix) {
	tex := s.toTexture()
	opts := &ebiten.DrawRectShaderOptions{}
	opts.Images[0] = tex
	opts.Uniforms = map[string]any{
		"Mode":   0.0,
		"Row0":   [4]float32{float32(m.M[0][0]), float32(m.M[0][1]), float32(m.M[0][2]), float32(m.M[0][3])},
		"Row1":   [4]float32{float32(m.M[1][0]), float32(m.M[1][1]), float32(m.M[1][2]), float32(m.M[1][3])},
		"Row2":   [4]float32{float32(m.M[2][0]), float32(m.M[2][1]), float32(m.M[2][2]), float32(m.M[2][3])},
		"Row3":   [4]float32{float32(m.M[3][0]), float32(m.M[3][1]), float32(m.M[3][2]), float32(m.M[3][3])},
		"Slope":  [3]float32{1, 1, 1},
		"Offset": [3]float32{0, 0, 0},
		"Power":  [3]float32{1, 1, 1},
		"Sat":    float32(1),
	}
	out := d.toTexture()
	out.Clear()
	out.DrawRectShader(d.w, d.h, b.shader, opts)
	d.fromTexture(out)
}

func (b *Backend) runCdl(s, d *Handle, c transform.Cdl) {
	tex := s.toTexture()
	opts := &ebiten.DrawRectShaderOptions{}
	opts.Images[0] = tex
	opts.Uniforms = map[string]any{
		"Mode":   1.0,
		"Row0":   [4]float32{1, 0, 0, 0},
		"Row1":   [4]float32{0, 1, 0, 0},
		"Row2":   [4]float32{0, 0, 1, 0},
		"Row3":   [4]float32{0, 0, 0, 1},
		"Slope":  [3]float32{float32(c.Slope[0]), float32(c.Slope[1]), float32(c.Slope[2])},
		"Offset": [3]float32{float32(c.Offset[0]), float32(c.Offset[1]), float32(c.Offset[2])},
		"Power":  [3]float32{float32(c.Power[0]), float32(c.Power[1]), float32(c.Power[2])},
		"Sat":    float32(c.Saturation),
	}
	out := d.toTexture()
	out.Clear()
	out.DrawRectShader(d.w, d.h, b.shader, opts)
	d.fromTexture(out)
}

func (b *Backend) ExecLUT1D(src, dst backend.Handle, table []float32, channels int) error {
	return b.hostFallback(src, dst, func(buf []float32, c int) error {
		t := make([]float64, len(table))
		for i, v := range table {
			t[i] = float64(v)
		}
		return colorscience.Apply(buf, c, transform.Lut1D{Table: t, Channels: channels})
	})
}

func (b *Backend) ExecLUT3D(src, dst backend.Handle, table []float32, size int) error {
	return b.hostFallback(src, dst, func(buf []float32, c int) error {
		t := make([]float64, len(table))
		for i, v := range table {
			t[i] = float64(v)
		}
		return colorscience.Apply(buf, c, transform.Lut3D{Table: t, Size: size})
	})
}

func (b *Backend) hostFallback(src, dst backend.Handle, fn func(buf []float32, c int) error) error {
	s, err := asHandle(src, "exec")
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	d, err := asHandle(dst, "exec")
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	copy(d.pix, s.pix)
	if err := fn(d.pix, d.c); err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	return nil
}

func (b *Backend) ExecResize(src, dst backend.Handle, filter transform.ResizeFilter) error {
	s, err := asHandle(src, "exec")
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	d, err := asHandle(dst, "exec")
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	out := colorscience.Resize(s.pix, s.w, s.h, s.c, d.w, d.h, filter)
	copy(d.pix, out)
	return nil
}

func (b *Backend) ExecBlur(src, dst backend.Handle, radius float64) error {
	s, err := asHandle(src, "exec")
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	d, err := asHandle(dst, "exec")
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	out := colorscience.Blur(s.pix, s.w, s.h, s.c, radius)
	copy(d.pix, out)
	return nil
}

var _ backend.Backend = (*Backend)(nil)
