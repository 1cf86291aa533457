// Package cpu implements the reference CPU backend (spec.md §4.D): every
// other backend's output is checked against this one in conformance
// tests. Handles are plain host-memory float32 slices; execution is
// data-parallel across row bands using golang.org/x/sync/errgroup,
// generalising the teacher's per-row worker-pool shape (exec.go) from a
// fixed seam-removal loop to an arbitrary tile-sized color/image kernel.
package cpu

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vfxgo/compute/backend"
	"github.com/vfxgo/compute/colorscience"
	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/transform"
)

// Handle is the CPU backend's Handle implementation: a plain host buffer.
type Handle struct {
	w, h, c int
	pix     []float32
}

func (h *Handle) Dims() (int, int, int) { return h.w, h.h, h.c }

// Backend is the reference, always-available CPU implementation.
type Backend struct {
	workers int
	limits  region.DeviceLimits
}

// New creates a CPU backend. workers<=0 defaults to runtime.NumCPU().
// hostMemoryBudget, if >0, is reported via Limits as the host's available
// "device" memory for the planner's SinglePass-vs-Tiled decision.
func New(workers int, hostMemoryBudget int64) *Backend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Backend{
		workers: workers,
		limits: region.DeviceLimits{
			MaxTileDim:            1 << 16,
			MaxBufferBytes:        hostMemoryBudget,
			TotalDeviceMemory:     hostMemoryBudget,
			AvailableDeviceMemory: hostMemoryBudget,
			Detected:              hostMemoryBudget > 0,
		},
	}
}

func (b *Backend) Name() string               { return "cpu" }
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
	// Host memory is reclaimed by the garbage collector; nothing to do.
}

func asHandle(h backend.Handle) (*Handle, error) {
	hh, ok := h.(*Handle)
	if !ok {
		return nil, fmt.Errorf("foreign handle type %T", h)
	}
	return hh, nil
}

// parallelRows runs fn once per row band across b.workers goroutines.
func (b *Backend) parallelRows(h int, fn func(y0, y1 int) error) error {
	if h <= 0 {
		return nil
	}
	workers := b.workers
	if workers > h {
		workers = h
	}
	if workers <= 1 {
		return fn(0, h)
	}
	band := (h + workers - 1) / workers
	var g errgroup.Group
	for y0 := 0; y0 < h; y0 += band {
		y0 := y0
		y1 := y0 + band
		if y1 > h {
			y1 = h
		}
		g.Go(func() error { return fn(y0, y1) })
	}
	return g.Wait()
}

func (b *Backend) ExecColor(src, dst backend.Handle, t transform.Transform) error {
	s, err := asHandle(src)
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	d, err := asHandle(dst)
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	if s.w != d.w || s.h != d.h || s.c != d.c {
		return backend.New(backend.KindValidation, b.Name(), "exec", nil, fmt.Errorf("src/dst dimension mismatch"))
	}
	copy(d.pix, s.pix)
	err = b.parallelRows(d.h, func(y0, y1 int) error {
		stride := d.w * d.c
		chunk := d.pix[y0*stride : y1*stride]
		return colorscience.Apply(chunk, d.c, t)
	})
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	return nil
}

func (b *Backend) ExecLUT1D(src, dst backend.Handle, table []float32, channels int) error {
	tableF64 := make([]float64, len(table))
	for i, v := range table {
		tableF64[i] = float64(v)
	}
	return b.ExecColor(src, dst, transform.Lut1D{Table: tableF64, Channels: channels})
}

func (b *Backend) ExecLUT3D(src, dst backend.Handle, table []float32, size int) error {
	tableF64 := make([]float64, len(table))
	for i, v := range table {
		tableF64[i] = float64(v)
	}
	return b.ExecColor(src, dst, transform.Lut3D{Table: tableF64, Size: size})
}

func (b *Backend) ExecResize(src, dst backend.Handle, filter transform.ResizeFilter) error {
	s, err := asHandle(src)
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	d, err := asHandle(dst)
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	if s.c != d.c {
		return backend.New(backend.KindValidation, b.Name(), "exec", nil, fmt.Errorf("channel mismatch %d vs %d", s.c, d.c))
	}
	out := colorscience.Resize(s.pix, s.w, s.h, s.c, d.w, d.h, filter)
	copy(d.pix, out)
	return nil
}

func (b *Backend) ExecBlur(src, dst backend.Handle, radius float64) error {
	s, err := asHandle(src)
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	d, err := asHandle(dst)
	if err != nil {
		return backend.New(backend.KindInternal, b.Name(), "exec", nil, err)
	}
	if s.w != d.w || s.h != d.h || s.c != d.c {
		return backend.New(backend.KindValidation, b.Name(), "exec", nil, fmt.Errorf("src/dst dimension mismatch"))
	}
	out := colorscience.Blur(s.pix, s.w, s.h, s.c, radius)
	copy(d.pix, out)
	return nil
}

var _ backend.Backend = (*Backend)(nil)
