// Package backend declares the capability trait every execution backend
// (CPU, portable GPU, vendor GPU) implements, plus the shared error
// taxonomy the executor surfaces to callers (spec.md §4.C, §7).
package backend

import (
	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/transform"
)

// Handle is an opaque, backend-owned reference to device-resident pixel
// storage. No two handles share underlying storage, and a handle is only
// ever valid for the backend that produced it.
type Handle interface {
	// Dims returns the handle's width, height and channel count.
	Dims() (w, h, c int)
}

// Backend is the capability trait every execution backend exports. All
// operations other than limits()/name() may fail; failures other than
// DeviceOutOfMemory/DeviceLost are fatal to the current executor instance
// (spec.md §4.C).
type Backend interface {
	// Name identifies the backend for diagnostics and error messages.
	Name() string
	// Limits returns the immutable device descriptor produced at
	// construction time.
	Limits() region.DeviceLimits

	// Upload copies host pixel data (row-major, channel-interleaved,
	// length w*h*c) to a freshly allocated device handle.
	Upload(data []float32, w, h, c int) (Handle, error)
	// Download copies a handle's contents back to host memory.
	Download(h Handle) ([]float32, error)
	// Allocate reserves an uninitialised device buffer of the given shape.
	Allocate(w, h, c int) (Handle, error)
	// Release returns a handle's device storage. Releasing an
	// already-released handle is a no-op.
	Release(h Handle)

	// ExecColor applies a single pointwise color transform. src and dst
	// must share dimensions; dst may alias src only for transforms the
	// backend declares in-place-safe.
	ExecColor(src, dst Handle, t transform.Transform) error
	// ExecLUT1D applies an explicit 1-D LUT kernel.
	ExecLUT1D(src, dst Handle, table []float32, channels int) error
	// ExecLUT3D applies an explicit 3-D tetrahedral LUT kernel.
	ExecLUT3D(src, dst Handle, table []float32, size int) error
	// ExecResize resamples src into dst; dst's dimensions are independent
	// of src's.
	ExecResize(src, dst Handle, filter transform.ResizeFilter) error
	// ExecBlur applies a separable blur of the given radius.
	ExecBlur(src, dst Handle, radius float64) error
}

// InPlaceSafe reports whether a backend may write t's output over its
// input buffer without an intermediate copy. Every pointwise Transform
// variant is in-place safe; Group is safe iff every member is.
func InPlaceSafe(t transform.Transform) bool {
	switch v := t.(type) {
	case transform.Group:
		for _, m := range v.Members {
			if !InPlaceSafe(m) {
				return false
			}
		}
		return true
	case transform.Lut1D, transform.Lut3D:
		// LUT kernels read neighbouring table entries per sample but
		// write only the sample they read from; safe in place.
		return true
	default:
		return true
	}
}
