package selector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfxgo/compute/backend"
	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/transform"
)

type fakeBackend struct {
	name   string
	limits region.DeviceLimits
}

func (f *fakeBackend) Name() string               { return f.name }
func (f *fakeBackend) Limits() region.DeviceLimits { return f.limits }
func (f *fakeBackend) Upload(data []float32, w, h, c int) (backend.Handle, error) {
	return nil, nil
}
func (f *fakeBackend) Download(h backend.Handle) ([]float32, error)    { return nil, nil }
func (f *fakeBackend) Allocate(w, h, c int) (backend.Handle, error)    { return nil, nil }
func (f *fakeBackend) Release(h backend.Handle)                       {}
func (f *fakeBackend) ExecColor(src, dst backend.Handle, t transform.Transform) error {
	return nil
}
func (f *fakeBackend) ExecLUT1D(src, dst backend.Handle, table []float32, channels int) error {
	return nil
}
func (f *fakeBackend) ExecLUT3D(src, dst backend.Handle, table []float32, size int) error {
	return nil
}
func (f *fakeBackend) ExecResize(src, dst backend.Handle, filter transform.ResizeFilter) error {
	return nil
}
func (f *fakeBackend) ExecBlur(src, dst backend.Handle, radius float64) error { return nil }

var _ backend.Backend = (*fakeBackend)(nil)

func TestSelectPicksHighestAvailableMemory(t *testing.T) {
	cands := []Candidate{
		{Name: "cpu", Probe: func() (backend.Backend, error) {
			return &fakeBackend{name: "cpu", limits: region.DeviceLimits{AvailableDeviceMemory: 1 << 30}}, nil
		}},
		{Name: "vendor-vulkan", Probe: func() (backend.Backend, error) {
			return &fakeBackend{name: "vendor-vulkan", limits: region.DeviceLimits{AvailableDeviceMemory: 4 << 30}}, nil
		}},
	}
	be, err := Select(cands, nil)
	require.NoError(t, err)
	assert.Equal(t, "vendor-vulkan", be.Name())
}

func TestSelectSkipsUnavailableBackends(t *testing.T) {
	cands := []Candidate{
		{Name: "vendor-vulkan", Probe: func() (backend.Backend, error) {
			return nil, errors.New("no vulkan driver")
		}},
		{Name: "cpu", Probe: func() (backend.Backend, error) {
			return &fakeBackend{name: "cpu", limits: region.DeviceLimits{AvailableDeviceMemory: 1 << 30}}, nil
		}},
	}
	be, err := Select(cands, nil)
	require.NoError(t, err)
	assert.Equal(t, "cpu", be.Name())
}

func TestSelectErrorsWhenNothingAvailable(t *testing.T) {
	cands := []Candidate{
		{Name: "vendor-vulkan", Probe: func() (backend.Backend, error) { return nil, errors.New("nope") }},
	}
	_, err := Select(cands, nil)
	require.Error(t, err)
}

func TestSelectBreaksTiesByPriority(t *testing.T) {
	cands := []Candidate{
		{Name: "cpu", Probe: func() (backend.Backend, error) {
			return &fakeBackend{name: "cpu", limits: region.DeviceLimits{AvailableDeviceMemory: 2 << 30}}, nil
		}},
		{Name: "portable", Probe: func() (backend.Backend, error) {
			return &fakeBackend{name: "portable", limits: region.DeviceLimits{AvailableDeviceMemory: 2 << 30}}, nil
		}},
	}
	be, err := Select(cands, nil)
	require.NoError(t, err)
	assert.Equal(t, "portable", be.Name())
}

func TestNewExecutorWiresSelectedBackend(t *testing.T) {
	cands := []Candidate{
		{Name: "cpu", Probe: func() (backend.Backend, error) {
			return &fakeBackend{name: "cpu", limits: region.DeviceLimits{AvailableDeviceMemory: 1 << 20}}, nil
		}},
	}
	ex, err := NewExecutor(cands, nil, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, "cpu", ex.Backend.Name())
}
