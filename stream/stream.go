// Package stream defines the region-addressable producer/consumer
// contracts the tiled executor reads from and writes to, plus the two
// in-memory reference implementations that define behavioural ground
// truth for conformance-testing file-backed drivers (spec.md §4.B).
package stream

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vfxgo/compute/region"
)

// Source is an abstract producer of pixels. Implementations decouple the
// engine from any particular container format.
type Source interface {
	// Dims returns the image's width, height and channel count.
	Dims() (w, h, c int)
	// ReadRegion returns a row-major, channel-interleaved float32 buffer
	// of length r.W*r.H*channels for the given region. Two reads of the
	// same region must return equal data.
	ReadRegion(r region.Region) ([]float32, error)
	// SupportsRandomAccess reports whether ReadRegion may be called with
	// arbitrary, possibly repeated, regions. When false the executor must
	// visit regions once, in row-major order.
	SupportsRandomAccess() bool
	// NativeTile optionally reports a tile size hint the source prefers;
	// ok is false when the source has no preference.
	NativeTile() (size int, ok bool)
}

// SinkState is the lifecycle state of a Sink (spec.md §3).
type SinkState int

const (
	SinkUninitialised SinkState = iota
	SinkInitialised
	SinkPartiallyWritten
	SinkFinalised
	SinkClosed
)

func (s SinkState) String() string {
	switch s {
	case SinkUninitialised:
		return "uninitialised"
	case SinkInitialised:
		return "initialised"
	case SinkPartiallyWritten:
		return "partially-written"
	case SinkFinalised:
		return "finalised"
	case SinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sink is an abstract consumer of pixels.
type Sink interface {
	// Init must be called exactly once, before any WriteRegion, and
	// declares the output image's final dimensions.
	Init(w, h, c int) error
	// WriteRegion writes buf (length r.W*r.H*channels) at r. Writes must
	// tile the output without overlap.
	WriteRegion(r region.Region, buf []float32) error
	// Finish must be called exactly once, after the last WriteRegion and
	// before Close. No WriteRegion may follow it.
	Finish() error
	// State reports the sink's current lifecycle state.
	State() SinkState
}

// Sentinel errors. Concrete drivers should wrap these with context via
// fmt.Errorf("...: %w", ...) the way the rest of this module does.
var (
	ErrSourceIO        = errors.New("stream: source I/O error")
	ErrSinkIO          = errors.New("stream: sink I/O error")
	ErrWriteOutOfBounds = errors.New("stream: write region out of bounds")
	ErrDoubleFinalise  = errors.New("stream: sink finished more than once")
	ErrNotInitialised  = errors.New("stream: sink written to before Init")
	ErrBadDimensions   = errors.New("stream: incompatible dimensions")
)

// MemorySource is the reference in-memory Source backed by a contiguous
// buffer. It is always random-access and defines the behavioural ground
// truth file-backed sources are tested against.
type MemorySource struct {
	w, h, c int
	pix     []float32
}

// NewMemorySource wraps an existing row-major, channel-interleaved buffer.
// len(pix) must equal w*h*c.
func NewMemorySource(pix []float32, w, h, c int) (*MemorySource, error) {
	if len(pix) != w*h*c {
		return nil, fmt.Errorf("%w: buffer has %d samples, want %d", ErrBadDimensions, len(pix), w*h*c)
	}
	return &MemorySource{w: w, h: h, c: c, pix: pix}, nil
}

func (s *MemorySource) Dims() (int, int, int) { return s.w, s.h, s.c }

func (s *MemorySource) SupportsRandomAccess() bool { return true }

func (s *MemorySource) NativeTile() (int, bool) { return 0, false }

func (s *MemorySource) ReadRegion(r region.Region) ([]float32, error) {
	if r.X < 0 || r.Y < 0 || r.X+r.W > s.w || r.Y+r.H > s.h {
		return nil, fmt.Errorf("%w: %v outside %dx%d", ErrSourceIO, r, s.w, s.h)
	}
	out := make([]float32, r.W*r.H*s.c)
	rowSamples := r.W * s.c
	for row := 0; row < r.H; row++ {
		srcOff := ((r.Y+row)*s.w + r.X) * s.c
		dstOff := row * rowSamples
		copy(out[dstOff:dstOff+rowSamples], s.pix[srcOff:srcOff+rowSamples])
	}
	return out, nil
}

// MemorySink is the reference in-memory Sink backed by a contiguous
// buffer, growing lazily on Init.
type MemorySink struct {
	mu       sync.Mutex
	w, h, c  int
	pix      []float32
	written  []bool // per-row full coverage bitmap, by scanline
	state    SinkState
}

// NewMemorySink constructs an uninitialised in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{state: SinkUninitialised}
}

func (s *MemorySink) Init(w, h, c int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SinkUninitialised {
		return fmt.Errorf("%w: Init called in state %v", ErrSinkIO, s.state)
	}
	s.w, s.h, s.c = w, h, c
	s.pix = make([]float32, w*h*c)
	s.written = make([]bool, h)
	s.state = SinkInitialised
	return nil
}

func (s *MemorySink) WriteRegion(r region.Region, buf []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SinkInitialised && s.state != SinkPartiallyWritten {
		return fmt.Errorf("%w: state is %v", ErrNotInitialised, s.state)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > s.w || r.Y+r.H > s.h {
		return fmt.Errorf("%w: %v outside %dx%d", ErrWriteOutOfBounds, r, s.w, s.h)
	}
	if len(buf) != r.W*r.H*s.c {
		return fmt.Errorf("%w: buffer has %d samples, want %d", ErrBadDimensions, len(buf), r.W*r.H*s.c)
	}
	rowSamples := r.W * s.c
	for row := 0; row < r.H; row++ {
		dstOff := ((r.Y+row)*s.w + r.X) * s.c
		srcOff := row * rowSamples
		copy(s.pix[dstOff:dstOff+rowSamples], buf[srcOff:srcOff+rowSamples])
		s.written[r.Y+row] = s.written[r.Y+row] || r.W == s.w
	}
	s.state = SinkPartiallyWritten
	return nil
}

func (s *MemorySink) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SinkFinalised || s.state == SinkClosed {
		return fmt.Errorf("%w", ErrDoubleFinalise)
	}
	s.state = SinkFinalised
	return nil
}

func (s *MemorySink) State() SinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bytes returns the sink's buffer. Valid once the sink has been finalised.
func (s *MemorySink) Bytes() (pix []float32, w, h, c int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pix, s.w, s.h, s.c
}
