package imageio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/stream"
)

// rawMagic tags the fixed 16-byte header written ahead of the pixel
// payload: magic, width, height, channels, each a little-endian uint32.
// This is deliberately the simplest possible container — a header plus
// a flat float32 dump — since the engine's Non-goals exclude container
// parsing; this format exists only so the conformance tests and the
// CLI demo have a lossless, full-float round-trip file format to use
// alongside the lossy 8-bit PNG driver.
const rawMagic = 0x76667831 // "vfx1"

const rawHeaderSize = 16

// RawSource reads a raw planar-float file via a seekable os.File handle,
// satisfying region reads without decoding the whole file up front.
type RawSource struct {
	f       *os.File
	w, h, c int
}

// OpenRawSource opens a raw planar-float file written by RawSink.
func OpenRawSource(path string) (*RawSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: open %s: %w", path, err)
	}
	w, h, c, err := readRawHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &RawSource{f: f, w: w, h: h, c: c}, nil
}

func readRawHeader(f *os.File) (w, h, c int, err error) {
	hdr := make([]byte, rawHeaderSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return 0, 0, 0, fmt.Errorf("imageio: read raw header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	if magic != rawMagic {
		return 0, 0, 0, fmt.Errorf("imageio: not a raw vfx file (bad magic)")
	}
	w = int(binary.LittleEndian.Uint32(hdr[4:8]))
	h = int(binary.LittleEndian.Uint32(hdr[8:12]))
	c = int(binary.LittleEndian.Uint32(hdr[12:16]))
	return w, h, c, nil
}

func (s *RawSource) Dims() (int, int, int)      { return s.w, s.h, s.c }
func (s *RawSource) SupportsRandomAccess() bool { return true }
func (s *RawSource) NativeTile() (int, bool)    { return 0, false }

func (s *RawSource) Close() error { return s.f.Close() }

func (s *RawSource) ReadRegion(r region.Region) ([]float32, error) {
	if r.X < 0 || r.Y < 0 || r.X+r.W > s.w || r.Y+r.H > s.h {
		return nil, fmt.Errorf("imageio: region %v outside %dx%d", r, s.w, s.h)
	}
	rowSamples := r.W * s.c
	rowBytes := rowSamples * 4
	raw := make([]byte, rowBytes)
	out := make([]float32, r.W*r.H*s.c)
	for row := 0; row < r.H; row++ {
		off := rawHeaderSize + int64((r.Y+row)*s.w+r.X)*int64(s.c)*4
		if _, err := s.f.ReadAt(raw, off); err != nil {
			return nil, fmt.Errorf("imageio: read region row: %w", err)
		}
		decodeFloats(raw, out[row*rowSamples:(row+1)*rowSamples])
	}
	return out, nil
}

// RawSink writes a raw planar-float file, filling in the header on
// Init and seeking to each region's byte offset on WriteRegion so
// writes may arrive out of row order (the tiled executor's workers
// complete tiles in whatever order they finish).
type RawSink struct {
	f       *os.File
	w, h, c int
	state   stream.SinkState
}

// NewRawSink creates (truncating) the file at path for writing.
func NewRawSink(path string) (*RawSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: create %s: %w", path, err)
	}
	return &RawSink{f: f, state: stream.SinkUninitialised}, nil
}

func (s *RawSink) Init(w, h, c int) error {
	if s.state != stream.SinkUninitialised {
		return fmt.Errorf("imageio: RawSink.Init called twice")
	}
	hdr := make([]byte, rawHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], rawMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(w))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(h))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(c))
	if _, err := s.f.WriteAt(hdr, 0); err != nil {
		return fmt.Errorf("imageio: write raw header: %w", err)
	}
	payload := int64(w) * int64(h) * int64(c) * 4
	if err := s.f.Truncate(rawHeaderSize + payload); err != nil {
		return fmt.Errorf("imageio: preallocate raw file: %w", err)
	}
	s.w, s.h, s.c = w, h, c
	s.state = stream.SinkInitialised
	return nil
}

func (s *RawSink) WriteRegion(r region.Region, buf []float32) error {
	if s.state != stream.SinkInitialised && s.state != stream.SinkPartiallyWritten {
		return fmt.Errorf("imageio: RawSink written to before Init or after Finish")
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > s.w || r.Y+r.H > s.h {
		return fmt.Errorf("imageio: write region %v outside %dx%d", r, s.w, s.h)
	}
	rowSamples := r.W * s.c
	if len(buf) != r.W*r.H*s.c {
		return fmt.Errorf("imageio: buffer has %d samples, want %d", len(buf), r.W*r.H*s.c)
	}
	raw := make([]byte, rowSamples*4)
	for row := 0; row < r.H; row++ {
		encodeFloats(buf[row*rowSamples:(row+1)*rowSamples], raw)
		off := rawHeaderSize + int64((r.Y+row)*s.w+r.X)*int64(s.c)*4
		if _, err := s.f.WriteAt(raw, off); err != nil {
			return fmt.Errorf("imageio: write region row: %w", err)
		}
	}
	s.state = stream.SinkPartiallyWritten
	return nil
}

func (s *RawSink) Finish() error {
	if s.state == stream.SinkFinalised || s.state == stream.SinkClosed {
		return fmt.Errorf("imageio: RawSink finished twice")
	}
	s.state = stream.SinkFinalised
	return s.f.Sync()
}

func (s *RawSink) State() stream.SinkState { return s.state }

func (s *RawSink) Close() error {
	s.state = stream.SinkClosed
	return s.f.Close()
}

func decodeFloats(raw []byte, out []float32) {
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
}

func encodeFloats(in []float32, raw []byte) {
	for i, v := range in {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(v))
	}
}

var (
	_ stream.Source = (*RawSource)(nil)
	_ stream.Sink   = (*RawSink)(nil)
)
