// Package imageio provides reference, file-backed Source/Sink drivers
// for the engine's stream contracts (spec.md §4.B): an 8-bit PNG/BMP
// driver and a raw planar-float driver. These are collaborators, not
// core — the engine itself never parses a container format (see
// spec.md's Non-goals) — but something has to decode real files for
// the CLI demo and the conformance tests, and this package is it.
//
// Grounded on the teacher's decodeImg/encodeImg in image.go: decode via
// stdlib image.Decode plus golang.org/x/image/bmp registered alongside
// it, dispatch the encoder by file extension, and convert through
// image.NRGBA as the common pixel format.
package imageio

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"

	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/stream"
)

func init() {
	// The bmp import registers the BMP decoder alongside the stdlib PNG
	// one (JPEG is not registered) so image.Decode recognises it, mirroring the teacher's import of
	// golang.org/x/image/bmp purely for its decoder side effect.
	_ = bmp.Decode
}

// PNGSource decodes a whole 8-bit image file (PNG or BMP) into an
// in-memory float32 buffer at construction time. It is always
// random-access: the decode step already paid the I/O cost, so there
// is no streaming benefit to gating reads.
type PNGSource struct {
	w, h, c int
	pix     []float32
}

// OpenPNGSource decodes the image file at path into linear [0,1]
// float32 samples, 4 channels (RGBA), channel-interleaved, row-major.
// 8-bit sources cannot represent HDR values above 1.0; callers that
// need true float precision should use the raw planar driver instead.
func OpenPNGSource(path string) (*PNGSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imageio: decode %s: %w", path, err)
	}

	nrgba := toNRGBA(img)
	b := nrgba.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]float32, w*h*4)
	for y := 0; y < h; y++ {
		rowOff := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			si := rowOff + x*4
			di := (y*w + x) * 4
			pix[di+0] = float32(nrgba.Pix[si+0]) / 255
			pix[di+1] = float32(nrgba.Pix[si+1]) / 255
			pix[di+2] = float32(nrgba.Pix[si+2]) / 255
			pix[di+3] = float32(nrgba.Pix[si+3]) / 255
		}
	}
	return &PNGSource{w: w, h: h, c: 4, pix: pix}, nil
}

func (s *PNGSource) Dims() (int, int, int)      { return s.w, s.h, s.c }
func (s *PNGSource) SupportsRandomAccess() bool { return true }
func (s *PNGSource) NativeTile() (int, bool)    { return 0, false }

func (s *PNGSource) ReadRegion(r region.Region) ([]float32, error) {
	if r.X < 0 || r.Y < 0 || r.X+r.W > s.w || r.Y+r.H > s.h {
		return nil, fmt.Errorf("imageio: region %v outside %dx%d", r, s.w, s.h)
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

// PNGSink accumulates a float32 image in memory and quantizes it to
// 8-bit on Finish, encoding via the extension of the destination path
// (".png" or ".bmp"), matching the teacher's encodeImg extension
// dispatch in image.go.
type PNGSink struct {
	path    string
	w, h, c int
	pix     []float32
	state   stream.SinkState
}

// NewPNGSink returns a sink that will write to path on Finish.
func NewPNGSink(path string) *PNGSink {
	return &PNGSink{path: path, state: stream.SinkUninitialised}
}

func (s *PNGSink) Init(w, h, c int) error {
	if s.state != stream.SinkUninitialised {
		return fmt.Errorf("imageio: PNGSink.Init called twice")
	}
	if c != 3 && c != 4 {
		return fmt.Errorf("imageio: PNGSink requires 3 or 4 channels, got %d", c)
	}
	s.w, s.h, s.c = w, h, c
	s.pix = make([]float32, w*h*c)
	s.state = stream.SinkInitialised
	return nil
}

func (s *PNGSink) WriteRegion(r region.Region, buf []float32) error {
	if s.state != stream.SinkInitialised && s.state != stream.SinkPartiallyWritten {
		return fmt.Errorf("imageio: PNGSink written to before Init or after Finish")
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > s.w || r.Y+r.H > s.h {
		return fmt.Errorf("imageio: write region %v outside %dx%d", r, s.w, s.h)
	}
	if len(buf) != r.W*r.H*s.c {
		return fmt.Errorf("imageio: buffer has %d samples, want %d", len(buf), r.W*r.H*s.c)
	}
	rowSamples := r.W * s.c
	for row := 0; row < r.H; row++ {
		dstOff := ((r.Y+row)*s.w + r.X) * s.c
		srcOff := row * rowSamples
		copy(s.pix[dstOff:dstOff+rowSamples], buf[srcOff:srcOff+rowSamples])
	}
	s.state = stream.SinkPartiallyWritten
	return nil
}

func (s *PNGSink) Finish() error {
	if s.state == stream.SinkFinalised || s.state == stream.SinkClosed {
		return fmt.Errorf("imageio: PNGSink finished twice")
	}
	img := image.NewNRGBA(image.Rect(0, 0, s.w, s.h))
	for y := 0; y < s.h; y++ {
		rowOff := img.PixOffset(0, y)
		for x := 0; x < s.w; x++ {
			si := (y*s.w + x) * s.c
			di := rowOff + x*4
			img.Pix[di+0] = quant(s.pix[si+0])
			img.Pix[di+1] = quant(s.pix[si+1])
			img.Pix[di+2] = quant(s.pix[si+2])
			if s.c == 4 {
				img.Pix[di+3] = quant(s.pix[si+3])
			} else {
				img.Pix[di+3] = 255
			}
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("imageio: create %s: %w", s.path, err)
	}
	defer f.Close()
	if err := encodeByExt(f, s.path, img); err != nil {
		return err
	}
	s.state = stream.SinkFinalised
	return nil
}

func (s *PNGSink) State() stream.SinkState { return s.state }

var (
	_ stream.Source = (*PNGSource)(nil)
	_ stream.Sink   = (*PNGSink)(nil)
)

func quant(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func encodeByExt(w io.Writer, path string, img *image.NRGBA) error {
	switch filepath.Ext(path) {
	case ".bmp":
		return bmp.Encode(w, img)
	case ".png", "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("imageio: unsupported output extension %q", filepath.Ext(path))
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
