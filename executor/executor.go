// Package executor implements the tiled executor (spec.md §4.G): the
// component that actually walks an image tile by tile (or in one shot,
// per the planner's Strategy), uploading, executing and downloading
// through a Backend, with optional region-cache reuse and cooperative
// cancellation.
//
// The tile loop is grounded on the teacher's exec.go worker pool: a
// channel of work items, a fixed pool of goroutines consuming it, and a
// `done`-channel style cooperative cancellation checked between units of
// work, generalized here from "one file per worker" to "one tile per
// worker, checked against ctx.Done() at every tile boundary" via
// golang.org/x/sync/errgroup (itself already used by backend/cpu for the
// same fan-out shape).
package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vfxgo/compute/backend"
	"github.com/vfxgo/compute/cache"
	"github.com/vfxgo/compute/internal/worklog"
	"github.com/vfxgo/compute/planner"
	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/stream"
	"github.com/vfxgo/compute/transform"
)

// Executor runs pipelines against one backend.
type Executor struct {
	Backend backend.Backend
	Cache   *cache.Cache // nil disables tile-result caching
	Log     *worklog.Logger
	Workers int // goroutines walking the tile grid concurrently; <=0 means 1
}

// New constructs an Executor. log may be nil (worklog.Discard is used).
func New(be backend.Backend, c *cache.Cache, log *worklog.Logger, workers int) *Executor {
	if log == nil {
		log = worklog.Discard()
	}
	return &Executor{Backend: be, Cache: c, Log: log, Workers: workers}
}

// Stats reports what a single Execute call did.
type Stats struct {
	TilesTotal     int
	TilesFromCache int
	Strategy       planner.Strategy
}

// Execute runs pipeline over src, writing into sink, following plan.
// Both color transforms and an optional trailing image op (resize/blur)
// are applied; cancelling ctx stops work at the next tile boundary and
// returns a *backend.Error with Kind=KindCancellation.
func (e *Executor) Execute(ctx context.Context, src stream.Source, sink stream.Sink, pipeline transform.Pipeline, plan planner.Plan) (Stats, error) {
	srcW, srcH, srcC := src.Dims()
	if srcC != pipeline.Channels {
		return Stats{}, backend.New(backend.KindValidation, e.Backend.Name(), "validate", nil,
			fmt.Errorf("source has %d channels, pipeline expects %d", srcC, pipeline.Channels))
	}

	dstW, dstH := srcW, srcH
	if r, ok := pipeline.Image.(transform.Resize); ok {
		dstW, dstH = r.W, r.H
	}
	if err := sink.Init(dstW, dstH, srcC); err != nil {
		return Stats{}, backend.New(backend.KindIO, e.Backend.Name(), "write", nil, err)
	}

	fingerprint := fingerprintPipeline(pipeline)

	// A resize changes the image's dimensions; producing one without
	// seams requires reading the whole source for every destination
	// tile, which defeats tiling's purpose. Rather than tile a resize
	// incorrectly, this executor always resamples in one pass — the
	// planner's Tiled/Streaming strategies still apply to everything
	// else (pointwise color, blur).
	//
	// This is a deliberate scope cut, not a planner bug: a resize still
	// produces correct output and dimensions at any source size, but it
	// does not actually stream through the pipeline the way a large
	// image's color/blur tiles do. A true streaming resize (tiling the
	// destination and reading only the corresponding source footprint
	// per tile) is future work.
	if _, hasResize := pipeline.Image.(transform.Resize); hasResize {
		return e.runSinglePass(ctx, src, sink, pipeline, fingerprint)
	}
	// A source without random access must be read once, in order; the
	// single-pass path reads the whole image in one region.
	if !src.SupportsRandomAccess() {
		return e.runSinglePass(ctx, src, sink, pipeline, fingerprint)
	}

	switch plan.Strategy {
	case planner.SinglePass:
		return e.runSinglePass(ctx, src, sink, pipeline, fingerprint)
	default:
		return e.runTiled(ctx, src, sink, pipeline, plan, fingerprint, dstW, dstH)
	}
}

func (e *Executor) runSinglePass(ctx context.Context, src stream.Source, sink stream.Sink, pipeline transform.Pipeline, fingerprint uint64) (Stats, error) {
	srcW, srcH, srcC := src.Dims()
	full, err := region.New(0, 0, srcW, srcH, srcW, srcH)
	if err != nil {
		return Stats{}, backend.New(backend.KindValidation, e.Backend.Name(), "validate", nil, err)
	}
	out, err := e.runTile(ctx, src, pipeline, full, fingerprint)
	if err != nil {
		return Stats{}, err
	}
	dstW, dstH := srcW, srcH
	if r, ok := pipeline.Image.(transform.Resize); ok {
		dstW, dstH = r.W, r.H
	}
	dstRegion := region.Full(dstW, dstH)
	if err := sink.WriteRegion(dstRegion, out); err != nil {
		return Stats{}, backend.New(backend.KindIO, e.Backend.Name(), "write", &dstRegion, err)
	}
	if err := sink.Finish(); err != nil {
		return Stats{}, backend.New(backend.KindIO, e.Backend.Name(), "write", nil, err)
	}
	_ = srcC
	return Stats{TilesTotal: 1, Strategy: planner.SinglePass}, nil
}

func (e *Executor) runTiled(ctx context.Context, src stream.Source, sink stream.Sink, pipeline transform.Pipeline, plan planner.Plan, fingerprint uint64, dstW, dstH int) (Stats, error) {
	srcW, srcH, _ := src.Dims()
	tiles := destinationTiles(dstW, dstH, plan.TileDim)

	workers := e.Workers
	if workers <= 0 || plan.Strategy == planner.Streaming {
		// Streaming reads and writes tiles one at a time, in row-major order.
		workers = 1
	}

	var tilesFromCache int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, dstTile := range tiles {
		dstTile := dstTile
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return backend.New(backend.KindCancellation, e.Backend.Name(), "exec", &dstTile, gctx.Err())
			default:
			}

			srcTile := sourceFootprint(dstTile, pipeline, srcW, srcH, plan.Halo)

			var (
				out []float32
				err error
			)
			if e.Cache != nil {
				key := cache.Key{Region: srcTile, Fingerprint: fingerprint}
				if entry, ok := e.Cache.Get(key); ok {
					atomic.AddInt64(&tilesFromCache, 1)
					out, err = e.Backend.Download(entry.Handle)
					if err != nil {
						return backend.New(backend.KindTransfer, e.Backend.Name(), "download", &srcTile, err)
					}
					out = e.cropToOutput(out, srcTile, dstTile, pipeline)
					return e.writeOut(sink, dstTile, out)
				}
			}

			out, err = e.runTile(gctx, src, pipeline, srcTile, fingerprint)
			if err != nil {
				return err
			}
			out = e.cropToOutput(out, srcTile, dstTile, pipeline)
			return e.writeOut(sink, dstTile, out)
		})
	}

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	if err := sink.Finish(); err != nil {
		return Stats{}, backend.New(backend.KindIO, e.Backend.Name(), "write", nil, err)
	}
	return Stats{
		TilesTotal:     len(tiles),
		TilesFromCache: int(tilesFromCache),
		Strategy:       plan.Strategy,
	}, nil
}

func (e *Executor) writeOut(sink stream.Sink, dstTile region.Region, out []float32) error {
	if err := sink.WriteRegion(dstTile, out); err != nil {
		return backend.New(backend.KindIO, e.Backend.Name(), "write", &dstTile, err)
	}
	return nil
}

// runTile uploads r, runs the pipeline's color group then image op, and
// downloads the result. When the pipeline includes a Resize, the
// returned buffer is sized to the destination footprint the resize
// produces from r, not to r itself.
func (e *Executor) runTile(ctx context.Context, src stream.Source, pipeline transform.Pipeline, r region.Region, fingerprint uint64) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, backend.New(backend.KindCancellation, e.Backend.Name(), "exec", &r, ctx.Err())
	default:
	}

	raw, err := src.ReadRegion(r)
	if err != nil {
		return nil, backend.New(backend.KindIO, e.Backend.Name(), "upload", &r, err)
	}

	srcHandle, err := e.Backend.Upload(raw, r.W, r.H, pipeline.Channels)
	if err != nil {
		return nil, backend.New(backend.KindResource, e.Backend.Name(), "upload", &r, err)
	}
	defer e.Backend.Release(srcHandle)

	colorHandle := srcHandle
	if len(pipeline.Color.Members) > 0 {
		dst, err := e.Backend.Allocate(r.W, r.H, pipeline.Channels)
		if err != nil {
			return nil, backend.New(backend.KindResource, e.Backend.Name(), "exec", &r, err)
		}
		defer e.Backend.Release(dst)
		if err := e.Backend.ExecColor(srcHandle, dst, pipeline.Color); err != nil {
			return nil, err
		}
		colorHandle = dst
	}

	finalHandle := colorHandle
	outW, outH := r.W, r.H
	switch op := pipeline.Image.(type) {
	case transform.Resize:
		outW, outH = op.W, op.H
		dst, err := e.Backend.Allocate(outW, outH, pipeline.Channels)
		if err != nil {
			return nil, backend.New(backend.KindResource, e.Backend.Name(), "exec", &r, err)
		}
		defer e.Backend.Release(dst)
		if err := e.Backend.ExecResize(colorHandle, dst, op.Filter); err != nil {
			return nil, err
		}
		finalHandle = dst
	case transform.Blur:
		dst, err := e.Backend.Allocate(outW, outH, pipeline.Channels)
		if err != nil {
			return nil, backend.New(backend.KindResource, e.Backend.Name(), "exec", &r, err)
		}
		defer e.Backend.Release(dst)
		if err := e.Backend.ExecBlur(colorHandle, dst, op.Radius); err != nil {
			return nil, err
		}
		finalHandle = dst
	}

	out, err := e.Backend.Download(finalHandle)
	if err != nil {
		return nil, backend.New(backend.KindTransfer, e.Backend.Name(), "download", &r, err)
	}

	if e.Cache != nil && finalHandle == colorHandle {
		// Only cache pointwise-color tile results: a resized/blurred
		// tile's footprint is keyed to a specific destination tile's
		// halo, not reusable across pipelines with a different image op.
		pinned, err := e.Backend.Upload(out, r.W, r.H, pipeline.Channels)
		if err == nil {
			e.Cache.Put(cache.Key{Region: r, Fingerprint: fingerprint}, cache.Entry{
				Handle: pinned,
				Bytes:  r.Bytes(pipeline.Channels),
			})
		}
	}

	return out, nil
}

// cropToOutput trims a tile result computed over a halo-padded source
// footprint down to the pixels the destination tile actually wants.
// Resize pipelines never reach this path (see Execute).
func (e *Executor) cropToOutput(buf []float32, srcTile, dstTile region.Region, pipeline transform.Pipeline) []float32 {
	channels := pipeline.Channels
	padX := dstTile.X - srcTile.X
	padY := dstTile.Y - srcTile.Y
	if padX == 0 && padY == 0 && srcTile.W == dstTile.W && srcTile.H == dstTile.H {
		return buf
	}
	out := make([]float32, dstTile.W*dstTile.H*channels)
	for y := 0; y < dstTile.H; y++ {
		srcOff := ((y+padY)*srcTile.W + padX) * channels
		dstOff := y * dstTile.W * channels
		copy(out[dstOff:dstOff+dstTile.W*channels], buf[srcOff:srcOff+dstTile.W*channels])
	}
	return out
}

// destinationTiles splits a dstW x dstH image into tileDim-square tiles
// (the last column/row may be smaller).
func destinationTiles(dstW, dstH, tileDim int) []region.Region {
	if tileDim <= 0 {
		tileDim = dstW
		if dstH > tileDim {
			tileDim = dstH
		}
	}
	var tiles []region.Region
	for y := 0; y < dstH; y += tileDim {
		h := tileDim
		if y+h > dstH {
			h = dstH - y
		}
		for x := 0; x < dstW; x += tileDim {
			w := tileDim
			if x+w > dstW {
				w = dstW - x
			}
			tiles = append(tiles, region.Region{X: x, Y: y, W: w, H: h})
		}
	}
	return tiles
}

// sourceFootprint maps a destination tile back to the source region
// that must be read to produce it: itself, padded by the image op's
// halo and clamped to the source bounds. Pointwise-only pipelines need
// no padding.
func sourceFootprint(dstTile region.Region, pipeline transform.Pipeline, srcW, srcH, halo int) region.Region {
	// Execute never reaches runTiled for a pipeline carrying a Resize
	// (see Execute), so dstTile is always in the same coordinate space
	// as the source here.
	switch pipeline.Image.(type) {
	case transform.Blur:
		return dstTile.Expand(halo, srcW, srcH)
	default:
		return dstTile
	}
}

// fingerprintPipeline hashes a pipeline's structure well enough to
// distinguish cache entries produced by different pipelines; it is not
// a cryptographic hash. Cache entries are also scoped by region, but two
// pipelines whose fingerprints collide share entries for the same
// region, so a collision would return the other pipeline's result.
func fingerprintPipeline(p transform.Pipeline) uint64 {
	var h uint64 = 1469598103934665603 // FNV-1a offset basis
	mixByte := func(b byte) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	mixString := func(s string) {
		for i := 0; i < len(s); i++ {
			mixByte(s[i])
		}
	}
	mixString(fmt.Sprintf("c=%d;", p.Channels))
	for _, t := range p.Color.Members {
		mixString(fmt.Sprintf("%T:%v;", t, t))
	}
	if p.Image != nil {
		mixString(fmt.Sprintf("img=%T:%v;", p.Image, p.Image))
	}
	return h
}
