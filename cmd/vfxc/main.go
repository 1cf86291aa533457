// Command vfxc is a thin CLI demonstrating the compute engine end to
// end: pick a backend, build a pipeline from flags, run it against a
// file through the imageio reference drivers.
//
// Grounded on the teacher's cmd/caire/main.go: the same flag-driven
// single-shot invocation, the same spinner/colorized-status idiom via
// utils.Spinner/utils.DecorateText, and exec.go's stdin/stdout pipe
// detection via golang.org/x/term, generalized from "resize one image
// with seam carving" to "run a color/resize/blur pipeline through an
// auto-selected backend."
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/term"

	"github.com/vfxgo/compute/backend"
	"github.com/vfxgo/compute/backend/cpu"
	"github.com/vfxgo/compute/backend/portable"
	"github.com/vfxgo/compute/backend/vendor"
	"github.com/vfxgo/compute/cache"
	"github.com/vfxgo/compute/executor"
	"github.com/vfxgo/compute/imageio"
	"github.com/vfxgo/compute/internal/worklog"
	"github.com/vfxgo/compute/planner"
	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/selector"
	"github.com/vfxgo/compute/stream"
	"github.com/vfxgo/compute/transform"
	"github.com/vfxgo/compute/utils"
)

const helpBanner = `
┌┐  ┌─┐┬ ┬┌─┐
└┐  │  ├─┤├┤
┘└─┘└─┘┴ ┴└─┘

Streaming VFX color/image compute engine.
    Version: %s

`

// Version is set at build time via -ldflags.
var Version string

// pipeName indicates stdin/stdout is being used as the source/destination.
const pipeName = "-"

var (
	source      = flag.String("in", pipeName, "Source image path")
	destination = flag.String("out", pipeName, "Destination image path")
	exposure    = flag.Float64("exposure", 0, "Exposure adjustment in stops")
	contrast    = flag.Float64("contrast", 1, "Contrast multiplier around pivot 0.5")
	blurRadius  = flag.Float64("blur", 0, "Gaussian blur radius in pixels (0 disables)")
	newWidth    = flag.Int("width", 0, "New width (0 keeps source width)")
	newHeight   = flag.Int("height", 0, "New height (0 keeps source height)")
	tileDim     = flag.Int("tile", 0, "Force a tile edge in pixels (0 lets the planner choose)")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of tiles to process concurrently")
	cacheMB     = flag.Int64("cache", 256, "Region cache budget in megabytes (0 disables)")
	verbose     = flag.Bool("v", false, "Verbose structured logging to stderr")
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, helpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(); err != nil {
		log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage) + utils.DefaultColor)
	}
}

func run() error {
	spinner := utils.NewSpinner(
		fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ vfxc", utils.StatusMessage),
			utils.DecorateText("⇢ running pipeline...", utils.DefaultMessage),
		),
		time.Millisecond*80,
		true,
	)

	var logHandler slog.Handler
	if *verbose {
		logHandler = slog.NewTextHandler(os.Stderr, nil)
	} else {
		logHandler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := worklog.New(logHandler, "vfxc")

	src, srcCloser, err := openSource(*source)
	if err != nil {
		return fmt.Errorf("failed to load the source image: %w", err)
	}
	if srcCloser != nil {
		defer srcCloser()
	}

	sink, sinkCloser, err := openSink(*destination)
	if err != nil {
		return fmt.Errorf("failed to open the destination: %w", err)
	}
	if sinkCloser != nil {
		defer sinkCloser()
	}

	pipeline, err := buildPipeline(src)
	if err != nil {
		return fmt.Errorf("failed to build the pipeline: %w", err)
	}

	ex, err := buildExecutor(logger)
	if err != nil {
		return fmt.Errorf("no backend could be initialised: %w", err)
	}

	plan, err := choosePlan(src, pipeline, ex.Backend.Limits())
	if err != nil {
		return fmt.Errorf("failed to plan execution: %w", err)
	}

	if !*verbose && term.IsTerminal(int(os.Stderr.Fd())) {
		spinner.Start()
		defer spinner.Stop()
	}

	now := time.Now()
	stats, err := ex.Execute(context.Background(), src, sink, pipeline, plan)
	if err != nil {
		return fmt.Errorf("pipeline execution failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%s %s (%s, %d/%d tiles from cache, %s)\n",
		utils.DecorateText("✓", utils.SuccessMessage),
		utils.DecorateText("vfxc finished", utils.DefaultMessage),
		stats.Strategy, stats.TilesFromCache, stats.TilesTotal,
		utils.FormatTime(time.Since(now)),
	)
	return nil
}

// openSource resolves -in into a stream.Source: a URL is downloaded to a
// temp file first (mirroring the teacher's utils.DownloadImage/IsValidUrl
// use in exec.go), "-" reads from stdin, anything else is opened as a
// local file. A ".vfx" file goes to the raw float driver; any other file
// is checked with utils.DetectFileContentType, rejected if it does not
// sniff as an image, and otherwise opened with the PNG/BMP driver.
func openSource(path string) (stream.Source, func(), error) {
	resolved := path
	var cleanup func()

	if utils.IsValidUrl(path) {
		tmp, err := utils.DownloadImage(path)
		if err != nil {
			return nil, nil, err
		}
		resolved = tmp.Name()
		tmp.Close()
		cleanup = func() { os.Remove(resolved) }
	}

	if resolved == pipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, nil, fmt.Errorf("`-` should be used with a pipe for stdin")
		}
		tmp, err := os.CreateTemp("", "vfxc-stdin-*")
		if err != nil {
			return nil, nil, err
		}
		if _, err := tmp.ReadFrom(os.Stdin); err != nil {
			tmp.Close()
			return nil, nil, err
		}
		tmp.Close()
		resolved = tmp.Name()
		cleanup = func() { os.Remove(resolved) }
	}

	if filepath.Ext(resolved) == rawExt {
		s, err := imageio.OpenRawSource(resolved)
		return s, cleanup, err
	}

	ctype, err := utils.DetectFileContentType(resolved)
	if err == nil {
		if s, ok := ctype.(string); !ok || len(s) < 5 || s[:5] != "image" {
			return nil, cleanup, fmt.Errorf("%s does not look like an image file", resolved)
		}
	}
	s, err := imageio.OpenPNGSource(resolved)
	return s, cleanup, err
}

const rawExt = ".vfx"

func openSink(path string) (stream.Sink, func(), error) {
	if path == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, nil, fmt.Errorf("`-` should be used with a pipe for stdout")
		}
		return imageio.NewPNGSink(os.Stdout.Name()), nil, nil
	}
	if filepath.Ext(path) == rawExt {
		s, err := imageio.NewRawSink(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	return imageio.NewPNGSink(path), nil, nil
}

func buildPipeline(src stream.Source) (transform.Pipeline, error) {
	_, _, c := src.Dims()
	b := transform.NewBuilder(c)
	if *exposure != 0 {
		b.Add(transform.Exposure{Stops: *exposure})
	}
	if *contrast != 1 {
		b.Add(transform.Contrast{X: *contrast, Pivot: 0.5})
	}
	srcW, srcH, _ := src.Dims()
	dstW, dstH := srcW, srcH
	if *newWidth > 0 {
		dstW = *newWidth
	}
	if *newHeight > 0 {
		dstH = *newHeight
	}
	switch {
	case *blurRadius > 0:
		b.WithImageOp(transform.Blur{Radius: *blurRadius})
	case dstW != srcW || dstH != srcH:
		b.WithImageOp(transform.Resize{W: dstW, H: dstH, Filter: transform.FilterLanczos3})
	}
	return b.Build(true)
}

func buildExecutor(logger *worklog.Logger) (*executor.Executor, error) {
	candidates := []selector.Candidate{
		{Name: "vendor-vulkan", Probe: func() (backend.Backend, error) { return vendor.New() }},
		{Name: "portable", Probe: func() (backend.Backend, error) { return portable.New() }},
		{Name: "cpu", Probe: func() (backend.Backend, error) { return cpu.New(*workers, 0), nil }},
	}
	be, err := selector.Select(candidates, logger)
	if err != nil {
		return nil, err
	}

	var c *cache.Cache
	if *cacheMB > 0 {
		budget := *cacheMB * (1 << 20)
		// Evicted entries hold device-resident handles; release them
		// back to the backend instead of leaking device memory (the
		// CPU backend's Release is a no-op, but vendor/portable own
		// real GPU allocations).
		c, err = cache.New(budget, func(_ cache.Key, e cache.Entry) {
			be.Release(e.Handle)
		})
		if err != nil {
			return nil, err
		}
	}
	return executor.New(be, c, logger, *workers), nil
}

func choosePlan(src stream.Source, pipeline transform.Pipeline, limits region.DeviceLimits) (planner.Plan, error) {
	w, h, c := src.Dims()
	halo := 0
	if pipeline.Image != nil {
		halo = pipeline.Image.Halo()
	}
	plan, err := planner.Choose(planner.Params{
		Width:                  w,
		Height:                 h,
		Channels:               c,
		Halo:                   halo,
		SourceFitsInHostMemory: true,
		HostMemoryBudget:       1 << 32,
	}, limits)
	if err != nil {
		return planner.Plan{}, err
	}
	if *tileDim > 0 {
		plan.TileDim = *tileDim
	}
	return plan, nil
}
