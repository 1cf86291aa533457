// Package planner chooses an execution Strategy and tile geometry for a
// given image size and device limits, grounded on the teacher's
// calculateFitness in processor.go: an iterative search that repeatedly
// rescales towards a target, halving effort each round, rather than
// solving the layout in one closed-form step.
package planner

import (
	"fmt"

	"github.com/vfxgo/compute/region"
)

// Strategy names how the executor will walk an image.
type Strategy int

const (
	// SinglePass runs the whole image through the backend in one shot.
	// Only valid when the full buffer (input + output + working set) fits
	// within the backend's available memory.
	SinglePass Strategy = iota
	// Tiled splits the image into same-sized tiles that each fit the
	// backend's budget, with halo overlap for neighbourhood-reading ops.
	Tiled
	// Streaming is Tiled plus sequential, bounded-window source reads and
	// sink writes: used when the source itself cannot be held in host
	// memory (e.g. a file larger than RAM).
	Streaming
)

func (s Strategy) String() string {
	switch s {
	case SinglePass:
		return "single-pass"
	case Tiled:
		return "tiled"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Plan is the planner's output: a strategy, the chosen tile size (square,
// zero when SinglePass), and the halo to pad every tile by.
type Plan struct {
	Strategy Strategy
	TileDim  int
	Halo     int
}

// BytesPerPixelWorkingSet is the assumed device working-set multiplier
// per pixel for a single tile pass: input + output + one scratch buffer
// of the same footprint, matching region.VRAMTileOverhead's accounting.
const BytesPerPixelWorkingSet = 3

// Params carries the information the planner needs beyond the image
// dimensions: whether the whole source can be read into host memory at
// once, and the halo (footprint padding) the pipeline's image op needs.
type Params struct {
	Width, Height, Channels int
	Halo                    int
	SourceFitsInHostMemory  bool
	HostMemoryBudget        int64
}

// Choose decides how an image of the given dimensions should be executed
// against a backend with the given device limits.
func Choose(p Params, limits region.DeviceLimits) (Plan, error) {
	if p.Width <= 0 || p.Height <= 0 || p.Channels <= 0 {
		return Plan{}, fmt.Errorf("planner: invalid image dimensions %dx%dx%d", p.Width, p.Height, p.Channels)
	}

	full := region.Region{X: 0, Y: 0, W: p.Width, H: p.Height}
	fullWorkingSet := full.Bytes(p.Channels) * BytesPerPixelWorkingSet

	if !p.SourceFitsInHostMemory {
		tile := tileDimFor(p, limits)
		return Plan{Strategy: Streaming, TileDim: tile, Halo: p.Halo}, nil
	}

	if limits.Detected && fullWorkingSet <= limits.AvailableDeviceMemory {
		return Plan{Strategy: SinglePass}, nil
	}
	if !limits.Detected && p.HostMemoryBudget > 0 && fullWorkingSet <= p.HostMemoryBudget {
		return Plan{Strategy: SinglePass}, nil
	}

	tile := tileDimFor(p, limits)
	return Plan{Strategy: Tiled, TileDim: tile, Halo: p.Halo}, nil
}

// tileDimFor searches for the largest power-of-two square tile whose
// working set (tile pixels * channels * BytesPerPixelWorkingSet, plus
// halo padding) fits the device budget, mirroring calculateFitness's
// repeated halving: each candidate tile size is tried, and the search
// steps down until one fits or the floor is hit.
func tileDimFor(p Params, limits region.DeviceLimits) int {
	dim := limits.OptimalTile(p.Width, p.Height, p.Channels)
	for dim > region.MinTileDim {
		padded := dim + 2*p.Halo
		bytes := int64(padded) * int64(padded) * int64(p.Channels) * 4 * BytesPerPixelWorkingSet
		budget := limits.AvailableDeviceMemory
		if budget <= 0 {
			budget = p.HostMemoryBudget
		}
		if budget <= 0 || bytes <= budget {
			break
		}
		dim /= 2
	}
	if dim < region.MinTileDim {
		dim = region.MinTileDim
	}
	return dim
}
