package transform

import (
	"fmt"
	"math"
)

// Pipeline is an ordered sequence of color transforms (applied first) and
// an optional trailing image op, plus the declared input channel count.
// Pipelines are cheap to copy and safe to share across goroutines: once
// built they are never mutated.
type Pipeline struct {
	Channels int
	Color    Group
	Image    ImageOp // nil when the pipeline has no resize/blur stage
}

// Builder accumulates transforms and produces a validated Pipeline.
// Mirrors the teacher's pattern of a typed options struct assembled step
// by step before a single terminal call does the work.
type Builder struct {
	channels int
	color    []Transform
	image    ImageOp
	err      error
}

// NewBuilder starts a pipeline for images with the given channel count
// (1, 2, 3 or 4).
func NewBuilder(channels int) *Builder {
	b := &Builder{channels: channels}
	if channels < 1 || channels > 4 {
		b.err = fmt.Errorf("transform: unsupported channel count %d", channels)
	}
	return b
}

// Add appends a color transform, validating it immediately so construction
// errors surface at the call site that introduced them.
func (b *Builder) Add(t Transform) *Builder {
	if b.err != nil {
		return b
	}
	if err := Validate(t); err != nil {
		b.err = err
		return b
	}
	b.color = append(b.color, t)
	return b
}

// WithImageOp sets the pipeline's trailing resize/blur stage. At most one
// may be set; calling it twice is a validation error.
func (b *Builder) WithImageOp(op ImageOp) *Builder {
	if b.err != nil {
		return b
	}
	if b.image != nil {
		b.err = fmt.Errorf("transform: pipeline already has an image op")
		return b
	}
	b.image = op
	return b
}

// Build validates the accumulated pipeline and returns it, fusing adjacent
// Matrix/Exposure/Contrast nodes when fuse is true.
func (b *Builder) Build(fuse bool) (Pipeline, error) {
	if b.err != nil {
		return Pipeline{}, b.err
	}
	group := Group{Members: b.color}.Flatten()
	if fuse {
		group = Fuse(group)
	}
	return Pipeline{Channels: b.channels, Color: group, Image: b.image}, nil
}

// Validate enforces the construction-time rules of spec.md §4.E.
func Validate(t Transform) error {
	switch v := t.(type) {
	case Matrix:
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				if math.IsNaN(v.M[i][j]) || math.IsInf(v.M[i][j], 0) {
					return fmt.Errorf("transform: matrix element [%d][%d] is not finite", i, j)
				}
			}
		}
	case Cdl:
		for i := 0; i < 3; i++ {
			if !finite(v.Slope[i]) || !finite(v.Offset[i]) || !finite(v.Power[i]) {
				return fmt.Errorf("transform: cdl has a non-finite component")
			}
			if v.Power[i] < 0 {
				return fmt.Errorf("transform: cdl power[%d]=%g must be >= 0", i, v.Power[i])
			}
		}
		if !finite(v.Saturation) {
			return fmt.Errorf("transform: cdl saturation is not finite")
		}
	case Lut1D:
		if len(v.Table) < 2 {
			return fmt.Errorf("transform: lut1d table length %d < 2", len(v.Table))
		}
		if v.Channels != 1 && v.Channels != 3 && v.Channels != 4 {
			return fmt.Errorf("transform: lut1d channels %d must be 1, 3 or 4", v.Channels)
		}
		if v.Channels != 1 && len(v.Table)%v.Channels != 0 {
			return fmt.Errorf("transform: lut1d table length %d not divisible by channel count %d", len(v.Table), v.Channels)
		}
	case Lut3D:
		if v.Size < 2 {
			return fmt.Errorf("transform: lut3d size %d < 2", v.Size)
		}
		want := v.Size * v.Size * v.Size * 3
		if len(v.Table) != want {
			return fmt.Errorf("transform: lut3d table length %d, want size^3*3=%d", len(v.Table), want)
		}
	case Range:
		if v.InLo >= v.InHi {
			return fmt.Errorf("transform: range in_lo %g must be < in_hi %g", v.InLo, v.InHi)
		}
	case Group:
		for _, m := range v.Members {
			if err := Validate(m); err != nil {
				return err
			}
		}
	case Exposure, Contrast, Transfer:
		// No construction-time checks are made for these; their fields
		// are not tested for finiteness.
	default:
		return fmt.Errorf("transform: unknown transform type %T", t)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
