package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfxgo/compute/backend/cpu"
	"github.com/vfxgo/compute/planner"
	"github.com/vfxgo/compute/region"
	"github.com/vfxgo/compute/stream"
	"github.com/vfxgo/compute/transform"
)

func buildPipeline(t *testing.T, fuse bool, ops ...transform.Transform) transform.Pipeline {
	t.Helper()
	b := transform.NewBuilder(3)
	for _, op := range ops {
		b.Add(op)
	}
	p, err := b.Build(fuse)
	require.NoError(t, err)
	return p
}

func TestExecuteSinglePassExposure(t *testing.T) {
	be := cpu.New(2, 0)
	w, h := 8, 8
	pix := make([]float32, w*h*3)
	for i := range pix {
		pix[i] = 0.1
	}
	src, err := stream.NewMemorySource(pix, w, h, 3)
	require.NoError(t, err)
	sink := stream.NewMemorySink()

	pipeline := buildPipeline(t, false, transform.Exposure{Stops: 1})
	ex := New(be, nil, nil, 2)
	stats, err := ex.Execute(context.Background(), src, sink, pipeline, planner.Plan{Strategy: planner.SinglePass})
	require.NoError(t, err)
	assert.Equal(t, planner.SinglePass, stats.Strategy)

	out, ow, oh, oc := sink.Bytes()
	assert.Equal(t, w, ow)
	assert.Equal(t, h, oh)
	assert.Equal(t, 3, oc)
	for _, v := range out {
		assert.InDelta(t, 0.2, v, 1e-5)
	}
}

func TestExecuteTiledColorMatchesSinglePass(t *testing.T) {
	be := cpu.New(2, 0)
	w, h := 16, 16
	pix := make([]float32, w*h*3)
	for i := range pix {
		pix[i] = float32(i%7) / 10
	}
	pipeline := buildPipeline(t, false, transform.Contrast{X: 1.3, Pivot: 0.4})

	src1, _ := stream.NewMemorySource(pix, w, h, 3)
	sink1 := stream.NewMemorySink()
	ex := New(be, nil, nil, 3)
	_, err := ex.Execute(context.Background(), src1, sink1, pipeline, planner.Plan{Strategy: planner.SinglePass})
	require.NoError(t, err)
	single, _, _, _ := sink1.Bytes()

	src2, _ := stream.NewMemorySource(pix, w, h, 3)
	sink2 := stream.NewMemorySink()
	stats, err := ex.Execute(context.Background(), src2, sink2, pipeline, planner.Plan{Strategy: planner.Tiled, TileDim: 4})
	require.NoError(t, err)
	assert.Greater(t, stats.TilesTotal, 1)
	tiled, _, _, _ := sink2.Bytes()

	require.Len(t, tiled, len(single))
	for i := range single {
		assert.InDelta(t, single[i], tiled[i], 1e-5)
	}
}

func TestExecuteRejectsChannelMismatch(t *testing.T) {
	be := cpu.New(1, 0)
	src, _ := stream.NewMemorySource(make([]float32, 4*4*4), 4, 4, 4)
	sink := stream.NewMemorySink()
	pipeline := buildPipeline(t, false, transform.Exposure{Stops: 1})
	ex := New(be, nil, nil, 1)
	_, err := ex.Execute(context.Background(), src, sink, pipeline, planner.Plan{Strategy: planner.SinglePass})
	require.Error(t, err)
}

func TestExecuteCancellation(t *testing.T) {
	be := cpu.New(2, 0)
	w, h := 64, 64
	src, _ := stream.NewMemorySource(make([]float32, w*h*3), w, h, 3)
	sink := stream.NewMemorySink()
	pipeline := buildPipeline(t, false, transform.Exposure{Stops: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := New(be, nil, nil, 2)
	_, err := ex.Execute(ctx, src, sink, pipeline, planner.Plan{Strategy: planner.Tiled, TileDim: 8})
	require.Error(t, err)
}

func TestDestinationTilesCoversWholeImage(t *testing.T) {
	tiles := destinationTiles(10, 7, 4)
	var total int
	for _, tl := range tiles {
		total += tl.W * tl.H
	}
	assert.Equal(t, 10*7, total)
}

func TestSourceFootprintExpandsForBlur(t *testing.T) {
	pipeline := buildPipeline(t, false)
	pipeline.Image = transform.Blur{Radius: 2}
	dstTile := region.Region{X: 4, Y: 4, W: 4, H: 4}
	fp := sourceFootprint(dstTile, pipeline, 16, 16, 2)
	assert.Equal(t, 2, fp.X)
	assert.Equal(t, 2, fp.Y)
	assert.Equal(t, 8, fp.W)
	assert.Equal(t, 8, fp.H)
}
