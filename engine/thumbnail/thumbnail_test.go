package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/testasset"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func figurine() loader.Source {
	return loader.FromBytes("figurine.glb", testasset.Wrap(testasset.Figurine(testasset.FigurineOptions{})).GLB())
}

func broken() loader.Source {
	return loader.FromBytes("broken.glb", []byte("definitely not a model"))
}

func assertWebP(t *testing.T, data []byte) {
	t.Helper()
	require.Greater(t, len(data), 12)
	assert.Equal(t, []byte("RIFF"), data[:4])
	assert.Equal(t, []byte("WEBP"), data[8:12])
}

func center(img *image.NRGBA) color.NRGBA {
	b := img.Bounds()
	return img.NRGBAAt(b.Dx()/2, b.Dy()/2)
}

func TestRender_Primary(t *testing.T) {
	th := NewThumbnailer(WithSize(64))
	res, err := th.Render(context.Background(), figurine(), nil)
	require.NoError(t, err)

	assert.Equal(t, TierPrimary, res.Tier)
	assert.Empty(t, res.Failures)
	assert.Positive(t, res.Triangles)
	assert.Equal(t, image.Rect(0, 0, 64, 64), res.Image.Bounds())
	assertWebP(t, res.WebP)

	assert.Equal(t, uint8(0xff), center(res.Image).A, "figurine covers the center")
	assert.Zero(t, res.Image.NRGBAAt(0, 0).A, "background stays transparent")
}

func TestRender_AppliesColors(t *testing.T) {
	th := NewThumbnailer(WithSize(64), WithParts(binder.Part{ID: "shirt"}))
	res, err := th.Render(context.Background(), figurine(), map[string]string{"shirt": "#ff0000"})
	require.NoError(t, err)

	c := center(res.Image)
	assert.Greater(t, int(c.R), int(c.G)+50)
	assert.Greater(t, int(c.R), int(c.B)+50)

	plain, err := th.Render(context.Background(), figurine(), nil)
	require.NoError(t, err)
	p := center(plain.Image)
	assert.InDelta(t, int(p.R), int(p.G), 2, "shared paint is grey")
}

func TestRender_UnknownColorsSkipped(t *testing.T) {
	th := NewThumbnailer(WithSize(32))
	res, err := th.Render(context.Background(), figurine(), map[string]string{"cape": "red"})
	require.NoError(t, err)
	assert.Equal(t, TierPrimary, res.Tier)
}

func TestRender_FallbackAsset(t *testing.T) {
	th := NewThumbnailer(WithSize(32), WithFallback(figurine()))
	res, err := th.Render(context.Background(), broken(), nil)
	require.NoError(t, err)

	assert.Equal(t, TierFallback, res.Tier)
	require.Len(t, res.Failures, 1)
	assert.True(t, common.IsCode(res.Failures[0], common.ErrMalformedAsset))
	assertWebP(t, res.WebP)
}

func TestRender_Placeholder(t *testing.T) {
	degenerate := loader.FromBytes("speck.glb", testasset.Wrap(testasset.Degenerate()).GLB())
	th := NewThumbnailer(WithSize(32), WithFallback(broken()))
	res, err := th.Render(context.Background(), degenerate, nil)
	require.NoError(t, err)

	assert.Equal(t, TierPlaceholder, res.Tier)
	require.Len(t, res.Failures, 2)
	assert.True(t, common.IsCode(res.Failures[0], common.ErrDegenerateGeom))
	assert.Positive(t, res.Triangles)
	assert.Equal(t, uint8(0xff), center(res.Image).A)
}

type failingLoader struct {
	loader.Loader
	calls int
}

func (l *failingLoader) Load(ctx context.Context, _ loader.Source, _ loader.ProgressFunc) (scene.Graph, error) {
	l.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, common.NewError(common.ErrLoadNetwork, "offline").WithRetryable(true)
}

func TestRender_AllTiersFail(t *testing.T) {
	l := &failingLoader{}
	th := NewThumbnailer(WithLoader(l), WithFallback(figurine()))
	res, err := th.Render(context.Background(), broken(), nil)
	require.Error(t, err)

	assert.Equal(t, 3, l.calls)
	assert.Len(t, res.Failures, 3)
	assert.True(t, common.IsCode(err, common.ErrLoadNetwork))
}

func TestRender_CanceledDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &failingLoader{}
	th := NewThumbnailer(WithLoader(l))

	_, err := th.Render(ctx, figurine(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.calls)
}

func TestRenderBatch_KeepsJobOrder(t *testing.T) {
	th := NewThumbnailer(WithSize(32), WithWorkers(2), WithParts(binder.Part{ID: "hair"}))
	jobs := []Job{
		{Name: "a", Source: figurine()},
		{Name: "b", Source: broken()},
		{Name: "c", Source: figurine(), Colors: map[string]string{"hair": "navy"}},
	}

	results := th.RenderBatch(context.Background(), jobs)
	require.Len(t, results, 3)
	for i, r := range results {
		require.NoError(t, r.Err, r.Job.Name)
		assert.Equal(t, jobs[i].Name, r.Job.Name)
		assertWebP(t, r.Result.WebP)
	}
	assert.Equal(t, TierPrimary, results[0].Result.Tier)
	assert.Equal(t, TierPlaceholder, results[1].Result.Tier)
	assert.Equal(t, TierPrimary, results[2].Result.Tier)

	assert.Empty(t, th.RenderBatch(context.Background(), nil))
}

func TestFrameBuffer_DepthTest(t *testing.T) {
	fb := newFrameBuffer(8)
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	far := func(z float64) (mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) {
		return mgl64.Vec3{0, 0, z}, mgl64.Vec3{16, 0, z}, mgl64.Vec3{0, 16, z}
	}

	a, b, c := far(0.5)
	require.True(t, fb.triangle(a, b, c, red))
	a, b, c = far(0.1)
	require.True(t, fb.triangle(a, b, c, blue))
	a, b, c = far(0.9)
	assert.False(t, fb.triangle(a, b, c, red), "occluded")
	assert.Equal(t, blue, fb.color.NRGBAAt(1, 1))

	// outside the depth range
	a, b, c = far(1.5)
	assert.False(t, newFrameBuffer(8).triangle(a, b, c, red))
}

func TestFrameBuffer_DrawItemSkipsNonTriangles(t *testing.T) {
	fb := newFrameBuffer(8)
	geo := &scene.Geometry{Positions: [][3]float32{{0, 0, 0}}, Indices: []uint32{0}}
	assert.Zero(t, fb.drawItem(mgl64.Ident4(), scene.DrawItem{Geometry: geo, World: mgl64.Ident4()}, defaultLightRig()))
}

func TestDownsample(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:], []byte{200, 100, 50, 255})
	}
	out := downsample(src, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())
	got := out.NRGBAAt(2, 2)
	assert.InDelta(t, 200, int(got.R), 1)
	assert.InDelta(t, 100, int(got.G), 1)
	assert.InDelta(t, 50, int(got.B), 1)
	assert.Equal(t, uint8(255), got.A)

	assert.Same(t, src, downsample(src, 8))
}

func TestPlaceholderSource(t *testing.T) {
	src, err := placeholderSource()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(src.Data, []byte("glTF")))
	again, _ := placeholderSource()
	assert.Equal(t, src.Data, again.Data)
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "primary", TierPrimary.String())
	assert.Equal(t, "fallback", TierFallback.String())
	assert.Equal(t, "placeholder", TierPlaceholder.String())
	assert.Equal(t, "Tier(7)", Tier(7).String())
}
