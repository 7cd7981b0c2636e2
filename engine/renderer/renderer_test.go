package renderer

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-figure/engine/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMesh struct {
	label string
	count int
}

func (m *fakeMesh) IndexCount() int { return m.count }

type fakeDraw struct {
	slot    int
	mesh    *fakeMesh
	uniform []byte
}

type fakeBackend struct {
	configured [][2]int
	created    []string
	released   []string
	draws      []fakeDraw
	presented  int
	beginErr   error
	closed     bool
}

func (b *fakeBackend) ConfigureSurface(w, h int) error {
	b.configured = append(b.configured, [2]int{w, h})
	return nil
}

func (b *fakeBackend) SetPresentMode(PresentMode) {}

func (b *fakeBackend) CreateMesh(label string, vertexData, indexData []byte, indexCount int) (Mesh, error) {
	b.created = append(b.created, label)
	return &fakeMesh{label: label, count: indexCount}, nil
}

func (b *fakeBackend) ReleaseMesh(m Mesh) {
	b.released = append(b.released, m.(*fakeMesh).label)
}

func (b *fakeBackend) BeginFrame() error {
	b.draws = nil
	return b.beginErr
}

func (b *fakeBackend) Draw(slot int, m Mesh, uniform []byte) error {
	b.draws = append(b.draws, fakeDraw{slot: slot, mesh: m.(*fakeMesh), uniform: uniform})
	return nil
}

func (b *fakeBackend) EndFrame() error { return nil }
func (b *fakeBackend) Present()        { b.presented++ }
func (b *fakeBackend) Release()        { b.closed = true }

func triangle(key string) *scene.Geometry {
	return &scene.Geometry{
		Key:       key,
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
		Triangles: true,
	}
}

func item(geo *scene.Geometry, world mgl64.Mat4, color [4]float64) scene.DrawItem {
	return scene.DrawItem{Node: &scene.Node{Name: geo.Key}, World: world, Geometry: geo, BaseColor: color}
}

func floatAt(b []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[offset:]))
}

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (Renderer, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{}
	r, err := NewRenderer(nil, 640, 480, append([]RendererBuilderOption{WithBackend(fb)}, options...)...)
	require.NoError(t, err)
	return r, fb
}

func TestRenderer_UploadsOncePerGeometry(t *testing.T) {
	r, fb := newTestRenderer(t)
	assert.Equal(t, [][2]int{{640, 480}}, fb.configured)

	geo := triangle("eye")
	items := []scene.DrawItem{
		item(geo, mgl64.Translate3D(-1, 0, 0), [4]float64{1, 1, 1, 1}),
		item(geo, mgl64.Translate3D(1, 0, 0), [4]float64{1, 1, 1, 1}),
	}
	require.NoError(t, r.Draw(mgl32.Ident4(), items))
	require.NoError(t, r.Draw(mgl32.Ident4(), items))

	assert.Equal(t, []string{"eye"}, fb.created)
	require.Len(t, fb.draws, 2)
	assert.Equal(t, 0, fb.draws[0].slot)
	assert.Equal(t, 1, fb.draws[1].slot)
	assert.Equal(t, 2, fb.presented)
}

func TestRenderer_UniformLayout(t *testing.T) {
	// the item sits outside the clip volume of this matrix
	r, fb := newTestRenderer(t, WithCullingDisabled(true))
	viewProj := mgl32.Scale3D(2, 2, 2)

	require.NoError(t, r.Draw(viewProj, []scene.DrawItem{
		item(triangle("hair"), mgl64.Translate3D(3, 0, 0), [4]float64{0.25, 0.5, 0.75, 1}),
	}))
	require.Len(t, fb.draws, 1)
	u := fb.draws[0].uniform
	require.Len(t, u, 144)

	assert.Equal(t, float32(6), floatAt(u, 12*4), "mvp translation x")
	assert.Equal(t, float32(3), floatAt(u, 64+12*4), "model translation x")
	assert.Equal(t, float32(0.25), floatAt(u, 128))
	assert.Equal(t, float32(0.75), floatAt(u, 136))
}

func TestRenderer_EvictsUnusedMeshes(t *testing.T) {
	r, fb := newTestRenderer(t)
	first, second := triangle("first"), triangle("second")

	require.NoError(t, r.Draw(mgl32.Ident4(), []scene.DrawItem{item(first, mgl64.Ident4(), [4]float64{1, 1, 1, 1})}))
	require.NoError(t, r.Draw(mgl32.Ident4(), []scene.DrawItem{item(second, mgl64.Ident4(), [4]float64{1, 1, 1, 1})}))
	assert.Equal(t, []string{"first"}, fb.released)

	require.NoError(t, r.Draw(mgl32.Ident4(), nil))
	assert.Equal(t, []string{"first", "second"}, fb.released)
	assert.Empty(t, fb.draws)
}

func TestRenderer_CullsOutsideFrustum(t *testing.T) {
	r, fb := newTestRenderer(t)
	inside, outside := triangle("inside"), triangle("outside")
	items := []scene.DrawItem{
		item(inside, mgl64.Ident4(), [4]float64{1, 1, 1, 1}),
		item(outside, mgl64.Translate3D(5, 0, 0), [4]float64{1, 1, 1, 1}),
	}

	require.NoError(t, r.Draw(mgl32.Ident4(), items))
	require.Len(t, fb.draws, 1)
	assert.Equal(t, "inside", fb.draws[0].mesh.label)
	assert.Equal(t, []string{"inside"}, fb.created, "culled geometry is not uploaded")

	// panning onto the culled item uploads it without evicting anything
	require.NoError(t, r.Draw(mgl32.Translate3D(-5, 0, 0), items))
	require.Len(t, fb.draws, 1)
	assert.Equal(t, "outside", fb.draws[0].mesh.label)
	assert.Empty(t, fb.released)
}

func TestRenderer_SkipsEmptyGeometry(t *testing.T) {
	r, fb := newTestRenderer(t)
	empty := &scene.Geometry{Key: "empty", Triangles: true}

	require.NoError(t, r.Draw(mgl32.Ident4(), []scene.DrawItem{item(empty, mgl64.Ident4(), [4]float64{1, 1, 1, 1})}))
	assert.Empty(t, fb.created)
	assert.Empty(t, fb.draws)
}

func TestRenderer_BeginFrameError(t *testing.T) {
	r, fb := newTestRenderer(t)
	fb.beginErr = errors.New("surface lost")

	err := r.Draw(mgl32.Ident4(), nil)
	assert.ErrorIs(t, err, fb.beginErr)
	assert.Zero(t, fb.presented)
}

func TestRenderer_Release(t *testing.T) {
	r, fb := newTestRenderer(t)
	require.NoError(t, r.Draw(mgl32.Ident4(), []scene.DrawItem{item(triangle("body"), mgl64.Ident4(), [4]float64{1, 1, 1, 1})}))

	r.Release()
	r.Release()
	assert.True(t, fb.closed)
	assert.Equal(t, []string{"body"}, fb.released)
	assert.ErrorIs(t, r.Draw(mgl32.Ident4(), nil), ErrReleased)

	r.Resize(10, 10)
	assert.Len(t, fb.configured, 1, "no reconfigure after release")
}

func TestRenderer_ResizeIgnoresZero(t *testing.T) {
	r, fb := newTestRenderer(t)
	r.Resize(0, 100)
	r.Resize(800, 600)
	assert.Equal(t, [][2]int{{640, 480}, {800, 600}}, fb.configured)
}
