package exporter

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/material"
	"github.com/Carmen-Shannon/oxy-figure/engine/normalizer"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"
	"github.com/Carmen-Shannon/oxy-figure/engine/testasset"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, src loader.Source) scene.Graph {
	t.Helper()
	g, err := loader.NewLoader().Load(context.Background(), src, nil)
	require.NoError(t, err)
	return g
}

func loadDoc(t *testing.T, doc *gltf.Document) scene.Graph {
	t.Helper()
	return load(t, loader.FromBytes("figurine.glb", testasset.Wrap(doc).GLB()))
}

func decode(t *testing.T, data []byte) *gltf.Document {
	t.Helper()
	doc := new(gltf.Document)
	require.NoError(t, gltf.NewDecoder(bytes.NewReader(data)).Decode(doc))
	return doc
}

func TestExport_NoModelLoaded(t *testing.T) {
	art, err := NewExporter().Export(context.Background(), nil)
	assert.Nil(t, art)
	assert.Equal(t, common.ErrNoModelLoaded, common.CodeOf(err))
}

func TestExport_RoundTrip(t *testing.T) {
	g := loadDoc(t, testasset.Figurine(testasset.FigurineOptions{Skinned: true}))
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	art, err := NewExporter(WithClock(func() time.Time { return created })).Export(context.Background(), g)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, art.ID)
	assert.Equal(t, "model/gltf-binary", art.ContentType)
	assert.Equal(t, len(art.Bytes), art.SizeBytes)
	assert.Positive(t, art.SizeBytes)
	assert.Equal(t, created, art.CreatedAt)

	again := load(t, loader.FromBytes("export.glb", art.Bytes))
	before, after := g.Stats(), again.Stats()
	assert.Equal(t, len(g.MeshNodes()), len(again.MeshNodes()))
	assert.Equal(t, before.Skins, after.Skins)
	assert.Equal(t, before.Joints, after.Joints)
	assert.Equal(t, before.Animations, after.Animations)
}

func TestExport_AuthoredSpaceByDefault(t *testing.T) {
	g := loadDoc(t, testasset.Figurine(testasset.FigurineOptions{}))
	_, err := normalizer.NewNormalizer().Normalize(g)
	require.NoError(t, err)
	liveNodes := len(g.Document().Nodes)

	art, err := NewExporter().Export(context.Background(), g)
	require.NoError(t, err)

	doc := decode(t, art.Bytes)
	assert.Len(t, doc.Nodes, liveNodes-1, "synthetic root is not exported")
	assert.Equal(t, []int{testasset.FigArmature}, doc.Scenes[*doc.Scene].Nodes)
	for _, n := range doc.Nodes {
		assert.NotEqual(t, scene.RootNodeName, n.Name)
	}

	armature := mgl64.Mat4(doc.Nodes[testasset.FigArmature].Matrix)
	assert.True(t, armature.Col(3).ApproxEqual(mgl64.Vec4{10, 5, 0, 1}))
	assert.InDelta(t, 3, armature.At(0, 0), 1e-9)

	assert.Len(t, g.Document().Nodes, liveNodes, "live document untouched")
	assert.Equal(t, []int{g.Root().Index}, g.Document().Scenes[g.SceneIndex()].Nodes)
}

func TestExport_DisplayTransform(t *testing.T) {
	g := loadDoc(t, testasset.Figurine(testasset.FigurineOptions{}))
	_, err := normalizer.NewNormalizer(normalizer.WithTargetDiameter(normalizer.CardDiameter)).Normalize(g)
	require.NoError(t, err)

	art, err := NewExporter(WithDisplayTransform()).Export(context.Background(), g)
	require.NoError(t, err)

	again := load(t, loader.FromBytes("export.glb", art.Bytes))
	box, err := again.WorldBounds()
	require.NoError(t, err)
	assert.InDelta(t, 0, box.Center().Len(), 1e-5)
	assert.InDelta(t, normalizer.CardDiameter, box.MaxDim(), 1e-5)
}

func TestExport_MatricesExceptAnimatedNodes(t *testing.T) {
	g := loadDoc(t, testasset.Figurine(testasset.FigurineOptions{Skinned: true}))

	art, err := NewExporter().Export(context.Background(), g)
	require.NoError(t, err)
	doc := decode(t, art.Bytes)

	armature := doc.Nodes[testasset.FigArmature]
	assert.NotEqual(t, identity, armature.Matrix)
	assert.Equal(t, [3]float64{}, armature.Translation)

	eye := doc.Nodes[testasset.FigEyeLeft]
	assert.InDelta(t, 1.8, mgl64.Mat4(eye.Matrix).At(1, 3), 1e-9)

	hips := doc.Nodes[testasset.FigHips]
	assert.Equal(t, identity, hips.Matrix, "animated nodes keep TRS")
	require.Len(t, doc.Animations, 1)
	assert.Equal(t, testasset.FigHips, *doc.Animations[0].Channels[0].Target.Node)
}

func TestExport_SelfContained(t *testing.T) {
	dir := t.TempDir()
	doc := testasset.Figurine(testasset.FigurineOptions{})
	b := testasset.Wrap(doc)
	b.Texture(0, "textures/albedo.png")
	data, bin := b.JSON("figurine.bin")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "textures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "figurine.gltf"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "figurine.bin"), bin, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "textures", "albedo.png"), testasset.PNG(), 0o644))

	g := load(t, loader.FromFile(filepath.Join(dir, "figurine.gltf")))
	art, err := NewExporter().Export(context.Background(), g)
	require.NoError(t, err)

	out := decode(t, art.Bytes)
	require.Len(t, out.Buffers, 1)
	assert.Empty(t, out.Buffers[0].URI)
	require.Len(t, out.Images, 1)
	img := out.Images[0]
	assert.Empty(t, img.URI)
	require.NotNil(t, img.BufferView)
	assert.Equal(t, "image/png", img.MimeType)

	view := out.BufferViews[*img.BufferView]
	assert.Zero(t, view.ByteOffset%4)
	assert.Equal(t, testasset.PNG(), out.Buffers[0].Data[view.ByteOffset:view.ByteOffset+view.ByteLength])
	assert.Equal(t, "textures/albedo.png", g.Document().Images[0].URI, "live document keeps its uri")
}

func TestExport_EmbedsDataURIImages(t *testing.T) {
	doc := testasset.Figurine(testasset.FigurineOptions{})
	testasset.Wrap(doc).Texture(0, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(testasset.PNG()))
	g := loadDoc(t, doc)

	art, err := NewExporter().Export(context.Background(), g)
	require.NoError(t, err)
	out := decode(t, art.Bytes)
	require.Len(t, out.Images, 1)
	assert.Empty(t, out.Images[0].URI)
	assert.NotNil(t, out.Images[0].BufferView)
}

func TestExport_UnresolvableImageFails(t *testing.T) {
	doc := testasset.Figurine(testasset.FigurineOptions{})
	testasset.Wrap(doc).Texture(0, "albedo.png")
	g := loadDoc(t, doc)

	_, err := NewExporter().Export(context.Background(), g)
	require.Error(t, err)
	assert.Equal(t, common.ErrSerializer, common.CodeOf(err))
	assert.ErrorIs(t, err, errNoResolver)
}

func TestExport_OnlyVisible(t *testing.T) {
	g := loadDoc(t, testasset.Figurine(testasset.FigurineOptions{}))
	g.Node(testasset.FigHair).Visible = false

	art, err := NewExporter().Export(context.Background(), g)
	require.NoError(t, err)

	again := load(t, loader.FromBytes("export.glb", art.Bytes))
	assert.Len(t, again.MeshNodes(), 4)
	assert.NotNil(t, g.Document().Nodes[testasset.FigHair].Mesh, "live node keeps its mesh")
}

func TestExport_CarriesCustomizedMaterials(t *testing.T) {
	g := loadDoc(t, testasset.Figurine(testasset.FigurineOptions{}))
	res := binder.Bind(g, []binder.Part{{ID: "hair"}})
	hair, _ := res.Binding("hair")
	red := common.MustParseColor("red")
	require.NoError(t, material.NewCustomizer(g).SetPartColor(hair, red))

	art, err := NewExporter().Export(context.Background(), g)
	require.NoError(t, err)

	doc := decode(t, art.Bytes)
	colorOf := func(node int) [4]float64 {
		mat := doc.Materials[*doc.Meshes[*doc.Nodes[node].Mesh].Primitives[0].Material]
		return *mat.PBRMetallicRoughness.BaseColorFactor
	}
	assert.InDeltaSlice(t, sliceOf(red.Linear()), sliceOf(colorOf(testasset.FigHair)), 1e-9)
	assert.InDeltaSlice(t, sliceOf(testasset.SharedPaint.Linear()), sliceOf(colorOf(testasset.FigShirt)), 1e-9)
}

func sliceOf(v [4]float64) []float64 {
	return v[:]
}

func TestExport_MissingBufferDataFails(t *testing.T) {
	g := loadDoc(t, testasset.Figurine(testasset.FigurineOptions{}))
	g.Document().Buffers[0].Data = nil

	art, err := NewExporter().Export(context.Background(), g)
	assert.Nil(t, art)
	require.Error(t, err)
	assert.Equal(t, common.ErrSerializer, common.CodeOf(err))
	assert.ErrorIs(t, err, errBufferNotLoaded)
	assert.False(t, common.IsRetryable(err))
}

func TestExport_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := telemetry.NewCollector("exporter_test", reg, nil)
	g := loadDoc(t, testasset.Figurine(testasset.FigurineOptions{}))

	_, err := NewExporter(WithCollector(c)).Export(context.Background(), g)
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "exporter_test_exports_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDropUnusedUnlit(t *testing.T) {
	doc := &gltf.Document{
		ExtensionsUsed: []string{"KHR_texture_transform", unlitExtension},
		Materials:      []*gltf.Material{{Name: "lit"}},
	}
	dropUnusedUnlit(doc)
	assert.Equal(t, []string{"KHR_texture_transform"}, doc.ExtensionsUsed)

	doc.ExtensionsUsed = append(doc.ExtensionsUsed, unlitExtension)
	doc.Materials = append(doc.Materials, &gltf.Material{Extensions: gltf.Extensions{unlitExtension: map[string]any{}}})
	dropUnusedUnlit(doc)
	assert.Contains(t, doc.ExtensionsUsed, unlitExtension)
}
