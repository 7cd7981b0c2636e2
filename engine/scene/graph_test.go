package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/testasset"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph_WrapsAuthoredRoots(t *testing.T) {
	doc := testasset.Figurine(testasset.FigurineOptions{})
	authoredNodes := len(doc.Nodes)

	g, err := NewGraph(doc, WithName("figurine.glb"))
	require.NoError(t, err)

	assert.Equal(t, "figurine.glb", g.Name())
	assert.Equal(t, authoredNodes, g.Root().Index)
	assert.Equal(t, RootNodeName, doc.Nodes[g.Root().Index].Name)
	assert.Equal(t, []int{g.Root().Index}, doc.Scenes[g.SceneIndex()].Nodes)
	assert.Equal(t, []int{testasset.FigArmature}, g.AuthoredRoots())

	armature := g.Node(testasset.FigArmature)
	require.NotNil(t, armature)
	assert.Same(t, g.Root(), armature.Parent)
	assert.Len(t, armature.Children, 5)
}

func TestNewGraph_MeshNodesInAuthoredOrder(t *testing.T) {
	g, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{}))
	require.NoError(t, err)

	var names []string
	for _, n := range g.MeshNodes() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"Body", "Hair_Mesh", "Shirt", "Eye_L", "Eye_R"}, names)

	eyeMesh, ok := g.Node(testasset.FigEyeLeft).Mesh()
	require.True(t, ok)
	assert.Len(t, g.MeshUsers(eyeMesh), 2)
}

func TestNewGraph_RejectsSharedChild(t *testing.T) {
	b := testasset.New()
	leaf := b.Node("Leaf", -1, [3]float64{})
	a := b.Node("A", -1, [3]float64{}, leaf)
	c := b.Node("B", -1, [3]float64{}, leaf)
	b.Roots(a, c)
	doc := b.Document()

	_, err := NewGraph(doc)
	require.ErrorIs(t, err, ErrCyclicNodes)
	assert.Len(t, doc.Nodes, 3, "failed construction must not leave the synthetic root behind")
	assert.Equal(t, []int{a, c}, doc.Scenes[0].Nodes)
}

func TestNewGraph_RejectsCycle(t *testing.T) {
	doc := &gltf.Document{
		Nodes:  []*gltf.Node{{Name: "A", Children: []int{1}}, {Name: "B", Children: []int{0}}},
		Scenes: []*gltf.Scene{{Nodes: []int{0}}},
	}
	_, err := NewGraph(doc)
	require.ErrorIs(t, err, ErrCyclicNodes)
}

func TestNewGraph_BadIndex(t *testing.T) {
	doc := &gltf.Document{
		Nodes:  []*gltf.Node{{Name: "A", Children: []int{7}}},
		Scenes: []*gltf.Scene{{Nodes: []int{0}}},
	}
	_, err := NewGraph(doc)
	require.ErrorIs(t, err, ErrNodeIndex)
}

func TestNewGraph_NoNodes(t *testing.T) {
	_, err := NewGraph(&gltf.Document{})
	require.ErrorIs(t, err, ErrNoNodes)
}

func TestNewGraph_SynthesizesSceneFromParentlessNodes(t *testing.T) {
	doc := &gltf.Document{
		Nodes: []*gltf.Node{{Name: "A", Children: []int{1}}, {Name: "B"}, {Name: "C"}},
	}
	g, err := NewGraph(doc)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, g.AuthoredRoots())
}

func TestGraph_WorldBounds(t *testing.T) {
	g, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{}))
	require.NoError(t, err)

	box, err := g.WorldBounds()
	require.NoError(t, err)
	assert.InDelta(t, 8.35, box.Min.X(), 1e-5)
	assert.InDelta(t, 11.65, box.Max.X(), 1e-5)
	assert.InDelta(t, 5, box.Min.Y(), 1e-5)
	assert.InDelta(t, 11, box.Max.Y(), 1e-5)
	assert.InDelta(t, 6, box.MaxDim(), 1e-5)
}

func TestGraph_WorldBoundsFollowRoot(t *testing.T) {
	g, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{}))
	require.NoError(t, err)

	g.Root().SetLocal(mgl64.Translate3D(-10, -8, 0).Mul4(mgl64.Scale3D(0.5, 0.5, 0.5)))
	box, err := g.WorldBounds()
	require.NoError(t, err)
	assert.InDelta(t, 3, box.MaxDim(), 1e-5)
	assert.InDelta(t, -5.5, box.Min.Y(), 1e-5)
}

func TestGraph_SkinnedBoundsMatchRigidBounds(t *testing.T) {
	rigid, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{}))
	require.NoError(t, err)
	skinned, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{Skinned: true}))
	require.NoError(t, err)

	a, err := rigid.WorldBounds()
	require.NoError(t, err)
	b, err := skinned.WorldBounds()
	require.NoError(t, err)
	for i := range 3 {
		assert.InDelta(t, a.Min[i], b.Min[i], 1e-5)
		assert.InDelta(t, a.Max[i], b.Max[i], 1e-5)
	}

	assert.True(t, skinned.IsAnimated(testasset.FigHips))
	assert.False(t, skinned.IsAnimated(testasset.FigBody))
	st := skinned.Stats()
	assert.Equal(t, 1, st.Skins)
	assert.Equal(t, 1, st.Joints)
	assert.Equal(t, 1, st.Animations)
	assert.Equal(t, 5, st.MeshNodes)
}

func TestGraph_SkinWithBadAccessorsFallsBackToNodeTransform(t *testing.T) {
	rigid, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{}))
	require.NoError(t, err)
	want, err := rigid.WorldBounds()
	require.NoError(t, err)

	cases := map[string]func(doc *gltf.Document){
		"joints past end": func(doc *gltf.Document) {
			doc.Meshes[*doc.Nodes[testasset.FigBody].Mesh].Primitives[0].Attributes[gltf.JOINTS_0] = 999
		},
		"weights past end": func(doc *gltf.Document) {
			doc.Meshes[*doc.Nodes[testasset.FigBody].Mesh].Primitives[0].Attributes[gltf.WEIGHTS_0] = len(doc.Accessors)
		},
		"negative inverse bind matrices": func(doc *gltf.Document) {
			doc.Skins[0].InverseBindMatrices = gltf.Index(-1)
		},
		"inverse bind matrices past end": func(doc *gltf.Document) {
			doc.Skins[0].InverseBindMatrices = gltf.Index(len(doc.Accessors))
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			doc := testasset.Figurine(testasset.FigurineOptions{Skinned: true})
			corrupt(doc)
			g, err := NewGraph(doc)
			require.NoError(t, err)

			var box common.AABB
			require.NotPanics(t, func() { box, err = g.WorldBounds() })
			require.NoError(t, err)
			for i := range 3 {
				assert.InDelta(t, want.Min[i], box.Min[i], 1e-5)
				assert.InDelta(t, want.Max[i], box.Max[i], 1e-5)
			}
		})
	}
}

func TestGraph_InvisibleSubtreeExcluded(t *testing.T) {
	g, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{}))
	require.NoError(t, err)

	g.Node(testasset.FigHair).Visible = false
	box, err := g.WorldBounds()
	require.NoError(t, err)
	assert.InDelta(t, 5+1.85*3, box.Max.Y(), 1e-5)

	items, err := g.DrawList()
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.False(t, g.Node(testasset.FigHair).EffectiveVisible())
}

func TestGraph_DrawListColors(t *testing.T) {
	g, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{}))
	require.NoError(t, err)

	items, err := g.DrawList()
	require.NoError(t, err)
	require.Len(t, items, 5)
	for _, it := range items {
		assert.Len(t, it.Geometry.Indices, 36)
		if it.Node.Name == "Shirt" {
			assert.Equal(t, testasset.SharedPaint.Linear(), it.BaseColor)
		}
	}
}

func TestGeometry_BoundsEncloseWorldBounds(t *testing.T) {
	g, err := NewGraph(testasset.Figurine(testasset.FigurineOptions{}))
	require.NoError(t, err)
	items, err := g.DrawList()
	require.NoError(t, err)
	world, err := g.WorldBounds()
	require.NoError(t, err)

	union := common.EmptyAABB()
	for _, it := range items {
		local := it.Geometry.Bounds()
		require.False(t, local.IsEmpty())
		union.Union(local.Transform(it.World))
	}
	for i := range 3 {
		assert.LessOrEqual(t, union.Min[i], world.Min[i]+1e-9)
		assert.GreaterOrEqual(t, union.Max[i], world.Max[i]-1e-9)
	}
	assert.True(t, (&Geometry{}).Bounds().IsEmpty())
}

func TestGraph_GeometryCachedByAccessors(t *testing.T) {
	doc := testasset.Figurine(testasset.FigurineOptions{})
	g, err := NewGraph(doc)
	require.NoError(t, err)

	left, _ := g.Node(testasset.FigEyeLeft).Mesh()
	prim := doc.Meshes[left].Primitives[0]
	a, err := g.Geometry(prim)
	require.NoError(t, err)
	b, err := g.Geometry(&gltf.Primitive{Attributes: prim.Attributes, Indices: prim.Indices})
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = g.Geometry(&gltf.Primitive{Attributes: map[string]int{}})
	assert.ErrorIs(t, err, ErrNoPositions)
}

func TestLocalMatrix_TRSAndMatrix(t *testing.T) {
	n := &gltf.Node{Translation: [3]float64{1, 2, 3}}
	assert.Equal(t, mgl64.Translate3D(1, 2, 3), LocalMatrix(n))

	SetMatrix(n, mgl64.Scale3D(2, 2, 2))
	assert.Equal(t, mgl64.Scale3D(2, 2, 2), LocalMatrix(n))
	assert.Equal(t, [3]float64{}, n.Translation)
}
