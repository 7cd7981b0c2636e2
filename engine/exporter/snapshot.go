package exporter

import (
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"

	"github.com/qmuntal/gltf"
)

var identity = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// unlitExtension is dropped from extensionsUsed once no exported material carries it.
const unlitExtension = "KHR_materials_unlit"

// snapshot copies the parts of the graph's document that export rewrites. Meshes, materials, accessors,
// skins, and animations are shared with the live document and never written to.
func snapshot(g scene.Graph, displaySpace bool) *gltf.Document {
	src := g.Document()
	out := *src

	out.Nodes = make([]*gltf.Node, len(src.Nodes))
	for i, n := range src.Nodes {
		cp := *n
		cp.Children = append([]int(nil), n.Children...)
		out.Nodes[i] = &cp
	}
	out.Scenes = make([]*gltf.Scene, len(src.Scenes))
	for i, s := range src.Scenes {
		cp := *s
		cp.Nodes = append([]int(nil), s.Nodes...)
		out.Scenes[i] = &cp
	}
	out.ExtensionsUsed = append([]string(nil), src.ExtensionsUsed...)
	out.ExtensionsRequired = append([]string(nil), src.ExtensionsRequired...)

	hideInvisible(g, out.Nodes)
	writeMatrices(g, out.Nodes)

	if !displaySpace {
		root := g.Root().Index
		out.Nodes = out.Nodes[:root]
		out.Scenes[g.SceneIndex()].Nodes = g.AuthoredRoots()
	}
	dropUnusedUnlit(&out)
	return &out
}

// hideInvisible removes the mesh and skin of every node below an invisible node. The nodes themselves stay
// so joint hierarchies and animation targets remain intact.
func hideInvisible(g scene.Graph, nodes []*gltf.Node) {
	var strip func(n *scene.Node)
	strip = func(n *scene.Node) {
		nodes[n.Index].Mesh = nil
		nodes[n.Index].Skin = nil
		for _, c := range n.Children {
			strip(c)
		}
	}
	var visit func(n *scene.Node)
	visit = func(n *scene.Node) {
		if !n.Visible {
			strip(n)
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(g.Root())
}

// writeMatrices stores every local transform as a matrix. Animation targets keep TRS because a node
// targeted by an animation channel must not carry a matrix.
func writeMatrices(g scene.Graph, nodes []*gltf.Node) {
	for i, n := range nodes {
		if g.IsAnimated(i) {
			n.Matrix = identity
			continue
		}
		scene.SetMatrix(n, scene.LocalMatrix(n))
	}
}

// visibleMeshNodes counts the nodes reachable from the default scene that still reference a mesh.
func visibleMeshNodes(doc *gltf.Document) int {
	if doc.Scene == nil || *doc.Scene >= len(doc.Scenes) {
		return 0
	}
	count := 0
	var visit func(i int)
	visit = func(i int) {
		if i < 0 || i >= len(doc.Nodes) {
			return
		}
		if doc.Nodes[i].Mesh != nil {
			count++
		}
		for _, c := range doc.Nodes[i].Children {
			visit(c)
		}
	}
	for _, r := range doc.Scenes[*doc.Scene].Nodes {
		visit(r)
	}
	return count
}

func dropUnusedUnlit(doc *gltf.Document) {
	for _, m := range doc.Materials {
		if _, ok := m.Extensions[unlitExtension]; ok {
			return
		}
	}
	doc.ExtensionsUsed = without(doc.ExtensionsUsed, unlitExtension)
	doc.ExtensionsRequired = without(doc.ExtensionsRequired, unlitExtension)
}

func without(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
