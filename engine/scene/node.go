package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
)

// Node is a view over one glTF node reachable from the default scene.
// Nodes are addressed by their glTF index; names are display data only and may repeat.
type Node struct {
	// Name is the authored glTF node name (possibly empty).
	Name string

	// Index is the node's index in Document().Nodes.
	Index int

	// Parent is nil only for the root.
	Parent *Node

	// Children are in authored order.
	Children []*Node

	// Visible gates rendering, bounds, and export of the node and its subtree.
	Visible bool

	doc *gltf.Document
}

// GLTF returns the underlying document node.
func (n *Node) GLTF() *gltf.Node {
	return n.doc.Nodes[n.Index]
}

// Mesh returns the mesh index referenced by the node, if any.
func (n *Node) Mesh() (int, bool) {
	m := n.GLTF().Mesh
	if m == nil {
		return 0, false
	}
	return *m, true
}

// Skin returns the skin index referenced by the node, if any.
func (n *Node) Skin() (int, bool) {
	s := n.GLTF().Skin
	if s == nil {
		return 0, false
	}
	return *s, true
}

// Local returns the node's local transform composed from its matrix or TRS properties.
func (n *Node) Local() mgl64.Mat4 {
	return LocalMatrix(n.GLTF())
}

// SetLocal replaces the node's local transform with a matrix and resets TRS to identity.
func (n *Node) SetLocal(m mgl64.Mat4) {
	SetMatrix(n.GLTF(), m)
}

// World returns the node's transform in scene space by walking up to the root.
func (n *Node) World() mgl64.Mat4 {
	m := n.Local()
	for p := n.Parent; p != nil; p = p.Parent {
		m = p.Local().Mul4(m)
	}
	return m
}

// EffectiveVisible reports whether the node and all of its ancestors are visible.
func (n *Node) EffectiveVisible() bool {
	for c := n; c != nil; c = c.Parent {
		if !c.Visible {
			return false
		}
	}
	return true
}

var identity = mgl64.Ident4()

// LocalMatrix composes a glTF node's local transform. A zero or identity matrix defers to TRS,
// and zero rotation or scale values (hand-built nodes) are read as identity.
//
// Parameters:
//   - n: the glTF node
//
// Returns:
//   - mgl64.Mat4: the column-major local transform
func LocalMatrix(n *gltf.Node) mgl64.Mat4 {
	m := mgl64.Mat4(n.Matrix)
	if m != (mgl64.Mat4{}) && m != identity {
		return m
	}

	t, r, s := n.Translation, n.Rotation, n.Scale
	if r == [4]float64{} {
		r = [4]float64{0, 0, 0, 1}
	}
	if s == [3]float64{} {
		s = [3]float64{1, 1, 1}
	}
	q := mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Normalize()
	return mgl64.Translate3D(t[0], t[1], t[2]).Mul4(q.Mat4()).Mul4(mgl64.Scale3D(s[0], s[1], s[2]))
}

// SetMatrix writes m as the node's matrix and resets its TRS properties to their defaults.
func SetMatrix(n *gltf.Node, m mgl64.Mat4) {
	n.Matrix = [16]float64(m)
	n.Translation = [3]float64{}
	n.Rotation = [4]float64{0, 0, 0, 1}
	n.Scale = [3]float64{1, 1, 1}
}
