package scene

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-figure/common"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ErrNoPositions is returned for primitives without a POSITION attribute.
var ErrNoPositions = errors.New("primitive has no POSITION attribute")

// Geometry is the decoded vertex data of one primitive. It is shared between nodes instancing the same
// accessors and must be treated as read-only.
type Geometry struct {
	// Key identifies the accessor combination the data was read from.
	Key string

	Positions [][3]float32

	// Normals may be nil when the primitive has none.
	Normals [][3]float32

	// Indices is always populated; non-indexed primitives get a sequential list.
	Indices []uint32

	// Triangles is false for point and line primitives, which contribute to bounds but are not drawn.
	Triangles bool
}

// Bounds returns the box around the positions in the primitive's own space.
func (g *Geometry) Bounds() common.AABB {
	box := common.EmptyAABB()
	for _, p := range g.Positions {
		box.Extend(mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])})
	}
	return box
}

type geometryKey struct {
	position int
	normal   int
	indices  int
	mode     gltf.PrimitiveMode
}

func (g *graph) Geometry(prim *gltf.Primitive) (*Geometry, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, ErrNoPositions
	}
	key := geometryKey{position: posIdx, normal: -1, indices: -1, mode: prim.Mode}
	if n, ok := prim.Attributes[gltf.NORMAL]; ok {
		key.normal = n
	}
	if prim.Indices != nil {
		key.indices = *prim.Indices
	}

	g.geomMu.Lock()
	defer g.geomMu.Unlock()
	if geo, ok := g.geometry[key]; ok {
		return geo, nil
	}

	geo, err := readGeometry(g.doc, key)
	if err != nil {
		return nil, err
	}
	g.geometry[key] = geo
	return geo, nil
}

func readGeometry(doc *gltf.Document, key geometryKey) (*Geometry, error) {
	if key.position < 0 || key.position >= len(doc.Accessors) {
		return nil, fmt.Errorf("position accessor %d out of range", key.position)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[key.position], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	geo := &Geometry{
		Key:       fmt.Sprintf("p%d-n%d-i%d-m%d", key.position, key.normal, key.indices, key.mode),
		Positions: positions,
		Triangles: key.mode == gltf.PrimitiveTriangles,
	}

	if key.normal >= 0 && key.normal < len(doc.Accessors) {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[key.normal], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read normals: %w", err)
		}
		if len(normals) == len(positions) {
			geo.Normals = normals
		}
	}

	if key.indices >= 0 {
		if key.indices >= len(doc.Accessors) {
			return nil, fmt.Errorf("index accessor %d out of range", key.indices)
		}
		indices, err := modeler.ReadIndices(doc, doc.Accessors[key.indices], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
		for _, i := range indices {
			if int(i) >= len(positions) {
				return nil, fmt.Errorf("index %d exceeds vertex count %d", i, len(positions))
			}
		}
		geo.Indices = indices
	} else {
		geo.Indices = make([]uint32, len(positions))
		for i := range geo.Indices {
			geo.Indices[i] = uint32(i)
		}
	}
	return geo, nil
}

// skinnedGeometry returns the bind-pose positions of a skinned mesh node expressed in the root's local space,
// i.e. without the root transform, so normalization of the root does not invalidate the cache.
// Returns nil when the node's skin cannot be evaluated, in which case callers fall back to the node transform.
func (g *graph) skinnedGeometry(n *Node, prim *gltf.Primitive, primIndex int) *Geometry {
	skinIdx, ok := n.Skin()
	if !ok || skinIdx < 0 || skinIdx >= len(g.doc.Skins) {
		return nil
	}
	cacheKey := n.Index<<16 | primIndex

	g.geomMu.Lock()
	if geo, ok := g.skinned[cacheKey]; ok {
		g.geomMu.Unlock()
		return geo
	}
	g.geomMu.Unlock()

	base, err := g.Geometry(prim)
	if err != nil {
		return nil
	}
	jointsIdx, okJ := prim.Attributes[gltf.JOINTS_0]
	weightsIdx, okW := prim.Attributes[gltf.WEIGHTS_0]
	if !okJ || !okW {
		return nil
	}
	jointsAcc, okJ := g.accessor(jointsIdx)
	weightsAcc, okW := g.accessor(weightsIdx)
	if !okJ || !okW {
		return nil
	}
	joints, err := modeler.ReadJoints(g.doc, jointsAcc, nil)
	if err != nil || len(joints) != len(base.Positions) {
		return nil
	}
	weights, err := modeler.ReadWeights(g.doc, weightsAcc, nil)
	if err != nil || len(weights) != len(base.Positions) {
		return nil
	}

	skin := g.doc.Skins[skinIdx]
	jointMats := make([]mgl64.Mat4, len(skin.Joints))
	ibms := g.inverseBindMatrices(skin)
	for i, j := range skin.Joints {
		jn := g.Node(j)
		if jn == nil {
			return nil
		}
		jointMats[i] = g.rootSpace(jn).Mul4(ibms[i])
	}

	out := make([][3]float32, len(base.Positions))
	for vi, p := range base.Positions {
		v := mgl64.Vec4{float64(p[0]), float64(p[1]), float64(p[2]), 1}
		var acc mgl64.Vec4
		var wsum float64
		for k := range 4 {
			w := float64(weights[vi][k])
			ji := int(joints[vi][k])
			if w == 0 || ji >= len(jointMats) {
				continue
			}
			acc = acc.Add(jointMats[ji].Mul4x1(v).Mul(w))
			wsum += w
		}
		if wsum == 0 {
			acc = g.rootSpace(n).Mul4x1(v)
		} else {
			acc = acc.Mul(1 / wsum)
		}
		out[vi] = [3]float32{float32(acc[0]), float32(acc[1]), float32(acc[2])}
	}

	geo := &Geometry{
		Key:       fmt.Sprintf("skin-n%d-p%d", n.Index, primIndex),
		Positions: out,
		Indices:   base.Indices,
		Triangles: base.Triangles,
	}
	g.geomMu.Lock()
	g.skinned[cacheKey] = geo
	g.geomMu.Unlock()
	return geo
}

func (g *graph) inverseBindMatrices(skin *gltf.Skin) []mgl64.Mat4 {
	out := make([]mgl64.Mat4, len(skin.Joints))
	for i := range out {
		out[i] = identity
	}
	if skin.InverseBindMatrices == nil {
		return out
	}
	acc, ok := g.accessor(*skin.InverseBindMatrices)
	if !ok {
		return out
	}
	raw, err := modeler.ReadAccessor(g.doc, acc, nil)
	if err != nil {
		return out
	}
	mats, ok := raw.([][4][4]float32)
	if !ok {
		return out
	}
	for i := range min(len(mats), len(out)) {
		var m mgl64.Mat4
		for c := range 4 {
			for r := range 4 {
				m[c*4+r] = float64(mats[i][c][r])
			}
		}
		out[i] = m
	}
	return out
}

// accessor returns the document accessor at idx, or false when idx is out of range or the slot is empty.
func (g *graph) accessor(idx int) (*gltf.Accessor, bool) {
	if idx < 0 || idx >= len(g.doc.Accessors) || g.doc.Accessors[idx] == nil {
		return nil, false
	}
	return g.doc.Accessors[idx], true
}

// rootSpace returns the node's transform relative to the root, excluding the root's own transform.
func (g *graph) rootSpace(n *Node) mgl64.Mat4 {
	m := identity
	for c := n; c != nil && c != g.root; c = c.Parent {
		m = c.Local().Mul4(m)
	}
	return m
}
