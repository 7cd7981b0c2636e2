package scene

import (
	"github.com/Carmen-Shannon/oxy-figure/common"

	"github.com/go-gl/mathgl/mgl64"
)

// DrawItem is one visible triangle primitive ready to be rasterized.
type DrawItem struct {
	// Node is the mesh node the primitive belongs to.
	Node *Node

	// Primitive is the index of the primitive within the node's mesh.
	Primitive int

	// World maps Geometry positions to world space.
	World mgl64.Mat4

	Geometry *Geometry

	// BaseColor is the linear baseColorFactor of the primitive's material.
	BaseColor [4]float64
}

// meshPrimitives yields each primitive of a visible mesh node with the transform that maps its
// positions to world space.
func (g *graph) meshPrimitives(fn func(n *Node, primIndex int, world mgl64.Mat4, geo *Geometry) error) error {
	var err error
	rootLocal := g.root.Local()
	g.Walk(func(n *Node, world mgl64.Mat4) bool {
		if err != nil || !n.Visible {
			return false
		}
		meshIdx, ok := n.Mesh()
		if !ok || meshIdx < 0 || meshIdx >= len(g.doc.Meshes) {
			return true
		}
		for pi, prim := range g.doc.Meshes[meshIdx].Primitives {
			if geo := g.skinnedGeometry(n, prim, pi); geo != nil {
				if err = fn(n, pi, rootLocal, geo); err != nil {
					return false
				}
				continue
			}
			geo, gerr := g.Geometry(prim)
			if gerr != nil {
				err = gerr
				return false
			}
			if err = fn(n, pi, world, geo); err != nil {
				return false
			}
		}
		return true
	})
	return err
}

func (g *graph) WorldBounds() (common.AABB, error) {
	box := common.EmptyAABB()
	err := g.meshPrimitives(func(_ *Node, _ int, world mgl64.Mat4, geo *Geometry) error {
		for _, p := range geo.Positions {
			box.Extend(mgl64.TransformCoordinate(mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}, world))
		}
		return nil
	})
	return box, err
}

func (g *graph) DrawList() ([]DrawItem, error) {
	var items []DrawItem
	err := g.meshPrimitives(func(n *Node, pi int, world mgl64.Mat4, geo *Geometry) error {
		if !geo.Triangles {
			return nil
		}
		meshIdx, _ := n.Mesh()
		items = append(items, DrawItem{
			Node:      n,
			Primitive: pi,
			World:     world,
			Geometry:  geo,
			BaseColor: g.baseColor(g.doc.Meshes[meshIdx].Primitives[pi].Material),
		})
		return nil
	})
	return items, err
}

func (g *graph) baseColor(material *int) [4]float64 {
	def := [4]float64{1, 1, 1, 1}
	if material == nil || *material < 0 || *material >= len(g.doc.Materials) {
		return def
	}
	m := g.doc.Materials[*material]
	if m.PBRMetallicRoughness == nil || m.PBRMetallicRoughness.BaseColorFactor == nil {
		return def
	}
	return *m.PBRMetallicRoughness.BaseColorFactor
}
