package testasset

import (
	"github.com/Carmen-Shannon/oxy-figure/common"

	"github.com/qmuntal/gltf"
)

// Node indices of the figurine fixture.
const (
	FigArmature = iota
	FigBody
	FigHair
	FigShirt
	FigEyeLeft
	FigEyeRight
	FigHips
)

// SharedPaint is the base color of the material shared by hair, shirt, and eyes.
var SharedPaint = common.MustParseColor("#cccccc")

// FigurineOptions toggles optional content of the figurine fixture.
type FigurineOptions struct {
	// Skinned binds the body to a "Hips" joint and animates the joint.
	Skinned bool

	// UnlitBody puts the body on an unlit material.
	UnlitBody bool
}

// Figurine builds a small character: an "Armature" root translated to (10, 5, 0) and scaled 3x, with mesh children
// "Body", "Hair_Mesh", "Shirt", "Eye_L", and "Eye_R". Hair, shirt, and eyes share one material, and both eyes
// instance the same mesh.
//
// Authored world bounds before any normalization span x in [8.35, 11.65], y in [5, 11], z in [-0.81, 0.81].
func Figurine(opts FigurineOptions) *gltf.Document {
	b := New()
	paint := b.Material("SharedPaint", SharedPaint)
	var skin int
	if opts.UnlitBody {
		skin = b.UnlitMaterial("SkinUnlit")
	} else {
		skin = b.Material("Skin", common.MustParseColor("#f1c27d"))
	}

	bodyMesh := b.Box("BodyMesh", [3]float32{-0.5, 0, -0.25}, [3]float32{0.5, 1.5, 0.25}, skin)
	hairMesh := b.Box("HairMesh", [3]float32{-0.3, 1.6, -0.2}, [3]float32{0.3, 2, 0.2}, paint)
	shirtMesh := b.Box("ShirtMesh", [3]float32{-0.55, 0.7, -0.27}, [3]float32{0.55, 1.3, 0.27}, paint)
	eyeMesh := b.Box("EyeMesh", [3]float32{-0.05, -0.05, 0}, [3]float32{0.05, 0.05, 0.02}, paint)

	armature := b.Node("Armature", -1, [3]float64{10, 5, 0},
		FigBody, FigHair, FigShirt, FigEyeLeft, FigEyeRight)
	b.Scale(armature, 3)
	b.Node("Body", bodyMesh, [3]float64{})
	b.Node("Hair_Mesh", hairMesh, [3]float64{})
	b.Node("Shirt", shirtMesh, [3]float64{})
	b.Node("Eye_L", eyeMesh, [3]float64{-0.15, 1.8, 0.2})
	b.Node("Eye_R", eyeMesh, [3]float64{0.15, 1.8, 0.2})
	b.Roots(armature)

	if opts.Skinned {
		hips := b.Node("Hips", -1, [3]float64{})
		b.doc.Nodes[armature].Children = append(b.doc.Nodes[armature].Children, hips)
		b.Skin(FigBody, hips)
		b.Bounce(hips)
	}
	return b.Document()
}

// Degenerate builds a document whose only mesh collapses to a single point.
func Degenerate() *gltf.Document {
	b := New()
	b.Roots(b.Node("Speck", b.Flat("Speck", [3]float32{1, 2, 3}), [3]float64{}))
	return b.Document()
}

// Empty builds a document with nodes but no meshes.
func Empty() *gltf.Document {
	b := New()
	b.Roots(b.Node("Camera_Rig", -1, [3]float64{}))
	return b.Document()
}
