// Package testasset builds small glTF documents for tests, demos, and placeholders.
package testasset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"

	"github.com/Carmen-Shannon/oxy-figure/common"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// UnlitExtension is the glTF extension name marking a material as unlit.
const UnlitExtension = "KHR_materials_unlit"

// Builder assembles a glTF document node by node.
type Builder struct {
	doc *gltf.Document
}

// New returns a Builder over an empty document with one empty default scene.
func New() *Builder {
	doc := gltf.NewDocument()
	if len(doc.Scenes) == 0 {
		doc.Scenes = []*gltf.Scene{{}}
		doc.Scene = gltf.Index(0)
	}
	return &Builder{doc: doc}
}

// Wrap returns a Builder over an existing document, for encoding fixtures built elsewhere.
func Wrap(doc *gltf.Document) *Builder {
	return &Builder{doc: doc}
}

// Material appends a metallic-roughness material with the given sRGB base color.
func (b *Builder) Material(name string, c common.Color) int {
	f := c.Linear()
	b.doc.Materials = append(b.doc.Materials, &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &f,
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	})
	return len(b.doc.Materials) - 1
}

// UnlitMaterial appends a material carrying the unlit extension and no PBR block.
func (b *Builder) UnlitMaterial(name string) int {
	b.doc.Materials = append(b.doc.Materials, &gltf.Material{
		Name:       name,
		Extensions: gltf.Extensions{UnlitExtension: json.RawMessage("{}")},
	})
	if !contains(b.doc.ExtensionsUsed, UnlitExtension) {
		b.doc.ExtensionsUsed = append(b.doc.ExtensionsUsed, UnlitExtension)
	}
	return len(b.doc.Materials) - 1
}

// Box appends a mesh with one indexed box primitive spanning min..max.
// A negative material leaves the primitive on the glTF default material.
func (b *Builder) Box(name string, min, max [3]float32, material int) int {
	positions, normals, indices := boxData(min, max)
	prim := &gltf.Primitive{
		Attributes: map[string]int{
			gltf.POSITION: modeler.WritePosition(b.doc, positions),
			gltf.NORMAL:   modeler.WriteNormal(b.doc, normals),
		},
		Indices: gltf.Index(modeler.WriteIndices(b.doc, indices)),
	}
	if material >= 0 {
		prim.Material = gltf.Index(material)
	}
	b.doc.Meshes = append(b.doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
	return len(b.doc.Meshes) - 1
}

// Flat appends a mesh whose vertices all share one point, producing zero-volume bounds.
func (b *Builder) Flat(name string, at [3]float32) int {
	positions := [][3]float32{at, at, at}
	prim := &gltf.Primitive{
		Attributes: map[string]int{gltf.POSITION: modeler.WritePosition(b.doc, positions)},
		Indices:    gltf.Index(modeler.WriteIndices(b.doc, []uint16{0, 1, 2})),
	}
	b.doc.Meshes = append(b.doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
	return len(b.doc.Meshes) - 1
}

// Node appends a node. A negative mesh creates a transform-only node.
func (b *Builder) Node(name string, mesh int, translation [3]float64, children ...int) int {
	n := &gltf.Node{
		Name:        name,
		Children:    children,
		Translation: translation,
		Rotation:    [4]float64{0, 0, 0, 1},
		Scale:       [3]float64{1, 1, 1},
	}
	if mesh >= 0 {
		n.Mesh = gltf.Index(mesh)
	}
	b.doc.Nodes = append(b.doc.Nodes, n)
	return len(b.doc.Nodes) - 1
}

// Scale sets a uniform scale on a node.
func (b *Builder) Scale(node int, s float64) {
	b.doc.Nodes[node].Scale = [3]float64{s, s, s}
}

// Roots sets the default scene's root nodes.
func (b *Builder) Roots(nodes ...int) {
	b.doc.Scenes[0].Nodes = nodes
}

// Skin binds every vertex of the mesh node to a single joint with an identity inverse bind matrix.
func (b *Builder) Skin(meshNode, joint int) int {
	mesh := b.doc.Meshes[*b.doc.Nodes[meshNode].Mesh]
	for _, prim := range mesh.Primitives {
		count := b.doc.Accessors[prim.Attributes[gltf.POSITION]].Count
		joints := make([][4]uint8, count)
		weights := make([][4]float32, count)
		for i := range weights {
			weights[i] = [4]float32{1, 0, 0, 0}
		}
		prim.Attributes[gltf.JOINTS_0] = modeler.WriteJoints(b.doc, joints)
		prim.Attributes[gltf.WEIGHTS_0] = modeler.WriteWeights(b.doc, weights)
	}
	ibm := modeler.WriteAccessor(b.doc, gltf.TargetNone, [][4][4]float32{{
		{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1},
	}})
	b.doc.Skins = append(b.doc.Skins, &gltf.Skin{
		Name:                "Armature",
		Joints:              []int{joint},
		InverseBindMatrices: gltf.Index(ibm),
	})
	skin := len(b.doc.Skins) - 1
	b.doc.Nodes[meshNode].Skin = gltf.Index(skin)
	return skin
}

// Bounce appends a one second translation animation on the node.
func (b *Builder) Bounce(node int) int {
	input := modeler.WriteAccessor(b.doc, gltf.TargetNone, []float32{0, 0.5, 1})
	output := modeler.WriteAccessor(b.doc, gltf.TargetNone, [][3]float32{{0, 0, 0}, {0, 0.1, 0}, {0, 0, 0}})
	raw := fmt.Sprintf(`{"name":"Bounce","channels":[{"sampler":0,"target":{"node":%d,"path":"translation"}}],`+
		`"samplers":[{"input":%d,"output":%d,"interpolation":"LINEAR"}]}`, node, input, output)
	anim := new(gltf.Animation)
	if err := json.Unmarshal([]byte(raw), anim); err != nil {
		panic(err)
	}
	b.doc.Animations = append(b.doc.Animations, anim)
	return len(b.doc.Animations) - 1
}

// Texture adds an image referenced by uri and uses it as the base color texture of a material.
// The uri may be a data URI or a path relative to the asset.
func (b *Builder) Texture(material int, uri string) int {
	b.doc.Images = append(b.doc.Images, &gltf.Image{Name: "albedo", URI: uri})
	b.doc.Textures = append(b.doc.Textures, &gltf.Texture{Source: gltf.Index(len(b.doc.Images) - 1)})
	tex := len(b.doc.Textures) - 1
	b.doc.Materials[material].PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: tex}
	return tex
}

// PNG returns a small opaque PNG image.
func PNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Document returns the assembled document.
func (b *Builder) Document() *gltf.Document {
	return b.doc
}

// GLB encodes the document as binary glTF.
func (b *Builder) GLB() []byte {
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(b.doc); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JSON encodes the document as glTF JSON. When external is empty every buffer is embedded as a data URI;
// otherwise the first buffer is referenced by that relative URI and its bytes are returned separately.
func (b *Builder) JSON(external string) ([]byte, []byte) {
	var bin []byte
	if len(b.doc.Buffers) > 0 {
		if external == "" {
			for _, buf := range b.doc.Buffers {
				buf.EmbeddedResource()
			}
		} else {
			bin = b.doc.Buffers[0].Data
			b.doc.Buffers[0].URI = external
			b.doc.Buffers[0].Data = nil
			defer func() { b.doc.Buffers[0].Data = bin }()
		}
	}
	var out bytes.Buffer
	enc := gltf.NewEncoder(&out)
	enc.AsBinary = false
	if err := enc.Encode(b.doc); err != nil {
		panic(err)
	}
	return out.Bytes(), bin
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func boxData(min, max [3]float32) ([][3]float32, [][3]float32, []uint16) {
	faces := []struct {
		normal  [3]float32
		corners [4][3]float32
	}{
		{[3]float32{0, 0, 1}, [4][3]float32{{min[0], min[1], max[2]}, {max[0], min[1], max[2]}, {max[0], max[1], max[2]}, {min[0], max[1], max[2]}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{max[0], min[1], min[2]}, {min[0], min[1], min[2]}, {min[0], max[1], min[2]}, {max[0], max[1], min[2]}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{max[0], min[1], max[2]}, {max[0], min[1], min[2]}, {max[0], max[1], min[2]}, {max[0], max[1], max[2]}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{min[0], min[1], min[2]}, {min[0], min[1], max[2]}, {min[0], max[1], max[2]}, {min[0], max[1], min[2]}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{min[0], max[1], max[2]}, {max[0], max[1], max[2]}, {max[0], max[1], min[2]}, {min[0], max[1], min[2]}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{min[0], min[1], min[2]}, {max[0], min[1], min[2]}, {max[0], min[1], max[2]}, {min[0], min[1], max[2]}}},
	}
	var positions, normals [][3]float32
	var indices []uint16
	for _, f := range faces {
		base := uint16(len(positions))
		for _, c := range f.corners {
			positions = append(positions, c)
			normals = append(normals, f.normal)
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return positions, normals, indices
}
