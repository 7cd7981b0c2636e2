// Package material clones and recolors the materials of bound parts.
package material

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"github.com/jinzhu/copier"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

// UnlitExtension marks a glTF material as unlit.
const UnlitExtension = "KHR_materials_unlit"

// clone is the registry entry of one customized part.
type clone struct {
	index    int
	material *gltf.Material
	color    common.Color
}

// customizer is the implementation of the Customizer interface.
type customizer struct {
	graph     scene.Graph
	clones    map[string]*clone
	order     []string
	logger    *zap.Logger
	collector *telemetry.Collector
}

// Customizer recolors bound parts of one graph. Each part gets its own material clone the first time it is
// colored; original materials are never mutated, so parts that share a material in the source asset never
// bleed into each other. A Customizer belongs to exactly one viewer instance and is not safe for concurrent use.
type Customizer interface {
	// SetPartColor colors every primitive of every node in the binding. The first call for a part clones the
	// material of the first bound primitive and repoints the bound primitives at the clone; later calls only
	// rewrite the clone's base color. A binding with no nodes is a no-op.
	//
	// Parameters:
	//   - b: the part binding
	//   - c: the sRGB color
	//
	// Returns:
	//   - error: error if the binding references nodes outside the graph
	SetPartColor(b binder.Binding, c common.Color) error

	// AppliedColor returns the last color set on a part.
	//
	// Parameters:
	//   - partID: the part
	//
	// Returns:
	//   - common.Color: the color as passed to SetPartColor
	//   - bool: false if the part was never colored
	AppliedColor(partID string) (common.Color, bool)

	// Material returns the clone owned by a part and its index in the document.
	//
	// Parameters:
	//   - partID: the part
	//
	// Returns:
	//   - *gltf.Material: the clone
	//   - int: the clone's material index
	//   - bool: false if the part was never colored
	Material(partID string) (*gltf.Material, int, bool)

	// Parts returns the IDs of colored parts in the order they were first colored.
	//
	// Returns:
	//   - []string: the part IDs
	Parts() []string
}

var _ Customizer = &customizer{}

// NewCustomizer creates a Customizer scoped to one graph.
//
// Parameters:
//   - g: the graph whose document is customized in place
//   - options: a variadic list of CustomizerBuilderOption functions
//
// Returns:
//   - Customizer: a new Customizer with an empty registry
func NewCustomizer(g scene.Graph, options ...CustomizerBuilderOption) Customizer {
	c := &customizer{
		graph:  g,
		clones: make(map[string]*clone),
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *customizer) SetPartColor(b binder.Binding, color common.Color) error {
	if b.Empty() {
		c.logger.Debug("color ignored for part without nodes", zap.String("part", b.PartID))
		return nil
	}

	entry, ok := c.clones[b.PartID]
	if !ok {
		var err error
		if entry, err = c.cloneFor(b); err != nil {
			return err
		}
		c.clones[b.PartID] = entry
		c.order = append(c.order, b.PartID)
	}

	linear := color.Linear()
	*entry.material.PBRMetallicRoughness.BaseColorFactor = linear
	entry.color = color

	c.collector.RecordRecolor(b.PartID)
	c.logger.Debug("part colored",
		zap.String("part", b.PartID),
		zap.Stringer("color", color),
		zap.Int("material", entry.index),
		zap.Int("nodes", len(b.Nodes)),
	)
	return nil
}

func (c *customizer) AppliedColor(partID string) (common.Color, bool) {
	entry, ok := c.clones[partID]
	if !ok {
		return common.Color{}, false
	}
	return entry.color, true
}

func (c *customizer) Material(partID string) (*gltf.Material, int, bool) {
	entry, ok := c.clones[partID]
	if !ok {
		return nil, 0, false
	}
	return entry.material, entry.index, true
}

func (c *customizer) Parts() []string {
	return append([]string(nil), c.order...)
}

// cloneFor creates the part's material clone and points every bound primitive at it. Meshes shared with
// nodes outside the binding are duplicated first so those nodes keep their original material.
func (c *customizer) cloneFor(b binder.Binding) (*clone, error) {
	doc := c.graph.Document()
	for _, n := range b.Nodes {
		if m, ok := n.Mesh(); !ok || m < 0 || m >= len(doc.Meshes) {
			return nil, fmt.Errorf("part %q: node %d has no valid mesh", b.PartID, n.Index)
		}
	}

	src := c.template(b)
	dst := new(gltf.Material)
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("part %q: clone material: %w", b.PartID, err)
	}
	upgraded := upgradeUnlit(dst)
	if dst.PBRMetallicRoughness == nil {
		dst.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{}
	}
	if dst.PBRMetallicRoughness.BaseColorFactor == nil {
		dst.PBRMetallicRoughness.BaseColorFactor = &[4]float64{1, 1, 1, 1}
	}
	dst.Name = cloneName(src.Name, b.PartID)

	doc.Materials = append(doc.Materials, dst)
	index := len(doc.Materials) - 1

	bound := make(map[int]bool, len(b.Nodes))
	for _, n := range b.Nodes {
		bound[n.Index] = true
	}
	duplicated := make(map[int]int)
	for _, n := range b.Nodes {
		meshIdx, _ := n.Mesh()
		if dup, ok := duplicated[meshIdx]; ok {
			n.GLTF().Mesh = gltf.Index(dup)
			continue
		}
		if c.sharedOutside(meshIdx, bound) {
			dup := duplicateMesh(doc, meshIdx, b.PartID)
			duplicated[meshIdx] = dup
			n.GLTF().Mesh = gltf.Index(dup)
			meshIdx = dup
			c.logger.Debug("mesh duplicated for part", zap.String("part", b.PartID), zap.Int("mesh", dup))
		}
		for _, prim := range doc.Meshes[meshIdx].Primitives {
			prim.Material = gltf.Index(index)
		}
	}

	c.logger.Info("material cloned for part",
		zap.String("part", b.PartID),
		zap.String("template", src.Name),
		zap.Int("material", index),
		zap.Bool("unlit_upgraded", upgraded),
	)
	return &clone{index: index, material: dst}, nil
}

// template returns the material of the first primitive of the first bound node, or the glTF default material.
func (c *customizer) template(b binder.Binding) *gltf.Material {
	doc := c.graph.Document()
	meshIdx, _ := b.Nodes[0].Mesh()
	for _, prim := range doc.Meshes[meshIdx].Primitives {
		if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(doc.Materials) {
			return doc.Materials[*prim.Material]
		}
	}
	return defaultMaterial()
}

// sharedOutside reports whether a node outside the bound set also renders the mesh.
func (c *customizer) sharedOutside(meshIdx int, bound map[int]bool) bool {
	for _, u := range c.graph.MeshUsers(meshIdx) {
		if !bound[u.Index] {
			return true
		}
	}
	return false
}

// duplicateMesh appends a copy of a mesh whose primitives can take a different material. Accessors are shared.
func duplicateMesh(doc *gltf.Document, meshIdx int, partID string) int {
	src := doc.Meshes[meshIdx]
	dst := &gltf.Mesh{
		Name:       cloneName(src.Name, partID),
		Weights:    append([]float64(nil), src.Weights...),
		Extensions: src.Extensions,
		Extras:     src.Extras,
	}
	for _, p := range src.Primitives {
		cp := *p
		cp.Attributes = make(map[string]int, len(p.Attributes))
		for k, v := range p.Attributes {
			cp.Attributes[k] = v
		}
		dst.Primitives = append(dst.Primitives, &cp)
	}
	doc.Meshes = append(doc.Meshes, dst)
	return len(doc.Meshes) - 1
}

// upgradeUnlit converts an unlit material to a fully rough dielectric so it responds to lighting like the
// rest of the figurine. It reports whether the material was unlit.
func upgradeUnlit(m *gltf.Material) bool {
	if _, ok := m.Extensions[UnlitExtension]; !ok {
		return false
	}
	delete(m.Extensions, UnlitExtension)
	if len(m.Extensions) == 0 {
		m.Extensions = nil
	}
	if m.PBRMetallicRoughness == nil {
		m.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{}
	}
	m.PBRMetallicRoughness.MetallicFactor = gltf.Float(0)
	m.PBRMetallicRoughness.RoughnessFactor = gltf.Float(1)
	return true
}

func defaultMaterial() *gltf.Material {
	return &gltf.Material{
		Name: "default",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(1),
			RoughnessFactor: gltf.Float(1),
		},
	}
}

func cloneName(base, partID string) string {
	if base == "" {
		return "part_" + partID
	}
	return base + "_" + partID
}
