package thumbnail

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-figure/engine/loader"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// PlaceholderName is the node and source name of the last-resort cube.
const PlaceholderName = "placeholder_cube"

var (
	placeholderOnce sync.Once
	placeholderGLB  []byte
	placeholderErr  error
)

// placeholderSource returns a GLB source holding a neutral grey unit cube.
func placeholderSource() (loader.Source, error) {
	placeholderOnce.Do(func() {
		placeholderGLB, placeholderErr = buildPlaceholder()
	})
	if placeholderErr != nil {
		return loader.Source{}, placeholderErr
	}
	return loader.FromBytes(PlaceholderName+".glb", placeholderGLB), nil
}

func buildPlaceholder() ([]byte, error) {
	doc := gltf.NewDocument()
	corners := [][3]float32{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
	}
	// two triangles per face, counter-clockwise seen from outside
	indices := []uint16{
		4, 5, 6, 4, 6, 7, // +z
		1, 0, 3, 1, 3, 2, // -z
		5, 1, 2, 5, 2, 6, // +x
		0, 4, 7, 0, 7, 3, // -x
		7, 6, 2, 7, 2, 3, // +y
		0, 1, 5, 0, 5, 4, // -y
	}

	doc.Materials = []*gltf.Material{{
		Name: "placeholder",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{0.5, 0.5, 0.5, 1},
			MetallicFactor:  gltf.Float(0),
		},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: PlaceholderName,
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]int{gltf.POSITION: modeler.WritePosition(doc, corners)},
			Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
			Material:   gltf.Index(0),
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: PlaceholderName, Mesh: gltf.Index(0)}}
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}
	doc.Scene = gltf.Index(0)

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
