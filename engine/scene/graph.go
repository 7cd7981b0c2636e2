package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-figure/common"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
)

// RootNodeName is the name given to the synthetic root node wrapping the authored scene roots.
const RootNodeName = "figurine_root"

var (
	// ErrNoNodes is returned when the document has no nodes to build a graph from.
	ErrNoNodes = errors.New("document has no nodes")

	// ErrNodeIndex is returned when a scene or child reference points outside Document().Nodes.
	ErrNodeIndex = errors.New("node index out of range")

	// ErrCyclicNodes is returned when a node is reachable twice from the default scene.
	ErrCyclicNodes = errors.New("node hierarchy is not a tree")
)

// Resolver fetches external resources (buffers, images) referenced by relative URIs in an asset.
type Resolver interface {
	// Resolve returns the bytes behind uri, relative to the asset's location.
	//
	// Parameters:
	//   - ctx: cancellation for the fetch
	//   - uri: the URI as written in the asset
	//
	// Returns:
	//   - []byte: the resource bytes
	//   - error: error if the resource cannot be read
	Resolve(ctx context.Context, uri string) ([]byte, error)
}

// Stats summarizes the content of a graph.
type Stats struct {
	Nodes      int
	MeshNodes  int
	Meshes     int
	Materials  int
	Skins      int
	Joints     int
	Animations int
	Images     int
}

// Graph is one loaded asset: the decoded glTF document plus a single-rooted node tree over its default scene.
// A Graph belongs to exactly one viewer instance and is not safe for concurrent mutation.
type Graph interface {
	// Name returns the display name of the asset (usually its source URL or file name).
	Name() string

	// Document returns the live glTF document. Customizations mutate it in place; exporters must copy it.
	Document() *gltf.Document

	// Root returns the synthetic root node.
	Root() *Node

	// Node returns the node view for a glTF node index, or nil if it is not reachable from the default scene.
	//
	// Parameters:
	//   - index: the glTF node index
	//
	// Returns:
	//   - *Node: the node, or nil
	Node(index int) *Node

	// MeshNodes returns every node that references a mesh, in depth-first authored order.
	//
	// Returns:
	//   - []*Node: the mesh nodes
	MeshNodes() []*Node

	// MeshUsers returns every reachable node referencing the given mesh index.
	//
	// Parameters:
	//   - mesh: the glTF mesh index
	//
	// Returns:
	//   - []*Node: the nodes using the mesh
	MeshUsers(mesh int) []*Node

	// Walk visits the tree depth-first from the root, passing each node's world transform.
	// Returning false from fn skips the node's children.
	//
	// Parameters:
	//   - fn: the visitor
	Walk(fn func(n *Node, world mgl64.Mat4) bool)

	// WorldBounds returns the union bounding box of all visible mesh geometry in world space.
	//
	// Returns:
	//   - common.AABB: the bounds (empty if nothing is visible)
	//   - error: error if geometry data cannot be read
	WorldBounds() (common.AABB, error)

	// DrawList returns one draw item per visible triangle primitive, with current world transforms and base colors.
	//
	// Returns:
	//   - []DrawItem: the draw items
	//   - error: error if geometry data cannot be read
	DrawList() ([]DrawItem, error)

	// Geometry returns the cached vertex data of a mesh primitive.
	//
	// Parameters:
	//   - prim: the primitive
	//
	// Returns:
	//   - *Geometry: the decoded geometry
	//   - error: error if the accessors cannot be read
	Geometry(prim *gltf.Primitive) (*Geometry, error)

	// AuthoredRoots returns the default scene's root node indices as authored, before wrapping.
	AuthoredRoots() []int

	// SceneIndex returns the index of the default scene in Document().Scenes.
	SceneIndex() int

	// IsAnimated reports whether any animation channel targets the node.
	IsAnimated(index int) bool

	// Resolver returns the resolver for external resources, or nil for in-memory sources.
	Resolver() Resolver

	// Stats returns counts of the graph's content.
	Stats() Stats
}

type graph struct {
	name     string
	doc      *gltf.Document
	resolver Resolver

	root          *Node
	nodes         []*Node
	meshNodes     []*Node
	authoredRoots []int
	sceneIndex    int
	animated      map[int]bool

	geomMu   sync.Mutex
	geometry map[geometryKey]*Geometry
	skinned  map[int]*Geometry
}

var _ Graph = &graph{}

// NewGraph wraps a decoded document. It appends a synthetic root node to the document and makes it the
// only root of the default scene so that a single transform frames the whole asset. Node indices of the
// authored nodes are unchanged.
//
// Parameters:
//   - doc: the decoded document
//   - options: functional options (name, resolver)
//
// Returns:
//   - Graph: the new graph
//   - error: ErrNoNodes, ErrNodeIndex, or ErrCyclicNodes for malformed hierarchies
func NewGraph(doc *gltf.Document, options ...GraphBuilderOption) (Graph, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, ErrNoNodes
	}

	g := &graph{
		doc:      doc,
		nodes:    make([]*Node, len(doc.Nodes)+1),
		animated: make(map[int]bool),
		geometry: make(map[geometryKey]*Geometry),
		skinned:  make(map[int]*Geometry),
	}
	for _, opt := range options {
		opt(g)
	}

	roots, err := g.defaultSceneRoots()
	if err != nil {
		return nil, err
	}
	g.authoredRoots = append([]int(nil), roots...)

	rootIndex := len(doc.Nodes)
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name:     RootNodeName,
		Children: append([]int(nil), roots...),
		Rotation: [4]float64{0, 0, 0, 1},
		Scale:    [3]float64{1, 1, 1},
		Matrix:   [16]float64(identity),
	})
	doc.Scenes[g.sceneIndex].Nodes = []int{rootIndex}

	g.root = &Node{Name: RootNodeName, Index: rootIndex, Visible: true, doc: doc}
	g.nodes[rootIndex] = g.root
	if err := g.link(g.root); err != nil {
		doc.Nodes = doc.Nodes[:rootIndex]
		doc.Scenes[g.sceneIndex].Nodes = g.authoredRoots
		return nil, err
	}

	for _, a := range doc.Animations {
		for _, ch := range a.Channels {
			if ch.Target.Node != nil {
				g.animated[*ch.Target.Node] = true
			}
		}
	}
	return g, nil
}

// defaultSceneRoots picks the default scene, creating one from parentless nodes when the document has none.
func (g *graph) defaultSceneRoots() ([]int, error) {
	doc := g.doc
	if len(doc.Scenes) == 0 {
		hasParent := make([]bool, len(doc.Nodes))
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				if c < 0 || c >= len(doc.Nodes) {
					return nil, fmt.Errorf("%w: child %d", ErrNodeIndex, c)
				}
				hasParent[c] = true
			}
		}
		s := &gltf.Scene{}
		for i, p := range hasParent {
			if !p {
				s.Nodes = append(s.Nodes, i)
			}
		}
		doc.Scenes = []*gltf.Scene{s}
		doc.Scene = gltf.Index(0)
	}

	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		g.sceneIndex = *doc.Scene
	} else {
		g.sceneIndex = 0
		doc.Scene = gltf.Index(0)
	}

	roots := doc.Scenes[g.sceneIndex].Nodes
	for _, r := range roots {
		if r < 0 || r >= len(doc.Nodes) {
			return nil, fmt.Errorf("%w: scene root %d", ErrNodeIndex, r)
		}
	}
	return roots, nil
}

// link builds node views below parent depth-first, rejecting shared or cyclic references.
func (g *graph) link(parent *Node) error {
	for _, ci := range parent.GLTF().Children {
		if ci < 0 || ci >= len(g.doc.Nodes) {
			return fmt.Errorf("%w: child %d of node %d", ErrNodeIndex, ci, parent.Index)
		}
		if g.nodes[ci] != nil {
			return fmt.Errorf("%w: node %d referenced twice", ErrCyclicNodes, ci)
		}
		gn := g.doc.Nodes[ci]
		child := &Node{Name: gn.Name, Index: ci, Parent: parent, Visible: true, doc: g.doc}
		g.nodes[ci] = child
		parent.Children = append(parent.Children, child)
		if gn.Mesh != nil {
			g.meshNodes = append(g.meshNodes, child)
		}
		if err := g.link(child); err != nil {
			return err
		}
	}
	return nil
}

func (g *graph) Name() string {
	return g.name
}

func (g *graph) Document() *gltf.Document {
	return g.doc
}

func (g *graph) Root() *Node {
	return g.root
}

func (g *graph) Node(index int) *Node {
	if index < 0 || index >= len(g.nodes) {
		return nil
	}
	return g.nodes[index]
}

func (g *graph) MeshNodes() []*Node {
	return append([]*Node(nil), g.meshNodes...)
}

func (g *graph) MeshUsers(mesh int) []*Node {
	var users []*Node
	for _, n := range g.meshNodes {
		if m, ok := n.Mesh(); ok && m == mesh {
			users = append(users, n)
		}
	}
	return users
}

func (g *graph) Walk(fn func(n *Node, world mgl64.Mat4) bool) {
	var visit func(n *Node, parentWorld mgl64.Mat4)
	visit = func(n *Node, parentWorld mgl64.Mat4) {
		world := parentWorld.Mul4(n.Local())
		if !fn(n, world) {
			return
		}
		for _, c := range n.Children {
			visit(c, world)
		}
	}
	visit(g.root, identity)
}

func (g *graph) AuthoredRoots() []int {
	return append([]int(nil), g.authoredRoots...)
}

func (g *graph) SceneIndex() int {
	return g.sceneIndex
}

func (g *graph) IsAnimated(index int) bool {
	return g.animated[index]
}

func (g *graph) Resolver() Resolver {
	return g.resolver
}

func (g *graph) Stats() Stats {
	s := Stats{
		Nodes:      len(g.doc.Nodes) - 1,
		MeshNodes:  len(g.meshNodes),
		Meshes:     len(g.doc.Meshes),
		Materials:  len(g.doc.Materials),
		Skins:      len(g.doc.Skins),
		Animations: len(g.doc.Animations),
		Images:     len(g.doc.Images),
	}
	for _, sk := range g.doc.Skins {
		s.Joints += len(sk.Joints)
	}
	return s
}
