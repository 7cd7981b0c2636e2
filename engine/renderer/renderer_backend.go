package renderer

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4x multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)

// Mesh is a geometry uploaded to the GPU. Backends define what it holds.
type Mesh interface {
	// IndexCount returns the number of indices drawn.
	IndexCount() int
}

// RendererBackend is the GPU API behind a Renderer. All methods are called with the renderer's lock held,
// so implementations need not be safe for concurrent use.
type RendererBackend interface {
	// ConfigureSurface (re)creates the swapchain and depth targets for the given size.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: error if the surface or its attachments cannot be created
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the present mode applied at the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// CreateMesh uploads vertex and index data.
	//
	// Parameters:
	//   - label: a debug label
	//   - vertexData: tightly packed vec3<f32> positions
	//   - indexData: uint32 indices
	//   - indexCount: the number of indices
	//
	// Returns:
	//   - Mesh: the uploaded mesh
	//   - error: error if buffer creation fails
	CreateMesh(label string, vertexData, indexData []byte, indexCount int) (Mesh, error)

	// ReleaseMesh frees a mesh created by CreateMesh.
	ReleaseMesh(m Mesh)

	// BeginFrame acquires the next surface texture and opens the render pass.
	BeginFrame() error

	// Draw records one indexed draw with its per-draw uniform block.
	//
	// Parameters:
	//   - slot: the draw's index within the frame; each slot owns a uniform buffer
	//   - m: the mesh to draw
	//   - uniform: the marshaled drawUniform
	//
	// Returns:
	//   - error: error if the slot's resources cannot be created
	Draw(slot int, m Mesh, uniform []byte) error

	// EndFrame closes the render pass and submits the frame's commands.
	EndFrame() error

	// Present presents the acquired surface texture.
	Present()

	// Release frees every GPU object owned by the backend.
	Release()
}
