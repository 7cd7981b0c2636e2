// Package renderer draws figurine draw lists through a single flat-shaded WebGPU pipeline.
package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ErrReleased is returned by Draw after Release.
var ErrReleased = errors.New("renderer released")

// meshEntry tracks one geometry. mesh stays nil until the geometry is first drawn inside the frustum.
type meshEntry struct {
	mesh      Mesh
	bounds    common.AABB
	lastFrame uint64
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu sync.Mutex

	backend  RendererBackend
	meshes   map[*scene.Geometry]*meshEntry
	frame    uint64
	released bool

	logger *zap.Logger

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	sampleCount          MSAASampleCount
	cullingDisabled      bool
}

// Renderer draws one frame at a time from a scene draw list. Items outside the view frustum are skipped.
// Geometry is uploaded on first visible use and released once a frame no longer references it, so
// reloading a different asset frees the previous one.
type Renderer interface {
	// Resize reconfigures the surface for a new framebuffer size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// Draw renders and presents one frame.
	//
	// Parameters:
	//   - viewProj: the camera's projection * view matrix
	//   - items: the draw list; an empty list clears the frame
	//
	// Returns:
	//   - error: error if the frame could not be acquired or submitted
	Draw(viewProj mgl32.Mat4, items []scene.DrawItem) error

	// Release frees all GPU resources. Later Draw calls fail with ErrReleased.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer over a window surface and configures it for the initial size.
// Pass WithBackend to draw through another backend; the surface descriptor is then unused.
//
// Parameters:
//   - surface: the window's surface descriptor
//   - width: initial framebuffer width in pixels
//   - height: initial framebuffer height in pixels
//   - options: a variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the renderer
//   - error: error if the GPU device or surface cannot be created
func NewRenderer(surface *wgpu.SurfaceDescriptor, width, height int, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		meshes:      make(map[*scene.Geometry]*meshEntry),
		logger:      zap.NewNop(),
		presentMode: PresentModeVSync,
		sampleCount: MSAA4x,
	}
	for _, option := range options {
		option(r)
	}
	r.logger = r.logger.With(zap.String("component", "renderer"))

	if r.backend == nil {
		b, err := newWGPURendererBackend(surface, r.forceFallbackAdapter, r.sampleCount)
		if err != nil {
			return nil, fmt.Errorf("create wgpu backend: %w", err)
		}
		r.backend = b
	}
	r.backend.SetPresentMode(r.presentMode)
	if err := r.backend.ConfigureSurface(width, height); err != nil {
		r.backend.Release()
		return nil, fmt.Errorf("configure surface: %w", err)
	}
	return r, nil
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released || width <= 0 || height <= 0 {
		return
	}
	if err := r.backend.ConfigureSurface(width, height); err != nil {
		r.logger.Warn("surface reconfigure failed", zap.Int("width", width), zap.Int("height", height), zap.Error(err))
	}
}

func (r *renderer) Draw(viewProj mgl32.Mat4, items []scene.DrawItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.frame++

	if err := r.backend.BeginFrame(); err != nil {
		return fmt.Errorf("begin frame: %w", err)
	}
	frustum := common.NewFrustum(viewProj)
	slot := 0
	for _, item := range items {
		e := r.entry(item.Geometry)
		if e == nil {
			continue
		}
		e.lastFrame = r.frame
		if !r.cullingDisabled && !frustum.Intersects(e.bounds.Transform(item.World)) {
			continue
		}
		m, err := r.upload(item.Geometry, e)
		if err != nil {
			r.logger.Warn("mesh upload failed", zap.String("node", item.Node.Name), zap.Error(err))
			continue
		}
		model := common.Mat4ToFloat32(item.World)
		u := drawUniform{
			MVP:   viewProj.Mul4(model),
			Model: model,
			Color: [4]float32{
				float32(item.BaseColor[0]), float32(item.BaseColor[1]),
				float32(item.BaseColor[2]), float32(item.BaseColor[3]),
			},
		}
		if err := r.backend.Draw(slot, m, u.Marshal()); err != nil {
			_ = r.backend.EndFrame()
			return err
		}
		slot++
	}
	if err := r.backend.EndFrame(); err != nil {
		return err
	}
	r.backend.Present()
	r.evict()
	return nil
}

// entry returns the tracking entry for geo, creating it on first sight. It returns nil for empty geometry.
func (r *renderer) entry(geo *scene.Geometry) *meshEntry {
	if geo == nil || len(geo.Positions) == 0 || len(geo.Indices) == 0 {
		return nil
	}
	e, ok := r.meshes[geo]
	if !ok {
		e = &meshEntry{bounds: geo.Bounds()}
		r.meshes[geo] = e
	}
	return e
}

func (r *renderer) upload(geo *scene.Geometry, e *meshEntry) (Mesh, error) {
	if e.mesh != nil {
		return e.mesh, nil
	}
	m, err := r.backend.CreateMesh(geo.Key, common.SliceToBytes(geo.Positions), common.SliceToBytes(geo.Indices), len(geo.Indices))
	if err != nil {
		return nil, err
	}
	e.mesh = m
	return m, nil
}

// evict forgets geometry the current frame's draw list no longer references.
func (r *renderer) evict() {
	for geo, e := range r.meshes {
		if e.lastFrame != r.frame {
			if e.mesh != nil {
				r.backend.ReleaseMesh(e.mesh)
			}
			delete(r.meshes, geo)
		}
	}
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	for geo, e := range r.meshes {
		if e.mesh != nil {
			r.backend.ReleaseMesh(e.mesh)
		}
		delete(r.meshes, geo)
	}
	r.backend.Release()
}
