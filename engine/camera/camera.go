package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu sync.Mutex

	up     mgl32.Vec3
	target mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	// Spherical coordinates of the eye around the target
	radius    float32
	azimuth   float32 // around Y, 0 = +Z
	elevation float32 // from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	sensitivity float32 // radians per dragged pixel
	zoomStep    float32 // fraction of the radius per scroll unit

	position             mgl32.Vec3
	viewMatrix           mgl32.Mat4
	projectionMatrix     mgl32.Mat4
	viewProjectionMatrix mgl32.Mat4
}

// Camera is an orbit camera looking at a fixed target. Drags rotate the eye around the target,
// scroll changes the distance. All methods are safe for concurrent use; the render loop reads
// matrices while the window thread feeds input.
type Camera interface {
	// Orbit rotates the eye by a pointer drag.
	//
	// Parameters:
	//   - dx: horizontal drag in pixels (positive = right)
	//   - dy: vertical drag in pixels (positive = down)
	Orbit(dx, dy float32)

	// Zoom moves the eye toward the target. The distance is clamped to the radius limits.
	//
	// Parameters:
	//   - delta: scroll amount (positive = closer)
	Zoom(delta float32)

	// Frame fits a sphere of the given diameter centered on the target into the view and rescales
	// the radius limits and clip planes to it.
	//
	// Parameters:
	//   - diameter: the diameter of the content to frame
	Frame(diameter float32)

	// SetAspect sets the aspect ratio (width / height). Non-positive values are ignored.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetTarget moves the orbit pivot.
	SetTarget(target mgl32.Vec3)

	// Target returns the orbit pivot.
	Target() mgl32.Vec3

	// Position returns the eye position.
	Position() mgl32.Vec3

	// Radius returns the distance from the eye to the target.
	Radius() float32

	// Azimuth returns the horizontal orbit angle in radians.
	Azimuth() float32

	// Elevation returns the vertical orbit angle in radians.
	Elevation() float32

	// Aspect returns the aspect ratio.
	Aspect() float32

	// ViewMatrix returns the current view matrix.
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current perspective projection matrix.
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns projection * view.
	//
	// Returns:
	//   - mgl32.Mat4: the combined matrix, column-major
	ViewProjectionMatrix() mgl32.Mat4
}

var _ Camera = &cameraImpl{}

// NewCamera creates an orbit camera framing a unit-diameter figurine at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		up:           mgl32.Vec3{0, 1, 0},
		fov:          mgl32.DegToRad(45),
		aspect:       1,
		elevation:    float32(math.Pi / 12),
		minElevation: -float32(math.Pi/2 - 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),
		sensitivity:  0.01,
		zoomStep:     0.1,
	}
	c.frame(1)
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Orbit(dx, dy float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth -= dx * c.sensitivity
	c.elevation = mgl32.Clamp(c.elevation+dy*c.sensitivity, c.minElevation, c.maxElevation)
	c.updateMatrices()
}

func (c *cameraImpl) Zoom(delta float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radius = mgl32.Clamp(c.radius*(1-delta*c.zoomStep), c.minRadius, c.maxRadius)
	c.updateMatrices()
}

func (c *cameraImpl) Frame(diameter float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame(diameter)
	c.updateMatrices()
}

// frame requires c.mu.
func (c *cameraImpl) frame(diameter float32) {
	if diameter <= 0 {
		return
	}
	half := diameter / 2
	c.radius = 1.2 * half / float32(math.Sin(float64(c.fov/2)))
	c.minRadius = half
	c.maxRadius = c.radius * 4
	c.near = c.radius / 100
	c.far = c.maxRadius + diameter
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetTarget(target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.updateMatrices()
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Radius() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.radius
}

func (c *cameraImpl) Azimuth() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.azimuth
}

func (c *cameraImpl) Elevation() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elevation
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

// updateMatrices recomputes the eye from spherical coordinates and rebuilds the matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	cosElev := float32(math.Cos(float64(c.elevation)))
	sinElev := float32(math.Sin(float64(c.elevation)))
	cosAzim := float32(math.Cos(float64(c.azimuth)))
	sinAzim := float32(math.Sin(float64(c.azimuth)))

	c.position = c.target.Add(mgl32.Vec3{
		c.radius * cosElev * sinAzim,
		c.radius * sinElev,
		c.radius * cosElev * cosAzim,
	})
	c.viewMatrix = mgl32.LookAtV(c.position, c.target, c.up)
	c.projectionMatrix = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul4(c.viewMatrix)
}
