package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraBuilderOption is a functional option for configuring a Camera via NewCamera.
type CameraBuilderOption func(*cameraImpl)

// WithFov sets the vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if fov > 0 {
			c.fov = fov
		}
	}
}

// WithAspect sets the initial aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if aspect > 0 {
			c.aspect = aspect
		}
	}
}

// WithDiameter frames content of the given diameter. Apply after WithFov.
//
// Parameters:
//   - diameter: the canonical diameter the scene was normalized to
//
// Returns:
//   - CameraBuilderOption: a function that frames the camera
func WithDiameter(diameter float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.frame(diameter)
	}
}

// WithTarget sets the orbit pivot.
func WithTarget(target mgl32.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.target = target
	}
}

// WithOrbit sets the initial orbit angles in radians. The elevation is clamped to the elevation limits.
//
// Parameters:
//   - azimuth: horizontal angle (0 = looking down -Z from +Z)
//   - elevation: vertical angle from the horizontal plane
//
// Returns:
//   - CameraBuilderOption: a function that sets the orbit angles
func WithOrbit(azimuth, elevation float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.azimuth = azimuth
		c.elevation = mgl32.Clamp(elevation, c.minElevation, c.maxElevation)
	}
}

// WithSensitivity sets the drag rotation rate in radians per pixel.
func WithSensitivity(radiansPerPixel float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if radiansPerPixel > 0 {
			c.sensitivity = radiansPerPixel
		}
	}
}

// WithZoomStep sets the fraction of the current radius moved per scroll unit.
func WithZoomStep(step float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if step > 0 && step < 1 {
			c.zoomStep = step
		}
	}
}
