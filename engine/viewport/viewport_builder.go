package viewport

import (
	"github.com/Carmen-Shannon/oxy-figure/engine/camera"
	"github.com/Carmen-Shannon/oxy-figure/engine/profiler"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"go.uber.org/zap"
)

// ViewportBuilderOption is a functional option for configuring a Viewport.
type ViewportBuilderOption func(*viewport)

// WithFrameLimit caps the render loop in frames per second. Pass 0 to uncap it (default); the
// renderer's present mode then paces frames.
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - ViewportBuilderOption: option function to apply
func WithFrameLimit(fps float64) ViewportBuilderOption {
	return func(v *viewport) {
		if fps < 0 {
			fps = 0
		}
		v.frameLimit = fps
	}
}

// WithDiameter frames the default camera around content of the given diameter.
//
// Parameters:
//   - diameter: the diameter the viewer normalizes to
//
// Returns:
//   - ViewportBuilderOption: option function to apply
func WithDiameter(diameter float32) ViewportBuilderOption {
	return func(v *viewport) {
		if diameter > 0 {
			v.diameter = diameter
		}
	}
}

// WithCamera replaces the default orbit camera.
func WithCamera(c camera.Camera) ViewportBuilderOption {
	return func(v *viewport) {
		v.camera = c
	}
}

// WithProfiler logs frame stats from the render goroutine.
func WithProfiler(p *profiler.Profiler) ViewportBuilderOption {
	return func(v *viewport) {
		v.profiler = p
	}
}

// WithCollector counts drawn frames.
func WithCollector(c *telemetry.Collector) ViewportBuilderOption {
	return func(v *viewport) {
		v.collector = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ViewportBuilderOption {
	return func(v *viewport) {
		if logger != nil {
			v.logger = logger
		}
	}
}
