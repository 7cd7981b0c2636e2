package thumbnail

import (
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"go.uber.org/zap"
)

// ThumbnailerBuilderOption is a functional option for configuring a Thumbnailer via NewThumbnailer.
type ThumbnailerBuilderOption func(*thumbnailer)

// WithSize sets the output edge length in pixels. Values <= 0 are ignored.
//
// Parameters:
//   - size: the edge length of the square image
//
// Returns:
//   - ThumbnailerBuilderOption: option function to apply
func WithSize(size int) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		if size > 0 {
			t.size = size
		}
	}
}

// WithSupersample renders at factor times the output size before downsampling. 1 disables it.
//
// Parameters:
//   - factor: the supersampling factor, >= 1
//
// Returns:
//   - ThumbnailerBuilderOption: option function to apply
func WithSupersample(factor int) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		if factor >= 1 {
			t.ss = factor
		}
	}
}

// WithFallback sets the default asset tried when the primary one fails.
//
// Parameters:
//   - src: the default asset; the zero Source skips the tier
//
// Returns:
//   - ThumbnailerBuilderOption: option function to apply
func WithFallback(src loader.Source) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		t.fallback = src
	}
}

// WithParts declares the customizable parts colors are applied to.
func WithParts(parts ...binder.Part) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		t.parts = append([]binder.Part(nil), parts...)
	}
}

// WithView sets the camera orbit angles in radians.
func WithView(azimuth, elevation float32) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		t.azimuth = azimuth
		t.elevation = elevation
	}
}

// WithWorkers bounds batch concurrency. Values <= 0 are ignored.
func WithWorkers(n int) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithLoader sets the asset loader shared by every render.
func WithLoader(l loader.Loader) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		if l != nil {
			t.loader = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithCollector records which tier produced each thumbnail.
func WithCollector(c *telemetry.Collector) ThumbnailerBuilderOption {
	return func(t *thumbnailer) {
		t.collector = c
	}
}
