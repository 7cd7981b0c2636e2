package exporter

import (
	"time"

	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"go.uber.org/zap"
)

// ExporterBuilderOption is a functional option for configuring an Exporter via NewExporter.
type ExporterBuilderOption func(*exporter)

// WithDisplayTransform exports what the viewer shows: the normalized root is kept and baked into the scene.
// By default the synthetic root is dropped and the asset is written in its authored space, so reloading the
// artifact in another viewing context does not normalize it twice.
//
// Returns:
//   - ExporterBuilderOption: a function that applies the display transform option to an exporter
func WithDisplayTransform() ExporterBuilderOption {
	return func(e *exporter) {
		e.displaySpace = true
	}
}

// WithVerify toggles re-decoding every artifact before it is returned.
//
// Parameters:
//   - enabled: whether artifacts are verified
//
// Returns:
//   - ExporterBuilderOption: a function that applies the verify option to an exporter
func WithVerify(enabled bool) ExporterBuilderOption {
	return func(e *exporter) {
		e.verify = enabled
	}
}

// WithClock sets the source of artifact timestamps.
func WithClock(now func() time.Time) ExporterBuilderOption {
	return func(e *exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ExporterBuilderOption {
	return func(e *exporter) {
		if logger != nil {
			e.logger = logger.With(zap.String("component", "exporter"))
		}
	}
}

// WithCollector sets the metrics collector.
func WithCollector(c *telemetry.Collector) ExporterBuilderOption {
	return func(e *exporter) {
		e.collector = c
	}
}
