package viewer

import (
	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/exporter"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/normalizer"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"go.uber.org/zap"
)

// ViewerBuilderOption is a functional option for configuring a Viewer via NewViewer.
type ViewerBuilderOption func(*viewer)

// WithParts declares the customizable parts bound on every successful load.
//
// Parameters:
//   - parts: the parts in declaration order
//
// Returns:
//   - ViewerBuilderOption: a function that applies the parts option to a viewer
func WithParts(parts ...binder.Part) ViewerBuilderOption {
	return func(v *viewer) {
		v.parts = append([]binder.Part(nil), parts...)
	}
}

// WithLoader sets the asset loader.
func WithLoader(l loader.Loader) ViewerBuilderOption {
	return func(v *viewer) {
		if l != nil {
			v.loader = l
		}
	}
}

// WithNormalizer sets the normalizer, which also fixes the viewer's canonical diameter.
func WithNormalizer(n normalizer.Normalizer) ViewerBuilderOption {
	return func(v *viewer) {
		if n != nil {
			v.normalizer = n
		}
	}
}

// WithExporter sets the exporter.
func WithExporter(e exporter.Exporter) ViewerBuilderOption {
	return func(v *viewer) {
		if e != nil {
			v.exporter = e
		}
	}
}

// WithMaxRetries bounds Retry. Values < 0 are ignored.
//
// Parameters:
//   - n: the number of retries allowed after the first failed attempt
//
// Returns:
//   - ViewerBuilderOption: a function that applies the retry bound to a viewer
func WithMaxRetries(n int) ViewerBuilderOption {
	return func(v *viewer) {
		if n >= 0 {
			v.maxRetries = n
		}
	}
}

// WithOnCustomizable sets the callback fired after a load is bound and parts can be colored.
//
// Parameters:
//   - fn: receives the bindings of the new graph
//
// Returns:
//   - ViewerBuilderOption: a function that applies the callback to a viewer
func WithOnCustomizable(fn func(bindings []binder.Binding)) ViewerBuilderOption {
	return func(v *viewer) {
		v.onCustomizable = fn
	}
}

// WithOnError sets the callback fired for every load or export failure.
//
// Parameters:
//   - fn: receives the *common.Error
//
// Returns:
//   - ViewerBuilderOption: a function that applies the callback to a viewer
func WithOnError(fn func(err error)) ViewerBuilderOption {
	return func(v *viewer) {
		v.onError = fn
	}
}

// WithOnProgress sets the advisory load progress callback.
func WithOnProgress(fn func(p common.Progress)) ViewerBuilderOption {
	return func(v *viewer) {
		v.onProgress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ViewerBuilderOption {
	return func(v *viewer) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithCollector sets the metrics collector.
func WithCollector(c *telemetry.Collector) ViewerBuilderOption {
	return func(v *viewer) {
		v.collector = c
	}
}
