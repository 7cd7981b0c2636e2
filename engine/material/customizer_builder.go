package material

import (
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"go.uber.org/zap"
)

// CustomizerBuilderOption is a functional option for configuring a Customizer via NewCustomizer.
type CustomizerBuilderOption func(*customizer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CustomizerBuilderOption {
	return func(c *customizer) {
		if logger != nil {
			c.logger = logger.With(zap.String("component", "customizer"))
		}
	}
}

// WithCollector sets the metrics collector recoloring is counted on.
func WithCollector(collector *telemetry.Collector) CustomizerBuilderOption {
	return func(c *customizer) {
		c.collector = collector
	}
}
