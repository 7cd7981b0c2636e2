package normalizer

import "go.uber.org/zap"

// NormalizerBuilderOption is a functional option for configuring a Normalizer via NewNormalizer.
type NormalizerBuilderOption func(*normalizer)

// WithTargetDiameter sets the canonical diameter. Values <= 0 are ignored.
//
// Parameters:
//   - d: the diameter, usually CardDiameter or DetailDiameter
//
// Returns:
//   - NormalizerBuilderOption: a function that applies the diameter option to a normalizer
func WithTargetDiameter(d float64) NormalizerBuilderOption {
	return func(n *normalizer) {
		if d > 0 {
			n.targetDiameter = d
		}
	}
}

// WithBias sets the vertical framing bias as a fraction of the box height. Negative values lower the asset.
//
// Parameters:
//   - bias: the fraction, e.g. FigurineBias
//
// Returns:
//   - NormalizerBuilderOption: a function that applies the bias option to a normalizer
func WithBias(bias float64) NormalizerBuilderOption {
	return func(n *normalizer) {
		n.bias = bias
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) NormalizerBuilderOption {
	return func(n *normalizer) {
		if logger != nil {
			n.logger = logger.With(zap.String("component", "normalizer"))
		}
	}
}
