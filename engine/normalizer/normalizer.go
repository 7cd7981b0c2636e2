package normalizer

import (
	"math"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Canonical viewing diameters. Each display context keeps one constant for every asset it shows.
const (
	// CardDiameter frames assets in list cards and thumbnails.
	CardDiameter = 2.0

	// DetailDiameter frames assets in the full detail viewer.
	DetailDiameter = 3.0
)

// FigurineBias lowers a humanoid figurine slightly so tall hair does not push the body out of frame.
const FigurineBias = -0.05

// Transform is the display normalization applied to a graph's root node.
type Transform struct {
	// CenterOffset is the translation that moves the authored bounding box centroid to the origin.
	CenterOffset mgl64.Vec3

	// Scale is the uniform scale; always > 0.
	Scale float64

	// Bias is the vertical offset as a fraction of the authored box height.
	Bias float64

	// TargetDiameter is the canonical diameter the largest box extent is scaled to.
	TargetDiameter float64

	// Bounds is the authored bounding box the transform was derived from.
	Bounds common.AABB
}

// Matrix returns the root transform: translate by CenterOffset, scale, then lift by the bias.
func (t Transform) Matrix() mgl64.Mat4 {
	lift := t.Bias * t.Bounds.Size().Y() * t.Scale
	return mgl64.Translate3D(0, lift, 0).
		Mul4(mgl64.Scale3D(t.Scale, t.Scale, t.Scale)).
		Mul4(mgl64.Translate3D(t.CenterOffset.X(), t.CenterOffset.Y(), t.CenterOffset.Z()))
}

// normalizer is the implementation of the Normalizer interface.
type normalizer struct {
	targetDiameter float64
	bias           float64
	logger         *zap.Logger
}

// Normalizer fits a loaded graph into the canonical viewing sphere by rewriting its root transform.
// Vertex data is never modified.
type Normalizer interface {
	// Normalize computes the union bounds of all visible mesh geometry in authored space and sets the
	// root transform so the bounds are centered at the origin and their largest extent equals the
	// target diameter. Normalizing an already normalized graph yields the same transform.
	//
	// Parameters:
	//   - g: the graph to normalize
	//
	// Returns:
	//   - Transform: the applied transform
	//   - error: DEGENERATE_GEOMETRY when the bounds have no extent, MALFORMED_ASSET when geometry cannot be read
	Normalize(g scene.Graph) (Transform, error)

	// TargetDiameter returns the diameter assets are scaled to.
	//
	// Returns:
	//   - float64: the canonical diameter
	TargetDiameter() float64
}

var _ Normalizer = &normalizer{}

// NewNormalizer creates a new Normalizer with the given options applied.
//
// Parameters:
//   - options: a variadic list of NormalizerBuilderOption functions to configure the Normalizer
//
// Returns:
//   - Normalizer: a new Normalizer, defaulting to DetailDiameter and no bias
func NewNormalizer(options ...NormalizerBuilderOption) Normalizer {
	n := &normalizer{
		targetDiameter: DetailDiameter,
		logger:         zap.NewNop(),
	}
	for _, option := range options {
		option(n)
	}
	return n
}

func (n *normalizer) TargetDiameter() float64 {
	return n.targetDiameter
}

func (n *normalizer) Normalize(g scene.Graph) (Transform, error) {
	if g == nil {
		return Transform{}, common.NewError(common.ErrNoModelLoaded, "no graph to normalize")
	}
	root := g.Root()
	previous := root.Local()
	root.SetLocal(mgl64.Ident4())

	box, err := g.WorldBounds()
	if err != nil {
		root.SetLocal(previous)
		return Transform{}, common.NewError(common.ErrMalformedAsset, "unreadable mesh geometry").WithCause(err).WithRetryable(false)
	}

	maxDim := box.MaxDim()
	scale := n.targetDiameter / maxDim
	if box.IsEmpty() || !box.IsFinite() || !(maxDim > 0) || math.IsInf(scale, 0) || math.IsNaN(scale) {
		root.SetLocal(previous)
		n.logger.Warn("degenerate geometry", zap.String("asset", g.Name()), zap.Float64("max_dim", maxDim))
		return Transform{}, common.Errorf(common.ErrDegenerateGeom, "%s has zero-volume bounds (max extent %g)", g.Name(), maxDim)
	}

	center := box.Center()
	t := Transform{
		CenterOffset:   center.Mul(-1),
		Scale:          scale,
		Bias:           n.bias,
		TargetDiameter: n.targetDiameter,
		Bounds:         box,
	}
	root.SetLocal(t.Matrix())

	n.logger.Debug("graph normalized",
		zap.String("asset", g.Name()),
		zap.Float64("scale", scale),
		zap.Float64("max_dim", maxDim),
		zap.Float64s("center", center[:]),
	)
	return t, nil
}
