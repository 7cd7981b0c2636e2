// Package thumbnail renders figurine card images without a GPU. A render walks a fallback chain:
// the requested asset, then a configured default asset, then a procedural cube, so a card always
// gets an image.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/camera"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/normalizer"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"
	"github.com/Carmen-Shannon/oxy-figure/engine/viewer"

	"github.com/HugoSmits86/nativewebp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.Tracer("engine/thumbnail")

// Tier identifies which step of the fallback chain produced a thumbnail.
type Tier int

const (
	TierPrimary Tier = iota
	TierFallback
	TierPlaceholder
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierFallback:
		return "fallback"
	case TierPlaceholder:
		return "placeholder"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// ContentType is the media type of encoded thumbnails.
const ContentType = "image/webp"

const (
	DefaultSize        = 256
	DefaultSupersample = 2
)

// Result is one rendered thumbnail.
type Result struct {
	Tier  Tier
	Image *image.NRGBA

	// WebP holds the encoded image.
	WebP []byte

	// Triangles counts the triangles that reached the image.
	Triangles int

	// Failures lists why earlier tiers were skipped, in chain order.
	Failures []error
}

// thumbnailer is the implementation of the Thumbnailer interface.
type thumbnailer struct {
	loader    loader.Loader
	parts     []binder.Part
	fallback  loader.Source
	diameter  float64
	size      int
	ss        int
	azimuth   float32
	elevation float32
	workers   int
	light     lightRig

	logger    *zap.Logger
	collector *telemetry.Collector
}

// Thumbnailer renders WebP thumbnails for list cards.
type Thumbnailer interface {
	// Render produces a thumbnail for src with the given part colors applied.
	// Colors for unknown parts or invalid colors are logged and skipped.
	//
	// Parameters:
	//   - ctx: cancels loading; a canceled context aborts the chain instead of falling back
	//   - src: the primary asset
	//   - colors: part id to color string
	//
	// Returns:
	//   - Result: the thumbnail and the tier that produced it
	//   - error: ctx.Err() on cancellation, or an encoding failure
	Render(ctx context.Context, src loader.Source, colors map[string]string) (Result, error)

	// RenderBatch renders every job on a bounded worker pool.
	//
	// Parameters:
	//   - ctx: shared by all jobs
	//   - jobs: the jobs to render
	//
	// Returns:
	//   - []JobResult: one result per job, in job order
	RenderBatch(ctx context.Context, jobs []Job) []JobResult

	// Size returns the edge length of produced images in pixels.
	Size() int
}

var _ Thumbnailer = &thumbnailer{}

// NewThumbnailer creates a Thumbnailer.
//
// Parameters:
//   - options: a variadic list of ThumbnailerBuilderOption functions
//
// Returns:
//   - Thumbnailer: the thumbnailer
func NewThumbnailer(options ...ThumbnailerBuilderOption) Thumbnailer {
	t := &thumbnailer{
		diameter:  normalizer.CardDiameter,
		size:      DefaultSize,
		ss:        DefaultSupersample,
		azimuth:   0.5,
		elevation: 0.25,
		workers:   4,
		light:     defaultLightRig(),
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(t)
	}
	t.logger = t.logger.With(zap.String("component", "thumbnail"))
	if t.loader == nil {
		t.loader = loader.NewLoader(loader.WithLogger(t.logger), loader.WithCollector(t.collector))
	}
	return t
}

func (t *thumbnailer) Size() int {
	return t.size
}

func (t *thumbnailer) Render(ctx context.Context, src loader.Source, colors map[string]string) (Result, error) {
	ctx, span := tracer.Start(ctx, "thumbnail.render", trace.WithAttributes(attribute.String("source", src.String())))
	defer span.End()

	start := time.Now()
	placeholder, err := placeholderSource()
	if err != nil {
		return Result{}, err
	}
	chain := []struct {
		tier Tier
		src  loader.Source
	}{
		{TierPrimary, src},
		{TierFallback, t.fallback},
		{TierPlaceholder, placeholder},
	}

	var failures []error
	for _, step := range chain {
		if step.src.IsZero() {
			continue
		}
		items, err := t.drawList(ctx, step.src, colors)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			t.logger.Warn("thumbnail tier failed", zap.Stringer("tier", step.tier), zap.Stringer("source", step.src), zap.Error(err))
			failures = append(failures, fmt.Errorf("%s %s: %w", step.tier, step.src, err))
			continue
		}

		img, triangles := t.rasterize(items)
		var buf bytes.Buffer
		if err := nativewebp.Encode(&buf, img, nil); err != nil {
			return Result{}, fmt.Errorf("webp encode: %w", err)
		}
		span.SetAttributes(attribute.String("thumbnail.tier", step.tier.String()), attribute.Int("thumbnail.bytes", buf.Len()))
		t.collector.RecordThumbnail(step.tier.String())
		t.logger.Debug("thumbnail rendered",
			zap.Stringer("tier", step.tier),
			zap.Int("triangles", triangles),
			zap.Int("bytes", buf.Len()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return Result{Tier: step.tier, Image: img, WebP: buf.Bytes(), Triangles: triangles, Failures: failures}, nil
	}
	err = errors.Join(failures...)
	span.RecordError(err)
	span.SetStatus(codes.Error, "every tier failed")
	return Result{Failures: failures}, err
}

// drawList runs src through a short-lived viewer so thumbnails see exactly what the detail view sees.
func (t *thumbnailer) drawList(ctx context.Context, src loader.Source, colors map[string]string) ([]scene.DrawItem, error) {
	v := viewer.NewViewer(
		viewer.WithLoader(t.loader),
		viewer.WithNormalizer(normalizer.NewNormalizer(normalizer.WithTargetDiameter(t.diameter), normalizer.WithLogger(t.logger))),
		viewer.WithParts(t.parts...),
		viewer.WithLogger(t.logger),
		viewer.WithCollector(t.collector),
	)
	defer v.Close()

	if err := v.Load(ctx, src); err != nil {
		return nil, err
	}
	if err := v.ApplyCustomizations(colors); err != nil {
		t.logger.Warn("thumbnail colors partially applied", zap.Stringer("source", src), zap.Error(err))
	}
	items, _ := v.DrawList()
	if len(items) == 0 {
		return nil, common.Errorf(common.ErrEmptyAsset, "%s has nothing to draw", src)
	}
	return items, nil
}

// rasterize renders items supersampled and scales the result down to the card size.
func (t *thumbnailer) rasterize(items []scene.DrawItem) (*image.NRGBA, int) {
	cam := camera.NewCamera(
		camera.WithAspect(1),
		camera.WithDiameter(float32(t.diameter)),
		camera.WithOrbit(t.azimuth, t.elevation),
	)
	viewProj := common.Mat4ToFloat64(cam.ViewProjectionMatrix())

	fb := newFrameBuffer(t.size * t.ss)
	triangles := 0
	for _, it := range items {
		triangles += fb.drawItem(viewProj, it, t.light)
	}
	return downsample(fb.color, t.size), triangles
}
