package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"github.com/google/uuid"
	"github.com/qmuntal/gltf"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var (
	errMeshCountMismatch = errors.New("re-decoded artifact lost mesh nodes")
	errExternalReference = errors.New("artifact still references an external resource")
)

var tracer = telemetry.Tracer("engine/exporter")

// exporter is the implementation of the Exporter interface.
type exporter struct {
	displaySpace bool
	verify       bool
	now          func() time.Time
	logger       *zap.Logger
	collector    *telemetry.Collector
}

// Exporter serializes a graph into a self-contained GLB artifact. Export never mutates the graph: customized
// materials, skins, and animations are written from a copy of the document.
type Exporter interface {
	// Export writes the graph as GLB with matrix transforms, visible meshes only, and every buffer and image
	// embedded in the binary chunk.
	//
	// Parameters:
	//   - ctx: cancellation for resolving external images
	//   - g: the graph to export; nil fails with NO_MODEL_LOADED
	//
	// Returns:
	//   - *Artifact: the artifact
	//   - error: a *common.Error with code NO_MODEL_LOADED or SERIALIZER_INTERNAL_ERROR
	Export(ctx context.Context, g scene.Graph) (*Artifact, error)
}

var _ Exporter = &exporter{}

// NewExporter creates a new Exporter with the given options applied.
//
// Parameters:
//   - options: a variadic list of ExporterBuilderOption functions
//
// Returns:
//   - Exporter: a new Exporter that writes authored space and verifies its output
func NewExporter(options ...ExporterBuilderOption) Exporter {
	e := &exporter{
		verify: true,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *exporter) Export(ctx context.Context, g scene.Graph) (*Artifact, error) {
	if g == nil {
		return nil, common.NewError(common.ErrNoModelLoaded, "export requested before a model was loaded")
	}

	ctx, span := tracer.Start(ctx, "exporter.export")
	defer span.End()
	span.SetAttributes(attribute.String("asset", g.Name()), attribute.Bool("display_space", e.displaySpace))

	start := time.Now()
	data, meshNodes, err := e.export(ctx, g)
	if err != nil {
		cerr := common.NewError(common.ErrSerializer, err.Error()).WithCause(err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(common.ErrSerializer))
		e.collector.RecordExport(string(common.ErrSerializer), time.Since(start), 0)
		e.logger.Error("export failed", zap.String("asset", g.Name()), zap.Error(err))
		return nil, cerr
	}

	art := &Artifact{
		ID:          uuid.New(),
		Bytes:       data,
		ContentType: common.ContentTypeGLB,
		SizeBytes:   len(data),
		CreatedAt:   e.now().UTC(),
	}
	span.SetAttributes(attribute.Int("artifact.bytes", art.SizeBytes), attribute.String("artifact.id", art.ID.String()))
	e.collector.RecordExport(telemetry.ResultOK, time.Since(start), art.SizeBytes)
	e.logger.Info("artifact exported",
		zap.String("asset", g.Name()),
		zap.Stringer("artifact", art.ID),
		zap.Int("bytes", art.SizeBytes),
		zap.Int("mesh_nodes", meshNodes),
		zap.Duration("elapsed", time.Since(start)),
	)
	return art, nil
}

// export builds, encodes, and verifies the GLB. Errors are wrapped by the caller.
func (e *exporter) export(ctx context.Context, g scene.Graph) ([]byte, int, error) {
	doc := snapshot(g, e.displaySpace)
	if err := packBuffers(ctx, doc, g.Resolver()); err != nil {
		return nil, 0, fmt.Errorf("pack buffers: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	data, err := encode(doc)
	if err != nil {
		return nil, 0, fmt.Errorf("encode: %w", err)
	}

	want := visibleMeshNodes(doc)
	if e.verify {
		if err := verify(data, want); err != nil {
			return nil, 0, err
		}
	}
	return data, want, nil
}

// encode writes doc as GLB. A panic inside the encoder is returned as an error.
func encode(doc *gltf.Document) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encoder panic: %v", r)
		}
	}()
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// verify decodes the artifact again and checks that it is self-contained and kept every visible mesh node.
func verify(data []byte, wantMeshNodes int) error {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return fmt.Errorf("re-decode: %w", err)
	}
	for i, b := range doc.Buffers {
		if b.URI != "" {
			return fmt.Errorf("%w: buffer %d", errExternalReference, i)
		}
	}
	for i, img := range doc.Images {
		if img.URI != "" {
			return fmt.Errorf("%w: image %d", errExternalReference, i)
		}
	}
	if got := visibleMeshNodes(doc); got != wantMeshNodes {
		return fmt.Errorf("%w: %d of %d", errMeshCountMismatch, got, wantMeshNodes)
	}
	return nil
}
