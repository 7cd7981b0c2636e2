package loader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a whole load, including external resources, unless overridden with WithTimeout.
const DefaultTimeout = 30 * time.Second

var tracer = telemetry.Tracer("engine/loader")

// loader is the implementation of the Loader interface.
type loader struct {
	backend   loaderBackend
	fetcher   *fetcher
	timeout   time.Duration
	logger    *zap.Logger
	collector *telemetry.Collector
}

// Loader turns an asset source into a scene graph. It decodes both glTF containers (GLB and
// JSON with external or embedded buffers) and classifies every failure into the loader error codes.
// Each call returns a freshly decoded graph; graphs are never shared between callers.
type Loader interface {
	// Load fetches and decodes an asset. The whole operation is bounded by the loader timeout;
	// exceeding it fails with LOAD_TIMEOUT even while bytes are still arriving.
	//
	// Parameters:
	//   - ctx: cancellation for the load
	//   - src: the asset source
	//   - progress: optional advisory progress callback (may be nil)
	//
	// Returns:
	//   - scene.Graph: the decoded, single-rooted graph
	//   - error: a *common.Error with code LOAD_TIMEOUT, LOAD_NETWORK_ERROR, EMPTY_ASSET, or MALFORMED_ASSET
	Load(ctx context.Context, src Source, progress ProgressFunc) (scene.Graph, error)

	// Timeout returns the configured load timeout.
	//
	// Returns:
	//   - time.Duration: the timeout applied to each Load
	Timeout() time.Duration
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the glTF backend and options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		backend: newGLTFLoaderBackend(),
		fetcher: newFetcher(),
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(l)
	}
	l.logger = l.logger.With(zap.String("component", "loader"))
	l.fetcher.logger = l.logger
	l.logger.Debug("loader configured", zap.Duration("timeout", l.timeout), zap.Stringer("fetcher", l.fetcher))
	return l
}

func (l *loader) Timeout() time.Duration {
	return l.timeout
}

func (l *loader) Load(ctx context.Context, src Source, progress ProgressFunc) (scene.Graph, error) {
	ctx, span := tracer.Start(ctx, "loader.load", trace.WithAttributes(
		attribute.String("source.kind", src.Kind.String()),
		attribute.String("source.location", src.Location),
	))
	defer span.End()

	start := time.Now()
	loadCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	g, size, err := l.load(loadCtx, src, progress)
	if err != nil {
		err = classify(loadCtx, l.timeout, err)
		code := string(common.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		l.collector.RecordLoad(src.Kind.String(), code, time.Since(start), size)
		l.logger.Warn("asset load failed",
			zap.Stringer("source", src),
			zap.String("code", code),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	st := g.Stats()
	span.SetAttributes(attribute.Int("asset.mesh_nodes", st.MeshNodes), attribute.Int("asset.bytes", size))
	l.collector.RecordLoad(src.Kind.String(), telemetry.ResultOK, time.Since(start), size)
	l.logger.Info("asset loaded",
		zap.Stringer("source", src),
		zap.Int("bytes", size),
		zap.Int("mesh_nodes", st.MeshNodes),
		zap.Int("skins", st.Skins),
		zap.Int("animations", st.Animations),
		zap.Duration("elapsed", time.Since(start)),
	)
	return g, nil
}

// load reads, decodes, and wraps the asset. Errors are classified by the caller.
func (l *loader) load(ctx context.Context, src Source, progress ProgressFunc) (scene.Graph, int, error) {
	data, resolver, err := l.read(ctx, src, progress)
	if err != nil {
		return nil, 0, err
	}
	if len(data) == 0 {
		return nil, 0, common.Errorf(common.ErrEmptyAsset, "%s is empty", src.Name())
	}

	doc, err := l.backend.Decode(data, &resolverFS{ctx: ctx, resolver: resolver})
	if err != nil {
		return nil, len(data), err
	}
	if err := ctx.Err(); err != nil {
		return nil, len(data), err
	}

	g, err := scene.NewGraph(doc, scene.WithName(src.Name()), scene.WithResolver(resolver))
	if err != nil {
		if errors.Is(err, scene.ErrNoNodes) {
			return nil, len(data), common.Errorf(common.ErrEmptyAsset, "%s has no nodes", src.Name())
		}
		return nil, len(data), common.NewError(common.ErrMalformedAsset, "invalid node hierarchy").WithCause(err)
	}
	if len(g.MeshNodes()) == 0 {
		return nil, len(data), common.Errorf(common.ErrEmptyAsset, "%s has no mesh nodes in its default scene", src.Name())
	}
	return g, len(data), nil
}

// read returns the asset bytes and the resolver for resources relative to it.
func (l *loader) read(ctx context.Context, src Source, progress ProgressFunc) ([]byte, scene.Resolver, error) {
	switch src.Kind {
	case SourceURL:
		base, err := url.Parse(src.Location)
		if err != nil {
			return nil, nil, common.Errorf(common.ErrLoadNetwork, "invalid url %q", src.Location).WithCause(err).WithRetryable(false)
		}
		data, err := l.fetcher.Fetch(ctx, src.Location, progress)
		if err != nil {
			return nil, nil, err
		}
		return data, &urlResolver{base: base, fetcher: l.fetcher}, nil
	case SourceFile:
		data, err := os.ReadFile(src.Location)
		if err != nil {
			return nil, nil, common.Errorf(common.ErrLoadNetwork, "read %s", src.Location).WithCause(err)
		}
		report(progress, int64(len(data)), int64(len(data)))
		return data, &fileResolver{dir: filepath.Dir(src.Location)}, nil
	case SourceBytes:
		report(progress, int64(len(src.Data)), int64(len(src.Data)))
		return src.Data, nil, nil
	}
	return nil, nil, common.Errorf(common.ErrInvalidSourceKind, "unknown source kind %d", src.Kind)
}

// classify maps any load failure onto the loader error codes. A deadline on the load context wins over
// whatever error the interrupted step produced.
func classify(ctx context.Context, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return common.Errorf(common.ErrLoadTimeout, "load exceeded %s", timeout).WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return common.NewError(common.ErrLoadNetwork, "load canceled").WithCause(err)
	}
	var ce *common.Error
	if errors.As(err, &ce) {
		return err
	}
	return common.NewError(common.ErrMalformedAsset, fmt.Sprintf("undecodable asset: %v", err)).WithCause(err)
}
