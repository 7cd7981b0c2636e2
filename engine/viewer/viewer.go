// Package viewer owns one customization session: a loaded graph, its part bindings, the material registry,
// and the load and export state machines.
package viewer

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/exporter"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/material"
	"github.com/Carmen-Shannon/oxy-figure/engine/normalizer"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxRetries bounds Retry unless overridden with WithMaxRetries.
const DefaultMaxRetries = 3

// viewer is the implementation of the Viewer interface.
type viewer struct {
	id         uuid.UUID
	loader     loader.Loader
	normalizer normalizer.Normalizer
	exporter   exporter.Exporter
	parts      []binder.Part
	maxRetries int

	onCustomizable func([]binder.Binding)
	onError        func(error)
	onProgress     func(common.Progress)

	logger    *zap.Logger
	collector *telemetry.Collector

	mu          sync.Mutex
	generation  atomic.Uint64
	closed      bool
	cancelLoad  context.CancelFunc
	source      loader.Source
	attempts    int
	state       LoadState
	lastErr     error
	graph       scene.Graph
	bindings    binder.Result
	transform   normalizer.Transform
	customizer  material.Customizer
	exportState ExportState
	exporting   atomic.Bool
	disposers   []func()
}

// Viewer is one customization session over one asset at a time. All state is owned by the instance; two
// viewers of the same asset share nothing. Methods are safe for concurrent use and mutations are serialized.
type Viewer interface {
	// ID returns the instance identifier used in logs.
	ID() uuid.UUID

	// LoadAsync starts loading src and returns immediately. Any load already in flight is superseded: its
	// context is canceled and its eventual result is dropped without firing callbacks. On success the graph is
	// normalized, the declared parts are bound and colored with their initial colors, and OnCustomizable fires.
	// On failure OnError fires.
	//
	// Parameters:
	//   - ctx: cancellation for the load
	//   - src: the asset source
	//
	// Returns:
	//   - <-chan error: receives the load result exactly once (ErrSuperseded if a newer load won)
	LoadAsync(ctx context.Context, src loader.Source) <-chan error

	// Load is LoadAsync followed by waiting for its result.
	Load(ctx context.Context, src loader.Source) error

	// Retry reloads the last failed source. It fails with RETRY_LIMIT_EXCEEDED after the configured number of
	// retries and returns the last error unchanged when that error is not retryable.
	//
	// Parameters:
	//   - ctx: cancellation for the load
	//
	// Returns:
	//   - error: the load result
	Retry(ctx context.Context) error

	// State returns the load state.
	State() LoadState

	// Err returns the error of the last failed load or export, if any.
	Err() error

	// Graph returns the ready graph, or nil.
	Graph() scene.Graph

	// Bindings returns the part bindings of the ready graph.
	Bindings() []binder.Binding

	// Diagnostics returns the binding diagnostics of the ready graph.
	Diagnostics() []binder.Diagnostic

	// Normalization returns the transform applied to the ready graph.
	Normalization() (normalizer.Transform, bool)

	// SetPartColor recolors a declared part. A part that bound no nodes is a no-op.
	//
	// Parameters:
	//   - partID: a declared part ID
	//   - color: a hex or CSS color name
	//
	// Returns:
	//   - error: NO_MODEL_LOADED, UNKNOWN_PART, INVALID_COLOR, or VIEWER_CLOSED
	SetPartColor(partID, color string) error

	// ApplyCustomizations applies a partID to color map. Every valid entry is applied; errors are joined.
	ApplyCustomizations(colors map[string]string) error

	// AppliedColor returns the last color applied to a part.
	AppliedColor(partID string) (common.Color, bool)

	// Export serializes the ready graph with the latest customizations. Only one export may run at a time;
	// a concurrent call fails with EXPORT_IN_PROGRESS.
	//
	// Parameters:
	//   - ctx: cancellation for the export
	//
	// Returns:
	//   - *exporter.Artifact: the artifact
	//   - error: NO_MODEL_LOADED, SERIALIZER_INTERNAL_ERROR, EXPORT_IN_PROGRESS, or VIEWER_CLOSED
	Export(ctx context.Context) (*exporter.Artifact, error)

	// ExportAsync starts an export and returns immediately. The in-flight guard is taken before it returns.
	ExportAsync(ctx context.Context) <-chan ExportResult

	// ExportState returns the state of the most recent export.
	ExportState() ExportState

	// DrawList snapshots the current draw items for a renderer.
	//
	// Returns:
	//   - []scene.DrawItem: the items (nil while nothing is ready)
	//   - bool: false once the viewer is closed
	DrawList() ([]scene.DrawItem, bool)

	// Generation returns the load generation token. It increases on every load and on Close.
	Generation() uint64

	// OnDispose registers a release function run by Close in reverse registration order.
	OnDispose(fn func())

	// Close cancels any in-flight load, runs disposers, and invalidates the instance. It is idempotent.
	Close() error
}

var _ Viewer = &viewer{}

// NewViewer creates a new Viewer with the given options applied.
//
// Parameters:
//   - options: a variadic list of ViewerBuilderOption functions
//
// Returns:
//   - Viewer: a new idle Viewer
func NewViewer(options ...ViewerBuilderOption) Viewer {
	v := &viewer{
		id:         uuid.New(),
		maxRetries: DefaultMaxRetries,
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		option(v)
	}
	v.logger = v.logger.With(zap.String("component", "viewer"), zap.Stringer("viewer", v.id))
	if v.loader == nil {
		v.loader = loader.NewLoader(loader.WithLogger(v.logger), loader.WithCollector(v.collector))
	}
	if v.normalizer == nil {
		v.normalizer = normalizer.NewNormalizer(normalizer.WithLogger(v.logger))
	}
	if v.exporter == nil {
		v.exporter = exporter.NewExporter(exporter.WithLogger(v.logger), exporter.WithCollector(v.collector))
	}
	v.collector.ViewerOpened()
	return v
}

func (v *viewer) ID() uuid.UUID {
	return v.id
}

func (v *viewer) Generation() uint64 {
	return v.generation.Load()
}

func (v *viewer) LoadAsync(ctx context.Context, src loader.Source) <-chan error {
	v.mu.Lock()
	v.attempts = 0
	v.mu.Unlock()
	return v.startLoad(ctx, src)
}

func (v *viewer) Load(ctx context.Context, src loader.Source) error {
	return <-v.LoadAsync(ctx, src)
}

func (v *viewer) Retry(ctx context.Context) error {
	v.mu.Lock()
	switch {
	case v.closed:
		v.mu.Unlock()
		return common.NewError(common.ErrViewerClosed, "viewer is closed")
	case v.source.IsZero():
		v.mu.Unlock()
		return common.NewError(common.ErrNoModelLoaded, "nothing to retry")
	case v.state != Failed:
		v.mu.Unlock()
		return nil
	case !common.IsRetryable(v.lastErr):
		err := v.lastErr
		v.mu.Unlock()
		return err
	case v.attempts >= v.maxRetries:
		attempts := v.attempts
		v.mu.Unlock()
		return common.Errorf(common.ErrRetryLimit, "gave up after %d retries", attempts).WithCause(v.Err())
	}
	v.attempts++
	src, attempt := v.source, v.attempts
	v.mu.Unlock()

	v.logger.Info("retrying load", zap.Stringer("source", src), zap.Int("attempt", attempt))
	return <-v.startLoad(ctx, src)
}

// startLoad bumps the generation, cancels the superseded load, and runs the new one on its own goroutine.
func (v *viewer) startLoad(ctx context.Context, src loader.Source) <-chan error {
	done := make(chan error, 1)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		done <- common.NewError(common.ErrViewerClosed, "viewer is closed")
		close(done)
		return done
	}
	if v.cancelLoad != nil {
		v.cancelLoad()
	}
	gen := v.generation.Add(1)
	loadCtx, cancel := context.WithCancel(ctx)
	v.cancelLoad = cancel
	v.source = src
	v.state = Loading
	v.lastErr = nil
	v.graph = nil
	v.customizer = nil
	v.bindings = binder.Result{}
	v.mu.Unlock()

	go func() {
		defer cancel()
		done <- v.run(loadCtx, gen, src)
		close(done)
	}()
	return done
}

// run loads, normalizes, and binds, then publishes the result if gen is still current.
func (v *viewer) run(ctx context.Context, gen uint64, src loader.Source) error {
	logger := v.logger.With(zap.Uint64("generation", gen), zap.Stringer("source", src))

	g, t, res, err := v.prepare(ctx, gen, src)

	v.mu.Lock()
	if v.closed || v.generation.Load() != gen {
		closed := v.closed
		v.mu.Unlock()
		logger.Debug("stale load result dropped", zap.Bool("closed", closed))
		if closed {
			return common.NewError(common.ErrViewerClosed, "viewer closed during load")
		}
		return ErrSuperseded
	}

	if err != nil {
		v.state = Failed
		v.lastErr = err
		v.mu.Unlock()
		logger.Warn("load failed", zap.Error(err))
		if v.current(gen) {
			v.notifyError(err)
		}
		return err
	}

	v.graph = g
	v.transform = t
	v.bindings = res
	v.customizer = material.NewCustomizer(g, material.WithLogger(v.logger), material.WithCollector(v.collector))
	for _, p := range v.parts {
		if p.Color == (common.Color{}) {
			continue
		}
		if b, ok := res.Binding(p.ID); ok {
			if cerr := v.customizer.SetPartColor(b, p.Color); cerr != nil {
				logger.Warn("initial part color not applied", zap.String("part", p.ID), zap.Error(cerr))
			}
		}
	}
	v.state = Ready
	v.attempts = 0
	bindings := slices.Clone(res.Bindings)
	v.mu.Unlock()

	for _, d := range res.Diagnostics {
		v.collector.RecordDiagnostic(string(d.Kind))
		logger.Warn("binding diagnostic", zap.String("kind", string(d.Kind)), zap.String("detail", d.String()))
	}
	logger.Info("viewer ready", zap.Int("parts", len(bindings)), zap.Float64("scale", t.Scale))
	if v.onCustomizable != nil && v.current(gen) {
		v.onCustomizable(bindings)
	}
	return nil
}

// prepare loads, normalizes, and binds src. A panic while decoding the asset is reported as MALFORMED_ASSET.
func (v *viewer) prepare(ctx context.Context, gen uint64, src loader.Source) (g scene.Graph, t normalizer.Transform, res binder.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("load recovered from panic", zap.Stringer("source", src), zap.Any("panic", r))
			g, t, res = nil, normalizer.Transform{}, binder.Result{}
			err = common.Errorf(common.ErrMalformedAsset, "asset could not be decoded: %v", r).WithRetryable(false)
		}
	}()

	g, err = v.loader.Load(ctx, src, func(p common.Progress) {
		if v.onProgress != nil && v.generation.Load() == gen {
			v.onProgress(p)
		}
	})
	if err != nil {
		return nil, t, res, err
	}
	if t, err = v.normalizer.Normalize(g); err != nil {
		return nil, t, res, err
	}
	return g, t, binder.Bind(g, v.parts), nil
}

// current reports whether gen is still the live load of an open viewer. Callbacks run without v.mu held,
// so a Close or newer load can still land after this check.
func (v *viewer) current(gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed && v.generation.Load() == gen
}

func (v *viewer) notifyError(err error) {
	if v.onError != nil {
		v.onError(err)
	}
}

func (v *viewer) State() LoadState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *viewer) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

func (v *viewer) Graph() scene.Graph {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.graph
}

func (v *viewer) Bindings() []binder.Binding {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.bindings.Bindings)
}

func (v *viewer) Diagnostics() []binder.Diagnostic {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.bindings.Diagnostics)
}

func (v *viewer) Normalization() (normalizer.Transform, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transform, v.graph != nil
}

func (v *viewer) SetPartColor(partID, color string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setPartColor(partID, color)
}

// setPartColor requires v.mu.
func (v *viewer) setPartColor(partID, color string) error {
	if v.closed {
		return common.NewError(common.ErrViewerClosed, "viewer is closed")
	}
	if v.graph == nil {
		return common.NewError(common.ErrNoModelLoaded, "no model loaded")
	}
	c, err := common.ParseColor(color)
	if err != nil {
		return err
	}
	b, ok := v.bindings.Binding(partID)
	if !ok {
		return common.Errorf(common.ErrUnknownPart, "part %q is not declared", partID)
	}
	if b.Empty() {
		v.logger.Debug("part has no nodes, color ignored", zap.String("part", partID))
		return nil
	}
	return v.customizer.SetPartColor(b, c)
}

func (v *viewer) ApplyCustomizations(colors map[string]string) error {
	ids := make([]string, 0, len(colors))
	for id := range colors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	v.mu.Lock()
	defer v.mu.Unlock()
	var errs []error
	for _, id := range ids {
		if err := v.setPartColor(id, colors[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v *viewer) AppliedColor(partID string) (common.Color, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.customizer == nil {
		return common.Color{}, false
	}
	return v.customizer.AppliedColor(partID)
}

func (v *viewer) Export(ctx context.Context) (*exporter.Artifact, error) {
	if !v.exporting.CompareAndSwap(false, true) {
		return nil, common.NewError(common.ErrExportInProgress, "an export is already running")
	}
	defer v.exporting.Store(false)
	return v.export(ctx)
}

func (v *viewer) ExportAsync(ctx context.Context) <-chan ExportResult {
	out := make(chan ExportResult, 1)
	if !v.exporting.CompareAndSwap(false, true) {
		out <- ExportResult{Err: common.NewError(common.ErrExportInProgress, "an export is already running")}
		close(out)
		return out
	}
	go func() {
		defer v.exporting.Store(false)
		art, err := v.export(ctx)
		out <- ExportResult{Artifact: art, Err: err}
		close(out)
	}()
	return out
}

// export holds the mutex for the whole serialization so it sees the latest customizations and no recolor
// interleaves with it.
func (v *viewer) export(ctx context.Context) (*exporter.Artifact, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, common.NewError(common.ErrViewerClosed, "viewer is closed")
	}
	v.exportState = Exporting
	art, err := v.exporter.Export(ctx, v.graph)
	if err != nil {
		v.exportState = ExportFailed
		v.lastErr = err
	} else {
		v.exportState = ExportDone
	}
	v.mu.Unlock()

	if err != nil {
		v.logger.Warn("export failed", zap.Error(err))
		v.notifyError(err)
		return nil, err
	}
	return art, nil
}

func (v *viewer) ExportState() ExportState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exportState
}

func (v *viewer) DrawList() ([]scene.DrawItem, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, false
	}
	if v.graph == nil {
		return nil, true
	}
	items, err := v.graph.DrawList()
	if err != nil {
		v.logger.Warn("draw list unavailable", zap.Error(err))
		return nil, true
	}
	return items, true
}

func (v *viewer) OnDispose(fn func()) {
	v.mu.Lock()
	if !v.closed {
		v.disposers = append(v.disposers, fn)
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()
	fn()
}

func (v *viewer) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.generation.Add(1)
	if v.cancelLoad != nil {
		v.cancelLoad()
	}
	disposers := v.disposers
	v.disposers = nil
	v.graph = nil
	v.customizer = nil
	v.bindings = binder.Result{}
	v.state = Idle
	v.mu.Unlock()

	for i := len(disposers) - 1; i >= 0; i-- {
		disposers[i]()
	}
	v.collector.ViewerClosed()
	v.logger.Info("viewer closed", zap.Int("disposers", len(disposers)))
	return nil
}
