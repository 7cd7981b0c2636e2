// Package viewport runs the interactive render loop for one viewer: it draws the viewer's draw list
// every frame with an orbit camera and routes window input to the camera.
package viewport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/camera"
	"github.com/Carmen-Shannon/oxy-figure/engine/profiler"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FrameSource supplies draw lists. A false second return means the source is gone and the loop must end.
type FrameSource interface {
	DrawList() ([]scene.DrawItem, bool)
}

// Window is the part of a platform window the viewport drives.
type Window interface {
	SetUpdateCallback(callback func())
	SetResizeCallback(callback func(width, height int))
	SetScrollCallback(callback func(delta float32))
	SetDragCallback(callback func(dx, dy float32))
	SetKeyDownCallback(callback func(keyCode uint32))
	ProcessMessages()
	Close() error
	Width() int
	Height() int
}

// Renderer draws one frame.
type Renderer interface {
	Resize(width, height int)
	Draw(viewProj mgl32.Mat4, items []scene.DrawItem) error
	Release()
}

// viewport implements the Viewport interface.
// Coordinates the render goroutine with the window message loop.
type viewport struct {
	source   FrameSource
	window   Window
	renderer Renderer
	camera   camera.Camera

	profiler  *profiler.Profiler
	collector *telemetry.Collector
	logger    *zap.Logger

	frameLimit float64
	diameter   float32

	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	quit      chan struct{}
	quitOnce  sync.Once
	startOnce sync.Once
	stopOnce  sync.Once
	looping   atomic.Bool
	frames    atomic.Uint64
}

// Viewport is the render loop of the interactive viewer.
type Viewport interface {
	// Run starts the render goroutine and blocks on the window message loop until the window closes
	// or the frame source goes away, then stops. Must be called from the thread that created the window.
	Run()

	// Start launches the render goroutine without running the message loop. It is a no-op after the first call.
	Start()

	// Stop signals the render goroutine, waits for it, and releases the renderer and window.
	// No frame is drawn after Stop returns. Safe to call multiple times and from any goroutine;
	// while Run is looping the window is closed from the message loop instead.
	Stop()

	// Done is closed once the loop has been asked to quit.
	//
	// Returns:
	//   - <-chan struct{}: the quit channel
	Done() <-chan struct{}

	// Camera returns the orbit camera.
	Camera() camera.Camera

	// Frames returns the number of frames drawn.
	Frames() uint64
}

var _ Viewport = &viewport{}

// NewViewport wires window input to the camera and the renderer.
//
// Parameters:
//   - source: the draw list supplier (usually a viewer.Viewer)
//   - w: the window
//   - r: the renderer drawing into w
//   - options: a variadic list of ViewportBuilderOption functions
//
// Returns:
//   - Viewport: the viewport, not yet running
//   - error: error if a collaborator is missing
func NewViewport(source FrameSource, w Window, r Renderer, options ...ViewportBuilderOption) (Viewport, error) {
	if source == nil || w == nil || r == nil {
		return nil, fmt.Errorf("viewport needs a frame source, window, and renderer")
	}
	v := &viewport{
		source:   source,
		window:   w,
		renderer: r,
		logger:   zap.NewNop(),
		diameter: 3,
		quit:     make(chan struct{}),
	}
	for _, option := range options {
		option(v)
	}
	v.logger = v.logger.With(zap.String("component", "viewport"))
	v.ctx, v.cancel = context.WithCancel(context.Background())

	if v.camera == nil {
		aspect := float32(1)
		if w.Height() > 0 {
			aspect = float32(w.Width()) / float32(w.Height())
		}
		v.camera = camera.NewCamera(camera.WithAspect(aspect), camera.WithDiameter(v.diameter))
	}

	w.SetResizeCallback(func(width, height int) {
		r.Resize(width, height)
		if height > 0 {
			v.camera.SetAspect(float32(width) / float32(height))
		}
	})
	w.SetDragCallback(v.camera.Orbit)
	w.SetScrollCallback(v.camera.Zoom)
	w.SetKeyDownCallback(v.handleKey)
	w.SetUpdateCallback(func() {
		select {
		case <-v.quit:
			if err := w.Close(); err != nil {
				v.logger.Warn("window close failed", zap.Error(err))
			}
		default:
		}
	})
	return v, nil
}

func (v *viewport) Run() {
	v.Start()
	v.looping.Store(true)
	v.window.ProcessMessages()
	v.looping.Store(false)
	v.Stop()
}

func (v *viewport) Start() {
	v.startOnce.Do(func() {
		v.wg.Add(1)
		go v.render()
	})
}

func (v *viewport) Stop() {
	v.stopOnce.Do(func() {
		v.signalQuit()
		v.wg.Wait()
		v.renderer.Release()
		if !v.looping.Load() {
			if err := v.window.Close(); err != nil {
				v.logger.Warn("window close failed", zap.Error(err))
			}
		}
		v.logger.Info("viewport stopped", zap.Uint64("frames", v.frames.Load()))
	})
}

func (v *viewport) Done() <-chan struct{} {
	return v.quit
}

func (v *viewport) Camera() camera.Camera {
	return v.camera
}

func (v *viewport) Frames() uint64 {
	return v.frames.Load()
}

// keyOrbitStep is how many drag pixels one arrow key press is worth.
const keyOrbitStep = 20

func (v *viewport) handleKey(keyCode uint32) {
	switch keyCode {
	case common.KeyLeft:
		v.camera.Orbit(-keyOrbitStep, 0)
	case common.KeyRight:
		v.camera.Orbit(keyOrbitStep, 0)
	case common.KeyUp:
		v.camera.Orbit(0, -keyOrbitStep)
	case common.KeyDown:
		v.camera.Orbit(0, keyOrbitStep)
	case common.KeyEqual, common.KeyKPAdd:
		v.camera.Zoom(1)
	case common.KeyMinus, common.KeyKPSubtract:
		v.camera.Zoom(-1)
	case common.KeyR:
		v.camera.Frame(v.diameter)
	}
}

const (
	failureBackoffStep = 5 * time.Millisecond
	maxFailureBackoff  = 100 * time.Millisecond
)

// backoff waits longer with each consecutive failed frame, up to maxFailureBackoff. It returns false once
// the loop should quit.
func (v *viewport) backoff(failures int) bool {
	t := time.NewTimer(min(time.Duration(failures)*failureBackoffStep, maxFailureBackoff))
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-v.quit:
		return false
	case <-v.ctx.Done():
		return false
	}
}

// signalQuit closes the quit channel once and cancels any pending frame wait.
func (v *viewport) signalQuit() {
	v.quitOnce.Do(func() {
		close(v.quit)
		v.cancel()
	})
}

// render draws frames until quit. Panics end the loop instead of the process.
func (v *viewport) render() {
	defer v.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("render goroutine recovered from panic", zap.Any("panic", r))
			v.signalQuit()
		}
	}()

	var limiter *rate.Limiter
	if v.frameLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(v.frameLimit), 1)
	}
	failures := 0

	for {
		select {
		case <-v.quit:
			return
		default:
		}
		if limiter != nil {
			if err := limiter.Wait(v.ctx); err != nil {
				return
			}
		}

		items, alive := v.source.DrawList()
		if !alive {
			v.logger.Info("frame source gone, stopping render loop")
			v.signalQuit()
			return
		}

		if err := v.renderer.Draw(v.camera.ViewProjectionMatrix(), items); err != nil {
			failures++
			// Surfaces go stale during resizes; only the first failure in a streak is worth a warning.
			if failures == 1 {
				v.logger.Warn("frame failed", zap.Error(err))
			}
			if !v.backoff(failures) {
				return
			}
			continue
		}
		failures = 0

		v.frames.Add(1)
		v.collector.RecordFrame()
		if v.profiler != nil {
			v.profiler.Tick()
		}
	}
}
