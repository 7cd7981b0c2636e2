package viewport

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/camera"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWindow struct {
	mu       sync.Mutex
	closed   bool
	closes   int
	onUpdate func()
	onResize func(int, int)
	onScroll func(float32)
	onDrag   func(float32, float32)
	onKey    func(uint32)
}

func (w *fakeWindow) SetUpdateCallback(cb func()) { w.onUpdate = cb }
func (w *fakeWindow) SetResizeCallback(cb func(int, int)) { w.onResize = cb }
func (w *fakeWindow) SetScrollCallback(cb func(float32)) { w.onScroll = cb }
func (w *fakeWindow) SetDragCallback(cb func(float32, float32)) { w.onDrag = cb }
func (w *fakeWindow) SetKeyDownCallback(cb func(uint32)) { w.onKey = cb }
func (w *fakeWindow) Width() int { return 800 }
func (w *fakeWindow) Height() int { return 400 }

func (w *fakeWindow) ProcessMessages() {
	for !w.isClosed() {
		w.onUpdate()
		time.Sleep(time.Millisecond)
	}
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.closes++
	return nil
}

func (w *fakeWindow) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

type fakeRenderer struct {
	mu       sync.Mutex
	draws    int
	lastVP   mgl32.Mat4
	lastLen  int
	resized  [2]int
	released int
	err      error
	panics   bool
}

func (r *fakeRenderer) Resize(w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resized = [2]int{w, h}
}

func (r *fakeRenderer) Draw(vp mgl32.Mat4, items []scene.DrawItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panics {
		panic("device lost")
	}
	r.draws++
	r.lastVP = vp
	r.lastLen = len(items)
	return r.err
}

func (r *fakeRenderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released++
}

func (r *fakeRenderer) drawCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draws
}

type fakeSource struct {
	items []scene.DrawItem
	calls atomic.Int64
	// alive for this many calls; 0 = forever
	aliveFor int64
}

func (s *fakeSource) DrawList() ([]scene.DrawItem, bool) {
	n := s.calls.Add(1)
	if s.aliveFor > 0 && n > s.aliveFor {
		return nil, false
	}
	return s.items, true
}

func TestViewport_DrawsSourceWithCamera(t *testing.T) {
	src := &fakeSource{items: make([]scene.DrawItem, 3)}
	w := &fakeWindow{}
	r := &fakeRenderer{}
	vp, err := NewViewport(src, w, r)
	require.NoError(t, err)

	vp.Start()
	assert.Eventually(t, func() bool { return vp.Frames() >= 3 }, time.Second, time.Millisecond)
	vp.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, 3, r.lastLen)
	assert.Equal(t, vp.Camera().ViewProjectionMatrix(), r.lastVP)
	assert.InDelta(t, 2.0, vp.Camera().Aspect(), 1e-6)
}

func TestViewport_StopIsIdempotent(t *testing.T) {
	w := &fakeWindow{}
	r := &fakeRenderer{}
	vp, err := NewViewport(&fakeSource{}, w, r)
	require.NoError(t, err)

	vp.Start()
	assert.Eventually(t, func() bool { return r.drawCount() > 0 }, time.Second, time.Millisecond)
	vp.Stop()
	drawn := r.drawCount()
	vp.Stop()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, drawn, r.drawCount(), "no frame after Stop")
	assert.Equal(t, 1, r.released)
	assert.Equal(t, 1, w.closes)
	select {
	case <-vp.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestViewport_RunEndsWhenSourceGoes(t *testing.T) {
	src := &fakeSource{aliveFor: 5}
	w := &fakeWindow{}
	r := &fakeRenderer{}
	vp, err := NewViewport(src, w, r)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		vp.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 5, r.drawCount())
	assert.True(t, w.isClosed())
	assert.Equal(t, 1, r.released)
}

func TestViewport_InputDrivesCamera(t *testing.T) {
	w := &fakeWindow{}
	r := &fakeRenderer{}
	cam := camera.NewCamera()
	_, err := NewViewport(&fakeSource{}, w, r, WithCamera(cam))
	require.NoError(t, err)

	az, radius := cam.Azimuth(), cam.Radius()
	w.onDrag(10, 0)
	assert.NotEqual(t, az, cam.Azimuth())
	w.onScroll(1)
	assert.Less(t, cam.Radius(), radius)

	w.onResize(300, 100)
	assert.InDelta(t, 3.0, cam.Aspect(), 1e-6)
	assert.Equal(t, [2]int{300, 100}, r.resized)

	w.onResize(300, 0)
	assert.InDelta(t, 3.0, cam.Aspect(), 1e-6)
}

func TestViewport_KeysDriveCamera(t *testing.T) {
	w := &fakeWindow{}
	cam := camera.NewCamera(camera.WithDiameter(3))
	_, err := NewViewport(&fakeSource{}, w, &fakeRenderer{}, WithCamera(cam), WithDiameter(3))
	require.NoError(t, err)
	framed := cam.Radius()

	w.onKey(common.KeyEqual)
	assert.Less(t, cam.Radius(), framed)
	w.onKey(common.KeyR)
	assert.InDelta(t, framed, cam.Radius(), 1e-5)

	az := cam.Azimuth()
	w.onKey(common.KeyRight)
	assert.Less(t, cam.Azimuth(), az)
	w.onKey('Q')
	assert.InDelta(t, framed, cam.Radius(), 1e-5)
}

func TestViewport_FrameLimit(t *testing.T) {
	r := &fakeRenderer{}
	vp, err := NewViewport(&fakeSource{}, &fakeWindow{}, r, WithFrameLimit(50))
	require.NoError(t, err)

	vp.Start()
	time.Sleep(200 * time.Millisecond)
	vp.Stop()

	// 50 fps over 200ms plus the initial burst token
	assert.LessOrEqual(t, r.drawCount(), 14)
	assert.Positive(t, r.drawCount())
}

func TestViewport_DrawErrorsLoggedOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := &fakeRenderer{err: errors.New("surface outdated")}
	vp, err := NewViewport(&fakeSource{}, &fakeWindow{}, r, WithLogger(zap.New(core)))
	require.NoError(t, err)

	vp.Start()
	assert.Eventually(t, func() bool { return r.drawCount() > 5 }, time.Second, time.Millisecond)
	vp.Stop()

	assert.Equal(t, 1, logs.FilterMessage("frame failed").Len())
	assert.Zero(t, vp.Frames())
}

func TestViewport_FailingFramesBackOff(t *testing.T) {
	r := &fakeRenderer{err: errors.New("surface lost")}
	vp, err := NewViewport(&fakeSource{}, &fakeWindow{}, r)
	require.NoError(t, err)

	vp.Start()
	time.Sleep(200 * time.Millisecond)
	vp.Stop()

	// uncapped, but each failure waits 5ms longer than the last
	assert.LessOrEqual(t, r.drawCount(), 12)
	assert.Positive(t, r.drawCount())
}

func TestViewport_RecoversFromPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := &fakeRenderer{panics: true}
	vp, err := NewViewport(&fakeSource{}, &fakeWindow{}, r, WithLogger(zap.New(core)))
	require.NoError(t, err)

	vp.Start()
	select {
	case <-vp.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not quit after panic")
	}
	vp.Stop()
	assert.Equal(t, 1, logs.FilterMessage("render goroutine recovered from panic").Len())
}

func TestNewViewport_RequiresCollaborators(t *testing.T) {
	_, err := NewViewport(nil, &fakeWindow{}, &fakeRenderer{})
	assert.Error(t, err)
	_, err = NewViewport(&fakeSource{}, nil, &fakeRenderer{})
	assert.Error(t, err)
}
