package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Profiler tracks frame rate and memory statistics of the render loop and logs them at a fixed interval.
// It is not safe for concurrent use; call Tick from the render goroutine only.
type Profiler struct {
	logger         *zap.Logger
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	now            func() time.Time
}

// ProfilerOption configures a Profiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often stats are logged. Values <= 0 log on every tick.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProfiler creates a new Profiler logging to logger every second.
//
// Parameters:
//   - logger: destination of the frame stats
//   - options: profiler options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger *zap.Logger, options ...ProfilerOption) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Profiler{
		logger:         logger.With(zap.String("component", "profiler")),
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame.
// Logs FPS, heap usage, allocation rate, and GC pauses when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses
	gcCount := p.memStats.NumGC
	var lastPause, maxPause time.Duration
	if gcCount > 0 {
		lastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	p.logger.Info("frame stats",
		zap.Float64("fps", fps),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
		zap.Uint32("gc_count", gcCount),
		zap.Duration("gc_last_pause", lastPause),
		zap.Duration("gc_max_pause", maxPause),
		zap.Float64("sys_mb", sysMB),
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
