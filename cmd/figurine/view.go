package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/profiler"
	"github.com/Carmen-Shannon/oxy-figure/engine/renderer"
	"github.com/Carmen-Shannon/oxy-figure/engine/viewer"
	"github.com/Carmen-Shannon/oxy-figure/engine/viewport"
	"github.com/Carmen-Shannon/oxy-figure/engine/window"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func runView(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	configPath := configFlag(fs)
	srcFlag := fs.String("src", "", "asset URL or path")
	colorsPath := fs.String("colors", "", "YAML map of part id to color, re-applied when the file changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	src, err := parseSource(*srcFlag)
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Enabled {
		stop := a.serveMetrics(cfg.Metrics.Addr)
		defer stop()
	}

	win, err := window.NewWindow(
		window.WithTitle(fmt.Sprintf("%s - %s", cfg.Viewer.Title, src.Name())),
		window.WithSize(cfg.Viewer.Width, cfg.Viewer.Height),
	)
	if err != nil {
		return err
	}

	present, msaa := renderer.PresentModeUncapped, renderer.MSAAOff
	if cfg.Viewer.VSync {
		present = renderer.PresentModeVSync
	}
	if cfg.Viewer.MSAA {
		msaa = renderer.MSAA4x
	}
	r, err := renderer.NewRenderer(win.SurfaceDescriptor(), win.Width(), win.Height(),
		renderer.WithPresentMode(present),
		renderer.WithMSAA(msaa),
		renderer.WithLogger(a.logger),
	)
	if err != nil {
		_ = win.Close()
		return err
	}

	st := &status{out: stdout}
	v := a.newViewer(
		viewer.WithOnProgress(st.progress),
		viewer.WithOnError(func(err error) {
			a.logger.Error("viewer error", zap.Error(err))
		}),
	)
	defer v.Close()

	vpOpts := []viewport.ViewportBuilderOption{
		viewport.WithFrameLimit(cfg.Viewer.FrameLimit),
		viewport.WithDiameter(float32(cfg.Normalizer.TargetDiameter)),
		viewport.WithCollector(a.collector),
		viewport.WithLogger(a.logger),
	}
	if cfg.Viewer.Profile {
		vpOpts = append(vpOpts, viewport.WithProfiler(profiler.NewProfiler(a.logger)))
	}
	vp, err := viewport.NewViewport(v, win, r, vpOpts...)
	if err != nil {
		r.Release()
		_ = win.Close()
		return err
	}
	v.OnDispose(vp.Stop)

	apply := func(colors map[string]string) {
		if err := v.ApplyCustomizations(colors); err != nil {
			a.logger.Warn("some colors were not applied", zap.Error(err))
		}
	}

	go func() {
		if err := loadWithRetry(ctx, v, src, st, retryBackoff); err != nil {
			return
		}
		colors, err := readColors(*colorsPath)
		if err != nil {
			a.logger.Warn("read colors failed", zap.Error(err))
			return
		}
		apply(colors)
	}()

	if *colorsPath != "" {
		path, err := homedir.Expand(*colorsPath)
		if err != nil {
			return err
		}
		go func() {
			if err := watchColors(ctx, path, apply, a.logger); err != nil {
				a.logger.Warn("colors watch stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			vp.Stop()
		case <-vp.Done():
		}
	}()

	st.printf("drag to orbit, scroll or +/- to zoom, arrows to orbit, R to reset")
	vp.Run()
	st.printf("%d frames", vp.Frames())
	return nil
}

// retryBackoff is the wait before the first retry; each further retry waits one step longer.
const retryBackoff = time.Second

// loadWithRetry loads src and retries retryable failures through the viewer until it succeeds or the
// viewer's retry budget runs out. Every outcome is reported on st.
func loadWithRetry(ctx context.Context, v viewer.Viewer, src loader.Source, st *status, backoff time.Duration) error {
	st.printf("loading %s", src.Name())
	err := <-v.LoadAsync(ctx, src)
	for attempt := 1; err != nil; attempt++ {
		if !common.IsRetryable(err) {
			st.printf("load failed: %v", err)
			return err
		}
		wait := time.Duration(attempt) * backoff
		st.printf("load failed: %v (retrying in %s)", err, wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		err = v.Retry(ctx)
		if common.IsCode(err, common.ErrRetryLimit) {
			st.printf("giving up: %v", err)
			return err
		}
	}
	st.printf("loaded %s", src.Name())
	return nil
}

// status writes progress and messages to the terminal. Progress redraws one line in place; the next
// message starts on a fresh line.
type status struct {
	mu     sync.Mutex
	out    io.Writer
	inLine bool
}

func (s *status) progress(p common.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := p.Fraction(); f >= 0 {
		fmt.Fprintf(s.out, "\rloading %3.0f%%", f*100)
	} else {
		fmt.Fprintf(s.out, "\rloading %d KiB", p.Received>>10)
	}
	s.inLine = true
}

func (s *status) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inLine {
		fmt.Fprintln(s.out)
		s.inLine = false
	}
	fmt.Fprintf(s.out, format+"\n", args...)
}

// watchColors re-reads path whenever it is written and passes the colors to apply. The parent
// directory is watched so editors that replace the file on save are followed.
func watchColors(ctx context.Context, path string, apply func(map[string]string), logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			colors, err := readColors(path)
			if err != nil {
				// a save in progress can leave the file briefly empty or partial
				logger.Debug("colors not readable yet", zap.Error(err))
				continue
			}
			logger.Info("colors changed", zap.Int("parts", len(colors)))
			apply(colors)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}

// serveMetrics exposes the registry on addr and returns a function that shuts the server down.
func (a *app) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
