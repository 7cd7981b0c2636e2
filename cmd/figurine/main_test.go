package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
	"github.com/Carmen-Shannon/oxy-figure/engine/testasset"
	"github.com/Carmen-Shannon/oxy-figure/engine/thumbnail"
	"github.com/Carmen-Shannon/oxy-figure/engine/viewer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testConfig = `
log:
  level: error
parts:
  - id: hair
    color: "#3b2a1a"
  - id: shirt
    color: navy
  - id: cape
`

// fixture writes the figurine GLB and a config into a temp dir.
func fixture(t *testing.T) (dir, glb, cfg string) {
	t.Helper()
	dir = t.TempDir()
	glb = filepath.Join(dir, "hero.glb")
	cfg = filepath.Join(dir, "figurine.yaml")
	require.NoError(t, os.WriteFile(glb, testasset.Wrap(testasset.Figurine(testasset.FigurineOptions{})).GLB(), 0o600))
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o600))
	return dir, glb, cfg
}

func TestRunInspect(t *testing.T) {
	_, glb, cfg := fixture(t)
	var out bytes.Buffer
	require.NoError(t, runInspect(context.Background(), []string{"-config", cfg, "-src", glb}, &out))

	s := out.String()
	assert.Contains(t, s, "5 meshes")
	assert.Contains(t, s, "#3b2a1a")
	assert.Contains(t, s, "[Hair_Mesh]")
	assert.Contains(t, s, "[Shirt]")
	assert.Contains(t, s, "(unbound)")
	assert.Contains(t, s, "UNMATCHED_PART cape")
}

func TestRunExport_ToFile(t *testing.T) {
	dir, glb, cfg := fixture(t)
	colors := filepath.Join(dir, "colors.yaml")
	require.NoError(t, os.WriteFile(colors, []byte("shirt: \"#ff0000\"\nwings: gold\n"), 0o600))
	out := filepath.Join(dir, "out.glb")

	var stdout bytes.Buffer
	err := runExport(context.Background(), []string{"-config", cfg, "-src", glb, "-colors", colors, "-out", out}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "wrote "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("glTF")))
}

func TestRunExport_Flags(t *testing.T) {
	_, glb, _ := fixture(t)
	err := runExport(context.Background(), []string{"-src", glb}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "exactly one of -out or -put")

	err = runExport(context.Background(), []string{"-src", glb, "-out", "a.glb", "-put", "http://x"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "exactly one of -out or -put")

	err = runExport(context.Background(), []string{"-out", "a.glb"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "-src is required")
}

func TestReadColors(t *testing.T) {
	colors, err := readColors("")
	require.NoError(t, err)
	assert.Nil(t, colors)

	path := filepath.Join(t.TempDir(), "colors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hair: navy\nshirt: \"#fff\"\n"), 0o600))
	colors, err = readColors(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hair": "navy", "shirt": "#fff"}, colors)

	require.NoError(t, os.WriteFile(path, []byte("- not a map"), 0o600))
	_, err = readColors(path)
	assert.Error(t, err)
}

func TestParseSource(t *testing.T) {
	src, err := parseSource("https://cdn.example.com/hero.glb")
	require.NoError(t, err)
	assert.Equal(t, loader.SourceURL, src.Kind)

	src, err = parseSource("assets/hero.glb")
	require.NoError(t, err)
	assert.Equal(t, loader.SourceFile, src.Kind)

	_, err = parseSource("")
	assert.Error(t, err)
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - name: red
    src: hero.glb
    colors: {shirt: red}
  - src: https://cdn.example.com/models/villain.glb?v=2
`), 0o600))

	jobs, err := readManifest(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "red", jobs[0].Name)
	assert.Equal(t, map[string]string{"shirt": "red"}, jobs[0].Colors)
	assert.Equal(t, "villain", jobs[1].Name)
	assert.Equal(t, loader.SourceURL, jobs[1].Source.Kind)

	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - src: a.glb\n  - src: b/a.glb\n"), 0o600))
	_, err = readManifest(path)
	assert.ErrorContains(t, err, `duplicate name "a"`)
}

func TestWriteThumbnails(t *testing.T) {
	dir, glb, _ := fixture(t)
	jobs := []thumbnail.Job{
		{Name: "hero", Source: loader.FromFile(glb)},
		{Name: "missing", Source: loader.FromFile(filepath.Join(dir, "nope.glb"))},
	}

	var out bytes.Buffer
	err := writeThumbnails(context.Background(), thumbnail.NewThumbnailer(thumbnail.WithSize(32)), jobs, dir, &out)
	require.NoError(t, err, "the missing asset falls back to the placeholder")

	for _, name := range []string{"hero.webp", "missing.webp"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, []byte("RIFF"), data[:4])
	}
	assert.Contains(t, out.String(), "placeholder")
}

func TestWatchColors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hair: navy\n"), 0o600))

	var mu sync.Mutex
	var got []map[string]string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchColors(ctx, path, func(c map[string]string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, c)
		}, zap.NewNop())
	}()

	// the watcher registers asynchronously; keep writing until a change is seen
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("hair: gold\n"), 0o600)
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "gold", got[len(got)-1]["hair"])
	mu.Unlock()

	cancel()
	assert.NoError(t, <-done)
}

// flakyLoader fails with a network error until it has been called fails times.
type flakyLoader struct {
	loader.Loader
	fails int32
	calls atomic.Int32
}

func (l *flakyLoader) Load(ctx context.Context, src loader.Source, progress loader.ProgressFunc) (scene.Graph, error) {
	if l.calls.Add(1) <= l.fails {
		return nil, common.NewError(common.ErrLoadNetwork, "connection reset")
	}
	return l.Loader.Load(ctx, src, progress)
}

func TestLoadWithRetry_RecoversFromTransientFailures(t *testing.T) {
	fl := &flakyLoader{Loader: loader.NewLoader(), fails: 2}
	v := viewer.NewViewer(viewer.WithLoader(fl), viewer.WithMaxRetries(3))
	defer v.Close()

	var out bytes.Buffer
	src := loader.FromBytes("hero.glb", testasset.Wrap(testasset.Figurine(testasset.FigurineOptions{})).GLB())
	require.NoError(t, loadWithRetry(context.Background(), v, src, &status{out: &out}, time.Millisecond))

	assert.EqualValues(t, 3, fl.calls.Load())
	assert.Equal(t, viewer.Ready, v.State())
	assert.Equal(t, 2, strings.Count(out.String(), "retrying in"))
	assert.Contains(t, out.String(), "loaded hero.glb")
}

func TestLoadWithRetry_GivesUpAfterRetryLimit(t *testing.T) {
	fl := &flakyLoader{Loader: loader.NewLoader(), fails: 100}
	v := viewer.NewViewer(viewer.WithLoader(fl), viewer.WithMaxRetries(2))
	defer v.Close()

	var out bytes.Buffer
	err := loadWithRetry(context.Background(), v, loader.FromFile("hero.glb"), &status{out: &out}, time.Millisecond)
	assert.Equal(t, common.ErrRetryLimit, common.CodeOf(err))
	assert.EqualValues(t, 3, fl.calls.Load())
	assert.Contains(t, out.String(), "giving up")
	assert.Contains(t, out.String(), string(common.ErrRetryLimit))
}

func TestLoadWithRetry_PermanentFailureNotRetried(t *testing.T) {
	v := viewer.NewViewer()
	defer v.Close()

	var out bytes.Buffer
	src := loader.FromBytes("speck.glb", testasset.Wrap(testasset.Degenerate()).GLB())
	err := loadWithRetry(context.Background(), v, src, &status{out: &out}, time.Millisecond)
	assert.Equal(t, common.ErrDegenerateGeom, common.CodeOf(err))
	assert.Contains(t, out.String(), "load failed")
	assert.NotContains(t, out.String(), "retrying")
}

func TestLoadWithRetry_StopsOnCancel(t *testing.T) {
	fl := &flakyLoader{Loader: loader.NewLoader(), fails: 100}
	v := viewer.NewViewer(viewer.WithLoader(fl), viewer.WithMaxRetries(3))
	defer v.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loadWithRetry(ctx, v, loader.FromFile("hero.glb"), &status{out: io.Discard}, time.Hour) }()
	require.Eventually(t, func() bool { return fl.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry wait ignored cancellation")
	}
}

func TestStatus_ProgressThenMessage(t *testing.T) {
	var out bytes.Buffer
	st := &status{out: &out}
	st.progress(common.Progress{Received: 50, Total: 200})
	st.progress(common.Progress{Received: 4096, Total: -1})
	st.printf("loaded %s", "hero.glb")

	assert.Equal(t, "\rloading  25%\rloading 4 KiB\nloaded hero.glb\n", out.String())
}

func TestLookup(t *testing.T) {
	c, ok := lookup("thumbs")
	require.True(t, ok)
	assert.Equal(t, "thumbs", c.name)
	_, ok = lookup("serve")
	assert.False(t, ok)
}
