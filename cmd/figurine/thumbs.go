package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/thumbnail"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// manifest lists thumbnail jobs:
//
//	jobs:
//	  - name: hero-red
//	    src: https://cdn.example.com/hero.glb
//	    colors: {shirt: "#c0392b"}
type manifest struct {
	Jobs []struct {
		Name   string            `yaml:"name"`
		Src    string            `yaml:"src"`
		Colors map[string]string `yaml:"colors"`
	} `yaml:"jobs"`
}

func readManifest(path string) ([]thumbnail.Job, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	jobs := make([]thumbnail.Job, 0, len(m.Jobs))
	seen := make(map[string]bool, len(m.Jobs))
	for i, j := range m.Jobs {
		src, err := parseSource(j.Src)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		name := j.Name
		if name == "" {
			name = strings.TrimSuffix(src.Name(), filepath.Ext(src.Name()))
		}
		if seen[name] {
			return nil, fmt.Errorf("job %d: duplicate name %q", i, name)
		}
		seen[name] = true
		jobs = append(jobs, thumbnail.Job{Name: name, Source: src, Colors: j.Colors})
	}
	return jobs, nil
}

func runThumbs(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("thumbs", flag.ContinueOnError)
	configPath := configFlag(fs)
	manifestPath := fs.String("manifest", "", "YAML job manifest")
	outDir := fs.String("out", ".", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *manifestPath == "" {
		return fmt.Errorf("-manifest is required")
	}
	jobs, err := readManifest(*manifestPath)
	if err != nil {
		return err
	}
	dir, err := homedir.Expand(*outDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	return writeThumbnails(ctx, a.newThumbnailer(), jobs, dir, stdout)
}

func (a *app) newThumbnailer() thumbnail.Thumbnailer {
	opts := []thumbnail.ThumbnailerBuilderOption{
		thumbnail.WithSize(a.cfg.Thumbnail.Size),
		thumbnail.WithSupersample(a.cfg.Thumbnail.Supersample),
		thumbnail.WithWorkers(a.cfg.Thumbnail.Workers),
		thumbnail.WithParts(a.parts...),
		thumbnail.WithLoader(a.loader),
		thumbnail.WithLogger(a.logger),
		thumbnail.WithCollector(a.collector),
	}
	if a.cfg.Thumbnail.Fallback != "" {
		opts = append(opts, thumbnail.WithFallback(loader.ParseSource(a.cfg.Thumbnail.Fallback)))
	}
	return thumbnail.NewThumbnailer(opts...)
}

// writeThumbnails renders jobs and writes <name>.webp into dir. Jobs that fail every tier are
// reported and the command fails after writing the rest.
func writeThumbnails(ctx context.Context, th thumbnail.Thumbnailer, jobs []thumbnail.Job, dir string, stdout io.Writer) error {
	failed := 0
	for _, r := range th.RenderBatch(ctx, jobs) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(stdout, "%-24s FAILED %v\n", r.Job.Name, r.Err)
			continue
		}
		path := filepath.Join(dir, r.Job.Name+".webp")
		if err := os.WriteFile(path, r.Result.WebP, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%-24s %-11s %s\n", r.Job.Name, r.Result.Tier, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d thumbnails failed", failed, len(jobs))
	}
	return nil
}
