package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/config"
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/exporter"
	"github.com/Carmen-Shannon/oxy-figure/engine/loader"
	"github.com/Carmen-Shannon/oxy-figure/engine/normalizer"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"
	"github.com/Carmen-Shannon/oxy-figure/engine/viewer"

	"github.com/mitchellh/go-homedir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// app holds what every command shares: configuration, logging, metrics and the asset loader.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	collector *telemetry.Collector
	providers *telemetry.Providers
	parts     []binder.Part
	loader    loader.Loader
}

// configFlag registers the -config flag shared by all commands.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "config file (.yaml, .yml or .toml)")
}

func newApp(configPath string) (*app, error) {
	l := config.NewLoader()
	if configPath != "" {
		l = l.WithConfigPath(configPath)
	}
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}

	logger, _, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	parts, err := cfg.BinderParts()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := telemetry.NewCollector(cfg.Metrics.Namespace, reg, logger)

	providers, err := telemetry.Init(cfg.Telemetry.TracingConfig(), logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		collector: collector,
		providers: providers,
		parts:     parts,
	}
	a.loader = loader.NewLoader(
		loader.WithTimeout(cfg.Loader.Timeout.Std()),
		loader.WithMaxBytes(cfg.Loader.MaxBytes),
		loader.WithRateLimit(cfg.Loader.RateLimit, cfg.Loader.Burst),
		loader.WithCache(cfg.Loader.Cache),
		loader.WithUserAgent(cfg.Loader.UserAgent),
		loader.WithLogger(logger),
		loader.WithCollector(collector),
	)
	return a, nil
}

// close flushes traces and the logger.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.providers.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newViewer builds a viewer wired to the configured normalizer, exporter and parts.
func (a *app) newViewer(options ...viewer.ViewerBuilderOption) viewer.Viewer {
	exportOpts := []exporter.ExporterBuilderOption{
		exporter.WithVerify(a.cfg.Export.Verify),
		exporter.WithLogger(a.logger),
		exporter.WithCollector(a.collector),
	}
	if a.cfg.Export.DisplayTransform {
		exportOpts = append(exportOpts, exporter.WithDisplayTransform())
	}

	opts := []viewer.ViewerBuilderOption{
		viewer.WithParts(a.parts...),
		viewer.WithLoader(a.loader),
		viewer.WithNormalizer(normalizer.NewNormalizer(
			normalizer.WithTargetDiameter(a.cfg.Normalizer.TargetDiameter),
			normalizer.WithBias(a.cfg.Normalizer.Bias),
			normalizer.WithLogger(a.logger),
		)),
		viewer.WithExporter(exporter.NewExporter(exportOpts...)),
		viewer.WithMaxRetries(a.cfg.Viewer.MaxRetries),
		viewer.WithLogger(a.logger),
		viewer.WithCollector(a.collector),
	}
	return viewer.NewViewer(append(opts, options...)...)
}

// readColors reads a YAML map of part id to color. An empty path yields no colors.
func readColors(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var colors map[string]string
	if err := yaml.Unmarshal(data, &colors); err != nil {
		return nil, fmt.Errorf("parse colors %s: %w", path, err)
	}
	return colors, nil
}

// parseSource expands ~ in file paths and classifies the rest.
func parseSource(s string) (loader.Source, error) {
	if s == "" {
		return loader.Source{}, fmt.Errorf("-src is required")
	}
	src := loader.ParseSource(s)
	if src.Kind == loader.SourceFile {
		p, err := homedir.Expand(s)
		if err != nil {
			return loader.Source{}, err
		}
		src = loader.FromFile(p)
	}
	return src, nil
}
