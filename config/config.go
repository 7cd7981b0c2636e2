// Package config loads figurine engine settings from defaults, a YAML or TOML file, and FIGURINE_*
// environment variables, in that order.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("~/.config/figurine/config.yaml").
//	    Load()
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/normalizer"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"
	"github.com/Carmen-Shannon/oxy-figure/engine/thumbnail"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Loader     LoaderConfig     `yaml:"loader" toml:"loader" env:"LOADER"`
	Normalizer NormalizerConfig `yaml:"normalizer" toml:"normalizer" env:"NORMALIZER"`
	Export     ExportConfig     `yaml:"export" toml:"export" env:"EXPORT"`
	Viewer     ViewerConfig     `yaml:"viewer" toml:"viewer" env:"VIEWER"`
	Thumbnail  ThumbnailConfig  `yaml:"thumbnail" toml:"thumbnail" env:"THUMBNAIL"`
	Log        LogConfig        `yaml:"log" toml:"log" env:"LOG"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" toml:"telemetry" env:"TELEMETRY"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics" env:"METRICS"`

	// Parts is the customizable part catalog. It has no environment form.
	Parts []PartConfig `yaml:"parts" toml:"parts" env:"-"`
}

type LoaderConfig struct {
	Timeout   Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`
	MaxBytes  int64    `yaml:"max_bytes" toml:"max_bytes" env:"MAX_BYTES"`
	RateLimit float64  `yaml:"rate_limit" toml:"rate_limit" env:"RATE_LIMIT"`
	Burst     int      `yaml:"burst" toml:"burst" env:"BURST"`
	Cache     bool     `yaml:"cache" toml:"cache" env:"CACHE"`
	UserAgent string   `yaml:"user_agent" toml:"user_agent" env:"USER_AGENT"`
}

type NormalizerConfig struct {
	// TargetDiameter is the bounding sphere diameter of the detail view.
	TargetDiameter float64 `yaml:"target_diameter" toml:"target_diameter" env:"TARGET_DIAMETER"`
	Bias           float64 `yaml:"bias" toml:"bias" env:"BIAS"`
}

type ExportConfig struct {
	// DisplayTransform bakes the viewing normalization into the exported root.
	DisplayTransform bool `yaml:"display_transform" toml:"display_transform" env:"DISPLAY_TRANSFORM"`
	Verify           bool `yaml:"verify" toml:"verify" env:"VERIFY"`
}

type ViewerConfig struct {
	MaxRetries int     `yaml:"max_retries" toml:"max_retries" env:"MAX_RETRIES"`
	FrameLimit float64 `yaml:"frame_limit" toml:"frame_limit" env:"FRAME_LIMIT"`
	Width      int     `yaml:"width" toml:"width" env:"WIDTH"`
	Height     int     `yaml:"height" toml:"height" env:"HEIGHT"`
	Title      string  `yaml:"title" toml:"title" env:"TITLE"`
	VSync      bool    `yaml:"vsync" toml:"vsync" env:"VSYNC"`
	MSAA       bool    `yaml:"msaa" toml:"msaa" env:"MSAA"`
	Profile    bool    `yaml:"profile" toml:"profile" env:"PROFILE"`
}

type ThumbnailConfig struct {
	Size        int `yaml:"size" toml:"size" env:"SIZE"`
	Supersample int `yaml:"supersample" toml:"supersample" env:"SUPERSAMPLE"`
	Workers     int `yaml:"workers" toml:"workers" env:"WORKERS"`

	// Fallback is the default asset rendered when the requested one fails. Empty skips that tier.
	Fallback string `yaml:"fallback" toml:"fallback" env:"FALLBACK"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" toml:"level" env:"LEVEL"`
	// Format is json or console.
	Format      string   `yaml:"format" toml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" toml:"output_paths" env:"OUTPUT_PATHS"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" toml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" toml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" toml:"sample_rate" env:"SAMPLE_RATE"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	Addr      string `yaml:"addr" toml:"addr" env:"ADDR"`
	Namespace string `yaml:"namespace" toml:"namespace" env:"NAMESPACE"`
}

// PartConfig describes one customizable part.
type PartConfig struct {
	ID string `yaml:"id" toml:"id"`

	// Aliases are extra case-insensitive substrings matched against mesh node names.
	Aliases    []string `yaml:"aliases" toml:"aliases"`
	Color      string   `yaml:"color" toml:"color"`
	PriceDelta float64  `yaml:"price_delta" toml:"price_delta"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Loader: LoaderConfig{
			Timeout:   Duration(30 * time.Second),
			MaxBytes:  64 << 20,
			RateLimit: 8,
			Burst:     4,
			Cache:     true,
			UserAgent: "oxy-figure",
		},
		Normalizer: NormalizerConfig{
			TargetDiameter: normalizer.DetailDiameter,
			Bias:           normalizer.FigurineBias,
		},
		Export: ExportConfig{
			Verify: true,
		},
		Viewer: ViewerConfig{
			MaxRetries: 3,
			FrameLimit: 60,
			Width:      1280,
			Height:     720,
			Title:      "Figurine",
			VSync:      true,
		},
		Thumbnail: ThumbnailConfig{
			Size:        thumbnail.DefaultSize,
			Supersample: thumbnail.DefaultSupersample,
			Workers:     4,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stderr"},
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "oxy-figure",
			SampleRate:   1,
		},
		Metrics: MetricsConfig{
			Addr:      ":9464",
			Namespace: "figurine",
		},
	}
}

// TracingConfig converts the telemetry section for telemetry.Init.
func (c TelemetryConfig) TracingConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:      c.Enabled,
		OTLPEndpoint: c.OTLPEndpoint,
		ServiceName:  c.ServiceName,
		SampleRate:   c.SampleRate,
	}
}

// Part converts the entry into a binder.Part. A part with aliases matches its ID or any alias.
//
// Returns:
//   - binder.Part: the part
//   - error: an INVALID_COLOR *common.Error when Color does not parse
func (p PartConfig) Part() (binder.Part, error) {
	part := binder.Part{ID: p.ID, BasePriceDelta: p.PriceDelta}
	if p.Color != "" {
		c, err := common.ParseColor(p.Color)
		if err != nil {
			return binder.Part{}, fmt.Errorf("part %q: %w", p.ID, err)
		}
		part.Color = c
	}
	if len(p.Aliases) > 0 {
		needles := make([]string, 0, len(p.Aliases)+1)
		for _, n := range append([]string{p.ID}, p.Aliases...) {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				needles = append(needles, n)
			}
		}
		part.Match = func(name string) bool {
			name = strings.ToLower(name)
			for _, n := range needles {
				if strings.Contains(name, n) {
					return true
				}
			}
			return false
		}
	}
	return part, nil
}

// BinderParts converts the whole catalog.
func (c *Config) BinderParts() ([]binder.Part, error) {
	parts := make([]binder.Part, 0, len(c.Parts))
	for _, pc := range c.Parts {
		p, err := pc.Part()
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// Duration is a time.Duration written as a Go duration string ("30s") in files and the environment.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}
