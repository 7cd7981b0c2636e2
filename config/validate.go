package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks ranges and enumerations and reports every problem at once.
func Validate(c *Config) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Loader.Timeout > 0, "loader.timeout must be positive")
	check(c.Loader.MaxBytes > 0, "loader.max_bytes must be positive")
	check(c.Loader.RateLimit >= 0, "loader.rate_limit must not be negative")

	check(c.Normalizer.TargetDiameter > 0, "normalizer.target_diameter must be positive")
	check(c.Normalizer.Bias > -1 && c.Normalizer.Bias < 1, "normalizer.bias must be within (-1, 1)")

	check(c.Viewer.MaxRetries >= 0, "viewer.max_retries must not be negative")
	check(c.Viewer.FrameLimit >= 0, "viewer.frame_limit must not be negative")
	check(c.Viewer.Width > 0 && c.Viewer.Height > 0, "viewer size must be positive, got %dx%d", c.Viewer.Width, c.Viewer.Height)

	check(c.Thumbnail.Size > 0, "thumbnail.size must be positive")
	check(c.Thumbnail.Supersample >= 1 && c.Thumbnail.Supersample <= 4, "thumbnail.supersample must be within [1, 4]")
	check(c.Thumbnail.Workers > 0, "thumbnail.workers must be positive")

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	check(c.Log.Format == "json" || c.Log.Format == "console", "log.format %q is not json or console", c.Log.Format)

	if c.Telemetry.Enabled {
		check(c.Telemetry.OTLPEndpoint != "", "telemetry.otlp_endpoint is required when telemetry is enabled")
		check(c.Telemetry.SampleRate >= 0 && c.Telemetry.SampleRate <= 1, "telemetry.sample_rate must be within [0, 1]")
	}
	if c.Metrics.Enabled {
		check(c.Metrics.Addr != "", "metrics.addr is required when metrics are enabled")
	}

	seen := make(map[string]bool, len(c.Parts))
	for i, p := range c.Parts {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("parts[%d] has no id", i))
			continue
		}
		check(!seen[p.ID], "part %q is listed twice", p.ID)
		seen[p.ID] = true
		if _, err := p.Part(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
