package loader

import (
	"net/http"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithTimeout sets the upper bound on a whole load. Values <= 0 keep DefaultTimeout.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - LoaderBuilderOption: a function that applies the timeout option to a loader
func WithTimeout(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithHTTPClient sets the client used for URL sources and their external resources.
//
// Parameters:
//   - c: the HTTP client
//
// Returns:
//   - LoaderBuilderOption: a function that applies the client option to a loader
func WithHTTPClient(c *http.Client) LoaderBuilderOption {
	return func(l *loader) {
		if c != nil {
			l.fetcher.client = c
		}
	}
}

// WithMaxBytes caps the size of any fetched body. Larger assets fail with MALFORMED_ASSET.
//
// Parameters:
//   - n: the byte limit
//
// Returns:
//   - LoaderBuilderOption: a function that applies the limit option to a loader
func WithMaxBytes(n int64) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.fetcher.maxBytes = n
		}
	}
}

// WithRateLimit throttles outgoing requests to rps requests per second with the given burst.
// A non-positive rps removes the limit.
//
// Parameters:
//   - rps: requests per second
//   - burst: maximum burst size
//
// Returns:
//   - LoaderBuilderOption: a function that applies the rate limit option to a loader
func WithRateLimit(rps float64, burst int) LoaderBuilderOption {
	return func(l *loader) {
		if rps <= 0 {
			l.fetcher.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		l.fetcher.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithCache enables the raw byte cache keyed by URL. Decoded graphs are never cached.
//
// Parameters:
//   - enabled: whether fetched bodies are cached
//
// Returns:
//   - LoaderBuilderOption: a function that applies the cache option to a loader
func WithCache(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.fetcher.cacheEnabled = enabled
	}
}

// WithUserAgent sets the User-Agent header of outgoing requests.
func WithUserAgent(ua string) LoaderBuilderOption {
	return func(l *loader) {
		if ua != "" {
			l.fetcher.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithCollector sets the metrics collector.
func WithCollector(c *telemetry.Collector) LoaderBuilderOption {
	return func(l *loader) {
		l.collector = c
	}
}
