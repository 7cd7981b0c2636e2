// Package telemetry provides the prometheus collector and OpenTelemetry setup shared by engine components.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Result labels used when no error code applies.
const (
	ResultOK = "ok"
)

// Collector records engine metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	loadsTotal     *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
	loadBytes      prometheus.Histogram
	exportsTotal   *prometheus.CounterVec
	exportDuration prometheus.Histogram
	exportBytes    prometheus.Histogram
	recolorsTotal  *prometheus.CounterVec
	diagnostics    *prometheus.CounterVec
	framesTotal    prometheus.Counter
	thumbnails     *prometheus.CounterVec
	activeViewers  prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the engine metrics on reg under namespace.
//
// Parameters:
//   - namespace: metric name prefix
//   - reg: the registerer (prometheus.DefaultRegisterer in production, a fresh registry in tests)
//   - logger: logger for collector diagnostics
//
// Returns:
//   - *Collector: the collector
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.loadsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_loads_total",
			Help:      "Total number of asset loads by source kind and result",
		},
		[]string{"source", "result"},
	)
	c.loadDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_load_duration_seconds",
			Help:      "Asset load duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	c.loadBytes = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "asset_load_bytes",
		Help:      "Size of loaded asset bodies in bytes",
		Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
	})
	c.exportsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total number of GLB exports by result",
		},
		[]string{"result"},
	)
	c.exportDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "export_duration_seconds",
		Help:      "GLB export duration in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	c.exportBytes = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "export_bytes",
		Help:      "Size of exported artifacts in bytes",
		Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
	})
	c.recolorsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "part_recolors_total",
			Help:      "Total number of part color changes",
		},
		[]string{"part"},
	)
	c.diagnostics = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "binding_diagnostics_total",
			Help:      "Total number of part binding diagnostics by kind",
		},
		[]string{"kind"},
	)
	c.framesTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "viewport_frames_total",
		Help:      "Total number of frames drawn by viewports",
	})
	c.thumbnails = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnails_total",
			Help:      "Total number of thumbnails by the fallback tier that produced them",
		},
		[]string{"tier"},
	)
	c.activeViewers = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_viewers",
		Help:      "Number of viewer instances not yet closed",
	})

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordLoad records one asset load.
func (c *Collector) RecordLoad(source, result string, d time.Duration, size int) {
	if c == nil {
		return
	}
	c.loadsTotal.WithLabelValues(source, result).Inc()
	c.loadDuration.WithLabelValues(source).Observe(d.Seconds())
	if size > 0 {
		c.loadBytes.Observe(float64(size))
	}
}

// RecordExport records one export attempt.
func (c *Collector) RecordExport(result string, d time.Duration, size int) {
	if c == nil {
		return
	}
	c.exportsTotal.WithLabelValues(result).Inc()
	c.exportDuration.Observe(d.Seconds())
	if size > 0 {
		c.exportBytes.Observe(float64(size))
	}
}

// RecordRecolor records a color change on a part.
func (c *Collector) RecordRecolor(part string) {
	if c == nil {
		return
	}
	c.recolorsTotal.WithLabelValues(part).Inc()
}

// RecordDiagnostic records a binding diagnostic.
func (c *Collector) RecordDiagnostic(kind string) {
	if c == nil {
		return
	}
	c.diagnostics.WithLabelValues(kind).Inc()
}

// RecordFrame records one drawn viewport frame.
func (c *Collector) RecordFrame() {
	if c == nil {
		return
	}
	c.framesTotal.Inc()
}

// RecordThumbnail records which fallback tier produced a thumbnail.
func (c *Collector) RecordThumbnail(tier string) {
	if c == nil {
		return
	}
	c.thumbnails.WithLabelValues(tier).Inc()
}

// ViewerOpened increments the active viewer gauge.
func (c *Collector) ViewerOpened() {
	if c == nil {
		return
	}
	c.activeViewers.Inc()
}

// ViewerClosed decrements the active viewer gauge.
func (c *Collector) ViewerClosed() {
	if c == nil {
		return
	}
	c.activeViewers.Dec()
}
