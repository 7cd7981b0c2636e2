package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector("figurine_test", prometheus.NewRegistry(), zap.NewNop())

	c.RecordLoad("url", ResultOK, 120*time.Millisecond, 4096)
	c.RecordLoad("url", "LOAD_TIMEOUT", time.Second, 0)
	c.RecordExport(ResultOK, 10*time.Millisecond, 2048)
	c.RecordRecolor("hair")
	c.RecordRecolor("hair")
	c.RecordDiagnostic("AMBIGUOUS_BINDING")
	c.RecordFrame()
	c.RecordThumbnail("placeholder")
	c.ViewerOpened()
	c.ViewerOpened()
	c.ViewerClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.loadsTotal.WithLabelValues("url", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loadsTotal.WithLabelValues("url", "LOAD_TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exportsTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.recolorsTotal.WithLabelValues("hair")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.diagnostics.WithLabelValues("AMBIGUOUS_BINDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.thumbnails.WithLabelValues("placeholder")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeViewers))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordLoad("file", ResultOK, time.Millisecond, 1)
		c.RecordExport(ResultOK, time.Millisecond, 1)
		c.RecordRecolor("x")
		c.RecordDiagnostic("x")
		c.RecordFrame()
		c.RecordThumbnail("x")
		c.ViewerOpened()
		c.ViewerClosed()
	})
}

func TestInit_Disabled(t *testing.T) {
	p, err := Init(Config{Enabled: false}, zap.NewNop())
	assert.NoError(t, err)
	assert.NoError(t, p.Shutdown(t.Context()))
}
