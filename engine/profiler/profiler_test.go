package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestProfiler_LogsEachInterval(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	now := time.Unix(0, 0)
	p := NewProfiler(zap.New(core), WithClock(func() time.Time { return now }))

	for range 29 {
		now = now.Add(time.Second / 60)
		assert.False(t, p.Tick())
	}
	now = now.Add(time.Second)
	assert.True(t, p.Tick())

	entries := logs.FilterMessage("frame stats").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.InDelta(t, 30.0/(29.0/60+1), fields["fps"], 1e-4)
	assert.Equal(t, "profiler", fields["component"])
	assert.Contains(t, fields, "heap_mb")
}

func TestProfiler_NilLogger(t *testing.T) {
	p := NewProfiler(nil, WithInterval(0))
	time.Sleep(time.Millisecond)
	assert.True(t, p.Tick())
}
