package viewer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-figure/engine/exporter"
)

// ErrSuperseded is returned to the caller of a load that finished after a newer load started.
// Its result was discarded and no callback fired.
var ErrSuperseded = errors.New("load superseded by a newer load")

// LoadState is the state of a viewer's current load.
type LoadState int

const (
	Idle LoadState = iota
	Loading
	Ready
	Failed
)

// String implements fmt.Stringer.
func (s LoadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ExportState is the state of a viewer's most recent export.
type ExportState int

const (
	ExportIdle ExportState = iota
	Exporting
	ExportDone
	ExportFailed
)

// String implements fmt.Stringer.
func (s ExportState) String() string {
	switch s {
	case ExportIdle:
		return "idle"
	case Exporting:
		return "exporting"
	case ExportDone:
		return "done"
	case ExportFailed:
		return "failed"
	}
	return "unknown"
}

// ExportResult is delivered by ExportAsync.
type ExportResult struct {
	Artifact *exporter.Artifact
	Err      error
}
