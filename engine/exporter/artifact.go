// Package exporter writes customized graphs as self-contained GLB artifacts.
package exporter

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is one exported GLB. It is created once per export call and never modified afterwards.
type Artifact struct {
	// ID identifies the export in logs and upload metadata.
	ID uuid.UUID

	// Bytes is the complete GLB container.
	Bytes []byte

	// ContentType is always model/gltf-binary.
	ContentType string

	SizeBytes int

	CreatedAt time.Time
}
