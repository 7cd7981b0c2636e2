package loader

import (
	"io/fs"

	"github.com/qmuntal/gltf"
)

// loaderBackend defines the generic interface for decoding asset bytes into a glTF document.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Decode parses an asset. Both binary and JSON containers are accepted; external buffers
	// referenced by the JSON are read through fsys.
	//
	// Parameters:
	//   - data: the asset bytes
	//   - fsys: resolves relative buffer URIs
	//
	// Returns:
	//   - *gltf.Document: the decoded document with buffer data loaded
	//   - error: error if decoding fails
	Decode(data []byte, fsys fs.FS) (*gltf.Document, error)
}
