package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"github.com/Masterminds/semver/v3"
	"github.com/qmuntal/gltf"
)

var (
	errInvalidGLTFVersion = errors.New("unsupported glTF version: major must be 2")
	errMissingVersion     = errors.New("asset.version is missing")
)

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct {
	maxMajor uint64
}

// gltfLoaderBackend is a loaderBackend implementation for glTF/GLB data.
// It delegates container parsing to the qmuntal/gltf decoder and validates the asset version.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB data
func newGLTFLoaderBackend() gltfLoaderBackend {
	return &gltfLoaderBackendImpl{maxMajor: 2}
}

func (b *gltfLoaderBackendImpl) Decode(data []byte, fsys fs.FS) (*gltf.Document, error) {
	doc := new(gltf.Document)
	dec := gltf.NewDecoderFS(bytes.NewReader(data), fsys)
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode glTF: %w", err)
	}
	if err := b.checkVersion(doc.Asset); err != nil {
		return nil, err
	}
	return doc, nil
}

// checkVersion accepts any 2.x asset and rejects assets whose minVersion exceeds what the decoder understands.
func (b *gltfLoaderBackendImpl) checkVersion(asset gltf.Asset) error {
	if asset.Version == "" {
		return errMissingVersion
	}
	v, err := semver.NewVersion(asset.Version)
	if err != nil {
		return fmt.Errorf("invalid asset.version %q: %w", asset.Version, err)
	}
	if v.Major() != b.maxMajor {
		return fmt.Errorf("%w (got %s)", errInvalidGLTFVersion, asset.Version)
	}
	if asset.MinVersion != "" {
		minV, err := semver.NewVersion(asset.MinVersion)
		if err != nil {
			return fmt.Errorf("invalid asset.minVersion %q: %w", asset.MinVersion, err)
		}
		if minV.Major() > b.maxMajor || (minV.Major() == b.maxMajor && minV.Minor() > 0) {
			return fmt.Errorf("%w (minVersion %s)", errInvalidGLTFVersion, asset.MinVersion)
		}
	}
	return nil
}
