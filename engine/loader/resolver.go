package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/engine/scene"
)

var errInvalidDataURI = errors.New("invalid data URI")

// fileResolver resolves resources relative to an asset's directory on disk.
type fileResolver struct {
	dir string
}

func (r *fileResolver) Resolve(ctx context.Context, uri string) ([]byte, error) {
	if isDataURI(uri) {
		return decodeDataURI(uri)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := url.PathUnescape(uri)
	if err != nil {
		p = uri
	}
	return os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(p)))
}

// urlResolver resolves resources relative to an asset's URL through the loader's fetcher.
type urlResolver struct {
	base    *url.URL
	fetcher *fetcher
}

func (r *urlResolver) Resolve(ctx context.Context, uri string) ([]byte, error) {
	if isDataURI(uri) {
		return decodeDataURI(uri)
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid resource uri %q: %w", uri, err)
	}
	return r.fetcher.Fetch(ctx, r.base.ResolveReference(ref).String(), nil)
}

var (
	_ scene.Resolver = &fileResolver{}
	_ scene.Resolver = &urlResolver{}
)

// resolverFS adapts a scene.Resolver to the fs.FS the glTF decoder reads external buffers through.
// A nil resolver reports every file as missing.
type resolverFS struct {
	ctx      context.Context
	resolver scene.Resolver
}

func (f *resolverFS) Open(name string) (fs.File, error) {
	if f.resolver == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	data, err := f.resolver.Resolve(f.ctx, name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &memFile{Reader: bytes.NewReader(data), name: name, size: int64(len(data))}, nil
}

// memFile is a read-only fs.File over resolved bytes.
type memFile struct {
	*bytes.Reader
	name string
	size int64
}

func (m *memFile) Stat() (fs.FileInfo, error) { return memInfo{name: m.name, size: m.size}, nil }
func (m *memFile) Close() error               { return nil }

type memInfo struct {
	name string
	size int64
}

func (i memInfo) Name() string       { return filepath.Base(i.name) }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o444 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }

func isDataURI(uri string) bool {
	return strings.HasPrefix(uri, "data:")
}

// decodeDataURI decodes a base64 data URI.
// Format: data:[<mediatype>][;base64],<data>
func decodeDataURI(uri string) ([]byte, error) {
	commaIdx := strings.Index(uri, ",")
	if commaIdx < 0 {
		return nil, errInvalidDataURI
	}

	header := uri[5:commaIdx]
	dataStr := uri[commaIdx+1:]

	if !strings.Contains(header, "base64") {
		return nil, fmt.Errorf("unsupported data URI encoding: %s", header)
	}

	data, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// DecodeDataURI decodes a base64 data URI and returns its media type and payload.
//
// Parameters:
//   - uri: a data: URI
//
// Returns:
//   - string: the declared media type (may be empty)
//   - []byte: the decoded payload
//   - error: error if the URI is not a base64 data URI
func DecodeDataURI(uri string) (string, []byte, error) {
	if !isDataURI(uri) {
		return "", nil, errInvalidDataURI
	}
	data, err := decodeDataURI(uri)
	if err != nil {
		return "", nil, err
	}
	header := uri[5:strings.Index(uri, ",")]
	mediaType, _, _ := strings.Cut(header, ";")
	return mediaType, data, nil
}
