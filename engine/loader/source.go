package loader

import (
	"path"
	"path/filepath"
	"strings"
)

// SourceKind identifies where an asset's bytes come from.
type SourceKind int

const (
	// SourceURL fetches the asset over HTTP(S); relative resources resolve against the URL.
	SourceURL SourceKind = iota
	// SourceFile reads the asset from disk; relative resources resolve against its directory.
	SourceFile
	// SourceBytes decodes an in-memory blob; external resources are not resolvable.
	SourceBytes
)

// String returns the metric label for the kind.
func (k SourceKind) String() string {
	switch k {
	case SourceURL:
		return "url"
	case SourceFile:
		return "file"
	case SourceBytes:
		return "bytes"
	}
	return "unknown"
}

// Source describes one asset to load.
type Source struct {
	Kind     SourceKind
	Location string
	Data     []byte
}

// FromURL returns a Source fetching the asset at u.
func FromURL(u string) Source {
	return Source{Kind: SourceURL, Location: u}
}

// FromFile returns a Source reading the asset at p.
func FromFile(p string) Source {
	return Source{Kind: SourceFile, Location: p}
}

// FromBytes returns a Source over an in-memory blob. The name is used for logs and the graph name only.
func FromBytes(name string, data []byte) Source {
	return Source{Kind: SourceBytes, Location: name, Data: data}
}

// ParseSource classifies s as a URL when it has an http or https scheme and as a file path otherwise.
func ParseSource(s string) Source {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return FromURL(s)
	}
	return FromFile(s)
}

// IsZero reports whether the source names nothing.
func (s Source) IsZero() bool {
	return s.Location == "" && len(s.Data) == 0
}

// Name returns the last path element of the location.
func (s Source) Name() string {
	switch s.Kind {
	case SourceURL:
		loc := s.Location
		if i := strings.IndexAny(loc, "?#"); i >= 0 {
			loc = loc[:i]
		}
		return path.Base(loc)
	case SourceFile:
		return filepath.Base(s.Location)
	}
	return s.Location
}

// String implements fmt.Stringer.
func (s Source) String() string {
	return s.Kind.String() + ":" + s.Location
}
