package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-figure/engine/scene"

	"github.com/h2non/filetype"
	"github.com/qmuntal/gltf"
	"golang.org/x/sync/errgroup"
)

var (
	errBufferNotLoaded = errors.New("buffer data not loaded")
	errNoResolver      = errors.New("external image without a resolver")
	errBufferViewIndex = errors.New("buffer view references a missing buffer")
)

// maxImageFetches bounds concurrent resolution of external images.
const maxImageFetches = 4

// packBuffers merges every buffer of doc into a single binary buffer and embeds every image that is referenced
// by URI, so the result holds no external or data URIs. Buffer views and images are rewritten in fresh slices;
// the source slices are left untouched.
func packBuffers(ctx context.Context, doc *gltf.Document, resolver scene.Resolver) error {
	images, err := resolveImages(ctx, doc.Images, resolver)
	if err != nil {
		return err
	}

	var bin []byte
	offsets := make([]int, len(doc.Buffers))
	for i, b := range doc.Buffers {
		if len(b.Data) < b.ByteLength {
			return fmt.Errorf("%w: buffer %d has %d of %d bytes", errBufferNotLoaded, i, len(b.Data), b.ByteLength)
		}
		bin = align4(bin)
		offsets[i] = len(bin)
		bin = append(bin, b.Data[:b.ByteLength]...)
	}

	views := make([]*gltf.BufferView, len(doc.BufferViews), len(doc.BufferViews)+len(images))
	for i, v := range doc.BufferViews {
		if v.Buffer < 0 || v.Buffer >= len(offsets) {
			return fmt.Errorf("%w: view %d, buffer %d", errBufferViewIndex, i, v.Buffer)
		}
		cp := *v
		cp.Buffer = 0
		cp.ByteOffset += offsets[v.Buffer]
		views[i] = &cp
	}

	outImages := make([]*gltf.Image, len(doc.Images))
	for i, img := range doc.Images {
		cp := *img
		if data := images[i]; data != nil {
			bin = align4(bin)
			views = append(views, &gltf.BufferView{
				Buffer:     0,
				ByteOffset: len(bin),
				ByteLength: len(data),
			})
			bin = append(bin, data...)
			cp.URI = ""
			cp.BufferView = gltf.Index(len(views) - 1)
			cp.MimeType = sniffMIME(data, img.MimeType)
		}
		outImages[i] = &cp
	}

	doc.BufferViews = views
	doc.Images = outImages
	if len(bin) == 0 {
		doc.Buffers = nil
		return nil
	}
	bin = align4(bin)
	doc.Buffers = []*gltf.Buffer{{ByteLength: len(bin), Data: bin}}
	return nil
}

// resolveImages returns the bytes of every image referenced by URI; images already stored in buffer views
// map to nil. External URIs are fetched concurrently through the graph's resolver.
func resolveImages(ctx context.Context, images []*gltf.Image, resolver scene.Resolver) ([][]byte, error) {
	out := make([][]byte, len(images))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxImageFetches)

	for i, img := range images {
		if img.URI == "" {
			continue
		}
		eg.Go(func() error {
			var (
				data []byte
				err  error
			)
			switch {
			case img.IsEmbeddedResource():
				data, err = img.MarshalData()
			case resolver == nil:
				err = errNoResolver
			default:
				data, err = resolver.Resolve(egCtx, img.URI)
			}
			if err != nil {
				return fmt.Errorf("image %d (%.64s): %w", i, img.URI, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// sniffMIME detects the image type from its magic bytes, falling back to the declared type and then to PNG.
func sniffMIME(data []byte, declared string) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown && filetype.IsImage(data) {
		return kind.MIME.Value
	}
	if declared != "" {
		return declared
	}
	return "image/png"
}

func align4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}
