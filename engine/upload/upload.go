// Package upload sends finished artifacts to presigned storage URLs.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/exporter"
	"github.com/Carmen-Shannon/oxy-figure/engine/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.Tracer("engine/upload")

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// uploader is the implementation of the Uploader interface.
type uploader struct {
	client *http.Client
	logger *zap.Logger
}

// Uploader PUTs artifacts to presigned URLs. Failures are not retried; the host decides whether to
// export again and upload to a fresh URL.
type Uploader interface {
	// Upload sends an exported GLB.
	//
	// Parameters:
	//   - ctx: bounds the request
	//   - presignedURL: the storage URL accepting a PUT
	//   - a: the artifact; its ContentType is sent as Content-Type
	//
	// Returns:
	//   - error: an UPLOAD_FAILED *common.Error for transport errors and non-2xx responses
	Upload(ctx context.Context, presignedURL string, a exporter.Artifact) error

	// UploadBytes sends arbitrary content such as a thumbnail.
	//
	// Parameters:
	//   - ctx: bounds the request
	//   - presignedURL: the storage URL accepting a PUT
	//   - data: the body
	//   - contentType: the Content-Type header value
	//
	// Returns:
	//   - error: an UPLOAD_FAILED *common.Error for transport errors and non-2xx responses
	UploadBytes(ctx context.Context, presignedURL string, data []byte, contentType string) error
}

var _ Uploader = &uploader{}

// NewUploader creates an Uploader.
//
// Parameters:
//   - options: a variadic list of UploaderBuilderOption functions
//
// Returns:
//   - Uploader: the uploader
func NewUploader(options ...UploaderBuilderOption) Uploader {
	u := &uploader{
		client: &http.Client{Timeout: 2 * time.Minute},
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(u)
	}
	u.logger = u.logger.With(zap.String("component", "upload"))
	return u
}

func (u *uploader) Upload(ctx context.Context, presignedURL string, a exporter.Artifact) error {
	err := u.UploadBytes(ctx, presignedURL, a.Bytes, a.ContentType)
	if err == nil {
		u.logger.Info("artifact uploaded", zap.Stringer("artifact", a.ID), zap.Int("bytes", len(a.Bytes)))
	}
	return err
}

func (u *uploader) UploadBytes(ctx context.Context, presignedURL string, data []byte, contentType string) error {
	ctx, span := tracer.Start(ctx, "upload.put",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upload.content_type", contentType),
			attribute.Int("upload.bytes", len(data)),
		))
	defer span.End()

	err := u.put(ctx, presignedURL, data, contentType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		u.logger.Warn("upload failed", zap.Int("bytes", len(data)), zap.Error(err))
	}
	return err
}

func (u *uploader) put(ctx context.Context, presignedURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, bytes.NewReader(data))
	if err != nil {
		return common.NewError(common.ErrUploadFailed, "invalid upload URL").WithCause(err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return common.NewError(common.ErrUploadFailed, "upload request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return common.Errorf(common.ErrUploadFailed, "storage answered %s", resp.Status).
			WithCause(fmt.Errorf("response body: %q", body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
