package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/exporter"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	method        string
	contentType   string
	contentLength int64
	body          []byte
}

func storage(t *testing.T, status int) (*httptest.Server, *received) {
	t.Helper()
	got := &received{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.contentType = r.Header.Get("Content-Type")
		got.contentLength = r.ContentLength
		got.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<Error>SignatureDoesNotMatch</Error>"))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestUpload_PutsArtifact(t *testing.T) {
	srv, got := storage(t, http.StatusOK)
	a := exporter.Artifact{
		ID:          uuid.New(),
		Bytes:       []byte("glTF\x02\x00\x00\x00"),
		ContentType: common.ContentTypeGLB,
		SizeBytes:   8,
	}

	err := NewUploader().Upload(context.Background(), srv.URL+"/figurine.glb?sig=abc", a)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "model/gltf-binary", got.contentType)
	assert.Equal(t, int64(8), got.contentLength)
	assert.Equal(t, a.Bytes, got.body)
}

func TestUploadBytes_ContentType(t *testing.T) {
	srv, got := storage(t, http.StatusCreated)
	require.NoError(t, NewUploader().UploadBytes(context.Background(), srv.URL, []byte("RIFF"), "image/webp"))
	assert.Equal(t, "image/webp", got.contentType)
}

func TestUpload_Non2xx(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusInternalServerError, http.StatusMultipleChoices} {
		srv, _ := storage(t, status)
		err := NewUploader().UploadBytes(context.Background(), srv.URL, []byte("x"), "text/plain")
		require.Error(t, err, "status %d", status)
		assert.True(t, common.IsCode(err, common.ErrUploadFailed))
		assert.False(t, common.IsRetryable(err))
		assert.Contains(t, err.Error(), http.StatusText(status))
	}
}

func TestUpload_TransportErrors(t *testing.T) {
	u := NewUploader(WithHTTPClient(&http.Client{}))

	err := u.UploadBytes(context.Background(), "://bad", nil, "text/plain")
	assert.True(t, common.IsCode(err, common.ErrUploadFailed))

	srv, _ := storage(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = u.UploadBytes(ctx, srv.URL, []byte("x"), "text/plain")
	assert.True(t, common.IsCode(err, common.ErrUploadFailed))
	assert.ErrorIs(t, err, context.Canceled)
}
