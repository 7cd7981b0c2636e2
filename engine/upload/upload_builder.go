package upload

import (
	"net/http"

	"go.uber.org/zap"
)

// UploaderBuilderOption is a functional option for configuring an Uploader via NewUploader.
type UploaderBuilderOption func(*uploader)

// WithHTTPClient replaces the default client, which times out after two minutes.
//
// Parameters:
//   - c: the client; nil is ignored
//
// Returns:
//   - UploaderBuilderOption: option function to apply
func WithHTTPClient(c *http.Client) UploaderBuilderOption {
	return func(u *uploader) {
		if c != nil {
			u.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) UploaderBuilderOption {
	return func(u *uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}
