package common

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a failure class surfaced at component boundaries.
type ErrorCode string

// Loader error codes. All of these are recoverable by retrying with the same or a fallback source.
const (
	ErrLoadTimeout      ErrorCode = "LOAD_TIMEOUT"
	ErrLoadNetwork      ErrorCode = "LOAD_NETWORK_ERROR"
	ErrEmptyAsset       ErrorCode = "EMPTY_ASSET"
	ErrMalformedAsset   ErrorCode = "MALFORMED_ASSET"
	ErrRetryLimit       ErrorCode = "RETRY_LIMIT_EXCEEDED"
	ErrDegenerateGeom   ErrorCode = "DEGENERATE_GEOMETRY"
	ErrAmbiguousBinding ErrorCode = "AMBIGUOUS_BINDING"
)

// Customization and export error codes.
const (
	ErrNoModelLoaded     ErrorCode = "NO_MODEL_LOADED"
	ErrSerializer        ErrorCode = "SERIALIZER_INTERNAL_ERROR"
	ErrExportInProgress  ErrorCode = "EXPORT_IN_PROGRESS"
	ErrViewerClosed      ErrorCode = "VIEWER_CLOSED"
	ErrInvalidColor      ErrorCode = "INVALID_COLOR"
	ErrUploadFailed      ErrorCode = "UPLOAD_FAILED"
	ErrUnknownPart       ErrorCode = "UNKNOWN_PART"
	ErrInvalidSourceKind ErrorCode = "INVALID_SOURCE"
)

// Error is the structured error returned across component boundaries.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
// Loader codes are marked retryable.
//
// Parameters:
//   - code: the failure class
//   - message: human readable description
//
// Returns:
//   - *Error: the new error
func NewError(code ErrorCode, message string) *Error {
	e := &Error{Code: code, Message: message}
	switch code {
	case ErrLoadTimeout, ErrLoadNetwork, ErrEmptyAsset, ErrMalformedAsset:
		e.Retryable = true
	}
	return e
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithCause attaches a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable overrides the retryable flag.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether any *Error in err's chain is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf extracts the error code of the first *Error in err's chain.
// Returns an empty code when err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err's tree carries an *Error with the given code. Joined errors are searched too.
func IsCode(err error, code ErrorCode) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *Error:
		return x != nil && (x.Code == code || IsCode(x.Cause, code))
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if IsCode(e, code) {
				return true
			}
		}
		return false
	}
	return IsCode(errors.Unwrap(err), code)
}
