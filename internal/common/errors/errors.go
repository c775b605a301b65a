// Package errors provides the standardized error taxonomy shared by the
// aggregator and the render stage.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Upstream client
	ErrCodeUnknownUpstream   ErrorCode = "UNKNOWN_UPSTREAM"
	ErrCodeUnsupportedMethod ErrorCode = "UNSUPPORTED_METHOD"
	ErrCodeTransport         ErrorCode = "TRANSPORT_ERROR"
	ErrCodeUpstreamTimeout   ErrorCode = "UPSTREAM_TIMEOUT"

	// Render stage
	ErrCodeDownloadFailure     ErrorCode = "DOWNLOAD_FAILURE"
	ErrCodeMissingLocalAsset   ErrorCode = "MISSING_LOCAL_ASSET"
	ErrCodeExternalToolFailure ErrorCode = "EXTERNAL_TOOL_FAILURE"

	// Aggregator
	ErrCodeRenderFailed ErrorCode = "RENDER_FAILED"

	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	cause      error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// LogFields flattens the error into logger fields. Metadata never
// overrides the fixed keys.
func (e *StandardError) LogFields() map[string]interface{} {
	fields := make(map[string]interface{}, len(e.Metadata)+4)
	for k, v := range e.Metadata {
		fields[k] = v
	}
	fields["errorCode"] = string(e.Code)
	fields["errorCategory"] = GetErrorCategory(e.Code)
	fields["details"] = e.Details
	if e.StatusCode != 0 {
		fields["upstreamStatus"] = e.StatusCode
	}
	return fields
}

// Is matches another StandardError by code so callers can use errors.Is with a sentinel.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnknownUpstream     = &StandardError{Code: ErrCodeUnknownUpstream}
	ErrUnsupportedMethod   = &StandardError{Code: ErrCodeUnsupportedMethod}
	ErrTransport           = &StandardError{Code: ErrCodeTransport}
	ErrUpstreamTimeout     = &StandardError{Code: ErrCodeUpstreamTimeout}
	ErrMissingLocalAsset   = &StandardError{Code: ErrCodeMissingLocalAsset}
	ErrExternalToolFailure = &StandardError{Code: ErrCodeExternalToolFailure}
	ErrRenderFailed        = &StandardError{Code: ErrCodeRenderFailed}
	ErrInvalidRequest      = &StandardError{Code: ErrCodeInvalidRequest}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewUnknownUpstreamError reports a logical service name missing from the registry.
func NewUnknownUpstreamError(service string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownUpstream,
		Message:   "Upstream service not found in registry",
		Details:   fmt.Sprintf("service: %s", service),
		Retryable: false,
		Metadata:  map[string]interface{}{"service": service},
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedMethodError reports a method the client or the descriptor does not allow.
func NewUnsupportedMethodError(service, method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedMethod,
		Message:   fmt.Sprintf("Method %s not supported", method),
		Details:   fmt.Sprintf("service: %s, method: %s", service, method),
		Retryable: false,
		Metadata:  map[string]interface{}{"service": service, "method": method},
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps a network failure, non-2xx status or undecodable body.
// statusCode is zero when no response was received.
func NewTransportError(service string, statusCode int, err error) *StandardError {
	details := fmt.Sprintf("service: %s", service)
	if statusCode != 0 {
		details = fmt.Sprintf("%s, status: %d", details, statusCode)
	}
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return &StandardError{
		Code:       ErrCodeTransport,
		Message:    "Error fetching data from upstream",
		Details:    details,
		StatusCode: statusCode,
		Retryable:  true,
		Metadata:   map[string]interface{}{"service": service},
		Timestamp:  time.Now().UTC(),
		cause:      err,
	}
}

// NewUpstreamTimeoutError reports an upstream call that exceeded its deadline.
func NewUpstreamTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamTimeout,
		Message:   "Upstream call timed out",
		Details:   fmt.Sprintf("service: %s", service),
		Retryable: true,
		Metadata:  map[string]interface{}{"service": service},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDownloadFailureError describes a failed image acquisition. It is only
// logged: the downloader recovers with the bundled fallback asset.
func NewDownloadFailureError(url string, statusCode int, err error) *StandardError {
	details := fmt.Sprintf("url: %s", url)
	if statusCode != 0 {
		details = fmt.Sprintf("%s, status: %d", details, statusCode)
	}
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return &StandardError{
		Code:       ErrCodeDownloadFailure,
		Message:    "Failed to download image",
		Details:    details,
		StatusCode: statusCode,
		Retryable:  false,
		Metadata:   map[string]interface{}{"url": url},
		Timestamp:  time.Now().UTC(),
		cause:      err,
	}
}

// NewMissingLocalAssetError reports an input image that is absent on disk.
func NewMissingLocalAssetError(path string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingLocalAsset,
		Message:   "downloaded image file not found",
		Details:   fmt.Sprintf("path: %s", path),
		Retryable: false,
		Metadata:  map[string]interface{}{"assetPath": path},
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalToolFailureError reports a failed annotation invocation.
func NewExternalToolFailureError(tool string, err error) *StandardError {
	details := fmt.Sprintf("tool: %s", tool)
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeExternalToolFailure,
		Message:   "Image annotation failed",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"tool": tool},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRenderFailedError reports a terminal failure of the render upstream.
func NewRenderFailedError(cause *StandardError) *StandardError {
	e := &StandardError{
		Code:      ErrCodeRenderFailed,
		Message:   "Failed to fetch picture from meminator",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
	if cause != nil {
		e.Details = cause.Error()
		e.StatusCode = cause.StatusCode
		e.Metadata = cause.Metadata
		e.cause = cause
	}
	return e
}

// NewEmptyRenderBodyError reports a successful render call that returned no bytes.
func NewEmptyRenderBodyError(statusCode int) *StandardError {
	return &StandardError{
		Code:       ErrCodeRenderFailed,
		Message:    "Failed to fetch picture from meminator",
		Details:    fmt.Sprintf("empty body, status: %d", statusCode),
		StatusCode: statusCode,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewInvalidRequestError reports a malformed inbound request body.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// ==========================
// 3. Classification
// ==========================

// HTTPStatus maps an error code to the status returned to inbound callers.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for logs and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeUnknownUpstream, ErrCodeUnsupportedMethod:
		return "configuration"
	case ErrCodeTransport, ErrCodeUpstreamTimeout, ErrCodeDownloadFailure:
		return "transport"
	case ErrCodeMissingLocalAsset, ErrCodeExternalToolFailure, ErrCodeRenderFailed:
		return "render"
	case ErrCodeInvalidRequest:
		return "client"
	default:
		return "internal"
	}
}

// IsConfigurationError reports caller/configuration defects as opposed to transient faults.
func IsConfigurationError(err error) bool {
	var stdErr *StandardError
	if !stderrors.As(err, &stdErr) {
		return false
	}
	return GetErrorCategory(stdErr.Code) == "configuration"
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}
