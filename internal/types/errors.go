package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All stages MUST use these constants instead of hardcoded strings.
const (
	// Validation (400) — rejected locally before anything is sent to the
	// platform.
	ErrCodeValidationInvalidBounds ErrorCode = "validation_invalid_bounds"
	ErrCodeValidationInvalidWindow ErrorCode = "validation_invalid_window"
	ErrCodeValidationCloudCeiling  ErrorCode = "validation_cloud_ceiling_out_of_range"
	ErrCodeValidationGeometry      ErrorCode = "validation_invalid_geometry"
	ErrCodeValidationClassLabel    ErrorCode = "validation_invalid_class_label"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationParameter     ErrorCode = "validation_invalid_parameter"

	// Empty input (422). The scene search matched nothing; the caller has to
	// widen the time window or raise the cloud ceiling. Fatal for the current
	// parameters.
	ErrCodeEmptyInputNoScenes ErrorCode = "empty_input_no_scenes"

	// Training data (422). The platform rejected the training sample as empty
	// or single-class. The platform message is preserved verbatim.
	ErrCodeTrainingData ErrorCode = "training_data_insufficient"

	// Remote platform (502). Failures reported by the geospatial platform,
	// propagated without retry.
	ErrCodeRemoteAuth        ErrorCode = "remote_auth_failed"
	ErrCodeRemoteRateLimited ErrorCode = "remote_rate_limited"
	ErrCodeRemoteUnavailable ErrorCode = "remote_unavailable"
	ErrCodeRemoteBadRequest  ErrorCode = "remote_bad_request"
	ErrCodeRemoteProtocol    ErrorCode = "remote_protocol_error"

	// Catalog (502). The Sentinel-2 archive probe could not list the bucket.
	// Advisory only; a run never aborts on this.
	ErrCodeCatalogUnavailable ErrorCode = "catalog_unavailable"

	// Rendering and artifacts (500)
	ErrCodeRenderTemplate  ErrorCode = "render_template_failed"
	ErrCodeRenderQuicklook ErrorCode = "render_quicklook_failed"
	ErrCodeArtifactWrite   ErrorCode = "artifact_write_failed"

	// Not Found (404)
	ErrCodeNotFoundRun      ErrorCode = "not_found_run"
	ErrCodeNotFoundArtifact ErrorCode = "not_found_artifact"

	// Internal (500)
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the viewer to translate AppErrors into HTTP responses and by the
// CLI to pick exit codes. Returns 500 for unrecognized error codes as a safe
// default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "empty_input_"),
		strings.HasPrefix(s, "training_data_"):
		return http.StatusUnprocessableEntity // 422
	case s == string(ErrCodeRemoteRateLimited):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "remote_"),
		strings.HasPrefix(s, "catalog_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "render_"),
		strings.HasPrefix(s, "artifact_"),
		strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the
// pipeline. All stage and client errors should be expressed as AppError to
// enable consistent error formatting, status mapping, and error chain
// support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
