package domain

import "errors"

// Common domain errors
var (
	ErrAccessDenied     = errors.New("access denied")
	ErrPanelNotFound    = errors.New("panel not found")
	ErrSourceFailed     = errors.New("panel source failed")
	ErrAuthzUnavailable = errors.New("authorization unavailable")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

// ErrorResponse defines the standard JSON error model returned by the console
// API. It intentionally avoids exposing sensitive details while providing a
// stable machine-readable code. TraceID should carry the current
// OpenTelemetry trace identifier when available to aid diagnostics.
type ErrorResponse struct {
	Code    string `json:"code"`               // Machine-readable error code (e.g., ACCESS_DENIED, SOURCE_FAILED)
	Message string `json:"message"`            // Human-readable message (safe for logs)
	TraceID string `json:"trace_id,omitempty"` // Optional trace/correlation ID
}
