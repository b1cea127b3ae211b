package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeGeometry marks a malformed or degenerate rectangle. These are
	// handled locally as a cancel, never surfaced to the user.
	ErrorTypeGeometry ErrorType = "geometry"
	// ErrorTypeCapture marks exhaustion of every capture strategy.
	ErrorTypeCapture ErrorType = "capture"
	// ErrorTypeTransport marks a network-level failure: unreachable host,
	// TLS, connection reset. Recoverable via outbox or cache fallback.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeApplication marks a reachable endpoint rejecting the payload.
	ErrorTypeApplication ErrorType = "application"
	// ErrorTypeTimeout marks a request that expired before any response.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInternal marks everything else.
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewGeometryError creates a new geometry error
func NewGeometryError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeGeometry,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewCaptureError creates a new capture error
func NewCaptureError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCapture,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewTransportError creates a new transport error
func NewTransportError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTransport,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewApplicationError creates a new application error with the remote status
func NewApplicationError(message string, statusCode int, cause error) *AppError {
	if statusCode == 0 {
		statusCode = http.StatusUnprocessableEntity
	}
	return &AppError{
		Type:       ErrorTypeApplication,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// IsType checks if the error is of a specific type anywhere in its chain.
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
