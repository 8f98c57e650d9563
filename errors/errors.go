// Package errors provides unified error handling for the session and cache
// core. It implements structured error types with machine-readable codes
// and retryable detection.
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Common Error Constructors ---

// ConnectionFailed indicates the backing store is unreachable.
func ConnectionFailed(backend string) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("unable to connect to %s backend", backend),
		Retryable: true,
		Details:   map[string]any{"backend": backend},
	}
}

// NotInitialized indicates an operation was attempted before Connect.
func NotInitialized(operation string) *AppError {
	return &AppError{
		Code: ErrCodeNotInitialized, Message: "store not initialized: call Connect first",
		Retryable: false,
		Details:   map[string]any{"operation": operation},
	}
}

// NotFound indicates a session or key is absent.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", resource),
		Retryable: false, Details: details,
	}
}

// Unauthorized indicates an invalid or missing credential.
func Unauthorized(reason string) *AppError {
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		Retryable: false,
	}
}

// TokenExpired indicates the access token is expired or was rejected and
// could not be refreshed.
func TokenExpired() *AppError {
	return &AppError{
		Code: ErrCodeTokenExpired, Message: "authentication token expired",
		Retryable: false,
	}
}

// CircuitOpen indicates activity tracking was disabled after repeated
// internal failures.
func CircuitOpen(name string) *AppError {
	return &AppError{
		Code: ErrCodeCircuitOpen, Message: fmt.Sprintf("circuit %q is open", name),
		Retryable: false,
		Details:   map[string]any{"circuit": name},
	}
}

// Internal wraps an unexpected internal failure.
func Internal(message string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: message,
		Retryable: false, Cause: cause,
	}
}

// --- Inspection helpers ---

// AsAppError extracts an *AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }

// IsConnectionFailed reports whether err is a connection error.
func IsConnectionFailed(err error) bool { return HasCode(err, ErrCodeConnectionFailed) }

// IsNotInitialized reports whether err is a not-initialized error.
func IsNotInitialized(err error) bool { return HasCode(err, ErrCodeNotInitialized) }

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool {
	return HasCode(err, ErrCodeUnauthorized) || HasCode(err, ErrCodeTokenExpired)
}

// IsRetryable reports whether the operation that produced err can be retried.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}
