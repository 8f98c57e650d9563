package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeConnectionFailed indicates the backing store is unreachable.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeNotInitialized indicates an operation was attempted before Connect.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested session or key was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request carried an invalid credential.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeTokenExpired indicates the authentication token has expired.
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
)

// Internal errors
const (
	// ErrCodeCircuitOpen indicates tracking was disabled after repeated failures.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed: true,
	ErrCodeNotInitialized:   false,
	ErrCodeNotFound:         false,
	ErrCodeUnauthorized:     false,
	ErrCodeTokenExpired:     false,
	ErrCodeCircuitOpen:      false,
	ErrCodeInternal:         false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
