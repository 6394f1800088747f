package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures coming back from platform endpoints and the
// proxy layer. The orchestrator keys its recovery strategy off this type.
type ErrorType string

const (
	// ErrorTypeTransient is a network blip or a 5xx. Retried with backoff.
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeBlocked is a platform-side rate-limit or ban signal. The
	// current proxy lease must be evicted before the request is retried.
	ErrorTypeBlocked ErrorType = "blocked"
	// ErrorTypeNotFound is a permanent per-item failure. Logged and skipped.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeItemWithdrawn means the item existed but was taken down.
	// Treated like not-found: logged and skipped, never retried.
	ErrorTypeItemWithdrawn ErrorType = "item_withdrawn"
	// ErrorTypeLogin is fatal for the current platform session only.
	ErrorTypeLogin ErrorType = "login"
	// ErrorTypePoolExhausted means no proxy lease was obtainable after
	// bounded provider retries. Fatal for the current task.
	ErrorTypePoolExhausted ErrorType = "pool_exhausted"
	// ErrorTypeParsing covers malformed payloads from a platform.
	ErrorTypeParsing ErrorType = "parsing"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a crawl error with type information.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error.
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(errorType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// WithCode attaches a platform status code to the error.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// IsRetryable checks if an error type should be retried as-is.
// Blocked is deliberately excluded: it is retryable only after the
// orchestrator has rotated the proxy lease.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransient:
		return true
	case ErrorTypeBlocked, ErrorTypeNotFound, ErrorTypeItemWithdrawn,
		ErrorTypeLogin, ErrorTypePoolExhausted, ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// TypeOf extracts the ErrorType from an error chain, ErrorTypeUnknown if the
// chain carries no typed error.
func TypeOf(err error) ErrorType {
	var crawlErr *Error
	if errors.As(err, &crawlErr) {
		return crawlErr.Type
	}
	return ErrorTypeUnknown
}

// IsBlocked reports whether the error chain carries a platform block signal.
func IsBlocked(err error) bool {
	return TypeOf(err) == ErrorTypeBlocked
}

// IsPermanent reports whether the error is a per-item permanent failure that
// must be logged and skipped rather than retried.
func IsPermanent(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeNotFound, ErrorTypeItemWithdrawn:
		return true
	default:
		return false
	}
}

// IsLoginFailed reports whether the error aborts the current platform session.
func IsLoginFailed(err error) bool {
	return TypeOf(err) == ErrorTypeLogin
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}
