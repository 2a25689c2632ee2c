package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a specific error type for API operations.
type ErrorCode string

const (
	// ErrCodeRateLimitExceeded indicates the client exceeded its request budget.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeSessionNotFound indicates the requested session does not exist.
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrCodeSessionExists indicates a session id collision on create.
	ErrCodeSessionExists ErrorCode = "SESSION_EXISTS"
	// ErrCodeVoiceNotConfigured indicates the upstream voice credentials are missing.
	ErrCodeVoiceNotConfigured ErrorCode = "VOICE_NOT_CONFIGURED"
	// ErrCodeUpstreamUnavailable indicates the upstream voice agent failed mid-connection.
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	// ErrCodeChatUnavailable indicates the chat completion backend is not usable.
	ErrCodeChatUnavailable ErrorCode = "CHAT_UNAVAILABLE"
	// ErrCodeInternal indicates an unexpected server-side failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// APIError represents a structured error for API operations.
type APIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// RetryAfter carries the rate-limit backoff in seconds, zero otherwise.
	RetryAfter int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to an HTTP status code.
func (e *APIError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodeSessionExists:
		return http.StatusConflict
	case ErrCodeVoiceNotConfigured, ErrCodeChatUnavailable, ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Convenience constructors for common error types.

// RateLimitExceeded creates a rate limit exceeded error with a retry hint.
func RateLimitExceeded(retryAfter int) *APIError {
	return &APIError{
		Code:       ErrCodeRateLimitExceeded,
		Message:    fmt.Sprintf("Too many requests. Please wait %d seconds.", retryAfter),
		RetryAfter: retryAfter,
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *APIError {
	return &APIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// SessionNotFound creates a session not found error.
func SessionNotFound() *APIError {
	return &APIError{Code: ErrCodeSessionNotFound, Message: "session not found"}
}

// SessionExists creates a duplicate session id error.
func SessionExists() *APIError {
	return &APIError{Code: ErrCodeSessionExists, Message: "session already exists"}
}

// VoiceNotConfigured creates a missing voice credentials error.
func VoiceNotConfigured() *APIError {
	return &APIError{
		Code:    ErrCodeVoiceNotConfigured,
		Message: "Voice service not configured. Set ELEVENLABS_API_KEY and ELEVENLABS_AGENT_ID.",
	}
}

// UpstreamUnavailable creates an upstream transport error.
func UpstreamUnavailable(cause error) *APIError {
	return &APIError{Code: ErrCodeUpstreamUnavailable, Message: "lost connection to voice service", Cause: cause}
}

// ChatUnavailable creates a chat backend unavailable error.
func ChatUnavailable(cause error) *APIError {
	return &APIError{Code: ErrCodeChatUnavailable, Message: "chat service unavailable", Cause: cause}
}

// Internal creates an internal error.
func Internal(msg string, cause error) *APIError {
	return &APIError{Code: ErrCodeInternal, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Code == code
	}
	return false
}
