// Package errors defines the service error taxonomy shared across the API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used throughout the service. Handlers and middleware switch on
// these rather than on message text.
const (
	CodeCellAbsent       = "CELL_ABSENT"
	CodeNoActiveSession  = "NO_ACTIVE_SESSION"
	CodeUnknownResource  = "UNKNOWN_RESOURCE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// ServiceError carries a stable code, an HTTP status and optional structured
// details. It wraps an underlying cause when one exists.
type ServiceError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a key/value pair to the error and returns it for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a ServiceError with an explicit code and status.
func New(code, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Absent reports a read from a task-local cell that was never bound. This is
// an ordering bug in the pipeline, not a user error, and surfaces as a 500.
func Absent(cell string) *ServiceError {
	return New(CodeCellAbsent, fmt.Sprintf("task-local cell %q has no value", cell), http.StatusInternalServerError)
}

// NoActiveSession reports use of the session proxy outside a live request
// lifecycle, or after cleanup already ran.
func NoActiveSession() *ServiceError {
	return New(CodeNoActiveSession, "no database session is bound to the current request", http.StatusInternalServerError)
}

// UnknownResource reports a resolve against an unregistered resource kind.
// It is raised during startup validation so misconfiguration fails fast.
func UnknownResource(kind string) *ServiceError {
	return New(CodeUnknownResource, fmt.Sprintf("resource kind %q is not registered", kind), http.StatusInternalServerError)
}

// Unauthorized reports a missing or unusable credential on a route that
// requires one.
func Unauthorized(message string) *ServiceError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// InvalidToken reports a credential that was present but failed verification.
func InvalidToken(cause error) *ServiceError {
	err := New(CodeInvalidToken, "token verification failed", http.StatusUnauthorized)
	err.cause = cause
	return err
}

// PermissionDenied reports an authenticated principal lacking a required permission.
func PermissionDenied(message string) *ServiceError {
	return New(CodePermissionDenied, message, http.StatusForbidden)
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *ServiceError {
	return New(CodeNotFound, fmt.Sprintf("%s %s not found", resource, id), http.StatusNotFound)
}

// RateLimitExceeded reports a request rejected by the rate limiter.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Validation reports malformed request input.
func Validation(message string) *ServiceError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *ServiceError {
	err := New(CodeInternal, message, http.StatusInternalServerError)
	err.cause = cause
	return err
}

// AsService extracts a *ServiceError from err's chain, or wraps err as an
// internal error so callers always have a status to render.
func AsService(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return Internal(err.Error(), err)
}

// HasCode reports whether err's chain contains a ServiceError with the code.
func HasCode(err error, code string) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code == code
	}
	return false
}
