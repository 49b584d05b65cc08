// Package errors provides standardized domain errors with codes for the Narrator API.
//
// Usage:
//
//	// In services - return typed errors
//	if merged > maxBytes {
//	    return errors.SizeExceeded("merged segment exceeds synthesis ceiling")
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrSizeExceeded) {
//	    response.UnprocessableEntity(w, err.Error(), logger)
//	    return
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeSizeExceeded:
//	        ...
//	    case errors.CodeLastSegment:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeValidation    Code = "VALIDATION"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL"

	// Plan operation failures.
	CodeSizeExceeded    Code = "SIZE_EXCEEDED"
	CodeInvalidPosition Code = "INVALID_POSITION"
	CodeNoNeighbor      Code = "NO_NEIGHBOR"
	CodeLastSegment     Code = "LAST_SEGMENT"
	CodeOversizedUnit   Code = "OVERSIZED_UNIT"

	// Synthesis failures.
	CodeGenerationTimeout Code = "GENERATION_TIMEOUT"
	CodeGenerationFailed  Code = "GENERATION_FAILED"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeValidation, CodeInvalidPosition:
		return http.StatusBadRequest
	case CodeSizeExceeded, CodeNoNeighbor, CodeLastSegment, CodeOversizedUnit:
		return http.StatusUnprocessableEntity
	case CodeGenerationTimeout:
		return http.StatusGatewayTimeout
	case CodeGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
	ErrSizeExceeded      = &Error{Code: CodeSizeExceeded, Message: "size ceiling exceeded"}
	ErrInvalidPosition   = &Error{Code: CodeInvalidPosition, Message: "invalid position"}
	ErrNoNeighbor        = &Error{Code: CodeNoNeighbor, Message: "no neighboring segment"}
	ErrLastSegment       = &Error{Code: CodeLastSegment, Message: "cannot delete last segment"}
	ErrOversizedUnit     = &Error{Code: CodeOversizedUnit, Message: "unsplittable unit exceeds ceiling"}
	ErrGenerationTimeout = &Error{Code: CodeGenerationTimeout, Message: "synthesis timed out"}
	ErrGenerationFailed  = &Error{Code: CodeGenerationFailed, Message: "synthesis failed"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// SizeExceeded creates a size ceiling error.
func SizeExceeded(msg string) *Error {
	return &Error{Code: CodeSizeExceeded, Message: msg}
}

// SizeExceededf creates a size ceiling error with formatted message.
func SizeExceededf(format string, args ...any) *Error {
	return &Error{Code: CodeSizeExceeded, Message: fmt.Sprintf(format, args...)}
}

// InvalidPosition creates an invalid position error.
func InvalidPosition(msg string) *Error {
	return &Error{Code: CodeInvalidPosition, Message: msg}
}

// NoNeighbor creates a missing neighbor error.
func NoNeighbor(msg string) *Error {
	return &Error{Code: CodeNoNeighbor, Message: msg}
}

// LastSegment creates a last segment error.
func LastSegment(msg string) *Error {
	return &Error{Code: CodeLastSegment, Message: msg}
}

// OversizedUnit creates an oversized atomic unit error.
func OversizedUnit(msg string) *Error {
	return &Error{Code: CodeOversizedUnit, Message: msg}
}

// GenerationTimeout creates a synthesis timeout error.
func GenerationTimeout(msg string) *Error {
	return &Error{Code: CodeGenerationTimeout, Message: msg}
}

// GenerationFailed creates a synthesis failure error.
func GenerationFailed(msg string) *Error {
	return &Error{Code: CodeGenerationFailed, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
