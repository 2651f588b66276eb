// Package errors provides classified errors for the analysis service.
// Call sites decide retry and surfacing behavior from the class, never by
// matching message strings.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorClass classifies an error for propagation policy.
type ErrorClass int

const (
	// ClassUnknown indicates an unclassified error.
	ClassUnknown ErrorClass = iota
	// ClassValidation indicates bad input, rejected before side effects.
	ClassValidation
	// ClassNotFound indicates a missing resource.
	ClassNotFound
	// ClassUnavailable indicates a collaborator outage, retryable.
	ClassUnavailable
	// ClassRateLimited indicates collaborator throttling, retryable.
	ClassRateLimited
	// ClassTimeout indicates a bounded call that ran out of time.
	ClassTimeout
	// ClassSchema indicates a collaborator returned structurally invalid output.
	ClassSchema
	// ClassInternal indicates an unexpected internal failure.
	ClassInternal
)

// String returns the class name used in logs and error text.
func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not_found"
	case ClassUnavailable:
		return "unavailable"
	case ClassRateLimited:
		return "rate_limited"
	case ClassTimeout:
		return "timeout"
	case ClassSchema:
		return "schema"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ClassifiedError is an error carrying a class, the failing operation and
// an optional retry-after hint from a throttling collaborator.
type ClassifiedError struct {
	Class      ErrorClass
	Op         string
	Message    string
	RetryAfter time.Duration

	cause error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Op, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// WithRetryAfter attaches a throttling hint and returns the error.
func (e *ClassifiedError) WithRetryAfter(d time.Duration) *ClassifiedError {
	e.RetryAfter = d
	return e
}

// New creates a classified error.
func New(class ErrorClass, op, message string) *ClassifiedError {
	return &ClassifiedError{Class: class, Op: op, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(class ErrorClass, op, format string, args ...interface{}) *ClassifiedError {
	return &ClassifiedError{Class: class, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(err error, class ErrorClass, op, message string) *ClassifiedError {
	if err == nil {
		return nil
	}
	if message == "" {
		message = err.Error()
	}
	return &ClassifiedError{Class: class, Op: op, Message: message, cause: err}
}

// Validation creates a validation error.
func Validation(op, format string, args ...interface{}) *ClassifiedError {
	return Newf(ClassValidation, op, format, args...)
}

// NotFound creates a not-found error.
func NotFound(op, format string, args ...interface{}) *ClassifiedError {
	return Newf(ClassNotFound, op, format, args...)
}

// Unavailable wraps a collaborator outage.
func Unavailable(err error, op string) *ClassifiedError {
	return Wrap(err, ClassUnavailable, op, "")
}

// RateLimited wraps a throttling response.
func RateLimited(err error, op string) *ClassifiedError {
	return Wrap(err, ClassRateLimited, op, "")
}

// Timeout wraps an expired call.
func Timeout(err error, op string) *ClassifiedError {
	return Wrap(err, ClassTimeout, op, "")
}

// Schema wraps structurally invalid collaborator output.
func Schema(err error, op, format string, args ...interface{}) *ClassifiedError {
	ce := Wrap(err, ClassSchema, op, fmt.Sprintf(format, args...))
	if ce == nil {
		ce = Newf(ClassSchema, op, format, args...)
	}
	return ce
}

// Internal wraps an unexpected failure.
func Internal(err error, op string) *ClassifiedError {
	return Wrap(err, ClassInternal, op, "")
}

// ClassOf extracts the class from an error chain. Plain context errors map
// to timeout so callers treat expired calls uniformly.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce.Class
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	return ClassUnknown
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return ClassOf(err) == ClassValidation
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return ClassOf(err) == ClassNotFound
}

// IsSchema reports whether err is a schema violation.
func IsSchema(err error) bool {
	return ClassOf(err) == ClassSchema
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	return ClassOf(err) == ClassTimeout
}

// IsRetryable reports whether a bounded retry at the call site is sane.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case ClassUnavailable, ClassRateLimited, ClassTimeout:
		return true
	default:
		return false
	}
}

// ClassifyHTTPStatus maps a collaborator HTTP status to an error class.
func ClassifyHTTPStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ClassRateLimited
	case status == 408 || status == 504:
		return ClassTimeout
	case status == 404:
		return ClassNotFound
	case status == 400 || status == 422:
		return ClassValidation
	case status >= 500:
		return ClassUnavailable
	default:
		return ClassUnknown
	}
}
