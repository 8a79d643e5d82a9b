package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an application error.
type Code string

const (
	CodeInvalidArgument  Code = "invalid_argument"
	CodeUnauthorized     Code = "unauthorized"
	CodeForbidden        Code = "forbidden"
	CodeConflict         Code = "conflict"
	CodeNotFound         Code = "not_found"
	CodeMultipleRows     Code = "multiple_rows"
	CodePayloadTooLarge  Code = "payload_too_large"
	CodeExecutionError   Code = "execution_error"
	CodeMigrationFailure Code = "migration_failure"
)

// AppError represents a standardized application error
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"` // Internal error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped internal error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to an HTTP status code.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeMultipleRows:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// InvalidArgument creates a malformed-input error.
func InvalidArgument(message string) *AppError {
	return New(CodeInvalidArgument, message, nil)
}

// Unauthorized creates a missing/invalid-credentials error.
func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, nil)
}

// Forbidden creates an insufficient-role error.
func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, nil)
}

// Conflict creates a unique-constraint-violation error.
func Conflict(message string) *AppError {
	return New(CodeConflict, message, nil)
}

// NotFound creates a zero-rows/missing-object error.
func NotFound(message string) *AppError {
	return New(CodeNotFound, message, nil)
}

// MultipleRows signals more than one row where exactly one was expected.
func MultipleRows(message string) *AppError {
	return New(CodeMultipleRows, message, nil)
}

// PayloadTooLarge signals an upload beyond the configured byte ceiling.
func PayloadTooLarge(message string) *AppError {
	return New(CodePayloadTooLarge, message, nil)
}

// Execution wraps an underlying store or transport failure.
func Execution(err error) *AppError {
	return New(CodeExecutionError, "execution failed", err)
}

// Migration wraps a failed migration version.
func Migration(version string, err error) *AppError {
	return New(CodeMigrationFailure, fmt.Sprintf("migration %s failed", version), err)
}

// From coerces any error into an *AppError, wrapping unknown errors as execution errors.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return Execution(err)
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code Code) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == code
}
