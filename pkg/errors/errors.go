// Package errors provides structured error types for pinaccess.
//
// This package defines error codes and types that enable:
//   - A fixed taxonomy separating fatal model errors from soft search failures
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Fatal codes mean upstream data is unroutable or inconsistent and the
// enclosing solve must abort:
//   - NO_ACCESS_POINT: a pin has no legal access point after every tier
//   - NO_ROW_PATH: the row dynamic program found no path to its sink
//   - UNKNOWN_MASTER: an instance refers to an unregistered master
//
// Soft codes are recovered by the caller, which skips the unit and continues:
//   - NO_PIN_LAYERS: a master has no pin on a routing layer
//   - NO_PATTERN: no valid access pattern exists for an instance
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNoAccessPoint, "pin %s/%s", inst, term)
//	if errors.IsFatal(err) {
//	    return err
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeOracle, origErr, "check via at %v", pt)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Fatal model errors
	ErrCodeNoAccessPoint Code = "NO_ACCESS_POINT"
	ErrCodeNoRowPath     Code = "NO_ROW_PATH"
	ErrCodeUnknownMaster Code = "UNKNOWN_MASTER"

	// Soft search failures
	ErrCodeNoPinLayers Code = "NO_PIN_LAYERS"
	ErrCodeNoPattern   Code = "NO_PATTERN"

	// Input validation errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidDesign Code = "INVALID_DESIGN"
	ErrCodeNotFound      Code = "NOT_FOUND"

	// Collaborator failures
	ErrCodeOracle      Code = "ORACLE_FAILURE"
	ErrCodeBatchFailed Code = "BATCH_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// softCodes lists the codes a caller may recover from by skipping the unit.
var softCodes = map[Code]bool{
	ErrCodeNoPinLayers: true,
	ErrCodeNoPattern:   true,
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so package sentinels built with New can
// be used with the standard errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsSoft reports whether err is a recoverable search failure.
func IsSoft(err error) bool {
	return err != nil && softCodes[GetCode(err)]
}

// IsFatal reports whether err must abort the enclosing solve. Every non-nil
// error that is not soft is fatal, including errors without a code.
func IsFatal(err error) bool {
	return err != nil && !IsSoft(err)
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
