// Package errors provides structured error types for crateprune.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and library packages
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Taxonomy
//
// Fatal configuration errors abort the whole run: an invocation this tool
// cannot interpret, a dependency target without a library, an unreadable
// usage artifact. Recoverable conditions (ambiguous library names,
// lint/locality mismatches) are warnings, not errors, and never surface
// through this package.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInvocation, "no crate name for %s", pkg)
//	if errors.Is(err, errors.ErrCodeInvalidInvocation) {
//	    // handle
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeArtifact, origErr, "loading %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different failure categories.
const (
	// Compiler invocations missing required metadata (crate name,
	// output directory) that this tool cannot interpret.
	ErrCodeInvalidInvocation Code = "INVALID_INVOCATION"

	// A dependency edge whose target package exposes no library target.
	ErrCodeNoLibrary Code = "NO_LIBRARY_TARGET"

	// A missing or malformed usage-analysis artifact.
	ErrCodeArtifact Code = "ARTIFACT_UNREADABLE"

	// Workspace/metadata resolution failures.
	ErrCodeWorkspace Code = "WORKSPACE_ERROR"

	// Invalid crateprune.toml or flag values.
	ErrCodeConfig Code = "CONFIG_ERROR"

	// The build itself failed; propagated from the orchestrator.
	ErrCodeBuildFailed Code = "BUILD_FAILED"

	// Unexpected internal errors.
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

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
