// Package errors provides the coded error type used across appenmapper.
// Every failure a caller is expected to surface to a user carries a Code,
// a short message and optional context fields.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code identifies an error class for programmatic handling.
type Code string

const (
	// Input errors (1xx)
	CodeLoadFailure      Code = "E103"
	CodeMissingKeyColumn Code = "E104"
	CodeEncodingError    Code = "E106"
	CodeMissingUploads   Code = "E107"

	// Processing errors (2xx)
	CodeInvalidMapping Code = "E203"
	CodeInvalidConfig  Code = "E204"

	// Output errors (3xx)
	CodeWriteFailed Code = "E301"

	// System errors (4xx)
	CodeCanceled Code = "E401"

	// Access errors (6xx)
	CodeUnauthorized Code = "E601"

	// Unknown
	CodeUnknown Code = "E999"
)

// Error is the base error type for all appenmapper errors.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface. Context keys are printed sorted so
// messages are stable.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds a context field to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Get returns a context field.
func (e *Error) Get(key string) (any, bool) {
	v, ok := e.Context[key]
	return v, ok
}

// New creates a new Error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps an existing error. It returns nil when err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Sentinels for errors.Is checks.
var (
	ErrMissingKeyColumn = &Error{Code: CodeMissingKeyColumn}
	ErrLoadFailure      = &Error{Code: CodeLoadFailure}
	ErrMissingUploads   = &Error{Code: CodeMissingUploads}
	ErrInvalidMapping   = &Error{Code: CodeInvalidMapping}
	ErrInvalidConfig    = &Error{Code: CodeInvalidConfig}
	ErrWriteFailed      = &Error{Code: CodeWriteFailed}
	ErrUnauthorized     = &Error{Code: CodeUnauthorized}
	ErrCanceled         = &Error{Code: CodeCanceled}
)

// --- Convenience constructors ---

// MissingKeyColumn reports that a dataset lacks the configured key column.
func MissingKeyColumn(dataset, column string, available []string) *Error {
	return New(CodeMissingKeyColumn, fmt.Sprintf("%s dataset must contain column '%s'", dataset, column)).
		WithContext("dataset", dataset).
		WithContext("column", column).
		WithContext("available", available)
}

// LoadFailure reports that an uploaded or opened file could not be parsed.
func LoadFailure(name string, err error) *Error {
	return Wrap(err, CodeLoadFailure, "failed to load table").WithContext("file", name)
}

// MissingUploads reports which inputs were never provided.
func MissingUploads(missing ...string) *Error {
	return New(CodeMissingUploads, "both the master and the target file are required").
		WithContext("missing", strings.Join(missing, ","))
}

// InvalidMapping reports a bad column mapping table.
func InvalidMapping(reason string) *Error {
	return New(CodeInvalidMapping, reason)
}

// WriteFailed reports an export failure.
func WriteFailed(target string, err error) *Error {
	return Wrap(err, CodeWriteFailed, "failed to write output").WithContext("target", target)
}

// Canceled reports that an operation was canceled.
func Canceled(operation string) *Error {
	return New(CodeCanceled, "operation canceled").WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// As is errors.As, re-exported so callers need not import both packages.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is, re-exported so callers need not import both packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// UserMessage renders err as the one-line text shown to people using the
// web UI or CLI. Uncoded errors fall back to err.Error().
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Code {
	case CodeMissingUploads:
		return "Please upload both File 1 and File 2 before running the mapper."
	case CodeMissingKeyColumn:
		col, _ := e.Get("column")
		return fmt.Sprintf("Both files must contain column '%v'.", col)
	case CodeLoadFailure:
		file, _ := e.Get("file")
		if e.Cause != nil {
			return fmt.Sprintf("Could not read %v: %s", file, UserMessage(e.Cause))
		}
		return fmt.Sprintf("Could not read %v.", file)
	}

	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}
