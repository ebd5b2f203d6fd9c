package errors

import (
	"errors"
	"fmt"
)

// SearchError is the structured error type for bmgrep.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Recoverable is set when the error only affects one file and the
	// batch continues.
	Recoverable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is matches another SearchError by code, so errors.Is works against the
// sentinel values below.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SearchError) WithSuggestion(suggestion string) *SearchError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SearchError with the given code and message.
// Category, severity, and the recoverable flag are derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:        code,
		Message:     message,
		Category:    categoryFromCode(code),
		Severity:    severityFromCode(code),
		Cause:       cause,
		Recoverable: isRecoverableCode(code),
	}
}

// Wrap creates a SearchError from an existing error.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons.
var (
	ErrFileUnavailable = New(ErrCodeFileUnavailable, "file unavailable", nil)
	ErrPartialRead     = New(ErrCodePartialRead, "partial read", nil)
	ErrAllocation      = New(ErrCodeAllocation, "allocation failed", nil)
	ErrNoFiles         = New(ErrCodeNoFiles, "no files supplied", nil)
	ErrInvalidFormat   = New(ErrCodeInvalidFormat, "invalid output format", nil)
	ErrInvalidThreads  = New(ErrCodeInvalidThreads, "invalid thread count", nil)
	ErrWorkerStart     = New(ErrCodeWorkerStart, "thread creation failed", nil)
)

// FileUnavailable reports a file that could not be opened, stat'ed or mapped.
func FileUnavailable(path string, cause error) *SearchError {
	return New(ErrCodeFileUnavailable, fmt.Sprintf("cannot open %s", path), cause).
		WithDetail("path", path)
}

// PartialRead reports a file that yielded fewer bytes than its size.
func PartialRead(path string, got, want int64) *SearchError {
	return New(ErrCodePartialRead, fmt.Sprintf("read %d of %d bytes from %s", got, want, path), nil).
		WithDetail("path", path)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SearchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SearchError {
	return New(ErrCodeInternal, message, cause)
}

// IsRecoverable reports whether err only affects a single file.
func IsRecoverable(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Recoverable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SearchError.
// Returns empty string if err is not a SearchError.
func GetCode(err error) string {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
