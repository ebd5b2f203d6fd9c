// Package errors provides structured error handling for bmgrep.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file unavailable, partial read)
//   - 4XX: Validation and usage errors
//   - 5XX: Internal errors (worker startup)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates invalid input or usage.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the whole run.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the operation that raised it.
	SeverityError Severity = "ERROR"
	// SeverityWarning affects a single file; the run continues.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileUnavailable = "ERR_201_FILE_UNAVAILABLE"
	ErrCodeOutputLocked    = "ERR_203_OUTPUT_LOCKED"
	ErrCodePartialRead     = "ERR_207_PARTIAL_READ"
	ErrCodeAllocation      = "ERR_208_ALLOCATION"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeNoFiles        = "ERR_407_NO_FILES"
	ErrCodeInvalidFormat  = "ERR_408_INVALID_FORMAT"
	ErrCodeInvalidThreads = "ERR_409_INVALID_THREADS"

	// Internal errors (500-599)
	ErrCodeInternal    = "ERR_501_INTERNAL"
	ErrCodeWorkerStart = "ERR_506_WORKER_START"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeWorkerStart:
		return SeverityFatal
	}

	if isRecoverableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRecoverableCode reports codes that only skip the file they concern.
func isRecoverableCode(code string) bool {
	switch code {
	case ErrCodeFileUnavailable, ErrCodePartialRead, ErrCodeAllocation:
		return true
	default:
		return false
	}
}
