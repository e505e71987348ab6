// Package errors defines the structured error type shared across the
// service. Every error carries a category and code so the CLI can map
// failures to exit codes and actionable suggestions, and wraps its cause
// with a stack trace for verbose diagnostics.
//
// The taxonomy mirrors how failures are handled: file and parse errors
// belong to the ingestion collaborators, configuration errors abort a
// run before any pass executes, and reconciliation findings (unmatched
// entries) are never errors at all, they are reportable outcomes.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryAudit         ErrorCategory = "audit"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFileUnreadable ErrorCode = "file_unreadable"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidRow    ErrorCode = "invalid_row"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"

	// Audit errors
	CodeKeyNotFound ErrorCode = "key_not_found"
	CodeEmptyInput  ErrorCode = "empty_input"

	// Internal errors
	CodeUnexpected ErrorCode = "unexpected_error"
)

// AuditError is the base error type for all application errors
type AuditError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *AuditError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *AuditError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code appropriate for the error
func (e *AuditError) ExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryAudit, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *AuditError) WithContext(key string, value interface{}) *AuditError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *AuditError) WithSuggestion(suggestion string) *AuditError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AuditError
func New(category ErrorCategory, code ErrorCode, message string) *AuditError {
	return &AuditError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with AuditError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *AuditError {
	if err == nil {
		return nil
	}

	return &AuditError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFileUnreadable:
		message = fmt.Sprintf("cannot read file: %s", path)
		suggestion = "check file permissions and encoding"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := New(CategoryFile, code, message)
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for a location in a
// delimited file
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column %q in file %s", column, file)
		suggestion = "verify the file header names the expected columns, or adjust the column mapping"
	case CodeInvalidRow:
		message = fmt.Sprintf("invalid data in file %s at line %d, column %q: %q", file, line, column, value)
		suggestion = "correct the value or remove the row"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and delimiter"
	}

	result := New(CategoryParse, code, message)
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// ConfigError creates a configuration error; these abort a run before
// any pass executes
func ConfigError(what string, err error) *AuditError {
	message := fmt.Sprintf("invalid configuration: %s", what)

	result := New(CategoryConfiguration, CodeInvalidConfig, message)
	if err != nil {
		result = Wrap(err, CategoryConfiguration, CodeInvalidConfig, message)
	}

	return result.WithSuggestion("fix the configuration value and rerun; nothing was processed")
}

// ValidationError creates a validation error for a named field
func ValidationError(code ErrorCode, field string, value interface{}) *AuditError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field %q: %v", field, value)
		suggestion = "amounts must be decimal numbers, e.g. 12.34 or 1.234,56"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field %q: %v", field, value)
		suggestion = "use one of the accepted date forms, e.g. 02/01/2006 or 2006-01-02"
	case CodeMissingField:
		message = fmt.Sprintf("required field %q is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("validation error in field %q: %v", field, value)
		suggestion = "check the field value and format"
	}

	return New(CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field)
}

// IsCategory reports whether err is an AuditError of the given category
func IsCategory(err error, category ErrorCategory) bool {
	var auditErr *AuditError
	if errors.As(err, &auditErr) {
		return auditErr.Category == category
	}
	return false
}

// AsAuditError extracts an AuditError from err's chain; the boolean is
// false when the chain holds none
func AsAuditError(err error) (*AuditError, bool) {
	var auditErr *AuditError
	if errors.As(err, &auditErr) {
		return auditErr, true
	}
	return nil, false
}
