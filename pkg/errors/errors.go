package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Issue pinpoints a single offending input behind an error or warning.
type Issue struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Column   string `json:"column,omitempty"`
	RollNo   string `json:"roll_no,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Status  int     `json:"status"`
	Issues  []Issue `json:"issues,omitempty"`
	Err     error   `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrMalformedFile      = New("MALFORMED_FILE", http.StatusBadRequest, "file could not be read as a spreadsheet")
	ErrEmptySheet         = New("EMPTY_SHEET", http.StatusBadRequest, "spreadsheet has no data rows")
	ErrMissingColumn      = New("MISSING_COLUMN", http.StatusBadRequest, "required columns missing")
	ErrInvalidRollNumber  = New("INVALID_ROLL_NUMBER", http.StatusBadRequest, "invalid roll number")
	ErrInvalidAttendance  = New("INVALID_ATTENDANCE", http.StatusUnprocessableEntity, "attendance present exceeds conducted")
	ErrPartialGeneration  = New("PARTIAL_GENERATION", http.StatusOK, "some reports could not be generated")
	ErrGenerationFailed   = New("GENERATION_FAILED", http.StatusUnprocessableEntity, "no reports could be generated")
	ErrUnsupportedFile    = New("UNSUPPORTED_FILE", http.StatusBadRequest, "only Excel files (.xlsx, .xls) are allowed")
	ErrNoSubjectsUploaded = New("NO_SUBJECTS", http.StatusBadRequest, "no subject data uploaded")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	clone.Issues = append([]Issue(nil), err.Issues...)
	return &clone
}

// WithIssues clones err and appends the supplied issues.
func WithIssues(err *Error, message string, issues ...Issue) *Error {
	clone := Clone(err, message)
	if clone == nil {
		return nil
	}
	clone.Issues = append(clone.Issues, issues...)
	return clone
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
