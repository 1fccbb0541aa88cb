package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a pulsekit error code.
type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"        // referenced file or directory is absent
	ErrFormat         ErrorCode = "FORMAT_ERROR"     // malformed selections, pulses text or archive
	ErrValidation     ErrorCode = "VALIDATION_ERROR" // data-model invariant violated
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"  // bad caller input
	ErrCancelled      ErrorCode = "CANCELLED"
	ErrInternal       ErrorCode = "INTERNAL"
)

// PulseError represents a structured error with code, message, and details.
type PulseError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *PulseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status returns the HTTP status reported for the error's code.
func (e *PulseError) Status() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrFormat, ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrCancelled:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// Unwrap returns the underlying cause, if any.
func (e *PulseError) Unwrap() error {
	return e.Err
}

// NewNotFound creates an error for a missing file or directory.
func NewNotFound(path string) *PulseError {
	return &PulseError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewFormat creates an error for malformed input read from source.
func NewFormat(source, msg string) *PulseError {
	return &PulseError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("%s: %s", source, msg),
		Details: map[string]any{"source": source},
	}
}

// NewParseLine creates a format error for one unparsable line of a text file.
// line is 1-based.
func NewParseLine(source string, line int, content string, cause error) *PulseError {
	msg := fmt.Sprintf("%s:%d: cannot parse %q", source, line, content)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &PulseError{
		Code:    ErrFormat,
		Message: msg,
		Details: map[string]any{"source": source, "line": line, "content": content},
		Err:     cause,
	}
}

// NewLengthMismatch creates a format error for an approval mask whose length
// does not match the pulse count.
func NewLengthMismatch(expected, actual int) *PulseError {
	return &PulseError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("selections length %d does not match pulse count %d", actual, expected),
		Details: map[string]any{"expected": expected, "actual": actual},
	}
}

// NewNoMatchingGroup creates a format error for an aggregate selections file
// without a group for fileName.
func NewNoMatchingGroup(fileName string) *PulseError {
	return &PulseError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("no matching group for %q in selections", fileName),
		Details: map[string]any{"file_name": fileName},
	}
}

// NewValidation creates an error for a violated data-model invariant.
func NewValidation(msg string) *PulseError {
	return &PulseError{
		Code:    ErrValidation,
		Message: msg,
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *PulseError {
	return &PulseError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewCancelled creates an error for an operation interrupted by its context.
func NewCancelled(op string) *PulseError {
	return &PulseError{
		Code:    ErrCancelled,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *PulseError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &PulseError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err is, or wraps, a PulseError with the given code.
func Is(err error, code ErrorCode) bool {
	var pErr *PulseError
	if stderrors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}
