package smcerr

import "fmt"

// Code identifies a kind of failure raised by the skills management core.
type Code string

// Repository error kinds.
const (
	CodeUnknownSkill      Code = "UNKNOWN_SKILL"
	CodeDuplicateName     Code = "DUPLICATE_NAME"
	CodeInvalidType       Code = "INVALID_TYPE"
	CodeUnknownDependency Code = "UNKNOWN_DEPENDENCY"
	CodeIntegrityViolation Code = "INTEGRITY_VIOLATION"
)

// VectorIndex error kinds.
const (
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	CodeVectorUnavailable Code = "VECTOR_UNAVAILABLE"
	CodeCorruption        Code = "CORRUPTION"
)

// Cross-cutting I/O error kind (history log, export/import paths).
const (
	CodeIOFailure Code = "IO_FAILURE"
)

// Error is a structured error carrying a stable Code alongside a
// human-readable message and an optional cause.
type Error struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable and returns the receiver.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetCode extracts the Code from err, returning "" if err is not an *Error.
func GetCode(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}
