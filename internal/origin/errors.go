package origin

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes origin failures.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the origin has no record for the target.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeTransientIO indicates a transport failure, timeout, or a
	// retryable status code.
	ErrCodeTransientIO ErrorCode = "TRANSIENT_IO"

	// ErrCodeMalformedData indicates a response that does not decode into
	// the expected record shape.
	ErrCodeMalformedData ErrorCode = "MALFORMED_DATA"
)

// Error is returned by every Origin operation that fails.
type Error struct {
	// Op is the operation that failed (one of the Op* constants).
	Op string

	// Target identifies what was requested: an ID, a handle, or a
	// handle@timestamp pair.
	Target string

	// Code identifies the error category.
	Code ErrorCode

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", e.Code, e.Op, e.Target)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err is an origin NOT_FOUND error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsTransient returns true if err is an origin TRANSIENT_IO error.
func IsTransient(err error) bool {
	return hasCode(err, ErrCodeTransientIO)
}

// IsMalformed returns true if err is an origin MALFORMED_DATA error.
func IsMalformed(err error) bool {
	return hasCode(err, ErrCodeMalformedData)
}

func hasCode(err error, code ErrorCode) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

// NotFound builds a NOT_FOUND error.
func NotFound(op, target string) *Error {
	return &Error{Op: op, Target: target, Code: ErrCodeNotFound}
}

// Transient builds a TRANSIENT_IO error.
func Transient(op, target string, err error) *Error {
	return &Error{Op: op, Target: target, Code: ErrCodeTransientIO, Err: err}
}

// Malformed builds a MALFORMED_DATA error.
func Malformed(op, target string, err error) *Error {
	return &Error{Op: op, Target: target, Code: ErrCodeMalformedData, Err: err}
}

// Outcome maps an error to a short label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNotFound(err):
		return "not_found"
	case IsTransient(err):
		return "transient"
	case IsMalformed(err):
		return "malformed"
	default:
		return "error"
	}
}
