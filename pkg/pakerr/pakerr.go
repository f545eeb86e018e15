// Package pakerr classifies the errors a PAK archive operation can return.
package pakerr

import "fmt"

// Kind categorizes the cause of an archive error.
type Kind string

const (
	// InvalidInput means the caller passed a malformed or out-of-range
	// argument: a directory descriptor where a file is needed, a byte
	// length that is not a multiple of the block size, a section or read
	// range outside the available blocks, a section never allocated.
	InvalidInput Kind = "INVALID_INPUT"
	// InvalidData means the archive's on-disk or in-memory bytes failed an
	// integrity check: a bad MAC, a version mismatch, a directory section
	// that falls outside the archive. Callers must never be handed the
	// plaintext of a section that fails this check.
	InvalidData Kind = "INVALID_DATA"
	// IoError wraps a failure from the underlying storage medium: a short
	// read, a failed write, a failed sync.
	IoError Kind = "IO_ERROR"
	// FatalEntropy means the system's cryptographic random source is
	// unavailable. This is not recoverable; callers should treat it as
	// fatal rather than retry.
	FatalEntropy Kind = "FATAL_ENTROPY"
)

// Error is the error type returned by every archive operation in this
// module.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err is an *Error carrying the given Kind, so callers
// can branch with pakerr.InvalidData.Is(err) without a type assertion.
// Wrapped errors are not unwrapped.
func (k Kind) Is(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == k
}

func newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InvalidInputf builds an InvalidInput error.
func InvalidInputf(op, format string, args ...interface{}) *Error {
	return newf(InvalidInput, op, format, args...)
}

// InvalidDataf builds an InvalidData error.
func InvalidDataf(op, format string, args ...interface{}) *Error {
	return newf(InvalidData, op, format, args...)
}

// IoErrorf wraps cause as an IoError.
func IoErrorf(op string, cause error, format string, args ...interface{}) *Error {
	e := newf(IoError, op, format, args...)
	e.Cause = cause
	return e
}

// FatalEntropyf builds a FatalEntropy error, wrapping the underlying random
// source failure that caused it.
func FatalEntropyf(op string, cause error, format string, args ...interface{}) *Error {
	e := newf(FatalEntropy, op, format, args...)
	e.Cause = cause
	return e
}
