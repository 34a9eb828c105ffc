package xmldb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for nil or aliased item collections,
	// an empty workspace path or an incomplete Get filter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTypeMismatch is returned when a registered type is neither a
	// Container nor a Record.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrResolution is returned when a record type cannot be mapped to a
	// container type or collection field.
	ErrResolution = errors.New("type resolution failed")
	// ErrNotFound is returned when a container file or archive is missing.
	ErrNotFound = errors.New("not found")
	// ErrFormat is returned when a document cannot be decoded.
	ErrFormat = errors.New("invalid document format")
	// ErrNoMatch is returned by filtered lookups that match no record.
	ErrNoMatch = errors.New("no matching record")
	// ErrIO is returned when the file system or the history fails while
	// reading, writing or removing workspace files.
	ErrIO = errors.New("i/o failure")
	// ErrUIDExhausted is returned when no unique identifier could be
	// generated within the retry budget.
	ErrUIDExhausted = errors.New("unique identifier generation exhausted")
)

// Error describes a failed engine operation.
//
// Kind is one of the sentinel errors above so callers can use errors.Is.
type Error struct {
	Op   string
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind error, path string, err error) *Error {
	return &Error{Op: op, Kind: kind, Path: path, Err: err}
}

func errorf(op string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}
