// FILE: lixenwraith/layered/error.go
package layered

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per error kind. Every concrete error type below
// matches its sentinel through errors.Is.
var (
	ErrNotFound          = errors.New("path not found")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrPathSyntax        = errors.New("invalid path syntax")
	ErrSource            = errors.New("source error")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrMissingField      = errors.New("missing field")
	ErrUnknownField      = errors.New("unknown field")
	ErrDeserialization   = errors.New("deserialization failed")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// NotFoundError reports a key or index absent from the tree.
type NotFoundError struct {
	Path   Path   // path traversed up to and including the missing segment
	Origin Origin // origin of the container where evaluation stopped
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("path %q not found%s", e.Path.String(), e.Origin.suffix())
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TypeMismatchError reports a node whose kind does not fit the requested operation.
type TypeMismatchError struct {
	Path     Path
	Expected string
	Found    Kind
	Origin   Origin
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch at %q: expected %s, found %s%s",
		e.Path.String(), e.Expected, e.Found, e.Origin.suffix())
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// PathSyntaxError reports a malformed path string.
type PathSyntaxError struct {
	Input   string
	Offset  int // byte offset into Input
	Message string
}

func (e *PathSyntaxError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Input, e.Offset, e.Message)
}

func (e *PathSyntaxError) Is(target error) bool { return target == ErrPathSyntax }

// SourceError wraps a failure raised while collecting a source.
// Index is the registration index of the source in its Config, or -1 when
// the error was produced outside an aggregator.
type SourceError struct {
	Index  int
	Origin Origin
	Err    error
}

func (e *SourceError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("source #%d (%s): %v", e.Index, e.Origin.display(), e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Origin.display(), e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSource }

// MissingFieldError reports a required record field absent from its table.
type MissingFieldError struct {
	Path   Path // path of the enclosing table
	Field  string
	Origin Origin // origin of the enclosing table
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q in %s%s", e.Field, e.Path.display(), e.Origin.suffix())
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// UnknownFieldError reports a table key that no record field claims (strict mode only).
type UnknownFieldError struct {
	Path   Path
	Field  string
	Origin Origin
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q in %s%s", e.Field, e.Path.display(), e.Origin.suffix())
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

// DeserializationError reports a coercion, shape or enumeration mismatch.
type DeserializationError struct {
	Path   Path
	Reason string
	Origin Origin
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cannot deserialize %s: %s%s", e.Path.display(), e.Reason, e.Origin.suffix())
}

func (e *DeserializationError) Is(target error) bool { return target == ErrDeserialization }

// newSourceError wraps err unless it already is a SourceError, in which case
// only the missing annotations are filled in.
func newSourceError(index int, origin Origin, err error) error {
	var se *SourceError
	if errors.As(err, &se) {
		annotated := *se
		if annotated.Index < 0 {
			annotated.Index = index
		}
		if annotated.Origin == "" {
			annotated.Origin = origin
		}
		return &annotated
	}
	return &SourceError{Index: index, Origin: origin, Err: err}
}
