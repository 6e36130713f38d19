package records

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks. Every typed error below matches exactly one.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrCast              = errors.New("cast error")
	ErrEmptyGroup        = errors.New("empty group")
)

// SourceUnavailableError reports an input that could not be opened.
type SourceUnavailableError struct {
	Path string
	Err  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Path, e.Err)
}

func (e *SourceUnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }
func (e *SourceUnavailableError) Unwrap() error        { return e.Err }

// ShapeMismatchError reports a row whose width disagrees with the header or
// type-tag list. Line is 1-based and 0 when the mismatch is schema-level.
type ShapeMismatchError struct {
	Kind    string
	Line    int
	Headers int
	Values  int
	Types   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s line %d: shape mismatch: headers=%d values=%d types=%d",
		e.Kind, e.Line, e.Headers, e.Values, e.Types)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// CastError reports a value that does not match its declared type tag.
type CastError struct {
	Kind  string
	Line  int
	Field string
	Type  FieldType
	Value string
	Err   error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("%s line %d: cast %s %q as %s: %v", e.Kind, e.Line, e.Field, e.Value, e.Type, e.Err)
}

func (e *CastError) Is(target error) bool { return target == ErrCast }
func (e *CastError) Unwrap() error        { return e.Err }

// EmptyGroupError reports an aggregation with nothing to tally: either no
// record falls in the partition, or none of the Size records that do carries
// the Target field.
type EmptyGroupError struct {
	Field  string
	Value  any
	Target string
	Size   int
}

func (e *EmptyGroupError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("none of %d records with %s=%v has %s", e.Size, e.Field, e.Value, e.Target)
	}
	return fmt.Sprintf("no records with %s=%v", e.Field, e.Value)
}

func (e *EmptyGroupError) Is(target error) bool { return target == ErrEmptyGroup }
