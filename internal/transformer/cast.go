// Package transformer turns raw CSV rows ([]string) into typed records.Row
// values using a positional list of field type tags.
//
// Design goals:
//   - Compile a per-column cast plan once per source schema; rows are then
//     cast with no per-row map lookups or type switches on the tag.
//   - Fail fast: a value that does not match its tag is a CastError and the
//     row is rejected as a whole. No partial rows, no soft drops.
//   - Pure: casting has no side effects and never touches I/O.
package transformer

import (
	"fmt"
	"strconv"

	"recjoin/pkg/records"
)

// Plan is a compiled, reusable caster for one schema. It is safe for
// concurrent use once built.
type Plan struct {
	schema *records.Schema
	cols   []caster
}

// caster converts one raw field. Errors are plain causes; Plan.Cast wraps
// them into a records.CastError with field and line context.
type caster func(s string) (any, error)

// Compile builds the cast plan for schema.
func Compile(schema *records.Schema) (*Plan, error) {
	cols := make([]caster, schema.Len())
	for i := range cols {
		c, err := casterFor(schema.Type(i))
		if err != nil {
			return nil, fmt.Errorf("%s field %q: %w", schema.Kind(), schema.Name(i), err)
		}
		cols[i] = c
	}
	return &Plan{schema: schema, cols: cols}, nil
}

// Schema returns the schema the plan was compiled for.
func (p *Plan) Schema() *records.Schema { return p.schema }

// Cast converts raw into a Row. line is used for error context only (1-based,
// 0 when unknown). The raw slice is not retained, so callers may reuse it.
func (p *Plan) Cast(raw []string, line int) (records.Row, error) {
	if len(raw) != len(p.cols) {
		return records.Row{}, &records.ShapeMismatchError{
			Kind:    p.schema.Kind(),
			Line:    line,
			Headers: p.schema.Len(),
			Values:  len(raw),
			Types:   len(p.cols),
		}
	}
	values := make([]any, len(raw))
	for i, s := range raw {
		v, err := p.cols[i](s)
		if err != nil {
			return records.Row{}, &records.CastError{
				Kind:  p.schema.Kind(),
				Line:  line,
				Field: p.schema.Name(i),
				Type:  p.schema.Type(i),
				Value: s,
				Err:   err,
			}
		}
		values[i] = v
	}
	return records.NewRow(p.schema, values)
}

// CastRow is the one-shot form: it binds headers to types, casts raw and
// returns the row. Use Compile when casting many rows of the same shape.
func CastRow(kind string, headers, raw []string, types []records.FieldType) (records.Row, error) {
	if len(headers) != len(raw) || len(headers) != len(types) {
		return records.Row{}, &records.ShapeMismatchError{
			Kind:    kind,
			Headers: len(headers),
			Values:  len(raw),
			Types:   len(types),
		}
	}
	schema, err := records.NewSchema(kind, headers, types)
	if err != nil {
		return records.Row{}, err
	}
	plan, err := Compile(schema)
	if err != nil {
		return records.Row{}, err
	}
	return plan.Cast(raw, 0)
}

// CastValue converts a single value to type t, e.g. a partition value given
// on the command line that must compare equal to a casted field.
func CastValue(t records.FieldType, s string) (any, error) {
	c, err := casterFor(t)
	if err != nil {
		return nil, err
	}
	return c(s)
}

// --- per-type casters ---------------------------------------------------------

func casterFor(t records.FieldType) (caster, error) {
	switch t {
	case records.TypeString:
		return castString, nil
	case records.TypeInt:
		return castInt, nil
	case records.TypeDate:
		return castDate, nil
	case records.TypeSSN:
		return castSSN, nil
	case records.TypeDateTime:
		return castDateTime, nil
	}
	return nil, fmt.Errorf("unsupported field type %v", t)
}

func castString(s string) (any, error) { return s, nil }

func castInt(s string) (any, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func castDate(s string) (any, error) {
	d, err := records.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func castSSN(s string) (any, error) {
	id, err := records.ParseSSN(s)
	if err != nil {
		return nil, err
	}
	return id, nil
}

func castDateTime(s string) (any, error) {
	ts, err := records.ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return ts, nil
}
