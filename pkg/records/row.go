package records

import (
	"maps"
	"slices"
)

// Schema is the shape of one tabular source: its kind label plus the field
// names and type tags, positionally aligned. A Schema is built once when the
// source is opened and shared by every Row it produces.
type Schema struct {
	kind  string
	names []string
	types []FieldType
	index map[string]int
}

// NewSchema binds names to types. len(names) must equal len(types). When a
// header repeats a name, lookups by name resolve to the last position.
func NewSchema(kind string, names []string, types []FieldType) (*Schema, error) {
	if len(names) != len(types) {
		return nil, &ShapeMismatchError{Kind: kind, Headers: len(names), Values: len(names), Types: len(types)}
	}
	s := &Schema{
		kind:  kind,
		names: slices.Clone(names),
		types: slices.Clone(types),
		index: make(map[string]int, len(names)),
	}
	for i, n := range s.names {
		s.index[n] = i
	}
	return s, nil
}

func (s *Schema) Kind() string { return s.kind }
func (s *Schema) Len() int     { return len(s.names) }

// Names returns a copy of the field names in header order.
func (s *Schema) Names() []string { return slices.Clone(s.names) }

// Types returns a copy of the type tags in header order.
func (s *Schema) Types() []FieldType { return slices.Clone(s.types) }

func (s *Schema) Name(i int) string    { return s.names[i] }
func (s *Schema) Type(i int) FieldType { return s.types[i] }

// Index returns the position of name, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether name is one of the schema's fields.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Row is one casted record of a single source. The zero Row has no schema
// and no fields.
type Row struct {
	schema *Schema
	values []any
}

// NewRow wraps already-casted values. It takes ownership of values; callers
// must not modify the slice afterwards.
func NewRow(schema *Schema, values []any) (Row, error) {
	if len(values) != schema.Len() {
		return Row{}, &ShapeMismatchError{Kind: schema.kind, Headers: schema.Len(), Values: len(values), Types: schema.Len()}
	}
	return Row{schema: schema, values: values}, nil
}

func (r Row) Schema() *Schema { return r.schema }

func (r Row) Kind() string {
	if r.schema == nil {
		return ""
	}
	return r.schema.kind
}

func (r Row) Len() int { return len(r.values) }

// Value returns the value at position i.
func (r Row) Value(i int) any { return r.values[i] }

// Get returns the value of the named field.
func (r Row) Get(name string) (any, bool) {
	if r.schema == nil {
		return nil, false
	}
	i, ok := r.schema.index[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Names returns the field names in header order.
func (r Row) Names() []string {
	if r.schema == nil {
		return nil
	}
	return r.schema.Names()
}

// Map copies the row into a new Record.
func (r Row) Map() Record {
	out := make(Record, len(r.values))
	r.MergeInto(out)
	return out
}

// MergeInto writes every field of r into dst, overwriting existing keys.
func (r Row) MergeInto(dst Record) {
	for i, v := range r.values {
		dst[r.schema.names[i]] = v
	}
}

// Record is a unified record: a field-name to value mapping combining the
// rows of several sources for one join step. Records are not modified after
// the join returns them.
type Record map[string]any

// Get returns the value of field name.
func (r Record) Get(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// Names returns the field names in sorted order.
func (r Record) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// Clone returns a shallow copy. Values are immutable, so a shallow copy is a
// full copy.
func (r Record) Clone() Record { return maps.Clone(r) }
