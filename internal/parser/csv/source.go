package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"recjoin/internal/datasource"
	"recjoin/internal/datasource/file"
	"recjoin/internal/transformer"
	"recjoin/pkg/records"
)

// Spec describes one tabular input: its record-kind label, the positional
// type tags, and the dialect options.
type Spec struct {
	Kind    string
	Types   []records.FieldType
	Options Options
}

// Source is a lazy, single-pass stream of typed rows read from one delimited
// input. It owns the underlying reader from Open/New until Close, which also
// runs automatically when iteration ends for any reason (exhaustion, error,
// or the consumer breaking out of the loop).
//
// A Source is not restartable: once its records have been consumed or it has
// been closed, Records yields nothing. Open a new Source over the same path
// for a fresh pass. A Source is not safe for concurrent use.
type Source struct {
	name   string
	rc     io.ReadCloser
	cr     *csv.Reader
	plan   *transformer.Plan
	trim   bool
	line   int
	closed bool
}

// Open opens the file at path and reads its header row. A missing or
// unreadable file fails here with a *records.SourceUnavailableError.
func Open(ctx context.Context, path string, spec Spec) (*Source, error) {
	return New(ctx, file.NewLocal(path), spec)
}

// New opens src and reads its header row.
//
// Header names become field names (after BOM stripping, header_map and
// optional normalization). When the number of header names differs from
// len(spec.Types), New fails with a *records.ShapeMismatchError and releases
// the reader.
func New(ctx context.Context, src datasource.Source, spec Spec) (*Source, error) {
	dec, err := spec.Options.decoder()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}

	rc, err := src.Open(ctx)
	if err != nil {
		if errors.Is(err, records.ErrSourceUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &records.SourceUnavailableError{Path: src.Name(), Err: err}
	}

	var r io.Reader = rc
	if dec != nil {
		r = dec.Reader(rc)
	}

	cr := csv.NewReader(r)
	cr.Comma = spec.Options.Comma
	if cr.Comma == 0 {
		cr.Comma = ','
	}
	cr.LazyQuotes = spec.Options.LazyQuotes
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1 // width is enforced against the schema instead

	hdr, err := cr.Read()
	if err != nil {
		rc.Close()
		if errors.Is(err, io.EOF) {
			return nil, &records.SourceUnavailableError{Path: src.Name(), Err: errors.New("no header row")}
		}
		return nil, fmt.Errorf("%s: read header: %w", src.Name(), err)
	}

	names := normalizeHeaders(hdr, spec.Options)
	if len(names) != len(spec.Types) {
		rc.Close()
		return nil, &records.ShapeMismatchError{
			Kind:    spec.Kind,
			Line:    1,
			Headers: len(names),
			Values:  len(names),
			Types:   len(spec.Types),
		}
	}
	schema, err := records.NewSchema(spec.Kind, names, spec.Types)
	if err != nil {
		rc.Close()
		return nil, err
	}
	plan, err := transformer.Compile(schema)
	if err != nil {
		rc.Close()
		return nil, err
	}

	return &Source{
		name: src.Name(),
		rc:   rc,
		cr:   cr,
		plan: plan,
		trim: spec.Options.TrimSpace,
		line: 1,
	}, nil
}

// Records returns the row sequence. Each pull reads and casts one line. End
// of input ends the sequence with no error. A malformed row is yielded once
// as (zero Row, err) and ends the sequence. The Source is closed when the
// sequence ends.
func (s *Source) Records() iter.Seq2[records.Row, error] {
	return func(yield func(records.Row, error) bool) {
		if s.closed {
			return
		}
		defer s.Close()

		for {
			raw, err := s.cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					s.line = pe.StartLine
					yield(records.Row{}, fmt.Errorf("%s: %w", s.name, err))
				} else {
					// The stream itself failed, e.g. a dropped connection.
					yield(records.Row{}, &records.SourceUnavailableError{
						Path: s.name,
						Err:  fmt.Errorf("read after line %d: %w", s.line, err),
					})
				}
				return
			}
			s.line, _ = s.cr.FieldPos(0)

			if s.trim {
				for i, v := range raw {
					raw[i] = strings.TrimSpace(v)
				}
			}

			row, err := s.plan.Cast(raw, s.line)
			if err != nil {
				yield(records.Row{}, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Close releases the underlying reader. It is safe to call more than once.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.rc.Close(); err != nil {
		return fmt.Errorf("%s: close: %w", s.name, err)
	}
	return nil
}

// Schema returns the shape bound from the header row.
func (s *Source) Schema() *records.Schema { return s.plan.Schema() }

// Headers returns the field names in header order.
func (s *Source) Headers() []string { return s.plan.Schema().Names() }

// Kind returns the record-kind label.
func (s *Source) Kind() string { return s.plan.Schema().Kind() }

// Name identifies the underlying input (usually its path).
func (s *Source) Name() string { return s.name }

// Line returns the 1-based line of the most recently read record.
func (s *Source) Line() int { return s.line }

// Closed reports whether the underlying reader has been released.
func (s *Source) Closed() bool { return s.closed }
