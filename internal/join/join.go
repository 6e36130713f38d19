// Package join merges several typed row streams into unified records.
//
// The join is positional: it advances every source in lock-step, one row per
// source per step, and stops as soon as any source runs out. The first source
// is the primary. Its identifier value is the key for the step, and every
// primary field is kept. A secondary row contributes its fields only when its
// own identifier equals that key; otherwise it contributes nothing for that
// step (its fields are absent, not null-filled).
//
// This is zip-then-guard, not a keyed hash join. Inputs must already be
// aligned in the same identifier order; a misaligned secondary row is
// silently left out rather than matched elsewhere.
package join

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/multierr"

	"recjoin/pkg/records"
)

// Source is a typed row stream that can be joined. *csv.Source satisfies it.
type Source interface {
	Records() iter.Seq2[records.Row, error]
	Schema() *records.Schema
	Close() error
}

// Stats counts what happened during a join. Mismatched is keyed by the
// secondary source's kind and counts steps where its identifier differed
// from the primary key.
type Stats struct {
	Steps      int
	Mismatched map[string]int
}

// Option configures Join.
type Option func(*joiner)

// WithStats makes Join record counters into s as it runs.
func WithStats(s *Stats) Option {
	return func(j *joiner) { j.stats = s }
}

type joiner struct {
	sources    []Source
	identifier string
	stats      *Stats
}

// Join returns the lazy sequence of unified records for sources, keyed by the
// identifier field. Records come out in the primary source's order.
//
// Any source error is yielded once and ends the sequence. When the sequence
// ends, for whatever reason, every source is closed; close failures are
// combined and yielded as a final error if nothing else failed first.
func Join(ctx context.Context, sources []Source, identifier string, opts ...Option) iter.Seq2[records.Record, error] {
	j := &joiner{sources: sources, identifier: identifier}
	for _, o := range opts {
		o(j)
	}
	if j.stats != nil && j.stats.Mismatched == nil {
		j.stats.Mismatched = make(map[string]int)
	}
	return func(yield func(records.Record, error) bool) {
		j.run(ctx, yield)
	}
}

func (j *joiner) run(ctx context.Context, yield func(records.Record, error) bool) {
	if len(j.sources) == 0 {
		return
	}

	nexts := make([]func() (records.Row, error, bool), len(j.sources))
	stops := make([]func(), len(j.sources))
	for i, s := range j.sources {
		nexts[i], stops[i] = iter.Pull2(s.Records())
	}

	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		for _, stop := range stops {
			stop()
		}
		var errs error
		for _, s := range j.sources {
			errs = multierr.Append(errs, s.Close())
		}
		return errs
	}
	defer release()

	if !j.sources[0].Schema().Has(j.identifier) {
		yield(nil, fmt.Errorf("join: primary source %s has no field %q", j.sources[0].Schema().Kind(), j.identifier))
		return
	}

	rows := make([]records.Row, len(j.sources))
	for {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		for i, next := range nexts {
			row, err, ok := next()
			if !ok {
				if err := release(); err != nil {
					yield(nil, fmt.Errorf("join: release sources: %w", err))
				}
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			rows[i] = row
		}
		if !yield(j.merge(rows), nil) {
			return
		}
	}
}

// merge builds one unified record from the rows of a single step.
func (j *joiner) merge(rows []records.Row) records.Record {
	primary := rows[0]
	key, _ := primary.Get(j.identifier)

	size := 0
	for _, r := range rows {
		size += r.Len()
	}
	rec := make(records.Record, size)
	primary.MergeInto(rec)

	for _, r := range rows[1:] {
		id, ok := r.Get(j.identifier)
		if !ok || !sameKey(id, key) {
			if j.stats != nil {
				j.stats.Mismatched[r.Kind()]++
			}
			continue
		}
		r.MergeInto(rec)
	}
	if j.stats != nil {
		j.stats.Steps++
	}
	return rec
}

// sameKey compares identifier values. Timestamps compare as instants; every
// other casted value is comparable with ==.
func sameKey(a, b any) bool {
	if ta, ok := a.(records.Timestamp); ok {
		tb, ok := b.(records.Timestamp)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// FieldNames returns the union of field names across schemas, in first-seen
// order. Duplicate names collapse to one entry.
func FieldNames(schemas ...*records.Schema) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range schemas {
		for i := 0; i < s.Len(); i++ {
			n := s.Name(i)
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// Collect drains seq into a slice. On error it returns the records gathered
// so far together with the error; nothing is rolled back.
func Collect(seq iter.Seq2[records.Record, error]) ([]records.Record, error) {
	var out []records.Record
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
