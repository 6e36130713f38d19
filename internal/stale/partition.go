// Package stale splits a joined dataset into current and stale records by
// comparing one timestamp field against a fixed threshold.
package stale

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/zeebo/xxh3"

	"recjoin/internal/bitmap"
	"recjoin/pkg/records"
)

// DefaultField is the timestamp field consulted when none is configured.
const DefaultField = "last_updated"

// DefaultThreshold is 2017-03-01T00:00:00Z.
var DefaultThreshold = records.MustTimestamp(2017, 3, 1, 0, 0, 0)

// Option configures Partition.
type Option func(*options)

type options struct {
	byValue bool
}

// MatchByValue also excludes every record whose content equals that of a
// stale record, even when its own timestamp is current. Without it stale
// membership is decided per position only.
func MatchByValue() Option {
	return func(o *options) { o.byValue = true }
}

// Result is the outcome of Partition. All is the input slice, untouched;
// membership is kept as a set of positions into it.
type Result struct {
	All       []records.Record
	Field     string
	Threshold records.Timestamp

	// Untimed counts records whose field was absent or not a timestamp.
	// They are treated as current.
	Untimed int

	stale *bitmap.Bitmap
}

// Partition marks record i stale when record[field] is a timestamp strictly
// before threshold. A record exactly at the threshold is current.
func Partition(recs []records.Record, threshold records.Timestamp, field string, opts ...Option) (Result, error) {
	if field == "" {
		return Result{}, errors.New("stale: empty field name")
	}
	if threshold.IsZero() {
		return Result{}, errors.New("stale: zero threshold")
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	res := Result{
		All:       recs,
		Field:     field,
		Threshold: threshold,
		stale:     bitmap.New(len(recs)),
	}
	for i, rec := range recs {
		v, ok := rec[field]
		ts, isTS := v.(records.Timestamp)
		if !ok || !isTS {
			res.Untimed++
			continue
		}
		if ts.Before(threshold) {
			res.stale.Add(i)
		}
	}

	if o.byValue && res.stale.Count() > 0 {
		res.excludeEqual()
	}
	return res, nil
}

// excludeEqual marks every record that equals some stale record.
func (r *Result) excludeEqual() {
	seeds := make(map[uint64][]int)
	var buf bytes.Buffer
	for i := range r.stale.All() {
		fp := fingerprint(&buf, r.All[i])
		seeds[fp] = append(seeds[fp], i)
	}
	for i, rec := range r.All {
		if r.stale.Has(i) {
			continue
		}
		for _, j := range seeds[fingerprint(&buf, rec)] {
			if equalRecords(rec, r.All[j]) {
				r.stale.Add(i)
				break
			}
		}
	}
}

// fingerprint hashes a canonical encoding of rec: keys in sorted order, each
// value tagged with its dynamic type.
func fingerprint(buf *bytes.Buffer, rec records.Record) uint64 {
	buf.Reset()
	for _, k := range slices.Sorted(maps.Keys(rec)) {
		v := rec[k]
		fmt.Fprintf(buf, "%s\x1f%T\x1f%v\x1e", k, v, v)
	}
	return xxh3.Hash(buf.Bytes())
}

func equalRecords(a, b records.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			return false
		}
		if ta, ok := va.(records.Timestamp); ok {
			tb, ok := vb.(records.Timestamp)
			if !ok || !ta.Equal(tb) {
				return false
			}
			continue
		}
		if va != vb {
			return false
		}
	}
	return true
}

// IsStale reports whether position i is stale.
func (r Result) IsStale(i int) bool { return r.stale != nil && r.stale.Has(i) }

// StaleCount returns the number of stale records.
func (r Result) StaleCount() int {
	if r.stale == nil {
		return 0
	}
	return r.stale.Count()
}

// CurrentCount returns the number of current records.
func (r Result) CurrentCount() int { return len(r.All) - r.StaleCount() }

// StaleIndexes returns the stale positions in ascending order.
func (r Result) StaleIndexes() []int {
	if r.stale == nil {
		return nil
	}
	return slices.Collect(r.stale.All())
}

// Stale yields (position, record) for every stale record in input order.
func (r Result) Stale() iter.Seq2[int, records.Record] {
	return r.filter(true)
}

// Current yields (position, record) for every current record in input order.
// The sequence is lazy and can be ranged over any number of times.
func (r Result) Current() iter.Seq2[int, records.Record] {
	return r.filter(false)
}

// CurrentRecords materializes Current.
func (r Result) CurrentRecords() []records.Record {
	out := make([]records.Record, 0, r.CurrentCount())
	for _, rec := range r.Current() {
		out = append(out, rec)
	}
	return out
}

func (r Result) filter(stale bool) iter.Seq2[int, records.Record] {
	return func(yield func(int, records.Record) bool) {
		for i, rec := range r.All {
			if r.IsStale(i) != stale {
				continue
			}
			if !yield(i, rec) {
				return
			}
		}
	}
}
