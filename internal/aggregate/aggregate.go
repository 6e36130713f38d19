// Package aggregate finds the most frequent value of one field within a
// partition of records.
package aggregate

import (
	"errors"
	"iter"
	"slices"

	"recjoin/pkg/records"
)

// Group is the result for one partition value.
type Group struct {
	Field   string
	Value   any
	Target  string
	Winners []any // every target value reaching Count, first-seen order
	Count   int
	Size    int // records in the partition
	Skipped int // partition records without the target field
}

// LargestGroup filters seq to records whose partField equals partValue,
// tallies their target values and returns every value with the highest
// tally, in the order each was first seen, together with that tally.
//
// Records lacking the target field are skipped. If no record falls in the
// partition, or none of those that do has the target, LargestGroup returns a
// *records.EmptyGroupError.
func LargestGroup(seq iter.Seq[records.Record], partField string, partValue any, target string) ([]any, int, error) {
	g, err := tally(seq, partField, partValue, target)
	if err != nil {
		return nil, 0, err
	}
	return g.Winners, g.Count, nil
}

// LargestGroupSlice is LargestGroup over a slice.
func LargestGroupSlice(recs []records.Record, partField string, partValue any, target string) ([]any, int, error) {
	return LargestGroup(slices.Values(recs), partField, partValue, target)
}

// LargestGroups runs LargestGroup once per value in values. It stops at the
// first empty group. A partition that has records but no target values is
// still appended, without winners, so its Size and Skipped are reported.
func LargestGroups(recs []records.Record, partField string, values []any, target string) ([]Group, error) {
	out := make([]Group, 0, len(values))
	for _, v := range values {
		g, err := tally(slices.Values(recs), partField, v, target)
		if err != nil {
			if g.Size > 0 {
				out = append(out, g)
			}
			return out, err
		}
		out = append(out, g)
	}
	return out, nil
}

func tally(seq iter.Seq[records.Record], partField string, partValue any, target string) (Group, error) {
	g := Group{Field: partField, Value: partValue, Target: target}
	if partField == "" || target == "" {
		return g, errors.New("aggregate: partition field and target are required")
	}

	counts := make(map[any]int)
	var order []any
	for rec := range seq {
		if v, ok := rec[partField]; !ok || v != partValue {
			continue
		}
		g.Size++
		tv, ok := rec[target]
		if !ok {
			g.Skipped++
			continue
		}
		if _, seen := counts[tv]; !seen {
			order = append(order, tv)
		}
		counts[tv]++
	}
	if len(order) == 0 {
		return g, &records.EmptyGroupError{Field: partField, Value: partValue, Target: target, Size: g.Size}
	}

	for _, v := range order {
		switch c := counts[v]; {
		case c > g.Count:
			g.Count = c
			g.Winners = []any{v}
		case c == g.Count:
			g.Winners = append(g.Winners, v)
		}
	}
	return g, nil
}
