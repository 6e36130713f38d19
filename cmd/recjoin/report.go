package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"recjoin/internal/pipeline"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func count(n int) string { return humanize.Comma(int64(n)) }

// writeReport renders the run summary, a sample of joined records and the
// group table.
func writeReport(w io.Writer, res *pipeline.Result, sample int) {
	summary := newTable(w, "Run "+res.RunID)
	summary.AppendRows([]table.Row{
		{"job", res.Job},
		{"joined records", count(len(res.Records))},
		{"stale", count(res.Partition.StaleCount())},
		{"current", count(res.Partition.CurrentCount())},
		{"without " + res.Partition.Field, count(res.Partition.Untimed)},
		{"duration", res.Duration.Truncate(time.Millisecond)},
	})
	for _, kind := range slices.Sorted(maps.Keys(res.Join.Mismatched)) {
		summary.AppendRow(table.Row{"misaligned " + kind, count(res.Join.Mismatched[kind])})
	}
	summary.Render()

	sources := newTable(w, "Sources")
	sources.AppendHeader(table.Row{"kind", "path", "fields"})
	for _, s := range res.Sources {
		sources.AppendRow(table.Row{s.Kind, s.Path, strings.Join(s.Fields, ", ")})
	}
	sources.Render()

	if recs := pipeline.Sample(res.Records, sample); len(recs) > 0 {
		t := newTable(w, fmt.Sprintf("First %d joined records", len(recs)))
		header := make(table.Row, len(res.Fields))
		for i, f := range res.Fields {
			header[i] = f
		}
		t.AppendHeader(header)
		for _, rec := range recs {
			row := make(table.Row, len(res.Fields))
			for i, f := range res.Fields {
				if v, ok := rec[f]; ok {
					row[i] = v
				}
			}
			t.AppendRow(row)
		}
		t.Render()
	}

	if len(res.Groups) > 0 {
		g0 := res.Groups[0]
		t := newTable(w, fmt.Sprintf("Largest %s group per %s (%s records)", g0.Target, g0.Field, res.Input))
		t.AppendHeader(table.Row{g0.Field, g0.Target, "count", "partition size", "without " + g0.Target})
		for _, g := range res.Groups {
			winners := make([]string, len(g.Winners))
			for i, v := range g.Winners {
				winners[i] = fmt.Sprint(v)
			}
			t.AppendRow(table.Row{g.Value, strings.Join(winners, ", "), count(g.Count), count(g.Size), count(g.Skipped)})
		}
		t.Render()
	}
}
