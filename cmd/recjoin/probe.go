package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"recjoin/internal/logging"
	"recjoin/internal/pipeline"
	"recjoin/internal/probe"
)

func newProbeCmd() *cobra.Command {
	var (
		opt     probe.Options
		comma   string
		asTable bool
	)

	cmd := &cobra.Command{
		Use:   "probe FILE|URL...",
		Short: "Sample CSV files and suggest a sources block",
		Long: `probe reads the head of each file, detects its delimiter and infers one type
tag per column. The result is printed as a YAML sources block that can be
pasted into a pipeline config, or as a table with --table.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if comma != "" {
				r, size := utf8.DecodeRuneInString(comma)
				if size != len(comma) {
					return fmt.Errorf("--comma must be a single character, got %q", comma)
				}
				opt.Comma = r
			}

			log := logging.FromContext(cmd.Context())
			httpCfg := configFrom(cmd.Context()).HTTP
			results := make([]probe.Result, 0, len(args))
			for _, path := range args {
				src, err := pipeline.SourceFor(httpCfg, path)
				if err != nil {
					return err
				}
				res, err := probe.Probe(cmd.Context(), src, opt)
				if err != nil {
					return err
				}
				if res.Skipped > 0 {
					log.Warnf("probe: %s: skipped %d malformed rows", path, res.Skipped)
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			if !asTable {
				b, err := probe.YAML(results)
				if err != nil {
					return err
				}
				_, err = out.Write(b)
				return err
			}

			for _, res := range results {
				t := newTable(out, fmt.Sprintf("%s (%s, delimiter %q)", res.Path, res.Kind, res.Comma))
				t.AppendHeader(table.Row{"column", "type", "sampled", "blank"})
				for _, c := range res.Columns {
					t.AppendRow(table.Row{c.Name, c.Type, count(c.Rows), count(c.Empty)})
				}
				t.Render()
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opt.MaxBytes, "bytes", probe.DefaultMaxBytes, "bytes to read from each file")
	f.IntVar(&opt.MaxRows, "rows", probe.DefaultMaxRows, "data rows to sample")
	f.StringVar(&comma, "comma", "", "force the delimiter instead of detecting it")
	f.BoolVar(&asTable, "table", false, "print a table per file instead of YAML")
	return cmd
}
