package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"recjoin/internal/pipeline"
)

func newFieldsCmd() *cobra.Command {
	var bySource bool

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Print the union of field names across all sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, fields, err := pipeline.Inspect(cmd.Context(), configFrom(cmd.Context()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !bySource {
				for _, f := range fields {
					fmt.Fprintln(out, f)
				}
				return nil
			}

			t := newTable(out, fmt.Sprintf("%d fields", len(fields)))
			t.AppendHeader(table.Row{"field", "sources"})
			for _, f := range fields {
				var kinds []string
				for _, s := range infos {
					if slices.Contains(s.Fields, f) {
						kinds = append(kinds, s.Kind)
					}
				}
				t.AppendRow(table.Row{f, strings.Join(kinds, ", ")})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&bySource, "by-source", false, "show which sources declare each field")
	return cmd
}
