package main

import (
	"github.com/spf13/cobra"

	"recjoin/internal/logging"
	"recjoin/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join, filter and aggregate the configured datasets",
		Example: `  # stock datasets in ./data
  recjoin run --data-dir ./data

  # only records updated since the threshold, pushed to a Pushgateway
  recjoin run --input current --metrics prometheus --pushgateway http://localhost:9091`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			log := logging.FromContext(ctx)

			done, err := pipeline.InstallMetrics(cfg.Job, cfg.Metrics)
			if err != nil {
				return err
			}
			defer func() {
				if err := done(); err != nil {
					log.Warnf("metrics: flush error: %v", err)
				}
			}()

			res, err := pipeline.Run(ctx, cfg)
			if res != nil {
				writeReport(cmd.OutOrStdout(), res, cfg.Report.Sample)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.String("stale-field", "", "timestamp field compared against the threshold")
	f.String("threshold", "", "records updated before this instant are stale (2017-03-01T00:00:00Z)")
	f.Bool("match-by-value", false, "drop every record equal to a stale one, not just the stale positions")
	f.String("partition", "", "field to partition on")
	f.StringSlice("values", nil, "partition values to report")
	f.String("target", "", "field whose most frequent value is reported")
	f.String("input", "", "aggregate over all or current records")
	f.Int("sample", 0, "joined records to print")
	f.String("metrics", "", "metrics backend: none, prometheus or datadog")
	f.String("pushgateway", "", "Pushgateway base URL")
	f.String("statsd", "", "DogStatsD address")
	return cmd
}
