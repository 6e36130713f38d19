package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recjoin/internal/config"
	"recjoin/internal/logging"
)

type configKey struct{}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "recjoin",
		Short: "Join SSN-keyed CSV datasets and report the largest groups",
		Long: `recjoin reads the personal, vehicle, employment and update-status CSV files,
casts every column to its declared type, joins the rows positionally on the
identifier, separates stale records and reports the most frequent target value
for each partition value.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			var logger *zap.SugaredLogger
			if verbose {
				logger = logging.New(true)
			} else {
				logger = logging.NewLogger()
			}

			ctx := logging.WithLogger(cmd.Context(), logger)
			ctx = context.WithValue(ctx, configKey{}, cfg)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "pipeline config file (YAML or JSON)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging (same as RECJOIN_DEBUG=true)")
	pf.String("job", "", "job name used in logs and metrics")
	pf.String("data-dir", "", "directory holding the input files")
	pf.String("identifier", "", "join key field")
	pf.String("http-timeout", "", "per-request timeout for http(s) sources (default 30s)")
	pf.Int("http-retries", 0, "retries for http(s) sources on network errors, 429 and 5xx (default 3)")

	root.AddCommand(newRunCmd(), newValidateCmd(), newFieldsCmd(), newProbeCmd())
	return root
}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context) config.Pipeline {
	if cfg, ok := ctx.Value(configKey{}).(config.Pipeline); ok {
		return cfg
	}
	return config.Default(".")
}
