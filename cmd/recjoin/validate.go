package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"recjoin/internal/config"
	"recjoin/internal/pipeline"
)

func newValidateCmd() *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		Long: `validate prints every configuration issue as "severity: path: message" and
fails when any of them is an error. With --open it also reads each source's
header to confirm the file exists and matches its type tags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd.Context())
			out := cmd.OutOrStdout()

			issues := config.ValidatePipeline(cfg)
			for _, iss := range issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return errors.New("configuration is invalid")
			}

			if open {
				infos, _, err := pipeline.Inspect(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				for _, s := range infos {
					fmt.Fprintf(out, "ok: %s: %s (%d fields)\n", s.Kind, s.Path, len(s.Fields))
				}
			}
			fmt.Fprintln(out, "configuration is valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "also open every source and check its header")
	return cmd
}
