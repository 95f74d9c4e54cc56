package main

import (
	"github.com/spf13/cobra"

	"courtside/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var skipLLM bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check external tools, directories and the generation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			printer := newStatusPrinter(cmd.OutOrStdout())
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{CheckLLM: !skipLLM})
			printer.header("Preflight")
			for _, r := range results {
				kind := statusOK
				switch {
				case r.Passed:
				case r.Optional:
					kind = statusWarn
				default:
					kind = statusError
				}
				printer.line(r.Name, kind, r.Detail)
			}
			return preflight.Err(results)
		},
	}

	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Skip the live generation API request")
	return cmd
}
