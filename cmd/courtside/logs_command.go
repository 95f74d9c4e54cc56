package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"courtside/internal/logs"
	"courtside/internal/runstore"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var runFlag string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the courtside log, optionally for one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Paths.LogDir) == "" {
				return fmt.Errorf("paths.log_dir is not set; logs are written to stderr only")
			}
			path := filepath.Join(cfg.Paths.LogDir, "courtside.log")

			var filter logs.Filter
			if id := strings.TrimSpace(runFlag); id != "" {
				err := ctx.withStore(func(store *runstore.Store) error {
					run, err := store.FindRun(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("find run %q: %w", id, err)
					}
					filter = logs.RunFilter(run.ID)
					return nil
				})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if follow {
				signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()
				return logs.Follow(signalCtx, path, lines, filter, func(line string) {
					fmt.Fprintln(out, line)
				})
			}
			res, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines, Filter: filter})
			if err != nil {
				return err
			}
			for _, line := range res.Lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&runFlag, "run", "", "Only show lines for this run ID or prefix")
	return cmd
}
