package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courtside/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect analysis run history",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

type runJSON struct {
	ID            string     `json:"id"`
	Video         string     `json:"video"`
	OutputDir     string     `json:"output_dir"`
	Status        string     `json:"status"`
	Players       int        `json:"players"`
	Roles         []string   `json:"roles"`
	Languages     []string   `json:"languages"`
	FramesSampled int        `json:"frames_sampled"`
	FramesSkipped int        `json:"frames_skipped"`
	DetectionGaps int        `json:"detection_gaps"`
	PlayerMisses  int        `json:"player_misses"`
	Reports       int        `json:"reports_done"`
	Failed        int        `json:"reports_failed"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *runstore.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				counts := make([]map[runstore.BranchStatus]int, len(runs))
				for i, run := range runs {
					c, err := store.BranchCounts(cmd.Context(), run.ID)
					if err != nil {
						return err
					}
					counts[i] = c
				}

				if asJSON {
					items := make([]runJSON, 0, len(runs))
					for i, run := range runs {
						items = append(items, toRunJSON(run, counts[i]))
					}
					return writeJSON(cmd, items)
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for i, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						string(run.Status),
						filepath.Base(run.VideoPath),
						reportCounts(counts[i]),
						run.CreatedAt.Local().Format("2006-01-02 15:04"),
						formatDuration(run.Duration()),
					})
				}
				fmt.Fprintln(out, renderTable("",
					[]string{"ID", "Status", "Video", "Reports", "Started", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *runstore.Store) error {
				run, err := store.FindRun(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("find run %q: %w", args[0], err)
				}
				branches, err := store.Branches(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				counts := make(map[runstore.BranchStatus]int)
				for _, b := range branches {
					counts[b.Status]++
				}
				if asJSON {
					return writeJSON(cmd, toRunJSON(run, counts))
				}
				renderRun(cmd.OutOrStdout(), run, branches, counts)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderRun(out io.Writer, run *runstore.Run, branches []*runstore.Branch, counts map[runstore.BranchStatus]int) {
	fmt.Fprintf(out, "Run:       %s\n", run.ID)
	fmt.Fprintf(out, "Status:    %s\n", run.Status)
	fmt.Fprintf(out, "Video:     %s\n", run.VideoPath)
	fmt.Fprintf(out, "Output:    %s\n", run.OutputDir)
	fmt.Fprintf(out, "Players:   %d\n", run.Players)
	fmt.Fprintf(out, "Roles:     %s\n", strings.Join(run.Roles, ", "))
	fmt.Fprintf(out, "Languages: %s\n", strings.Join(run.Languages, ", "))
	fmt.Fprintf(out, "Frames:    %d sampled, %d skipped, %d detection gaps, %d player misses\n",
		run.FramesSampled, run.FramesSkipped, run.DetectionGaps, run.PlayerMisses)
	fmt.Fprintf(out, "Reports:   %s\n", reportCounts(counts))
	fmt.Fprintf(out, "Duration:  %s\n", formatDuration(run.Duration()))
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", run.ErrorMessage)
	}
	if len(branches) == 0 {
		return
	}
	rows := make([][]string, 0, len(branches))
	for _, b := range branches {
		detail := b.TextPath
		if b.Status == runstore.BranchFailed && b.ErrorMessage != "" {
			detail = b.ErrorMessage
		}
		rows = append(rows, []string{b.Key, string(b.Status), strconv.Itoa(b.Attempts), detail})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable("Reports",
		[]string{"Report", "Status", "Attempts", "File / Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func toRunJSON(run *runstore.Run, counts map[runstore.BranchStatus]int) runJSON {
	return runJSON{
		ID:            run.ID,
		Video:         run.VideoPath,
		OutputDir:     run.OutputDir,
		Status:        string(run.Status),
		Players:       run.Players,
		Roles:         run.Roles,
		Languages:     run.Languages,
		FramesSampled: run.FramesSampled,
		FramesSkipped: run.FramesSkipped,
		DetectionGaps: run.DetectionGaps,
		PlayerMisses:  run.PlayerMisses,
		Reports:       counts[runstore.BranchDone],
		Failed:        counts[runstore.BranchFailed],
		Error:         run.ErrorMessage,
		CreatedAt:     run.CreatedAt,
		FinishedAt:    run.FinishedAt,
	}
}

func reportCounts(counts map[runstore.BranchStatus]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	s := fmt.Sprintf("%d/%d", counts[runstore.BranchDone], total)
	if failed := counts[runstore.BranchFailed]; failed > 0 {
		s += fmt.Sprintf(" (%d failed)", failed)
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
