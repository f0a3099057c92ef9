package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slidereel/internal/artifacts"
	"slidereel/internal/janitor"
)

func newJanitorCommand(ctx *commandContext) *cobra.Command {
	janitorCmd := &cobra.Command{
		Use:   "janitor",
		Short: "Reconcile job records with the artifact store",
	}
	janitorCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one janitor pass and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			arts, err := artifacts.New(cfg.Paths.VideosDir)
			if err != nil {
				return err
			}
			jan, err := janitor.New(cfg, st, arts, logger)
			if err != nil {
				return err
			}
			report, err := jan.RunOnce(cmd.Context())
			if errors.Is(err, janitor.ErrBusy) {
				return fmt.Errorf("%w; try again once it finishes", err)
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, reportJSON(report))
			}
			printJanitorReport(cmd, report)
			return nil
		},
	})
	return janitorCmd
}

func printJanitorReport(cmd *cobra.Command, report janitor.Report) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"Job records reaped", humanize.Comma(report.JobsReaped)},
		{"Orphan videos removed", strconv.Itoa(len(report.VideosRemoved))},
		{"Work directories removed", strconv.Itoa(len(report.DirsRemoved))},
		{"Active directories kept", strconv.Itoa(len(report.DirsSkipped))},
		{"Stray files removed", strconv.Itoa(len(report.FilesRemoved))},
		{"Jobs timed out", humanize.Comma(report.JobsTimedOut)},
	}
	fmt.Fprint(out, renderTable(out, []string{"Phase", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

	colorize := shouldColorize(out)
	for _, cleanupErr := range report.Errors {
		fmt.Fprintln(out, renderStatusLine("cleanup", statusError, fmt.Sprintf("%s: %v", cleanupErr.Target, cleanupErr.Err), colorize))
	}
	if !report.Changed() {
		fmt.Fprintln(out, "Nothing to clean up")
	}
	fmt.Fprintf(out, "Finished in %s\n", report.Duration.Round(time.Millisecond))
}

type janitorReportJSON struct {
	JobsReaped    int64    `json:"jobsReaped"`
	VideosRemoved []string `json:"videosRemoved"`
	DirsRemoved   []string `json:"dirsRemoved"`
	DirsSkipped   []string `json:"dirsSkipped"`
	FilesRemoved  []string `json:"filesRemoved"`
	JobsTimedOut  int64    `json:"jobsTimedOut"`
	Errors        []string `json:"errors,omitempty"`
	DurationMS    int64    `json:"durationMs"`
}

func reportJSON(report janitor.Report) janitorReportJSON {
	out := janitorReportJSON{
		JobsReaped:    report.JobsReaped,
		VideosRemoved: report.VideosRemoved,
		DirsRemoved:   report.DirsRemoved,
		DirsSkipped:   report.DirsSkipped,
		FilesRemoved:  report.FilesRemoved,
		JobsTimedOut:  report.JobsTimedOut,
		DurationMS:    report.Duration.Milliseconds(),
	}
	for _, cleanupErr := range report.Errors {
		out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", cleanupErr.Target, cleanupErr.Err))
	}
	return out
}
