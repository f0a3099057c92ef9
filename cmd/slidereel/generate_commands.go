package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"slidereel/internal/api"
	"slidereel/internal/artifacts"
	"slidereel/internal/store"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var queue bool
	cmd := &cobra.Command{
		Use:   "render <scriptId>",
		Short: "Generate a video for a script",
		Long: "Generate a video for a script and wait for it to finish. With --queue the job\n" +
			"is recorded for the daemon's worker instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if queue {
				return submitJob(cmd, ctx, args[0], artifacts.KindVideo)
			}
			return runJob(cmd, ctx, args[0], artifacts.KindVideo)
		},
	}
	cmd.Flags().BoolVar(&queue, "queue", false, "Queue the job for the daemon instead of running it")
	return cmd
}

func newRegenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regen <scriptId>",
		Short: "Re-run generation for a script under a fresh regen job id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, ctx, args[0], artifacts.KindRegen)
		},
	}
}

func runJob(cmd *cobra.Command, ctx *commandContext, scriptID, kind string) error {
	orch, err := ctx.orchestrator()
	if err != nil {
		return err
	}
	jobID, runErr := orch.Run(cmd.Context(), scriptID, kind)
	if jobID == "" {
		return runErr
	}

	st, err := ctx.openStore()
	if err != nil {
		return err
	}
	job, err := st.GetJob(cmd.Context(), jobID)
	if err != nil {
		return errors.Join(runErr, err)
	}
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, api.JobResponse{Job: api.FromJob(job)}); err != nil {
			return err
		}
	} else {
		printJobOutcome(cmd, job)
	}
	if runErr != nil {
		return fmt.Errorf("job %s: %w", jobID, runErr)
	}
	return nil
}

func submitJob(cmd *cobra.Command, ctx *commandContext, scriptID, kind string) error {
	orch, err := ctx.orchestrator()
	if err != nil {
		return err
	}
	job, err := orch.Submit(cmd.Context(), scriptID, kind)
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, api.JobResponse{Job: api.FromJob(job)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s for script %s\n", job.ID, scriptID)
	return nil
}

func printJobOutcome(cmd *cobra.Command, job *store.Job) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	kind := jobStatusKind(job)
	switch job.Status {
	case store.StatusCompleted:
		fmt.Fprintln(out, renderStatusLine(job.ID, kind, job.SourceURL, colorize))
		if job.Warning != "" {
			fmt.Fprintln(out, renderStatusLine("warning", statusWarn, job.Warning, colorize))
		}
	case store.StatusFailed:
		fmt.Fprintln(out, renderStatusLine(job.ID, kind, job.Error, colorize))
	default:
		fmt.Fprintln(out, renderStatusLine(job.ID, kind, string(job.Status), colorize))
	}
}
