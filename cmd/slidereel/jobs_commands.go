package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slidereel/internal/api"
	"slidereel/internal/janitor"
	"slidereel/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel generation jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				jobs, err := st.ListJobs(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobListResponse{Jobs: api.FromJobs(jobs)})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						job.ScriptID,
						colorizeText(jobStatusKind(job), string(job.Status), colorize),
						humanize.Time(job.UpdatedAt),
						jobDetail(job),
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Script", "Status", "Updated", "Detail"},
					rows, nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (queued, processing, completed, failed, cancelled)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of jobs to show (0 for all)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <jobId>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				job, err := st.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobResponse{Job: api.FromJob(job)})
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job), string(job.Status), colorize))
				fmt.Fprintln(out, renderField("Script", job.ScriptID))
				fmt.Fprintln(out, renderField("Created", fmt.Sprintf("%s (%s)", job.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(job.CreatedAt))))
				fmt.Fprintln(out, renderField("Updated", humanize.Time(job.UpdatedAt)))
				if job.SourceURL != "" {
					fmt.Fprintln(out, renderField("Video", job.SourceURL))
					if size, ok := finalSize(cfg.Paths.VideosDir, job.SourceURL); ok {
						fmt.Fprintln(out, renderField("Size", humanize.Bytes(size)))
					}
				}
				if job.VideoID != "" {
					fmt.Fprintln(out, renderField("Video ID", job.VideoID))
				}
				if job.Warning != "" {
					fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, job.Warning, colorize))
				}
				if job.Error != "" {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, job.Error, colorize))
				}
				return nil
			})
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobId>",
		Short: "Cancel a queued or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				if err := st.Cancel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]store.JobStatus, error) {
	var statuses []store.JobStatus
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		status, ok := store.ParseJobStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown job status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func jobDetail(job *store.Job) string {
	switch {
	case job.Error != "":
		return job.Error
	case job.Warning != "":
		return job.Warning
	default:
		return job.SourceURL
	}
}

// finalSize stats the promoted file a job's source URL points at.
func finalSize(videosDir, sourceURL string) (uint64, bool) {
	name := janitor.VideoBasename(sourceURL)
	if name == "." || name == "/" {
		return 0, false
	}
	info, err := os.Stat(filepath.Join(videosDir, name))
	if err != nil || info.IsDir() {
		return 0, false
	}
	return uint64(info.Size()), true
}
