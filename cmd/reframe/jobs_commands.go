package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reframe/internal/api"
	"reframe/internal/queue"
	"reframe/internal/queueaccess"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"queue"},
		Short:   "Inspect and manage queued transform jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				if _, ok := queue.ParseStatus(s); !ok {
					return fmt.Errorf("unknown status %q (valid: %s)", s, strings.Join(statusNames(), ", "))
				}
			}
			return ctx.withQueue(cmd, func(session queueaccess.Session) error {
				jobs, err := session.Access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Title", "Ratio", "Scale", "Output", "Updated"},
					jobRows(jobs, time.Now()),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print jobs as JSON")
	return cmd
}

func jobRows(jobs []api.Job, now time.Time) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		status := j.Status
		if queue.IsProcessingStatus(queue.Status(j.Status)) && j.Progress.Percent > 0 {
			status = fmt.Sprintf("%s %.0f%%", j.Status, j.Progress.Percent)
		}
		output := ""
		if j.Target != nil {
			output = j.Target.Label
		}
		rows = append(rows, []string{
			strconv.FormatInt(j.ID, 10),
			status,
			j.Title,
			j.AspectRatio,
			j.Resolution,
			output,
			relativeTime(j.UpdatedAt, now),
		})
	}
	return rows
}

func relativeTime(stamp string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd, func(session queueaccess.Session) error {
				j, err := session.Access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if j == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if jsonOut {
					return writeJSON(cmd, api.JobResponse{Job: *j})
				}
				printJobDetail(cmd.OutOrStdout(), *j)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the job as JSON")
	return cmd
}

func printJobDetail(out io.Writer, j api.Job) {
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(fmt.Sprintf("Job %d: %s", j.ID, j.Title), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(j.Status), formatProgress(j), colorize))
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, j.SourcePath, colorize))
	spec := fmt.Sprintf("%s at %s as %s", j.AspectRatio, j.Resolution, j.Format)
	if j.Platform != "" {
		spec += " for " + j.Platform
	}
	fmt.Fprintln(out, renderStatusLine("Request", statusInfo, spec, colorize))
	if j.Source != nil && j.Target != nil {
		fmt.Fprintln(out, renderStatusLine("Geometry", statusInfo, j.Source.Label+" -> "+j.Target.Label, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Output ID", statusInfo, j.OutputID, colorize))
	if j.AutoCaption || j.CaptionStatus != "" {
		msg := j.CaptionStatus
		if j.CaptionNote != "" {
			msg += ": " + j.CaptionNote
		}
		kind := statusInfo
		if j.CaptionNote != "" {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Captions", kind, msg, colorize))
	}
	if j.Error != nil {
		msg := fmt.Sprintf("%s (%s): %s; retryable: %s", j.Error.Stage, j.Error.Kind, j.Error.Message, yesNo(j.Error.Retryable))
		fmt.Fprintln(out, renderStatusLine("Error", statusError, msg, colorize))
	}
	if j.OutputURL != "" {
		fmt.Fprintln(out, renderStatusLine("Download", statusOK, j.OutputURL, colorize))
	}
	if j.CaptionURL != "" {
		fmt.Fprintln(out, renderStatusLine("Subtitles", statusOK, j.CaptionURL, colorize))
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Requeue failed jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd, func(session queueaccess.Session) error {
				count, err := session.Access.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s)\n", count)
				return nil
			})
		},
	}
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove jobs that are not running",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd, func(session queueaccess.Session) error {
				count, err := session.Access.Remove(cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", count)
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var completed bool
	var failed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs (running jobs are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := "all"
			switch {
			case completed && failed:
				return fmt.Errorf("--completed and --failed are mutually exclusive")
			case completed:
				scope = "completed"
			case failed:
				scope = "failed"
			}
			return ctx.withQueue(cmd, func(session queueaccess.Session) error {
				count, err := session.Access.Clear(cmd.Context(), scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d job(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "Only clear completed jobs")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only clear failed jobs")
	return cmd
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseJobID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseJobID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", value)
	}
	return id, nil
}

func statusNames() []string {
	statuses := queue.AllStatuses()
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}
