package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reframe/internal/api"
	"reframe/internal/batch"
	"reframe/internal/daemonrun"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/notifications"
	"reframe/internal/queue"
	"reframe/internal/services"
)

type batchOutcome struct {
	Entry  int        `json:"entry"`
	Source string     `json:"source"`
	Result job.Result `json:"result"`
	Error  string     `json:"error,omitempty"`
	Kind   string     `json:"kind,omitempty"`
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var concurrency int
	var submit bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Run every transform listed in a YAML manifest",
		Long: `Run every transform listed in a YAML manifest.

Entries inherit unset fields from the manifest defaults. All entries are
validated before any job starts. With --submit the jobs are queued on the
running daemon instead of running here.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manifest, err := batch.Load(args[0])
			if err != nil {
				return err
			}
			specs, err := manifest.Specs(cfg.Paths.OutputDir)
			if err != nil {
				return err
			}
			if submit {
				return submitBatch(cmd, ctx, specs, jsonOut)
			}
			if len(specs) > 0 {
				if err := os.MkdirAll(specs[0].OutputDir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}

			if !cmd.Flags().Changed("concurrency") && manifest.Concurrency > 0 {
				concurrency = manifest.Concurrency
			}
			logger, err := ctx.localLogger(cfg)
			if err != nil {
				return err
			}
			pipeline := daemonrun.NewPipeline(cfg, logger)
			defer pipeline.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			started := time.Now()
			printers := make([]*progressPrinter, len(specs))
			for i := range printers {
				printers[i] = newProgressPrinter(cmd.ErrOrStderr(), fmt.Sprintf("[%d/%d] ", i+1, len(specs)))
			}
			outcomes := batch.Run(runCtx, pipeline.Coordinator, specs, concurrency, func(index int, evt job.Event) {
				printers[index].observe(evt)
			}, logger)

			summary := batch.Summarize(outcomes)
			notifier := notifications.NewService(cfg)
			if err := notifier.Publish(runCtx, notifications.EventBatchCompleted, notifications.Payload{
				"succeeded": strconv.Itoa(summary.Succeeded),
				"failed":    strconv.Itoa(summary.Failed),
				"duration":  time.Since(started).Round(time.Second).String(),
			}); err != nil {
				logging.WarnWithContext(logger, "batch notification failed", "notification_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"))
			}
			if jsonOut {
				if err := writeJSON(cmd, batchOutcomes(outcomes)); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"#", "Source", "Result", "Captions"},
					batchRows(outcomes),
					[]columnAlignment{alignRight},
				))
				fmt.Fprintf(cmd.OutOrStdout(), "%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d batch jobs failed", summary.Failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", batch.DefaultConcurrency, "Jobs to run at once (overrides the manifest)")
	cmd.Flags().BoolVar(&submit, "submit", false, "Queue the jobs on the running daemon")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print outcomes as JSON")
	return cmd
}

func batchOutcomes(outcomes []batch.Outcome) []batchOutcome {
	out := make([]batchOutcome, len(outcomes))
	for i, o := range outcomes {
		out[i] = batchOutcome{Entry: o.Index + 1, Source: o.Spec.SourcePath, Result: o.Result}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
			out[i].Kind = services.Kind(o.Err)
		}
	}
	return out
}

func batchRows(outcomes []batch.Outcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		result := o.Result.OutputPath
		if o.Err != nil {
			result = "failed: " + services.Kind(o.Err)
			if o.Result.Error != nil {
				result += " at " + string(o.Result.Error.Stage)
			}
		}
		captions := string(o.Result.CaptionStatus)
		if o.Result.CaptionNote != "" {
			captions += " (" + o.Result.CaptionNote + ")"
		}
		rows = append(rows, []string{strconv.Itoa(o.Index + 1), o.Spec.SourcePath, result, captions})
	}
	return rows
}

func submitBatch(cmd *cobra.Command, ctx *commandContext, specs []queue.Spec, jsonOut bool) error {
	client, err := ctx.requireDaemon(cmd.Context())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(specs))
	jobs := make([]api.Job, 0, len(specs))
	for i, spec := range specs {
		submitted, err := client.Submit(cmd.Context(), api.TransformRequest{
			SourcePath:  spec.SourcePath,
			AspectRatio: spec.AspectRatio,
			Resolution:  spec.Resolution,
			Format:      spec.Format,
			AutoCaption: spec.AutoCaption,
			Platform:    spec.Platform,
			VideoType:   spec.VideoType,
		})
		if err != nil {
			return fmt.Errorf("submit entry %d (%s): %w", i+1, spec.SourcePath, err)
		}
		jobs = append(jobs, submitted)
		rows = append(rows, []string{strconv.Itoa(i + 1), strconv.FormatInt(submitted.ID, 10), spec.SourcePath})
	}
	if jsonOut {
		return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"#", "Job", "Source"}, rows, []columnAlignment{alignRight, alignRight}))
	return nil
}
