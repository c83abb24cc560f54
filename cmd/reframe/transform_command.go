package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reframe/internal/api"
	"reframe/internal/daemonctl"
	"reframe/internal/daemonrun"
	"reframe/internal/job"
	"reframe/internal/queue"
	"reframe/internal/workflow"
)

const submitPollInterval = time.Second

type transformFlags struct {
	aspectRatio string
	resolution  string
	format      string
	captions    bool
	platform    string
	videoType   string
	outputDir   string
	outputID    string
	submit      bool
	wait        bool
	jsonOut     bool
}

func (f transformFlags) request(source string) api.TransformRequest {
	return api.TransformRequest{
		SourcePath:  source,
		AspectRatio: f.aspectRatio,
		Resolution:  f.resolution,
		Format:      f.format,
		AutoCaption: f.captions,
		Platform:    f.platform,
		VideoType:   f.videoType,
	}
}

func newTransformCommand(ctx *commandContext) *cobra.Command {
	var flags transformFlags

	cmd := &cobra.Command{
		Use:   "transform <video>",
		Short: "Resize a video to a target aspect ratio and resolution",
		Long: `Resize a video to a target aspect ratio and resolution.

By default the job runs in this process. With --submit it is queued on the
running daemon instead; add --wait to follow it until it finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			if flags.submit {
				return submitTransform(cmd, ctx, flags, source)
			}
			return runLocalTransform(cmd, ctx, flags, source)
		},
	}

	addSpecFlags(cmd, &flags)
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for the output video (defaults to paths.output_dir)")
	cmd.Flags().StringVar(&flags.outputID, "output-id", "", "Artifact name suffix (generated when empty)")
	cmd.Flags().BoolVar(&flags.submit, "submit", false, "Queue the job on the running daemon")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "With --submit, wait for the job to finish")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Print the result as JSON")
	return cmd
}

func addSpecFlags(cmd *cobra.Command, flags *transformFlags) {
	cmd.Flags().StringVarP(&flags.aspectRatio, "ratio", "r", "", "Target aspect ratio: a preset (16:9, 9:16, 4:5) or custom W:H")
	cmd.Flags().StringVar(&flags.resolution, "resolution", "", "720p, 1080p, 4K, or a percentage such as 50%")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output container: mp4, mkv, or avi")
	cmd.Flags().BoolVar(&flags.captions, "captions", false, "Generate a subtitle track")
	cmd.Flags().StringVar(&flags.platform, "platform", "", "Target platform label")
	cmd.Flags().StringVar(&flags.videoType, "video-type", "", "short or long; picks the default ratio when --ratio is empty")
}

func runLocalTransform(cmd *cobra.Command, ctx *commandContext, flags transformFlags, source string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	spec, err := flags.request(source).Validate()
	if err != nil {
		return err
	}
	spec.OutputDir = cfg.Paths.OutputDir
	if dir := strings.TrimSpace(flags.outputDir); dir != "" {
		if spec.OutputDir, err = filepath.Abs(dir); err != nil {
			return fmt.Errorf("resolve output dir: %w", err)
		}
		if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	spec.OutputID = strings.TrimSpace(flags.outputID)

	req, err := workflow.RequestFromSpec(spec)
	if err != nil {
		return err
	}
	logger, err := ctx.localLogger(cfg)
	if err != nil {
		return err
	}
	pipeline := daemonrun.NewPipeline(cfg, logger)
	defer pipeline.Close()

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := newProgressPrinter(cmd.ErrOrStderr(), "")
	result, runErr := pipeline.Coordinator.Run(runCtx, req, progress.observe)
	if flags.jsonOut {
		if err := writeJSON(cmd, result); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		return runErr
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

func printResult(out io.Writer, result job.Result) {
	fmt.Fprintf(out, "Output:   %s\n", result.OutputPath)
	fmt.Fprintf(out, "Geometry: %s -> %s\n", result.Source, result.Target)
	switch {
	case result.CaptionTrackPath != "":
		fmt.Fprintf(out, "Captions: %s (%s)\n", result.CaptionTrackPath, result.CaptionStatus)
	case result.CaptionNote != "":
		fmt.Fprintf(out, "Captions: %s: %s\n", result.CaptionStatus, result.CaptionNote)
	default:
		fmt.Fprintf(out, "Captions: %s\n", result.CaptionStatus)
	}
}

func submitTransform(cmd *cobra.Command, ctx *commandContext, flags transformFlags, source string) error {
	if strings.TrimSpace(flags.outputDir) != "" || strings.TrimSpace(flags.outputID) != "" {
		return fmt.Errorf("--output-dir and --output-id apply to local runs; the daemon uses its own output directory")
	}
	client, err := ctx.requireDaemon(cmd.Context())
	if err != nil {
		return err
	}
	submitted, err := client.Submit(cmd.Context(), flags.request(source))
	if err != nil {
		return err
	}
	if !flags.wait {
		if flags.jsonOut {
			return writeJSON(cmd, submitted)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued job %d (output id %s)\n", submitted.ID, submitted.OutputID)
		return nil
	}

	final, err := waitForJob(cmd.Context(), client, submitted.ID, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if flags.jsonOut {
		return writeJSON(cmd, final)
	}
	printJobDetail(cmd.OutOrStdout(), *final)
	if final.Status == string(queue.StatusFailed) {
		return fmt.Errorf("job %d failed", final.ID)
	}
	return nil
}

// waitForJob polls until the job reaches a terminal status.
func waitForJob(ctx context.Context, client *daemonctl.Client, id int64, progress io.Writer) (*api.Job, error) {
	ticker := time.NewTicker(submitPollInterval)
	defer ticker.Stop()
	var lastLine string
	for {
		current, err := client.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, fmt.Errorf("job %d disappeared from the queue", id)
		}
		line := formatProgress(*current)
		if line != lastLine {
			fmt.Fprintln(progress, line)
			lastLine = line
		}
		if status := queue.Status(current.Status); status == queue.StatusCompleted || status == queue.StatusFailed {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func formatProgress(j api.Job) string {
	if j.Progress.Percent > 0 {
		return fmt.Sprintf("%s %3.0f%%", j.Status, j.Progress.Percent)
	}
	if msg := strings.TrimSpace(j.Progress.Message); msg != "" {
		return fmt.Sprintf("%s: %s", j.Status, msg)
	}
	return j.Status
}
