package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reframe/internal/geometry"
	"reframe/internal/media/ffprobe"
)

type probeReport struct {
	Path                 string   `json:"path"`
	Resolution           string   `json:"resolution"`
	Width                int      `json:"width"`
	Height               int      `json:"height"`
	Rotation             int      `json:"rotation"`
	VideoCodec           string   `json:"video_codec"`
	AudioStreams         int      `json:"audio_streams"`
	DurationSeconds      float64  `json:"duration_seconds"`
	SizeBytes            int64    `json:"size_bytes"`
	Container            string   `json:"container"`
	AvailableResolutions []string `json:"available_resolutions"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "probe <video>",
		Short: "Report a video's display dimensions and streams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("inspect %s: %w", path, err)
			}
			result, err := ffprobe.NewProber(cfg.Transcode.FFprobeBinary).Probe(cmd.Context(), path)
			if err != nil {
				return err
			}
			dims, err := ffprobe.DimensionsOf(result, path)
			if err != nil {
				return err
			}
			report := buildProbeReport(path, result, dims)

			if jsonOut {
				return writeJSON(cmd, report)
			}
			duration := time.Duration(report.DurationSeconds * float64(time.Second)).Round(time.Second)
			rows := [][]string{
				{"Path", report.Path},
				{"Resolution", report.Resolution},
				{"Rotation", strconv.Itoa(report.Rotation)},
				{"Video codec", report.VideoCodec},
				{"Audio streams", strconv.Itoa(report.AudioStreams)},
				{"Duration", duration.String()},
				{"Size", humanize.IBytes(uint64(max(report.SizeBytes, 0)))},
				{"Container", report.Container},
				{"Offered scales", strings.Join(report.AvailableResolutions, ", ")},
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}

func buildProbeReport(path string, result ffprobe.Result, dims geometry.Dimensions) probeReport {
	report := probeReport{
		Path:                 path,
		Resolution:           dims.String(),
		Width:                dims.Width,
		Height:               dims.Height,
		AudioStreams:         result.AudioStreamCount(),
		DurationSeconds:      result.DurationSeconds(),
		Container:            result.Format.FormatName,
		AvailableResolutions: geometry.AvailableResolutions(dims),
	}
	if stream, ok := result.PrimaryVideo(); ok {
		report.Rotation = stream.Rotation()
		report.VideoCodec = stream.CodecName
	}
	if size, err := strconv.ParseInt(strings.TrimSpace(result.Format.Size), 10, 64); err == nil {
		report.SizeBytes = size
	}
	return report
}
