package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reframe/internal/geometry"
	"reframe/internal/media/ffprobe"
	"reframe/internal/services"
)

var dimensionsPattern = regexp.MustCompile(`^(\d+)\s*[x×]\s*(\d+)$`)

type planRow struct {
	Ratio      string              `json:"aspect_ratio"`
	Resolution string              `json:"resolution"`
	Source     geometry.Dimensions `json:"source"`
	Target     geometry.Dimensions `json:"target"`
	Error      string              `json:"error,omitempty"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var sourceFlag string
	var ratioFlag string
	var resolutionFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "plan [video]",
		Short: "Show the output dimensions a transform would produce",
		Long: `Show the output dimensions a transform would produce without encoding.

Give the source either as a video file (probed with ffprobe) or as --source WxH.
Without --ratio every preset is listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source geometry.Dimensions
			switch {
			case len(args) == 1 && strings.TrimSpace(sourceFlag) != "":
				return fmt.Errorf("give either a video or --source, not both")
			case len(args) == 1:
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				path, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve source path: %w", err)
				}
				source, err = ffprobe.NewProber(cfg.Transcode.FFprobeBinary).Dimensions(cmd.Context(), path)
				if err != nil {
					return err
				}
			case strings.TrimSpace(sourceFlag) != "":
				parsed, err := parseDimensions(sourceFlag)
				if err != nil {
					return err
				}
				source = parsed
			default:
				return fmt.Errorf("a video or --source WxH is required")
			}

			scale, err := geometry.ParseScale(resolutionFlag)
			if err != nil {
				return err
			}
			ratios := geometry.PresetNames()
			if strings.TrimSpace(ratioFlag) != "" {
				ratios = []string{ratioFlag}
			}
			rows, err := planRows(source, ratios, scale)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source %s, available resolutions: %s\n", source, strings.Join(geometry.AvailableResolutions(source), ", "))
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				target := row.Target.String()
				if row.Error != "" {
					target = row.Error
				}
				table = append(table, []string{row.Ratio, row.Resolution, target})
			}
			fmt.Fprint(out, renderTable([]string{"Ratio", "Scale", "Output"}, table, []columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceFlag, "source", "", "Source dimensions as WxH instead of probing a file")
	cmd.Flags().StringVarP(&ratioFlag, "ratio", "r", "", "Target aspect ratio (all presets when empty)")
	cmd.Flags().StringVar(&resolutionFlag, "resolution", geometry.Label1080p, "720p, 1080p, 4K, or a percentage such as 50%")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the plan as JSON")
	return cmd
}

// planRows plans each ratio. A degenerate plan is reported in its row; a
// ratio that does not parse fails the whole command.
func planRows(source geometry.Dimensions, ratios []string, scale geometry.ScalePolicy) ([]planRow, error) {
	rows := make([]planRow, 0, len(ratios))
	for _, text := range ratios {
		ratio, err := geometry.ParseAspectRatio(text)
		if err != nil {
			return nil, err
		}
		w, h, err := geometry.Resolve(ratio)
		if err != nil {
			return nil, err
		}
		row := planRow{Ratio: ratio.String(), Resolution: scale.String(), Source: source}
		target, err := geometry.Plan(source, w, h, scale)
		if err != nil {
			if !errors.Is(err, services.ErrDegenerateGeometry) {
				return nil, err
			}
			row.Error = "degenerate"
		}
		row.Target = target
		rows = append(rows, row)
	}
	return rows, nil
}

func parseDimensions(value string) (geometry.Dimensions, error) {
	match := dimensionsPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(value)))
	if match == nil {
		return geometry.Dimensions{}, services.Wrap(services.ErrInvalidSpec, "plan", "parse dimensions", fmt.Sprintf("%q is not WxH", value), nil)
	}
	w, errW := strconv.Atoi(match[1])
	h, errH := strconv.Atoi(match[2])
	dims := geometry.Dimensions{Width: w, Height: h}
	if errW != nil || errH != nil || !dims.Valid() {
		return geometry.Dimensions{}, services.Wrap(services.ErrInvalidSpec, "plan", "parse dimensions", fmt.Sprintf("%q must have positive sides", value), nil)
	}
	return dims, nil
}
