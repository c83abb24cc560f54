package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reframe/internal/api"
	"reframe/internal/daemonctl"
	"reframe/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var jobID int64
	var component string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log events",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.requireDaemon(cmd.Context())
			if err != nil {
				cfg, cfgErr := ctx.ensureConfig()
				if cfgErr != nil {
					return err
				}
				path := filepath.Join(cfg.Paths.LogDir, "reframe.log")
				if _, statErr := os.Stat(path); statErr != nil {
					return fmt.Errorf("%w (no log file at %s)", err, path)
				}
				if jobID != 0 || component != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "daemon not running; --job and --component filters are ignored for the log file")
				}
				return tailLogFile(cmd, path, lines, follow)
			}
			query := daemonctl.LogQuery{Limit: lines, Tail: true, JobID: jobID, Component: component}
			out := cmd.OutOrStdout()
			for {
				page, err := client.Logs(cmd.Context(), query)
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				for _, evt := range page.Events {
					if jsonOut {
						if err := writeJSON(cmd, evt); err != nil {
							return err
						}
						continue
					}
					printLogEvent(out, evt)
				}
				if !follow {
					return nil
				}
				query = daemonctl.LogQuery{Since: page.Next, Follow: true, JobID: jobID, Component: component}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent events to show first")
	cmd.Flags().Int64Var(&jobID, "job", 0, "Only events for this job id")
	cmd.Flags().StringVar(&component, "component", "", "Only events from this component")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print one JSON object per event")
	return cmd
}

func tailLogFile(cmd *cobra.Command, path string, lines int, follow bool) error {
	out := cmd.OutOrStdout()
	opts := logs.TailOptions{Offset: -1, Limit: lines}
	for {
		result, err := logs.Tail(cmd.Context(), path, opts)
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range result.Lines {
			fmt.Fprintln(out, line)
		}
		if !follow {
			return nil
		}
		opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: 25 * time.Second}
	}
}

func printLogEvent(out io.Writer, evt api.LogEvent) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s", evt.Timestamp, strings.ToUpper(evt.Level))
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	if evt.JobID != 0 {
		fmt.Fprintf(&b, " job=%d", evt.JobID)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, evt.Fields[key])
	}
	fmt.Fprintln(out, b.String())
}
