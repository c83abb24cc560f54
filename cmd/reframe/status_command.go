package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reframe/internal/api"
	"reframe/internal/config"
	"reframe/internal/daemonrun"
	"reframe/internal/preflight"
	"reframe/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := collectStatus(cmd, ctx, cfg)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print status as JSON")
	return cmd
}

type statusReport struct {
	Daemon    api.DaemonStatus   `json:"daemon"`
	Preflight []preflight.Result `json:"preflight,omitempty"`
}

// collectStatus asks the daemon first. When none answers it reads the queue
// database and runs the preflight checks locally.
func collectStatus(cmd *cobra.Command, ctx *commandContext, cfg *config.Config) (statusReport, error) {
	if client, err := ctx.dialDaemon(cmd.Context()); err == nil {
		remote, err := client.Status(cmd.Context())
		if err != nil {
			return statusReport{}, err
		}
		return statusReport{Daemon: remote}, nil
	}

	report := statusReport{
		Daemon: api.DaemonStatus{
			PID:          daemonrun.ReadPID(cfg),
			QueueDBPath:  cfg.QueueDBPath(),
			LockFilePath: cfg.LockPath(),
			Workflow:     api.WorkflowStatus{Workers: cfg.Workflow.Workers},
			Dependencies: api.FromDependencies(preflight.CheckSystemDeps(cmd.Context(), cfg)),
		},
		Preflight: preflight.RunAll(cmd.Context(), cfg),
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return statusReport{}, fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return statusReport{}, err
	}
	report.Daemon.Workflow.QueueStats = api.MergeQueueStats(stats)
	report.Daemon.QueueDB = api.FromDiagnostics(store.Diagnose(cmd.Context()))
	return report, nil
}

func printStatus(out io.Writer, report statusReport) {
	colorize := shouldColorize(out)
	d := report.Daemon

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	switch {
	case d.Running:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", d.PID), colorize))
	case d.PID > 0:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, fmt.Sprintf("pid file names %d but the API does not answer", d.PID), colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
	}
	workers := fmt.Sprintf("%d configured", d.Workflow.Workers)
	if len(d.Workflow.ActiveJobs) > 0 {
		ids := make([]string, len(d.Workflow.ActiveJobs))
		for i, id := range d.Workflow.ActiveJobs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		workers += ", busy with " + strings.Join(ids, ", ")
	}
	fmt.Fprintln(out, renderStatusLine("Workers", statusInfo, workers, colorize))
	if d.Workflow.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, d.Workflow.LastError, colorize))
	}
	dbKind, dbDetail := statusInfo, d.QueueDBPath
	if db := d.QueueDB; db != nil {
		dbDetail = fmt.Sprintf("%s (%s, %d jobs, schema v%d)", d.QueueDBPath, humanize.IBytes(uint64(db.SizeBytes)), db.Jobs, db.SchemaVersion)
		if !db.IntegrityOK {
			dbKind, dbDetail = statusError, dbDetail+" integrity check failed"
		}
	}
	fmt.Fprintln(out, renderStatusLine("Queue database", dbKind, dbDetail, colorize))

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, dep := range d.Dependencies {
		kind, msg := statusOK, dep.Command
		if dep.Version != "" {
			msg = dep.Version
		}
		if !dep.Available {
			kind, msg = statusError, dep.Detail
			if dep.Optional {
				kind = statusWarn
			}
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, msg, colorize))
	}
	for _, check := range report.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	fmt.Fprintln(out)
	rows := queueStatRows(d.Workflow.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

// queueStatRows lists non-zero counts in lifecycle order.
func queueStatRows(stats map[string]int) [][]string {
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		if count := stats[string(status)]; count > 0 {
			rows = append(rows, []string{string(status), strconv.Itoa(count)})
		}
	}
	return rows
}
