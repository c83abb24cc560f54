package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"reframe/internal/api"
	"reframe/internal/job"
)

func TestProgressPrinterStepsAndStages(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, "[1/2] ")
	p.observe(job.Event{Stage: job.StageProbe})
	p.observe(job.Event{Stage: job.StageTranscode})
	for _, pct := range []float64{1, 4.9, 5, 7, 12, 11, 100} {
		p.observe(job.Event{Stage: job.StageTranscode, Percent: pct})
	}
	p.observe(job.Event{Stage: job.StageDone})

	want := []string{
		"[1/2] probe",
		"[1/2] transcode",
		"[1/2] transcode   5%",
		"[1/2] transcode  10%",
		"[1/2] transcode 100%",
		"[1/2] done",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected progress lines:\n%s", buf.String())
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "only") || !strings.HasSuffix(out, "\n") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stamp := api.FormatTime(now.Add(-3 * time.Minute))
	if got := relativeTime(stamp, now); got != "3 minutes ago" {
		t.Fatalf("unexpected relative time %q", got)
	}
	if got := relativeTime("not a time", now); got != "not a time" {
		t.Fatalf("expected raw value on parse failure, got %q", got)
	}
}

func TestPrintLogEventSortsFields(t *testing.T) {
	var buf bytes.Buffer
	printLogEvent(&buf, api.LogEvent{
		Timestamp: "2026-03-01T12:00:00.000Z",
		Level:     "info",
		Message:   "transform planned",
		Component: "job",
		JobID:     7,
		Fields:    map[string]string{"z": "1", "a": "2"},
	})
	want := "2026-03-01T12:00:00.000Z INFO  [job] job=7 transform planned a=2 z=1\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestRenderStatusLineWithoutColor(t *testing.T) {
	line := renderStatusLine("FFmpeg", statusOK, "ffmpeg", false)
	if !strings.Contains(line, "FFmpeg:") || !strings.HasSuffix(line, "[OK] ffmpeg") {
		t.Fatalf("unexpected status line %q", line)
	}
	if jobStatusKind("failed") != statusError || jobStatusKind("transcoding") != statusWarn {
		t.Fatal("unexpected status kinds")
	}
}
