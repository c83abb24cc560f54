package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStub(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present, "exit 0")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: " ", Optional: true},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" || results[0].Path != present {
		t.Fatalf("unexpected available dependency: %#v", results[0])
	}
	if results[0].Version != "" {
		t.Fatalf("unversioned requirement should not probe, got %q", results[0].Version)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" || !results[2].Optional {
		t.Fatalf("unexpected blank command status %#v", results[2])
	}
}

func TestCheckBinariesRecordsVersion(t *testing.T) {
	binDir := t.TempDir()
	good := filepath.Join(binDir, "ffmpeg")
	writeStub(t, good, `echo "ffmpeg version 7.1"`)
	broken := filepath.Join(binDir, "ffprobe")
	writeStub(t, broken, "exit 3")

	results := CheckBinaries(context.Background(), []Requirement{
		{Name: "FFmpeg", Command: good, Versioned: true},
		{Name: "FFprobe", Command: broken, Versioned: true},
	})
	if results[0].Version != "ffmpeg version 7.1" {
		t.Fatalf("unexpected version %q", results[0].Version)
	}
	if !results[1].Available || results[1].Detail == "" || results[1].Version != "" {
		t.Fatalf("failed version probe should keep binary available with detail, got %#v", results[1])
	}
}

func TestResolveRejectsNonExecutablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Resolve(path); err == nil {
		t.Fatal("expected error for non-executable file")
	}
}

func TestResolveUsesPath(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, filepath.Join(binDir, "ffprobe"), "exit 0")
	t.Setenv("PATH", binDir)

	got, err := Resolve("ffprobe")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != filepath.Join(binDir, "ffprobe") {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestVersionLine(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	writeStub(t, stub, `echo "ffmpeg version 7.1 Copyright (c) 2000-2024"; echo "built with gcc"`)

	line, err := VersionLine(context.Background(), stub)
	if err != nil {
		t.Fatalf("VersionLine: %v", err)
	}
	if !strings.HasPrefix(line, "ffmpeg version 7.1") {
		t.Fatalf("unexpected version line %q", line)
	}
}
