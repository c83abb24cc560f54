package daemonrun

import (
	"os"
	"path/filepath"
	"testing"

	"reframe/internal/logging"
	"reframe/internal/testsupport"
)

func TestNewPipelineWiresCoordinator(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := NewPipeline(cfg, logging.NewNop())
	t.Cleanup(func() { _ = p.Close() })

	if p.Coordinator == nil || p.Coordinator.Prober == nil || p.Coordinator.Transcoder == nil || p.Coordinator.Captions == nil {
		t.Fatalf("coordinator not fully wired: %+v", p.Coordinator)
	}
	if p.Coordinator.CheckSpace == nil {
		t.Fatalf("expected a free space check")
	}
	if ok, reason := p.Captions.Available(); ok || reason == "" {
		t.Fatalf("transcriber none should be unavailable with a reason, got %v %q", ok, reason)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if ReadPID(cfg) != 0 {
		t.Fatalf("expected no pid before writing")
	}
	if err := writePIDFile(filepath.Join(cfg.Paths.DataDir, "reframe.pid")); err != nil {
		t.Fatal(err)
	}
	if got := ReadPID(cfg); got != os.Getpid() {
		t.Fatalf("ReadPID = %d, want %d", got, os.Getpid())
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "reframe-1.log")
	second := filepath.Join(dir, "reframe-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatal(err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "reframe.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != second {
		t.Fatalf("pointer should follow the latest log, got %q", data)
	}
}
