package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestTranscribeFileParsesSegments(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.wav")
	var gotArgs []string
	svc := NewService(Config{Model: "small", VADMethod: VADMethodPyannote, HFToken: "hf"}).
		WithCommandRunner(func(_ context.Context, name string, args ...string) error {
			if name != UVXCommand {
				t.Fatalf("unexpected command %q", name)
			}
			gotArgs = args
			out := filepath.Join(dir, "out", "audio.json")
			return os.WriteFile(out, []byte(`{"segments":[{"start":0.5,"end":1.25,"text":" hello "},{"start":1.5,"end":2.0,"text":"world"}]}`), 0o644)
		})

	result, err := svc.TranscribeFile(context.Background(), audio, filepath.Join(dir, "out"), "en")
	if err != nil {
		t.Fatalf("TranscribeFile returned error: %v", err)
	}
	if result.Text != "hello world" || len(result.Segments) != 2 || result.Segments[0].End != 1.25 {
		t.Fatalf("unexpected result %+v", result)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"whisperx " + audio, "--model small", "--output_format json", "--vad_method pyannote", "--hf_token hf", "--language en", "--device cpu"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %q", want, joined)
		}
	}
}

func TestBuildArgsCUDA(t *testing.T) {
	svc := NewService(Config{CUDAEnabled: true})
	args := svc.buildArgs("a.wav", "/tmp/out", "")
	if !slices.Contains(args, torchIndex) || !slices.Contains(args, "cuda") || slices.Contains(args, "float32") {
		t.Fatalf("expected CUDA args, got %v", args)
	}
	if slices.Contains(args, "--language") || slices.Contains(args, "--hf_token") {
		t.Fatalf("unexpected optional args %v", args)
	}
	if !slices.Contains(args, DefaultModel) {
		t.Fatalf("expected default model, got %v", args)
	}
}

func TestTranscribeFilePropagatesRunnerError(t *testing.T) {
	svc := NewService(Config{}).WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("boom")
	})
	if _, err := svc.TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "a.wav"), "", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheck(t *testing.T) {
	missing := NewService(Config{}).WithLookPath(func(string) (string, error) { return "", errors.New("not found") })
	if err := missing.Check(); err == nil {
		t.Fatal("expected missing uvx error")
	}
	noToken := NewService(Config{VADMethod: VADMethodPyannote}).WithLookPath(func(string) (string, error) { return "/usr/bin/uvx", nil })
	if err := noToken.Check(); err == nil {
		t.Fatal("expected token error")
	}
	ok := NewService(Config{}).WithLookPath(func(string) (string, error) { return "/usr/bin/uvx", nil })
	if err := ok.Check(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadSegmentsTextOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.json")
	if err := os.WriteFile(path, []byte(`{"text":"  just text "}`), 0o644); err != nil {
		t.Fatal(err)
	}
	segments, err := LoadSegments(path)
	if err != nil {
		t.Fatalf("LoadSegments error: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "just text" || segments[0].End != 0 {
		t.Fatalf("unexpected segments %+v", segments)
	}
}
