package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reframe/internal/captions"
	"reframe/internal/geometry"
	"reframe/internal/media/ffprobe"
	"reframe/internal/services"
	"reframe/internal/transcode"
)

type stubProber struct {
	result ffprobe.Result
	err    error
	calls  int
}

func (s *stubProber) Probe(context.Context, string) (ffprobe.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubTranscoder struct {
	err   error
	calls []transcode.Request
}

func (s *stubTranscoder) Transcode(_ context.Context, req transcode.Request) error {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return s.err
	}
	if req.Progress != nil {
		req.Progress(transcode.Progress{Percent: 50})
	}
	return os.WriteFile(req.Output, []byte("video"), 0o644)
}

type stubCaptioner struct {
	outcome captions.Outcome
	calls   []captions.Request
}

func (s *stubCaptioner) Run(_ context.Context, req captions.Request) captions.Outcome {
	s.calls = append(s.calls, req)
	out := s.outcome
	if out.Status == captions.StatusGenerated {
		out.TrackPath = req.OutputPath
	}
	return out
}

func landscapeProbe() *stubProber {
	return &stubProber{result: ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", Width: 1920, Height: 1080}, {CodecType: "audio"}},
		Format:  ffprobe.Format{Duration: "12.5"},
	}}
}

func baseRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		SourcePath:   filepath.Join(t.TempDir(), "clip.mp4"),
		AspectRatio:  geometry.Preset(geometry.PresetPortrait),
		Scale:        geometry.Absolute("1080p"),
		OutputFormat: "mp4",
		OutputDir:    t.TempDir(),
		OutputID:     "abc",
	}
}

func TestRunProducesVideoAndCaptions(t *testing.T) {
	prober := landscapeProbe()
	tc := &stubTranscoder{}
	captioner := &stubCaptioner{outcome: captions.Outcome{State: captions.StateDone, Status: captions.StatusGenerated, Note: captions.NoteGenerated}}
	c := &Coordinator{Prober: prober, Transcoder: tc, Captions: captioner}

	req := baseRequest(t)
	req.CaptionsRequested = true
	var stages []Stage
	result, err := c.Run(context.Background(), req, func(e Event) {
		if len(stages) == 0 || stages[len(stages)-1] != e.Stage {
			stages = append(stages, e.Stage)
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantOutput := filepath.Join(req.OutputDir, "output_abc.mp4")
	if result.OutputPath != wantOutput {
		t.Fatalf("output path = %q, want %q", result.OutputPath, wantOutput)
	}
	if result.CaptionTrackPath != filepath.Join(req.OutputDir, "output_abc.srt") {
		t.Fatalf("unexpected caption path %q", result.CaptionTrackPath)
	}
	if result.CaptionStatus != captions.StatusGenerated {
		t.Fatalf("caption status = %q", result.CaptionStatus)
	}
	if result.Source != (geometry.Dimensions{Width: 1920, Height: 1080}) {
		t.Fatalf("unexpected source %v", result.Source)
	}
	if result.Target != (geometry.Dimensions{Width: 608, Height: 1080}) {
		t.Fatalf("unexpected target %v", result.Target)
	}
	if len(tc.calls) != 1 || tc.calls[0].Duration.Seconds() != 12.5 {
		t.Fatalf("expected one transcode with probed duration, got %+v", tc.calls)
	}
	if len(captioner.calls) != 1 || captioner.calls[0].SourcePath != req.SourcePath {
		t.Fatalf("captions should read the source, got %+v", captioner.calls)
	}
	want := []Stage{StageResolve, StageProbe, StagePlan, StageTranscode, StageCaptions, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", stages, want)
		}
	}
}

func TestRunSkipsProbeWhenDimensionsGiven(t *testing.T) {
	prober := landscapeProbe()
	c := &Coordinator{Prober: prober, Transcoder: &stubTranscoder{}}
	req := baseRequest(t)
	req.SourceDimensions = geometry.Dimensions{Width: 1080, Height: 1920}
	result, err := c.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prober.calls != 0 {
		t.Fatalf("prober should not be called, got %d calls", prober.calls)
	}
	if result.Target != (geometry.Dimensions{Width: 1080, Height: 1920}) {
		t.Fatalf("unexpected target %v", result.Target)
	}
	if result.CaptionStatus != captions.StatusNotRequested {
		t.Fatalf("caption status = %q, want not_requested", result.CaptionStatus)
	}
}

func TestRunInvalidSpecMakesNoExternalCalls(t *testing.T) {
	prober := landscapeProbe()
	tc := &stubTranscoder{}
	c := &Coordinator{Prober: prober, Transcoder: tc}
	cases := map[string]func(*Request){
		"unknown preset": func(r *Request) { r.AspectRatio = geometry.Preset("21:9") },
		"zero term":      func(r *Request) { r.AspectRatio = geometry.Custom(0, 9) },
		"bad format":     func(r *Request) { r.OutputFormat = "webm" },
		"bad percent":    func(r *Request) { r.Scale = geometry.Percentage(0) },
		"no output dir":  func(r *Request) { r.OutputDir = "" },
	}
	for name, mutate := range cases {
		req := baseRequest(t)
		mutate(&req)
		result, err := c.Run(context.Background(), req, nil)
		if !errors.Is(err, services.ErrInvalidSpec) {
			t.Fatalf("%s: expected ErrInvalidSpec, got %v", name, err)
		}
		if result.Error == nil || result.Error.Stage != StageResolve || result.Error.Kind != "invalid_spec" {
			t.Fatalf("%s: unexpected failure %+v", name, result.Error)
		}
	}
	if prober.calls != 0 || len(tc.calls) != 0 {
		t.Fatalf("no collaborator should run: probe=%d transcode=%d", prober.calls, len(tc.calls))
	}
}

func TestRunUnreadableSource(t *testing.T) {
	prober := &stubProber{err: services.Wrap(services.ErrUnreadableMedia, "probe", "ffprobe", "clip.mp4", errors.New("moov atom not found"))}
	tc := &stubTranscoder{}
	c := &Coordinator{Prober: prober, Transcoder: tc}
	result, err := c.Run(context.Background(), baseRequest(t), nil)
	if !errors.Is(err, services.ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia, got %v", err)
	}
	if result.Error.Stage != StageProbe || len(tc.calls) != 0 {
		t.Fatalf("unexpected failure %+v transcodes=%d", result.Error, len(tc.calls))
	}
}

func TestRunDegenerateGeometry(t *testing.T) {
	tc := &stubTranscoder{}
	c := &Coordinator{Transcoder: tc}
	req := baseRequest(t)
	req.SourceDimensions = geometry.Dimensions{Width: 4, Height: 4}
	req.AspectRatio = geometry.Custom(100, 1)
	result, err := c.Run(context.Background(), req, nil)
	if !errors.Is(err, services.ErrDegenerateGeometry) {
		t.Fatalf("expected ErrDegenerateGeometry, got %v", err)
	}
	if result.Error.Stage != StagePlan || len(tc.calls) != 0 {
		t.Fatalf("unexpected failure %+v transcodes=%d", result.Error, len(tc.calls))
	}
}

func TestRunTranscodeFailureSkipsCaptions(t *testing.T) {
	tc := &stubTranscoder{err: services.Wrap(services.ErrTranscodeFailed, "transcode", "ffmpeg", "encoder exited with error", errors.New("exit 1"))}
	captioner := &stubCaptioner{outcome: captions.Outcome{Status: captions.StatusGenerated}}
	c := &Coordinator{Prober: landscapeProbe(), Transcoder: tc, Captions: captioner}
	req := baseRequest(t)
	req.CaptionsRequested = true
	result, err := c.Run(context.Background(), req, nil)
	if !errors.Is(err, services.ErrTranscodeFailed) {
		t.Fatalf("expected ErrTranscodeFailed, got %v", err)
	}
	if result.OutputPath != "" || result.Succeeded() {
		t.Fatalf("failed transcode must not report an output: %+v", result)
	}
	if len(captioner.calls) != 0 {
		t.Fatal("captions must be skipped after a transcode failure")
	}
}

func TestRunCaptionFailureStillSucceeds(t *testing.T) {
	captioner := &stubCaptioner{outcome: captions.Outcome{
		State:  captions.StateFailed,
		Status: captions.StatusTranscriptionFailed,
		Note:   "Transcription failed: boom",
		Err:    errors.New("boom"),
	}}
	c := &Coordinator{Prober: landscapeProbe(), Transcoder: &stubTranscoder{}, Captions: captioner}
	req := baseRequest(t)
	req.CaptionsRequested = true
	result, err := c.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("caption failure must not fail the job: %v", err)
	}
	if !result.Succeeded() || result.CaptionStatus != captions.StatusTranscriptionFailed || result.CaptionTrackPath != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunWithoutCaptionerReportsUnavailable(t *testing.T) {
	c := &Coordinator{Prober: landscapeProbe(), Transcoder: &stubTranscoder{}}
	req := baseRequest(t)
	req.CaptionsRequested = true
	result, err := c.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.CaptionStatus != captions.StatusUnavailable || result.CaptionNote != captions.NoteUnavailable {
		t.Fatalf("unexpected caption result %q %q", result.CaptionStatus, result.CaptionNote)
	}
}

func TestRunGeneratesOutputID(t *testing.T) {
	c := &Coordinator{Prober: landscapeProbe(), Transcoder: &stubTranscoder{}, NewID: func() string { return "generated" }}
	req := baseRequest(t)
	req.OutputID = ""
	result, err := c.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.OutputID != "generated" || filepath.Base(result.OutputPath) != "output_generated.mp4" {
		t.Fatalf("unexpected id/path %q %q", result.OutputID, result.OutputPath)
	}
}

func TestRunSpaceCheckFailure(t *testing.T) {
	tc := &stubTranscoder{}
	c := &Coordinator{
		Prober:     landscapeProbe(),
		Transcoder: tc,
		CheckSpace: func(string) error {
			return services.Wrap(services.ErrTransient, "transcode", "free space", "0 GiB free", nil)
		},
	}
	result, err := c.Run(context.Background(), baseRequest(t), nil)
	if err == nil || result.Error.Stage != StageTranscode || len(tc.calls) != 0 {
		t.Fatalf("expected space check to stop the transcode, err=%v result=%+v", err, result.Error)
	}
}
