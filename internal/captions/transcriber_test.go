package captions

import (
	"context"
	"errors"
	"testing"
	"time"

	"reframe/internal/config"
	"reframe/internal/services/whisperx"
)

type fakeBackend struct {
	checkErr error
	result   whisperx.TranscribeResult
	gotLang  string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Check() error { return f.checkErr }

func (f *fakeBackend) TranscribeFile(_ context.Context, _, _, lang string) (whisperx.TranscribeResult, error) {
	f.gotLang = lang
	return f.result, nil
}

func TestCLITranscriberConvertsSeconds(t *testing.T) {
	backend := &fakeBackend{result: whisperx.TranscribeResult{
		Text:     "hi",
		Segments: []whisperx.Segment{{Start: 1.5, End: 2.25, Text: "hi"}},
	}}
	transcript, err := NewCLITranscriber(backend, "eng").Transcribe(context.Background(), "a.wav", t.TempDir())
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if backend.gotLang != "en" {
		t.Fatalf("expected normalized language, got %q", backend.gotLang)
	}
	u := transcript.Utterances[0]
	if u.Start != 1500*time.Millisecond || u.End != 2250*time.Millisecond {
		t.Fatalf("unexpected utterance %+v", u)
	}
}

func TestLoaderReportsCheckFailure(t *testing.T) {
	handle := NewHandle(loaderFor(&fakeBackend{checkErr: errors.New("not installed")}, ""))
	ok, reason := handle.Available()
	if ok || reason != "fake unavailable: not installed" {
		t.Fatalf("unexpected availability %v %q", ok, reason)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{"en": "en", "eng": "en", "fr-CA": "fr", "": "", "english": "", "und": ""}
	for in, want := range cases {
		if got := NormalizeLanguage(in); got != want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewHandleFromConfigNone(t *testing.T) {
	cfg := config.Default()
	cfg.Captions.Transcriber = config.TranscriberNone
	ok, reason := NewHandleFromConfig(&cfg).Available()
	if ok || reason != "transcriber set to none" {
		t.Fatalf("unexpected availability %v %q", ok, reason)
	}
	cfg.Captions.Enabled = false
	if ok, _ := NewHandleFromConfig(&cfg).Available(); ok {
		t.Fatal("disabled captions must be unavailable")
	}
}
