package captions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type stubTranscriber struct {
	name       string
	transcript Transcript
	err        error
	closed     atomic.Bool
	calls      atomic.Int32
}

func (s *stubTranscriber) Name() string { return s.name }

func (s *stubTranscriber) Transcribe(ctx context.Context, _, _ string) (Transcript, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return Transcript{}, err
	}
	return s.transcript, s.err
}

func (s *stubTranscriber) Close() error {
	s.closed.Store(true)
	return nil
}

func TestHandleLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	stub := &stubTranscriber{name: "stub"}
	handle := NewHandle(func() (Transcriber, error) {
		loads.Add(1)
		return stub, nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, reason := handle.Available(); !ok {
				t.Errorf("expected available, got %q", reason)
			}
		}()
	}
	wg.Wait()
	if loads.Load() != 1 {
		t.Fatalf("expected a single load, got %d", loads.Load())
	}
	if handle.Name() != "stub" {
		t.Fatalf("unexpected name %q", handle.Name())
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !stub.closed.Load() {
		t.Fatal("expected transcriber to be closed")
	}
	if ok, reason := handle.Available(); ok || reason != "transcriber closed" {
		t.Fatalf("expected closed handle to be unavailable, got %v %q", ok, reason)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestHandleLoadFailureRecordsReason(t *testing.T) {
	handle := NewHandle(func() (Transcriber, error) { return nil, errors.New("uvx missing") })
	ok, reason := handle.Available()
	if ok || reason != "uvx missing" {
		t.Fatalf("unexpected availability %v %q", ok, reason)
	}
}

func TestUnavailableHandle(t *testing.T) {
	ok, reason := UnavailableHandle("transcriber set to none").Available()
	if ok || reason != "transcriber set to none" {
		t.Fatalf("unexpected availability %v %q", ok, reason)
	}
	var nilHandle *Handle
	if ok, _ := nilHandle.Available(); ok {
		t.Fatal("nil handle must be unavailable")
	}
}
