package captions

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// Transcriber turns an audio file into a transcript.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audioPath, workDir string) (Transcript, error)
}

// Loader constructs a transcriber. An error marks it unavailable.
type Loader func() (Transcriber, error)

// Handle owns the process-wide transcriber. The first Acquire runs the
// loader; later calls share its result. Handle is safe for concurrent use.
type Handle struct {
	load Loader

	once        sync.Once
	mu          sync.RWMutex
	transcriber Transcriber
	reason      string
	closed      bool
}

// NewHandle returns a handle that loads lazily through load.
func NewHandle(load Loader) *Handle {
	return &Handle{load: load}
}

// UnavailableHandle returns a handle that never loads, reporting reason.
func UnavailableHandle(reason string) *Handle {
	h := &Handle{reason: strings.TrimSpace(reason)}
	h.once.Do(func() {})
	if h.reason == "" {
		h.reason = "transcriber disabled"
	}
	return h
}

// StaticHandle wraps an already constructed transcriber.
func StaticHandle(t Transcriber) *Handle {
	return NewHandle(func() (Transcriber, error) { return t, nil })
}

func (h *Handle) init() {
	h.once.Do(func() {
		if h.load == nil {
			h.setUnavailable("no transcriber configured")
			return
		}
		t, err := h.load()
		switch {
		case err != nil:
			h.setUnavailable(err.Error())
		case t == nil:
			h.setUnavailable("loader returned no transcriber")
		default:
			h.mu.Lock()
			h.transcriber = t
			h.mu.Unlock()
		}
	})
}

func (h *Handle) setUnavailable(reason string) {
	h.mu.Lock()
	h.reason = reason
	h.mu.Unlock()
}

// Acquire returns the transcriber, loading it on first use. When it is not
// available the reason explains why.
func (h *Handle) Acquire() (Transcriber, string, bool) {
	if h == nil {
		return nil, "no transcriber configured", false
	}
	h.init()
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, "transcriber closed", false
	}
	if h.transcriber == nil {
		return nil, h.reason, false
	}
	return h.transcriber, "", true
}

// Available reports availability and the reason when unavailable.
func (h *Handle) Available() (bool, string) {
	_, reason, ok := h.Acquire()
	return ok, reason
}

// Name returns the loaded backend name, or "" when unavailable.
func (h *Handle) Name() string {
	t, _, ok := h.Acquire()
	if !ok {
		return ""
	}
	return t.Name()
}

// Close releases the transcriber. It is safe to call more than once.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {})
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	var err error
	if closer, ok := h.transcriber.(io.Closer); ok {
		err = closer.Close()
	}
	h.transcriber = nil
	if err != nil {
		return errors.Join(errors.New("close transcriber"), err)
	}
	return nil
}
