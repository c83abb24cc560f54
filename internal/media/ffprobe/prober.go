package ffprobe

import (
	"context"
	"fmt"
	"strings"

	"reframe/internal/geometry"
	"reframe/internal/services"
)

// Prober reads source properties through ffprobe.
type Prober struct {
	Binary string
	run    Runner
}

// NewProber returns a Prober using the given ffprobe binary.
func NewProber(binary string) *Prober {
	return &Prober{Binary: binary, run: execRunner}
}

// WithRunner swaps the command runner, used by tests.
func (p *Prober) WithRunner(run Runner) *Prober {
	if run != nil {
		p.run = run
	}
	return p
}

// Probe returns the full ffprobe result for path.
func (p *Prober) Probe(ctx context.Context, path string) (Result, error) {
	run := p.run
	if run == nil {
		run = execRunner
	}
	result, err := inspect(ctx, run, p.Binary, path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrUnreadableMedia, "probe", "ffprobe", strings.TrimSpace(path), err)
	}
	return result, nil
}

// Dimensions returns the display dimensions of the primary video stream.
func (p *Prober) Dimensions(ctx context.Context, path string) (geometry.Dimensions, error) {
	result, err := p.Probe(ctx, path)
	if err != nil {
		return geometry.Dimensions{}, err
	}
	return DimensionsOf(result, path)
}

// HasAudio reports whether path carries at least one audio stream.
func (p *Prober) HasAudio(ctx context.Context, path string) (bool, error) {
	result, err := p.Probe(ctx, path)
	if err != nil {
		return false, err
	}
	return result.AudioStreamCount() > 0, nil
}

// DimensionsOf extracts display dimensions from an already parsed result.
func DimensionsOf(result Result, path string) (geometry.Dimensions, error) {
	stream, ok := result.PrimaryVideo()
	if !ok {
		return geometry.Dimensions{}, services.Wrap(services.ErrUnreadableMedia, "probe", "video stream", fmt.Sprintf("%s has no video stream", path), nil)
	}
	w, h := stream.DisplaySize()
	dims := geometry.Dimensions{Width: w, Height: h}
	if !dims.Valid() {
		return geometry.Dimensions{}, services.Wrap(services.ErrUnreadableMedia, "probe", "video stream", fmt.Sprintf("%s reports invalid dimensions %s", path, dims), nil)
	}
	return dims, nil
}
