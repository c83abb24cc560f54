package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"reframe/internal/api"
	"reframe/internal/queue"
)

// Manifest is the on-disk batch description.
//
//	output_dir: ./out
//	concurrency: 2
//	defaults:
//	  aspect_ratio: "9:16"
//	  resolution: 1080p
//	jobs:
//	  - source: clips/a.mp4
//	  - source: clips/b.mkv
//	    format: mkv
//	    auto_caption: true
type Manifest struct {
	OutputDir   string  `yaml:"output_dir"`
	Concurrency int     `yaml:"concurrency"`
	Defaults    Entry   `yaml:"defaults"`
	Jobs        []Entry `yaml:"jobs"`

	dir string
}

// Entry describes one transform. Empty fields inherit from the defaults.
type Entry struct {
	Source      string `yaml:"source"`
	AspectRatio string `yaml:"aspect_ratio"`
	Resolution  string `yaml:"resolution"`
	Format      string `yaml:"format"`
	AutoCaption *bool  `yaml:"auto_caption"`
	Platform    string `yaml:"platform"`
	VideoType   string `yaml:"video_type"`
	OutputID    string `yaml:"output_id"`
}

// Load reads a manifest file. Relative paths resolve against its directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Dir(abs))
}

// Parse decodes a manifest, rejecting unknown keys.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parse manifest: empty document")
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, errors.New("parse manifest: no jobs listed")
	}
	m.dir = baseDir
	return &m, nil
}

// Specs validates every entry and returns the queue specs in manifest order.
// All validation errors are reported together.
func (m *Manifest) Specs(defaultOutputDir string) ([]queue.Spec, error) {
	outputDir := m.resolve(m.OutputDir)
	if outputDir == "" {
		outputDir = defaultOutputDir
	}
	var (
		specs []queue.Spec
		errs  []error
	)
	for i, entry := range m.Jobs {
		merged := m.Defaults.merge(entry)
		merged.Source = m.resolve(merged.Source)
		spec, err := merged.request().Validate()
		if err != nil {
			errs = append(errs, fmt.Errorf("job %d (%s): %w", i+1, entry.Source, err))
			continue
		}
		spec.OutputDir = outputDir
		spec.OutputID = strings.TrimSpace(merged.OutputID)
		specs = append(specs, spec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return specs, nil
}

func (m *Manifest) resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}

func (d Entry) merge(e Entry) Entry {
	out := e
	if out.AspectRatio == "" {
		out.AspectRatio = d.AspectRatio
	}
	if out.Resolution == "" {
		out.Resolution = d.Resolution
	}
	if out.Format == "" {
		out.Format = d.Format
	}
	if out.AutoCaption == nil {
		out.AutoCaption = d.AutoCaption
	}
	if out.Platform == "" {
		out.Platform = d.Platform
	}
	if out.VideoType == "" {
		out.VideoType = d.VideoType
	}
	return out
}

func (e Entry) request() api.TransformRequest {
	return api.TransformRequest{
		SourcePath:  e.Source,
		AspectRatio: e.AspectRatio,
		Resolution:  e.Resolution,
		Format:      e.Format,
		AutoCaption: e.AutoCaption != nil && *e.AutoCaption,
		Platform:    e.Platform,
		VideoType:   e.VideoType,
	}
}
