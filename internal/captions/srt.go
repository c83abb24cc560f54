package captions

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FormatTimestamp renders d as HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Round(time.Millisecond).Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// WriteSRT writes cues numbered from 1.
func WriteSRT(w io.Writer, segments []Segment) error {
	bw := bufio.NewWriter(w)
	for i, seg := range segments {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, FormatTimestamp(seg.Start), FormatTimestamp(seg.End), seg.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSRTFile writes cues to path through a temporary file and rename, so a
// failed write never leaves a partial track behind.
func WriteSRTFile(path string, segments []Segment) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure caption directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".captions-*.srt")
	if err != nil {
		return fmt.Errorf("create caption file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := WriteSRT(tmp, segments); err != nil {
		tmp.Close()
		return fmt.Errorf("write caption file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close caption file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod caption file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename caption file: %w", err)
	}
	return nil
}

var timingLine = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2}),(\d{3})\s+-->\s+(\d{2,}):(\d{2}):(\d{2}),(\d{3})`)

// ParseSRT reads cues back from SRT text. Multi-line cue text is joined with
// newlines.
func ParseSRT(r io.Reader) ([]Segment, error) {
	scanner := bufio.NewScanner(r)
	var (
		segments []Segment
		current  *Segment
		lines    []string
		lineNo   int
	)
	flush := func() {
		if current != nil {
			current.Text = strings.Join(lines, "\n")
			segments = append(segments, *current)
		}
		current = nil
		lines = nil
	}
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		switch {
		case strings.TrimSpace(line) == "":
			flush()
		case current == nil:
			if match := timingLine.FindStringSubmatch(line); match != nil {
				current = &Segment{Start: parseStamp(match[1:5]), End: parseStamp(match[5:9])}
				continue
			}
			if _, err := strconv.Atoi(strings.TrimSpace(line)); err != nil {
				return nil, fmt.Errorf("srt line %d: expected cue index or timing, got %q", lineNo, line)
			}
		default:
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	flush()
	return segments, nil
}

func parseStamp(parts []string) time.Duration {
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	s, _ := strconv.Atoi(parts[2])
	ms, _ := strconv.Atoi(parts[3])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(ms)*time.Millisecond
}
