package captions

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// DefaultFallbackWindow spans the single segment emitted for untimed text.
const DefaultFallbackWindow = 30 * time.Second

// Segment is one caption cue with millisecond precision.
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Utterance is a transcribed span. Untimed utterances have Start == End == 0.
type Utterance struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

func (u Utterance) timed() bool {
	return u.End > u.Start
}

// Transcript is the output of a Transcriber.
type Transcript struct {
	Text       string
	Utterances []Utterance
}

// FullText returns Text, or the utterance texts joined when Text is empty.
func (t Transcript) FullText() string {
	if text := strings.TrimSpace(t.Text); text != "" {
		return text
	}
	parts := make([]string, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		if text := strings.TrimSpace(u.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// BuildSegments converts a transcript into ordered, non-overlapping cues.
//
// Timed utterances become one cue each: blanks are dropped, cues are sorted
// by start, an overlapping start is pushed to the previous end, and cues left
// without duration are dropped. Without any timing the whole text becomes a
// single cue over [0, window). Empty text yields no cues.
func BuildSegments(t Transcript, window time.Duration) []Segment {
	if window <= 0 {
		window = DefaultFallbackWindow
	}
	timed := make([]Segment, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" || !u.timed() {
			continue
		}
		timed = append(timed, Segment{Start: toMillis(u.Start), End: toMillis(u.End), Text: text})
	}
	if len(timed) > 0 {
		return normalize(timed)
	}

	text := t.FullText()
	if text == "" {
		return nil
	}
	return []Segment{{Start: 0, End: toMillis(window), Text: text}}
}

func normalize(segments []Segment) []Segment {
	slices.SortStableFunc(segments, func(a, b Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})
	out := segments[:0]
	var prevEnd time.Duration
	for _, seg := range segments {
		if seg.Start < 0 {
			seg.Start = 0
		}
		if len(out) > 0 && seg.Start < prevEnd {
			seg.Start = prevEnd
		}
		if seg.End <= seg.Start {
			continue
		}
		out = append(out, seg)
		prevEnd = seg.End
	}
	return out
}

func toMillis(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

// Validate checks the cue ordering invariants: positive duration, strictly
// increasing starts, and no overlaps.
func Validate(segments []Segment) bool {
	for i, seg := range segments {
		if seg.End <= seg.Start || seg.Start < 0 {
			return false
		}
		if i > 0 {
			prev := segments[i-1]
			if seg.Start <= prev.Start || seg.Start < prev.End {
				return false
			}
		}
	}
	return true
}
