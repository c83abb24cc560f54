package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSpec marks caller errors: bad aspect ratio, scale, or format input.
	ErrInvalidSpec = errors.New("invalid spec")
	// ErrDegenerateGeometry marks a plan that rounded a dimension down to zero.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrUnreadableMedia marks a source the resolution probe could not read.
	ErrUnreadableMedia = errors.New("unreadable media")
	// ErrTranscodeFailed marks a failed or timed out re-encode.
	ErrTranscodeFailed = errors.New("transcode failed")
	// ErrExtractionFailed marks a failed audio extraction. Caption-only.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrTranscriptionFailed marks a failed transcription. Caption-only.
	ErrTranscriptionFailed = errors.New("transcription failed")

	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// kinds lists markers in match order; the first marker found in the chain wins.
var kinds = []struct {
	marker error
	kind   string
}{
	{ErrInvalidSpec, "invalid_spec"},
	{ErrDegenerateGeometry, "degenerate_geometry"},
	{ErrUnreadableMedia, "unreadable_media"},
	{ErrTranscodeFailed, "transcode_failed"},
	{ErrExtractionFailed, "extraction_failed"},
	{ErrTranscriptionFailed, "transcription_failed"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrExternalTool, "external_tool"},
	{ErrTimeout, "timeout"},
	{ErrTransient, "transient"},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the stable snake_case classification for err, or "" when nil.
// Unmarked errors classify as "unknown".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.kind
		}
	}
	return "unknown"
}

// CallerError reports whether err stems from bad input rather than a failing
// resource. Caller errors are not worth retrying unchanged.
func CallerError(err error) bool {
	return errors.Is(err, ErrInvalidSpec) || errors.Is(err, ErrDegenerateGeometry)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
