package transcode

import (
	"fmt"
	"strings"

	"reframe/internal/services"
)

// Format is an output container.
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatMKV Format = "mkv"
	FormatAVI Format = "avi"
)

// Formats lists the supported containers in display order.
func Formats() []Format {
	return []Format{FormatMP4, FormatMKV, FormatAVI}
}

// ParseFormat accepts a container name with or without a leading dot.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "."))
	switch Format(normalized) {
	case FormatMP4, FormatMKV, FormatAVI:
		return Format(normalized), nil
	case "matroska":
		return FormatMKV, nil
	}
	return "", services.Wrap(services.ErrInvalidSpec, "transcode", "parse format",
		fmt.Sprintf("unsupported output format %q (want mp4, mkv or avi)", value), nil)
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Muxer returns the ffmpeg muxer name.
func (f Format) Muxer() string {
	switch f {
	case FormatMKV:
		return "matroska"
	case FormatAVI:
		return "avi"
	default:
		return "mp4"
	}
}

// ContentType returns the MIME type served for downloads.
func (f Format) ContentType() string {
	switch f {
	case FormatMKV:
		return "video/x-matroska"
	case FormatAVI:
		return "video/x-msvideo"
	default:
		return "video/mp4"
	}
}

func (f Format) String() string {
	return string(f)
}

// codecs holds per-container encoder selection.
type codecs struct {
	video string
	audio string
}

func (f Format) codecs() codecs {
	switch f {
	case FormatMKV:
		return codecs{video: "libx265", audio: "aac"}
	case FormatAVI:
		return codecs{video: "mpeg4", audio: "libmp3lame"}
	default:
		return codecs{video: "libx264", audio: "aac"}
	}
}
