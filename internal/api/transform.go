package api

import (
	"fmt"
	"strings"

	"reframe/internal/geometry"
	"reframe/internal/queue"
	"reframe/internal/services"
	"reframe/internal/transcode"
)

// TransformRequest is the job submission payload.
type TransformRequest struct {
	SourcePath  string `json:"source_path"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Resolution  string `json:"resolution"`
	Format      string `json:"format"`
	AutoCaption bool   `json:"auto_caption"`
	Platform    string `json:"platform,omitempty"`
	VideoType   string `json:"video_type,omitempty"`
}

// Validate checks the request against the bounds the UI offers and returns
// the normalized queue spec. Errors carry services.ErrInvalidSpec.
func (r TransformRequest) Validate() (queue.Spec, error) {
	source := strings.TrimSpace(r.SourcePath)
	if source == "" {
		return queue.Spec{}, invalid("source_path is required")
	}

	ratio := geometry.DefaultAspectRatio(r.VideoType)
	if text := strings.TrimSpace(r.AspectRatio); text != "" {
		parsed, err := geometry.ParseAspectRatio(text)
		if err != nil {
			return queue.Spec{}, err
		}
		ratio = parsed
	}
	if _, _, err := geometry.Resolve(ratio); err != nil {
		return queue.Spec{}, err
	}
	if err := geometry.ValidateCustomBounds(ratio); err != nil {
		return queue.Spec{}, err
	}

	resolution := strings.TrimSpace(r.Resolution)
	if resolution == "" {
		resolution = geometry.Label1080p
	}
	scale, err := geometry.ParseScale(resolution)
	if err != nil {
		return queue.Spec{}, err
	}
	switch scale.Kind {
	case geometry.ScalePercentage:
		if err := geometry.ValidatePercentStep(scale.Percent); err != nil {
			return queue.Spec{}, err
		}
	default:
		label, ok := geometry.CanonicalLabel(scale.Label)
		if !ok {
			return queue.Spec{}, invalid(fmt.Sprintf("unknown resolution %q", scale.Label))
		}
		scale = geometry.Absolute(label)
	}

	formatText := strings.TrimSpace(r.Format)
	if formatText == "" {
		formatText = string(transcode.FormatMP4)
	}
	format, err := transcode.ParseFormat(formatText)
	if err != nil {
		return queue.Spec{}, err
	}

	platform := strings.ToLower(strings.TrimSpace(r.Platform))
	if platform != "" && !geometry.KnownPlatform(platform) {
		return queue.Spec{}, invalid(fmt.Sprintf("unknown platform %q", r.Platform))
	}
	videoType := strings.ToLower(strings.TrimSpace(r.VideoType))
	if videoType != "" && videoType != geometry.VideoTypeLong && videoType != geometry.VideoTypeShort {
		return queue.Spec{}, invalid(fmt.Sprintf("unknown video_type %q", r.VideoType))
	}

	return queue.Spec{
		SourcePath:  source,
		AspectRatio: ratio.String(),
		Resolution:  scale.String(),
		Format:      string(format),
		AutoCaption: r.AutoCaption,
		Platform:    platform,
		VideoType:   videoType,
	}, nil
}

func invalid(msg string) error {
	return services.Wrap(services.ErrInvalidSpec, "resolve", "validate request", msg, nil)
}
