package geometry

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Video types used to pick a default aspect ratio.
const (
	VideoTypeLong  = "long"
	VideoTypeShort = "short"
)

var knownPlatforms = []string{"youtube", "tiktok", "instagram"}

var titleCaser = cases.Title(language.English)

// DefaultAspectRatio returns 9:16 for short-form video and 16:9 otherwise.
func DefaultAspectRatio(videoType string) AspectRatio {
	if strings.EqualFold(strings.TrimSpace(videoType), VideoTypeShort) {
		return Preset(PresetPortrait)
	}
	return Preset(PresetLandscape)
}

// Platforms lists the platforms offered for display.
func Platforms() []string {
	out := make([]string, len(knownPlatforms))
	copy(out, knownPlatforms)
	return out
}

// KnownPlatform reports whether the platform is one of Platforms.
func KnownPlatform(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range knownPlatforms {
		if p == key {
			return true
		}
	}
	return false
}

// PlatformName formats a platform for display. The platform never changes
// planning; only the video type does.
func PlatformName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "":
		return ""
	case "youtube":
		return "YouTube"
	case "tiktok":
		return "TikTok"
	}
	return titleCaser.String(key)
}
