package geometry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"reframe/internal/services"
)

// Preset names accepted by Resolve.
const (
	PresetLandscape = "16:9"
	PresetPortrait  = "9:16"
	PresetFeed      = "4:5"
)

// Custom ratio terms the UI exposes. Resolve itself accepts any positive pair.
const (
	MinCustomTerm = 1
	MaxCustomTerm = 100
)

var presetRatios = map[string][2]int{
	PresetLandscape: {16, 9},
	PresetPortrait:  {9, 16},
	PresetFeed:      {4, 5},
}

var ratioPattern = regexp.MustCompile(`^(\d+)\s*[:x/]\s*(\d+)$`)

// AspectRatio is either a named preset or a custom W:H pair.
type AspectRatio struct {
	preset string
	w, h   int
}

// Preset returns a named preset ratio. The name is validated by Resolve.
func Preset(name string) AspectRatio {
	return AspectRatio{preset: strings.TrimSpace(name)}
}

// Custom returns a custom ratio. Terms are validated by Resolve.
func Custom(w, h int) AspectRatio {
	return AspectRatio{w: w, h: h}
}

// IsPreset reports whether the ratio names a preset.
func (a AspectRatio) IsPreset() bool {
	return a.preset != ""
}

// PresetName returns the preset name, or "" for custom ratios.
func (a AspectRatio) PresetName() string {
	return a.preset
}

// Terms returns the raw custom terms (zero for presets).
func (a AspectRatio) Terms() (int, int) {
	return a.w, a.h
}

// IsZero reports whether no ratio was provided.
func (a AspectRatio) IsZero() bool {
	return a.preset == "" && a.w == 0 && a.h == 0
}

func (a AspectRatio) String() string {
	if a.preset != "" {
		return a.preset
	}
	return fmt.Sprintf("%d:%d", a.w, a.h)
}

// ParseAspectRatio reads "W:H" (also "WxH" or "W/H"). Text naming a preset
// yields that preset; anything else becomes a custom pair.
func ParseAspectRatio(value string) (AspectRatio, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	match := ratioPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return AspectRatio{}, services.Wrap(services.ErrInvalidSpec, "resolve", "parse aspect ratio", fmt.Sprintf("%q is not a W:H ratio", value), nil)
	}
	w, errW := strconv.Atoi(match[1])
	h, errH := strconv.Atoi(match[2])
	if errW != nil || errH != nil {
		return AspectRatio{}, services.Wrap(services.ErrInvalidSpec, "resolve", "parse aspect ratio", fmt.Sprintf("%q has out of range terms", value), nil)
	}
	name := fmt.Sprintf("%d:%d", w, h)
	if _, ok := presetRatios[name]; ok {
		return Preset(name), nil
	}
	return Custom(w, h), nil
}

// Resolve returns the positive W:H pair for an aspect ratio.
func Resolve(spec AspectRatio) (int, int, error) {
	if spec.preset != "" {
		pair, ok := presetRatios[spec.preset]
		if !ok {
			return 0, 0, services.Wrap(services.ErrInvalidSpec, "resolve", "preset", fmt.Sprintf("unknown aspect ratio preset %q", spec.preset), nil)
		}
		return pair[0], pair[1], nil
	}
	if spec.w <= 0 || spec.h <= 0 {
		return 0, 0, services.Wrap(services.ErrInvalidSpec, "resolve", "custom", fmt.Sprintf("aspect ratio %d:%d must have positive terms", spec.w, spec.h), nil)
	}
	return spec.w, spec.h, nil
}

// ValidateCustomBounds enforces the [1,100] term range the UI exposes for
// custom ratios. Presets always pass.
func ValidateCustomBounds(spec AspectRatio) error {
	if spec.preset != "" {
		return nil
	}
	if spec.w < MinCustomTerm || spec.w > MaxCustomTerm || spec.h < MinCustomTerm || spec.h > MaxCustomTerm {
		return services.Wrap(services.ErrInvalidSpec, "resolve", "custom bounds",
			fmt.Sprintf("custom ratio terms must be between %d and %d, got %d:%d", MinCustomTerm, MaxCustomTerm, spec.w, spec.h), nil)
	}
	return nil
}

// PresetNames lists the supported presets in display order.
func PresetNames() []string {
	return []string{PresetLandscape, PresetPortrait, PresetFeed}
}
