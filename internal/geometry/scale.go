package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"reframe/internal/services"
)

// Resolution labels for absolute scale policies.
const (
	Label720p  = "720p"
	Label1080p = "1080p"
	Label4K    = "4K"
)

// FallbackLabel is used when an absolute label is not in the table.
const FallbackLabel = Label1080p

// Percentage steps the UI exposes. Plan accepts any pct in (0,100].
const (
	MinPercentStep = 10
	PercentStep    = 5
)

var resolutionTable = []struct {
	label string
	dims  Dimensions
}{
	{Label720p, Dimensions{Width: 1280, Height: 720}},
	{Label1080p, Dimensions{Width: 1920, Height: 1080}},
	{Label4K, Dimensions{Width: 3840, Height: 2160}},
}

var labelAliases = map[string]string{
	"720p":  Label720p,
	"hd":    Label720p,
	"1080p": Label1080p,
	"fhd":   Label1080p,
	"4k":    Label4K,
	"2160p": Label4K,
	"uhd":   Label4K,
}

// ScaleKind distinguishes the ScalePolicy variants.
type ScaleKind int

const (
	ScaleAbsolute ScaleKind = iota
	ScalePercentage
)

// ScalePolicy bounds the output size: a fixed resolution label or a
// percentage of the source.
type ScalePolicy struct {
	Kind    ScaleKind
	Label   string
	Percent int
}

// Absolute returns a fixed-resolution policy.
func Absolute(label string) ScalePolicy {
	return ScalePolicy{Kind: ScaleAbsolute, Label: strings.TrimSpace(label)}
}

// Percentage returns a policy scaling the source by pct percent.
func Percentage(pct int) ScalePolicy {
	return ScalePolicy{Kind: ScalePercentage, Percent: pct}
}

func (s ScalePolicy) String() string {
	if s.Kind == ScalePercentage {
		return fmt.Sprintf("%d%%", s.Percent)
	}
	return s.Label
}

// ParseScale reads "50%" as a percentage and anything else as a label.
func ParseScale(value string) (ScalePolicy, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ScalePolicy{}, services.Wrap(services.ErrInvalidSpec, "plan", "parse scale", "scale is required", nil)
	}
	if pctText, ok := strings.CutSuffix(trimmed, "%"); ok {
		pct, err := strconv.Atoi(strings.TrimSpace(pctText))
		if err != nil {
			return ScalePolicy{}, services.Wrap(services.ErrInvalidSpec, "plan", "parse scale", fmt.Sprintf("%q is not an integer percentage", value), nil)
		}
		return Percentage(pct), nil
	}
	return Absolute(trimmed), nil
}

// LookupResolution returns the envelope for a label. Labels are
// case-insensitive and accept common aliases such as "2160p".
func LookupResolution(label string) (Dimensions, bool) {
	canonical, ok := labelAliases[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return Dimensions{}, false
	}
	for _, entry := range resolutionTable {
		if entry.label == canonical {
			return entry.dims, true
		}
	}
	return Dimensions{}, false
}

// CanonicalLabel normalizes a label, reporting false for unknown labels.
func CanonicalLabel(label string) (string, bool) {
	canonical, ok := labelAliases[strings.ToLower(strings.TrimSpace(label))]
	return canonical, ok
}

// AvailableResolutions lists the labels whose short side fits within the
// source's short side. The smallest label is always offered since the planner
// caps the envelope at the source anyway.
func AvailableResolutions(source Dimensions) []string {
	short := min(source.Width, source.Height)
	labels := make([]string, 0, len(resolutionTable))
	for _, entry := range resolutionTable {
		if entry.dims.Height <= short {
			labels = append(labels, entry.label)
		}
	}
	if len(labels) == 0 {
		labels = append(labels, resolutionTable[0].label)
	}
	return labels
}

// ValidatePercentStep enforces the UI percentage domain: 10..100 in steps of 5.
func ValidatePercentStep(pct int) error {
	if pct < MinPercentStep || pct > 100 || pct%PercentStep != 0 {
		return services.Wrap(services.ErrInvalidSpec, "plan", "percentage bounds",
			fmt.Sprintf("percentage must be %d..100 in steps of %d, got %d", MinPercentStep, PercentStep, pct), nil)
	}
	return nil
}
