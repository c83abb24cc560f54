package geometry

import (
	"fmt"
	"math"
	"math/bits"

	"reframe/internal/services"
)

// Dimensions is a pixel width and height.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both sides are positive.
func (d Dimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// Portrait reports whether the frame is taller than it is wide.
func (d Dimensions) Portrait() bool {
	return d.Height > d.Width
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Plan computes the output dimensions for a source, a resolved W:H pair and
// a scale policy. The result keeps the ratio to within one pixel of
// rounding, never exceeds the source on either axis, and is at least 1x1.
//
// Absolute policies orient the label envelope to the target (a portrait
// ratio gets a portrait envelope), cap it per axis to the source, then
// anchor on the short side of the target. Percentage policies scale both
// source axes and anchor on whichever axis binds, preferring width on ties.
func Plan(source Dimensions, ratioW, ratioH int, scale ScalePolicy) (Dimensions, error) {
	if !source.Valid() {
		return Dimensions{}, services.Wrap(services.ErrInvalidSpec, "plan", "source", fmt.Sprintf("source dimensions %s must be positive", source), nil)
	}
	if ratioW <= 0 || ratioH <= 0 {
		return Dimensions{}, services.Wrap(services.ErrInvalidSpec, "plan", "ratio", fmt.Sprintf("aspect ratio %d:%d must have positive terms", ratioW, ratioH), nil)
	}

	var target Dimensions
	switch scale.Kind {
	case ScaleAbsolute:
		envelope, ok := LookupResolution(scale.Label)
		if !ok {
			envelope, _ = LookupResolution(FallbackLabel)
		}
		if ratioH > ratioW {
			envelope = Dimensions{Width: envelope.Height, Height: envelope.Width}
		}
		envelope = Dimensions{
			Width:  min(envelope.Width, source.Width),
			Height: min(envelope.Height, source.Height),
		}
		target = fitAnchored(envelope, ratioW, ratioH)
	case ScalePercentage:
		if scale.Percent <= 0 || scale.Percent > 100 {
			return Dimensions{}, services.Wrap(services.ErrInvalidSpec, "plan", "percentage", fmt.Sprintf("percentage must be in (0,100], got %d", scale.Percent), nil)
		}
		envelope := Dimensions{
			Width:  int(int64(source.Width) * int64(scale.Percent) / 100),
			Height: int(int64(source.Height) * int64(scale.Percent) / 100),
		}
		target = fitBinding(envelope, ratioW, ratioH)
	default:
		return Dimensions{}, services.Wrap(services.ErrInvalidSpec, "plan", "scale", fmt.Sprintf("unknown scale policy kind %d", scale.Kind), nil)
	}

	if target.Width < 1 || target.Height < 1 {
		return Dimensions{}, services.Wrap(services.ErrDegenerateGeometry, "plan", "fit",
			fmt.Sprintf("%s at %d:%d from %s yields %s", scale, ratioW, ratioH, source, target), nil)
	}
	return target, nil
}

// fitAnchored anchors height for landscape or square ratios and width for
// portrait ratios, clamping to the other axis when the derived side spills.
func fitAnchored(env Dimensions, ratioW, ratioH int) Dimensions {
	if env.Width <= 0 || env.Height <= 0 {
		return Dimensions{}
	}
	if ratioW >= ratioH {
		h := env.Height
		w := scaleRound(h, ratioW, ratioH)
		if w > env.Width {
			w = env.Width
			h = scaleRound(w, ratioH, ratioW)
		}
		return Dimensions{Width: w, Height: h}
	}
	w := env.Width
	h := scaleRound(w, ratioH, ratioW)
	if h > env.Height {
		h = env.Height
		w = scaleRound(h, ratioW, ratioH)
	}
	return Dimensions{Width: w, Height: h}
}

// fitBinding picks the anchor by exact comparison: width anchors when it is
// the binding side (or ties), otherwise height does.
func fitBinding(env Dimensions, ratioW, ratioH int) Dimensions {
	if env.Width <= 0 || env.Height <= 0 {
		return Dimensions{}
	}
	wHi, wLo := bits.Mul64(uint64(env.Width), uint64(ratioH))
	hHi, hLo := bits.Mul64(uint64(env.Height), uint64(ratioW))
	widthBinds := wHi < hHi || (wHi == hHi && wLo <= hLo)
	if widthBinds {
		return Dimensions{Width: env.Width, Height: scaleRound(env.Width, ratioH, ratioW)}
	}
	return Dimensions{Width: scaleRound(env.Height, ratioW, ratioH), Height: env.Height}
}

// scaleRound returns value*num/den rounded half up, saturating at MaxInt.
func scaleRound(value, num, den int) int {
	hi, lo := bits.Mul64(uint64(value), uint64(num))
	d := uint64(den)
	if hi >= d {
		return math.MaxInt
	}
	q, r := bits.Div64(hi, lo, d)
	if r >= d-r {
		q++
	}
	if q > math.MaxInt {
		return math.MaxInt
	}
	return int(q)
}
