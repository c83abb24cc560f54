package geometry_test

import (
	"errors"
	"reflect"
	"testing"

	"reframe/internal/geometry"
	"reframe/internal/services"
)

func TestResolvePresets(t *testing.T) {
	want := map[string][2]int{"16:9": {16, 9}, "9:16": {9, 16}, "4:5": {4, 5}}
	for name, pair := range want {
		w, h, err := geometry.Resolve(geometry.Preset(name))
		if err != nil {
			t.Fatalf("Resolve(%s) error: %v", name, err)
		}
		if w != pair[0] || h != pair[1] {
			t.Fatalf("Resolve(%s) = %d:%d", name, w, h)
		}
	}
}

func TestResolveCustomIsIdentity(t *testing.T) {
	w, h, err := geometry.Resolve(geometry.Custom(21, 9))
	if err != nil || w != 21 || h != 9 {
		t.Fatalf("Resolve custom = %d:%d, %v", w, h, err)
	}
}

func TestResolveRejects(t *testing.T) {
	for _, spec := range []geometry.AspectRatio{geometry.Preset("3:2"), geometry.Custom(0, 5), geometry.Custom(4, -1)} {
		if _, _, err := geometry.Resolve(spec); !errors.Is(err, services.ErrInvalidSpec) {
			t.Fatalf("Resolve(%s) expected invalid spec, got %v", spec, err)
		}
	}
}

func TestParseAspectRatio(t *testing.T) {
	spec, err := geometry.ParseAspectRatio(" 9:16 ")
	if err != nil || !spec.IsPreset() || spec.PresetName() != "9:16" {
		t.Fatalf("expected preset 9:16, got %v %v", spec, err)
	}
	spec, err = geometry.ParseAspectRatio("21x9")
	if err != nil || spec.IsPreset() {
		t.Fatalf("expected custom, got %v %v", spec, err)
	}
	if w, h := spec.Terms(); w != 21 || h != 9 {
		t.Fatalf("terms = %d:%d", w, h)
	}
	if _, err := geometry.ParseAspectRatio("wide"); !errors.Is(err, services.ErrInvalidSpec) {
		t.Fatalf("expected invalid spec, got %v", err)
	}
}

func TestValidateCustomBounds(t *testing.T) {
	if err := geometry.ValidateCustomBounds(geometry.Custom(100, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := geometry.ValidateCustomBounds(geometry.Custom(101, 1)); err == nil {
		t.Fatal("expected bounds error")
	}
	if err := geometry.ValidateCustomBounds(geometry.Preset("16:9")); err != nil {
		t.Fatalf("presets always pass: %v", err)
	}
}

func TestParseScale(t *testing.T) {
	scale, err := geometry.ParseScale("50%")
	if err != nil || scale.Kind != geometry.ScalePercentage || scale.Percent != 50 {
		t.Fatalf("ParseScale(50%%) = %+v, %v", scale, err)
	}
	scale, err = geometry.ParseScale("4k")
	if err != nil || scale.Kind != geometry.ScaleAbsolute || scale.Label != "4k" {
		t.Fatalf("ParseScale(4k) = %+v, %v", scale, err)
	}
	if _, err := geometry.ParseScale("half%"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidatePercentStep(t *testing.T) {
	for _, ok := range []int{10, 55, 100} {
		if err := geometry.ValidatePercentStep(ok); err != nil {
			t.Fatalf("%d rejected: %v", ok, err)
		}
	}
	for _, bad := range []int{5, 52, 105} {
		if err := geometry.ValidatePercentStep(bad); err == nil {
			t.Fatalf("%d accepted", bad)
		}
	}
}

func TestAvailableResolutions(t *testing.T) {
	cases := map[geometry.Dimensions][]string{
		{Width: 3840, Height: 2160}: {"720p", "1080p", "4K"},
		{Width: 1080, Height: 1920}: {"720p", "1080p"},
		{Width: 640, Height: 360}:   {"720p"},
	}
	for src, want := range cases {
		if got := geometry.AvailableResolutions(src); !reflect.DeepEqual(got, want) {
			t.Fatalf("AvailableResolutions(%s) = %v, want %v", src, got, want)
		}
	}
}

func TestPlatformDefaults(t *testing.T) {
	if got := geometry.DefaultAspectRatio("short"); got.PresetName() != "9:16" {
		t.Fatalf("short default = %s", got)
	}
	if got := geometry.DefaultAspectRatio("long"); got.PresetName() != "16:9" {
		t.Fatalf("long default = %s", got)
	}
	if got := geometry.PlatformName("instagram"); got != "Instagram" {
		t.Fatalf("PlatformName = %q", got)
	}
	if got := geometry.PlatformName("youtube"); got != "YouTube" {
		t.Fatalf("PlatformName = %q", got)
	}
	if !geometry.KnownPlatform("TikTok") {
		t.Fatal("expected tiktok to be known")
	}
}
