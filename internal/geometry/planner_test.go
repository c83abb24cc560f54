package geometry_test

import (
	"errors"
	"testing"

	"reframe/internal/geometry"
	"reframe/internal/services"
)

func TestPlanScenarios(t *testing.T) {
	tests := []struct {
		name   string
		source geometry.Dimensions
		ratio  [2]int
		scale  geometry.ScalePolicy
		want   geometry.Dimensions
	}{
		{"square at half", geometry.Dimensions{Width: 1280, Height: 720}, [2]int{1, 1}, geometry.Percentage(50), geometry.Dimensions{Width: 360, Height: 360}},
		{"portrait capped by landscape source", geometry.Dimensions{Width: 1920, Height: 1080}, [2]int{9, 16}, geometry.Absolute("1080p"), geometry.Dimensions{Width: 608, Height: 1080}},
		{"portrait source portrait target", geometry.Dimensions{Width: 1080, Height: 1920}, [2]int{9, 16}, geometry.Absolute("1080p"), geometry.Dimensions{Width: 1080, Height: 1920}},
		{"landscape identity", geometry.Dimensions{Width: 1920, Height: 1080}, [2]int{16, 9}, geometry.Absolute("1080p"), geometry.Dimensions{Width: 1920, Height: 1080}},
		{"4k label capped to source", geometry.Dimensions{Width: 1280, Height: 720}, [2]int{16, 9}, geometry.Absolute("4K"), geometry.Dimensions{Width: 1280, Height: 720}},
		{"2160p alias", geometry.Dimensions{Width: 3840, Height: 2160}, [2]int{16, 9}, geometry.Absolute("2160p"), geometry.Dimensions{Width: 3840, Height: 2160}},
		{"unknown label falls back to 1080p", geometry.Dimensions{Width: 3840, Height: 2160}, [2]int{16, 9}, geometry.Absolute("8K"), geometry.Dimensions{Width: 1920, Height: 1080}},
		{"feed at 720p", geometry.Dimensions{Width: 1920, Height: 1080}, [2]int{4, 5}, geometry.Absolute("720p"), geometry.Dimensions{Width: 720, Height: 900}},
		{"percentage full identity", geometry.Dimensions{Width: 1920, Height: 1080}, [2]int{16, 9}, geometry.Percentage(100), geometry.Dimensions{Width: 1920, Height: 1080}},
		{"narrow ratio at 25 percent", geometry.Dimensions{Width: 1920, Height: 1080}, [2]int{9, 16}, geometry.Percentage(25), geometry.Dimensions{Width: 152, Height: 270}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := geometry.Plan(tt.source, tt.ratio[0], tt.ratio[1], tt.scale)
			if err != nil {
				t.Fatalf("Plan returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Plan = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPlanPercentageIdentityForNativeRatio(t *testing.T) {
	sources := []geometry.Dimensions{{Width: 1920, Height: 1080}, {Width: 1080, Height: 1920}, {Width: 641, Height: 359}, {Width: 7, Height: 3}}
	for _, src := range sources {
		got, err := geometry.Plan(src, src.Width, src.Height, geometry.Percentage(100))
		if err != nil {
			t.Fatalf("Plan(%s) error: %v", src, err)
		}
		if got != src {
			t.Fatalf("Plan(%s) at 100%% = %s", src, got)
		}
	}
}

func TestPlanInvariants(t *testing.T) {
	sources := []geometry.Dimensions{
		{Width: 1920, Height: 1080}, {Width: 1280, Height: 720}, {Width: 1080, Height: 1920},
		{Width: 640, Height: 480}, {Width: 30, Height: 10}, {Width: 3840, Height: 2160}, {Width: 101, Height: 997},
	}
	ratios := [][2]int{{16, 9}, {9, 16}, {4, 5}, {1, 1}, {3, 1}, {21, 9}, {100, 1}, {1, 100}, {37, 41}}
	scales := []geometry.ScalePolicy{geometry.Absolute("720p"), geometry.Absolute("1080p"), geometry.Absolute("4K")}
	for pct := 1; pct <= 100; pct++ {
		scales = append(scales, geometry.Percentage(pct))
	}
	for _, src := range sources {
		for _, ratio := range ratios {
			for _, scale := range scales {
				got, err := geometry.Plan(src, ratio[0], ratio[1], scale)
				if err != nil {
					if !errors.Is(err, services.ErrDegenerateGeometry) {
						t.Fatalf("Plan(%s, %v, %s) unexpected error: %v", src, ratio, scale, err)
					}
					continue
				}
				if got.Width < 1 || got.Height < 1 {
					t.Fatalf("Plan(%s, %v, %s) = %s is degenerate", src, ratio, scale, got)
				}
				if got.Width > src.Width || got.Height > src.Height {
					t.Fatalf("Plan(%s, %v, %s) = %s exceeds source", src, ratio, scale, got)
				}
				drift := int64(got.Width)*int64(ratio[1]) - int64(got.Height)*int64(ratio[0])
				if drift < 0 {
					drift = -drift
				}
				if 2*drift > int64(max(ratio[0], ratio[1])) {
					t.Fatalf("Plan(%s, %v, %s) = %s drifts from ratio", src, ratio, scale, got)
				}
			}
		}
	}
}

func TestPlanPercentageMonotonic(t *testing.T) {
	sources := []geometry.Dimensions{{Width: 1920, Height: 1080}, {Width: 30, Height: 10}, {Width: 1080, Height: 1920}, {Width: 333, Height: 777}}
	ratios := [][2]int{{16, 9}, {9, 16}, {3, 1}, {1, 1}, {4, 5}, {7, 3}}
	for _, src := range sources {
		for _, ratio := range ratios {
			var prev geometry.Dimensions
			havePrev := false
			for pct := 100; pct >= 1; pct-- {
				got, err := geometry.Plan(src, ratio[0], ratio[1], geometry.Percentage(pct))
				if err != nil {
					break
				}
				if havePrev && (got.Width > prev.Width || got.Height > prev.Height) {
					t.Fatalf("Plan(%s, %v) grew from %s to %s at %d%%", src, ratio, prev, got, pct)
				}
				prev, havePrev = got, true
			}
		}
	}
}

func TestPlanDegenerate(t *testing.T) {
	_, err := geometry.Plan(geometry.Dimensions{Width: 10, Height: 10}, 1, 100, geometry.Percentage(10))
	if !errors.Is(err, services.ErrDegenerateGeometry) {
		t.Fatalf("expected degenerate geometry, got %v", err)
	}
	if services.Kind(err) != "degenerate_geometry" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
}

func TestPlanRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		source geometry.Dimensions
		w, h   int
		scale  geometry.ScalePolicy
	}{
		{"zero source", geometry.Dimensions{Width: 0, Height: 1080}, 16, 9, geometry.Percentage(50)},
		{"zero ratio", geometry.Dimensions{Width: 1920, Height: 1080}, 0, 9, geometry.Percentage(50)},
		{"zero percent", geometry.Dimensions{Width: 1920, Height: 1080}, 16, 9, geometry.Percentage(0)},
		{"over hundred", geometry.Dimensions{Width: 1920, Height: 1080}, 16, 9, geometry.Percentage(101)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := geometry.Plan(tc.source, tc.w, tc.h, tc.scale)
			if !errors.Is(err, services.ErrInvalidSpec) {
				t.Fatalf("expected invalid spec, got %v", err)
			}
		})
	}
}

func TestPlanHugeRatioTermsDoNotOverflow(t *testing.T) {
	got, err := geometry.Plan(geometry.Dimensions{Width: 1920, Height: 1080}, 1<<40, 1<<40, geometry.Percentage(100))
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if got != (geometry.Dimensions{Width: 1080, Height: 1080}) {
		t.Fatalf("Plan = %s", got)
	}
}
