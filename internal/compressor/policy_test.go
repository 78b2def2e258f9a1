package compressor

import (
	"math"
	"testing"
)

func TestFitWithinBoundsIsNoOp(t *testing.T) {
	cases := []struct {
		w, h int
		b    Bounds
	}{
		{400, 400, AvatarBounds},
		{500, 500, AvatarBounds},
		{1920, 1080, DefaultBounds},
		{1, 1, DefaultBounds},
		{1920, 1920, DefaultBounds},
	}
	for _, c := range cases {
		d := Fit(c.w, c.h, c.b)
		if !d.NoOp() {
			t.Errorf("Fit(%d, %d, %+v) = %+v, expected no-op", c.w, c.h, c.b, d)
		}
	}
}

func TestFitScalesLongerSideToBound(t *testing.T) {
	cases := []struct {
		name         string
		w, h         int
		b            Bounds
		wantW, wantH int
	}{
		{"landscape", 3000, 2000, DefaultBounds, 1920, 1280},
		{"portrait", 2000, 3000, DefaultBounds, 1280, 1920},
		{"square avatar", 1000, 1000, AvatarBounds, 500, 500},
		{"wide avatar", 1200, 600, AvatarBounds, 500, 250},
		{"only height over", 1000, 4000, DefaultBounds, 480, 1920},
		{"extreme strip", 10000, 2, DefaultBounds, 1920, 1},
		{"non square box", 3000, 3000, Bounds{MaxWidth: 800, MaxHeight: 600}, 600, 600},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := Fit(c.w, c.h, c.b)
			if d.Width != c.wantW || d.Height != c.wantH {
				t.Fatalf("expected %dx%d, got %dx%d", c.wantW, c.wantH, d.Width, d.Height)
			}
			if d.Width > c.b.MaxWidth || d.Height > c.b.MaxHeight {
				t.Fatalf("result %dx%d exceeds bounds %+v", d.Width, d.Height, c.b)
			}
		})
	}
}

func TestFitPreservesAspectRatio(t *testing.T) {
	for _, dims := range [][2]int{{3000, 2000}, {4032, 3024}, {2500, 1700}, {1921, 1000}, {7000, 333}} {
		d := Fit(dims[0], dims[1], DefaultBounds)
		if d.NoOp() {
			t.Fatalf("expected resize for %v", dims)
		}
		want := float64(dims[0]) / float64(dims[1])
		got := float64(d.Width) / float64(d.Height)
		// one pixel of rounding on the shorter side
		tolerance := want / float64(d.Height)
		if math.Abs(want-got) > tolerance+1e-9 {
			t.Errorf("aspect ratio for %v: expected %.4f, got %.4f", dims, want, got)
		}
		if max(d.Width, d.Height) != 1920 {
			t.Errorf("longer side for %v: expected 1920, got %dx%d", dims, d.Width, d.Height)
		}
	}
}

func TestFitInvalidInputs(t *testing.T) {
	if d := Fit(0, 100, DefaultBounds); !d.NoOp() {
		t.Errorf("expected no-op for zero width, got %+v", d)
	}
	if d := Fit(5000, 5000, Bounds{}); !d.NoOp() {
		t.Errorf("expected no-op for empty bounds, got %+v", d)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{Category: CategoryAvatar}.withDefaults()
	if o.Bounds != AvatarBounds {
		t.Errorf("expected avatar bounds, got %+v", o.Bounds)
	}
	o = Options{}.withDefaults()
	if o.Category != CategoryGeneric || o.Bounds != DefaultBounds {
		t.Errorf("expected generic defaults, got %+v", o)
	}
	o = Options{Category: CategoryPostImage, Bounds: Bounds{MaxWidth: 800}}.withDefaults()
	if o.Bounds.MaxWidth != 800 || o.Bounds.MaxHeight != 1920 {
		t.Errorf("expected partial override 800x1920, got %+v", o.Bounds)
	}
}
