package inspect

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"media-upload-go/internal/compressor"
	"media-upload-go/internal/logger"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestInspectPlansAvatar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Photo.PNG")
	writePNG(t, path, 1000, 800)
	mtime := time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC)
	os.Chtimes(path, mtime, mtime)

	in := NewInspector(logger.Discard())
	in.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	r, err := in.Inspect(path, compressor.Options{Category: compressor.CategoryAvatar})
	if !errors.Is(err, ErrExiftoolUnavailable) {
		t.Fatalf("expected ErrExiftoolUnavailable, got %v", err)
	}
	if r == nil {
		t.Fatal("report should be returned without exiftool")
	}
	if r.Info.Format != compressor.FormatPNG || r.Info.Width != 1000 || r.Info.Height != 800 {
		t.Errorf("unexpected info %+v", r.Info)
	}
	want := Plan{
		Category:     compressor.CategoryAvatar,
		OutputFormat: compressor.FormatJPEG,
		OutputPath:   filepath.Join(filepath.Dir(path), "Photo.jpg"),
		Width:        500,
		Height:       400,
		Resize:       true,
	}
	if r.Plan != want {
		t.Errorf("expected plan %+v, got %+v", want, r.Plan)
	}
	if r.DateSource != DateSourceFileModTime || !r.CapturedAt.Equal(mtime) {
		t.Errorf("expected mtime fallback, got %s %v", r.DateSource, r.CapturedAt)
	}
	if r.Metadata != nil {
		t.Error("metadata should be empty without exiftool")
	}
}

func TestInspectDefaultsToGenericBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.png")
	writePNG(t, path, 300, 200)

	in := NewInspector(logger.Discard())
	in.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	r, _ := in.Inspect(path, compressor.Options{})
	if r.Plan.Resize || r.Plan.Width != 300 || r.Plan.Category != compressor.CategoryGeneric {
		t.Errorf("expected no resize for small generic image, got %+v", r.Plan)
	}
}

func TestInspectWithExiftool(t *testing.T) {
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not installed")
	}
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, 20, 10)

	r, err := NewInspector(logger.Discard()).Inspect(path, compressor.Options{})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(r.Metadata) == 0 {
		t.Error("expected exiftool metadata")
	}
}

func TestInspectUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	os.WriteFile(path, []byte("nope"), 0644)
	if _, err := NewInspector(logger.Discard()).Inspect(path, compressor.Options{}); !errors.Is(err, compressor.ErrUnreadableImage) {
		t.Errorf("expected ErrUnreadableImage, got %v", err)
	}
}

func TestParseEXIFDateTime(t *testing.T) {
	cases := map[string]bool{
		"2023:07:15 14:30:00":  true,
		"2023-07-15 14:30:00":  true,
		"2023:07:15":           true,
		"2023-07-15T14:30:00Z": true,
		"":                     false,
		"yesterday":            false,
	}
	for in, ok := range cases {
		if _, got := parseEXIFDateTime(in); got != ok {
			t.Errorf("parseEXIFDateTime(%q) ok = %v, expected %v", in, got, ok)
		}
	}
}
