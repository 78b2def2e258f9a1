package compressor

import (
	"context"
	"errors"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// widthFailEncoder fails for images of one specific width and delegates otherwise.
type widthFailEncoder struct {
	width int
	next  Encoder
}

func (e widthFailEncoder) Encode(w io.Writer, img image.Image, f Format) error {
	if img.Bounds().Dx() == e.width {
		return errors.New("corrupt data")
	}
	return e.next.Encode(w, img, f)
}

func TestCompressBatchIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "one.png"),
		filepath.Join(dir, "two.png"),
		filepath.Join(dir, "three.png"),
	}
	writePNG(t, paths[0], noise(300, 200))
	writePNG(t, paths[1], noise(77, 200))
	writePNG(t, paths[2], noise(320, 240))
	stat, _ := os.Stat(paths[1])

	enc := widthFailEncoder{width: 77, next: NewDefaultEncoder(80, 80)}
	c := NewDefaultCompressor(quietLogger(), WithEncoder(enc), WithWorkers(3))
	results := c.CompressBatch(context.Background(), paths, Options{Category: CategoryPostImage})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.InputPath != paths[i] {
			t.Errorf("result %d out of order: %s", i, r.InputPath)
		}
	}

	failed := results[1]
	if !failed.Failed || failed.Saved != 0 || failed.Error == nil {
		t.Errorf("expected failed pass-through, got %+v", failed)
	}
	if failed.OriginalSize != stat.Size() || failed.CompressedSize != stat.Size() {
		t.Errorf("expected original size %d on both sides, got %+v", stat.Size(), failed)
	}
	if !fileExists(paths[1]) {
		t.Error("failed original should remain")
	}

	for _, i := range []int{0, 2} {
		r := results[i]
		if r.Failed || r.Saved <= 0 {
			t.Errorf("result %d expected real savings, got %+v", i, r)
		}
		if fileExists(paths[i]) {
			t.Errorf("result %d original should be replaced by %s", i, r.OutputPath)
		}
	}

	sum := Summarize(results)
	if sum.Files != 3 || sum.Failed != 1 || sum.Saved != results[0].Saved+results[2].Saved {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestCompressBatchSharedOutputPath(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "photo.png"), filepath.Join(dir, "photo.jpeg")}
	writePNG(t, paths[0], noise(120, 80))
	writeJPEG(t, paths[1], noise(90, 60), 95)

	c := NewDefaultCompressor(quietLogger(), WithWorkers(2))
	results := c.CompressBatch(context.Background(), paths, Options{Category: CategoryGeneric})

	var stored, collided int
	for i, r := range results {
		switch {
		case !r.Failed:
			stored++
			if r.OutputPath != filepath.Join(dir, "photo.jpg") {
				t.Errorf("result %d: unexpected output %s", i, r.OutputPath)
			}
		case errors.Is(r.Error, ErrOutputExists):
			collided++
			if !fileExists(paths[i]) {
				t.Errorf("result %d: original should remain", i)
			}
		default:
			t.Errorf("result %d: unexpected failure %v", i, r.Error)
		}
	}
	if stored != 1 || collided != 1 {
		t.Errorf("expected one stored and one collision, got %d and %d", stored, collided)
	}
	if names := listDir(t, dir); len(names) != 2 {
		t.Errorf("expected photo.jpg plus the kept original, got %v", names)
	}
}

func TestCompressBatchMissingAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.png")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	paths := []string{filepath.Join(dir, "missing.png"), empty}

	c := NewDefaultCompressor(quietLogger())
	results := c.CompressBatch(context.Background(), paths, Options{})
	for i, r := range results {
		if !r.Failed || r.OriginalSize != 0 || r.SavedPercent != 0 {
			t.Errorf("result %d: unexpected %+v", i, r)
		}
	}

	sum := Summarize(results)
	if sum.SavedPercent != 0 || math.IsNaN(sum.SavedPercent) {
		t.Errorf("expected 0 percent for empty totals, got %v", sum.SavedPercent)
	}
}

func TestCompressBatchCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, noise(100, 100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewDefaultCompressor(quietLogger())
	results := c.CompressBatch(ctx, []string{path}, Options{})
	if !results[0].Failed || !errors.Is(results[0].Error, context.Canceled) {
		t.Errorf("expected cancelled failure, got %+v", results[0])
	}
	if !fileExists(path) {
		t.Error("original should remain after cancellation")
	}
}

func TestCompressBatchEmpty(t *testing.T) {
	c := NewDefaultCompressor(quietLogger())
	if got := c.CompressBatch(context.Background(), nil, Options{}); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestPercentSaved(t *testing.T) {
	cases := []struct {
		orig, comp int64
		want       float64
	}{
		{0, 0, 0},
		{0, 10, 0},
		{1000, 500, 50},
		{3, 2, 33.33},
		{3, 1, 66.67},
		{100, 100, 0},
	}
	for _, c := range cases {
		if got := PercentSaved(c.orig, c.comp); got != c.want {
			t.Errorf("PercentSaved(%d, %d) = %v, expected %v", c.orig, c.comp, got, c.want)
		}
	}
}
