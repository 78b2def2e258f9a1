package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"media-upload-go/internal/compressor"
	"media-upload-go/internal/inspect"
)

func TestRenderResults(t *testing.T) {
	out := renderResults([]compressor.CompressionResult{
		{
			InputPath: "/in/a.png", OutputPath: "/in/a.jpg",
			OriginalSize: 4096, CompressedSize: 1024, SavedPercent: 75,
			Resized: true, Width: 1920, Height: 1280, Action: compressor.ActionTranscoded,
		},
		{
			InputPath: "/in/b.png", OutputPath: "/in/b.png",
			OriginalSize: 10, CompressedSize: 10, Failed: true, Error: errors.New("corrupt"),
		},
	})

	for _, want := range []string{"a.png -> a.jpg", "1920x1280", "transcoded", "75.00%", "b.png", "corrupt", "2 (1 failed)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReport(t *testing.T) {
	out := renderReport(&inspect.Report{
		Info:       compressor.ImageInfo{Path: "/in/pic.webp", Format: compressor.FormatWebP, Width: 400, Height: 400, Size: 2048},
		CapturedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		DateSource: inspect.DateSourceFileModTime,
		Plan: inspect.Plan{
			Category: compressor.CategoryAvatar, OutputFormat: compressor.FormatJPEG,
			OutputPath: "/in/pic.jpg", Width: 400, Height: 400,
		},
		Metadata: map[string]interface{}{"ImageWidth": 400},
	})

	for _, want := range []string{"pic.webp", "400x400", "2024-01-02 03:04:05", "As avatar", "jpeg -> pic.jpg", "keep dimensions", "ImageWidth"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
