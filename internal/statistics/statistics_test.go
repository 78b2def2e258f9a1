package statistics

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"media-upload-go/internal/compressor"
)

func TestRecordResult(t *testing.T) {
	s := NewStatistics()
	s.RecordResult(compressor.CompressionResult{
		OriginalSize: 1000, CompressedSize: 400, Resized: true, Action: compressor.ActionTranscoded,
	})
	s.RecordResult(compressor.CompressionResult{
		OriginalSize: 500, CompressedSize: 500, Action: compressor.ActionKept,
	})
	s.RecordResult(compressor.CompressionResult{
		InputPath: "/up/bad.png", OriginalSize: 100, CompressedSize: 100,
		Action: compressor.ActionFailed, Failed: true, Error: errors.New("corrupt"),
	})

	snap := s.Snapshot()
	if snap.FilesCompressed != 1 || snap.FilesTranscoded != 1 || snap.FilesKept != 1 || snap.FilesFailed != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.FilesResized != 1 {
		t.Errorf("expected 1 resized, got %d", snap.FilesResized)
	}
	if snap.BytesOriginal != 1600 || snap.BytesCompressed != 1000 || snap.BytesSaved != 600 {
		t.Errorf("unexpected bytes: %+v", snap)
	}
	if snap.SavedPercent != 37.5 {
		t.Errorf("expected 37.5%%, got %v", snap.SavedPercent)
	}
	if snap.Errors != 1 {
		t.Errorf("expected 1 error, got %d", snap.Errors)
	}
	if !strings.Contains(s.GetErrorSummary(), "/up/bad.png") {
		t.Errorf("error summary missing path: %s", s.GetErrorSummary())
	}
}

func TestSnapshotEmpty(t *testing.T) {
	snap := NewStatistics().Snapshot()
	if snap.SavedPercent != 0 || snap.BytesSaved != 0 {
		t.Errorf("expected zero snapshot, got %+v", snap)
	}
	if NewStatistics().GetErrorSummary() != "No errors occurred during processing" {
		t.Error("unexpected empty error summary")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementFilesReceived()
			s.IncrementCategory("avatar")
			s.RecordResult(compressor.CompressionResult{OriginalSize: 10, CompressedSize: 5, Action: compressor.ActionCompressed})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.FilesReceived != 50 || snap.Categories["avatar"] != 50 || snap.BytesSaved != 250 {
		t.Errorf("unexpected snapshot after concurrent updates: %+v", snap)
	}
}

func TestErrorsAreCapped(t *testing.T) {
	s := NewStatistics()
	for i := 0; i < maxErrors+20; i++ {
		s.AddError("f", "op", "boom")
	}
	if got := s.Snapshot().Errors; got != maxErrors {
		t.Errorf("expected %d retained errors, got %d", maxErrors, got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:       "0 B",
		512:     "512 B",
		1024:    "1.0 KB",
		1536:    "1.5 KB",
		2 << 20: "2.0 MB",
		-2048:   "-2.0 KB",
		5 << 30: "5.0 GB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, expected %q", in, got, want)
		}
	}
}

func TestGetSummary(t *testing.T) {
	s := NewStatistics()
	s.IncrementFilesReceived()
	sum := s.GetSummary()
	if !strings.Contains(sum, "Received: 1") {
		t.Errorf("summary missing received count:\n%s", sum)
	}
}
