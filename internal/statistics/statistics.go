package statistics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-upload-go/internal/compressor"
)

// Statistics contains running totals for the upload pipeline.
type Statistics struct {
	FilesReceived   int64
	FilesCompressed int64
	FilesTranscoded int64
	FilesKept       int64
	FilesResized    int64
	FilesFailed     int64
	FilesDeleted    int64

	BytesOriginal   int64
	BytesCompressed int64

	StartTime time.Time

	mutex         sync.RWMutex
	Errors        []StatError
	CategoryStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string    `json:"file_path"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time copy suitable for JSON responses.
type Snapshot struct {
	FilesReceived   int64            `json:"files_received"`
	FilesCompressed int64            `json:"files_compressed"`
	FilesTranscoded int64            `json:"files_transcoded"`
	FilesKept       int64            `json:"files_kept"`
	FilesResized    int64            `json:"files_resized"`
	FilesFailed     int64            `json:"files_failed"`
	FilesDeleted    int64            `json:"files_deleted"`
	BytesOriginal   int64            `json:"bytes_original"`
	BytesCompressed int64            `json:"bytes_compressed"`
	BytesSaved      int64            `json:"bytes_saved"`
	SavedPercent    float64          `json:"saved_percent"`
	Uptime          string           `json:"uptime"`
	Categories      map[string]int64 `json:"categories"`
	Errors          int              `json:"errors"`
}

const maxErrors = 100

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		CategoryStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// IncrementFilesReceived increases the count of received files by 1.
func (s *Statistics) IncrementFilesReceived() {
	atomic.AddInt64(&s.FilesReceived, 1)
}

// IncrementFilesDeleted increases the count of deleted files by 1.
func (s *Statistics) IncrementFilesDeleted() {
	atomic.AddInt64(&s.FilesDeleted, 1)
}

// IncrementCategory increases the count for a category by 1.
func (s *Statistics) IncrementCategory(category string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.CategoryStats[category]++
}

// RecordResult folds one compression result into the totals.
func (s *Statistics) RecordResult(r compressor.CompressionResult) {
	atomic.AddInt64(&s.BytesOriginal, r.OriginalSize)
	atomic.AddInt64(&s.BytesCompressed, r.CompressedSize)
	if r.Resized {
		atomic.AddInt64(&s.FilesResized, 1)
	}

	switch r.Action {
	case compressor.ActionCompressed:
		atomic.AddInt64(&s.FilesCompressed, 1)
	case compressor.ActionTranscoded:
		atomic.AddInt64(&s.FilesCompressed, 1)
		atomic.AddInt64(&s.FilesTranscoded, 1)
	case compressor.ActionKept:
		atomic.AddInt64(&s.FilesKept, 1)
	case compressor.ActionFailed:
		atomic.AddInt64(&s.FilesFailed, 1)
		msg := "unknown error"
		if r.Error != nil {
			msg = r.Error.Error()
		}
		s.AddError(r.InputPath, "compress", msg)
	}
}

// AddError records an error that occurred during processing. Only the most
// recent errors are retained.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
	if len(s.Errors) > maxErrors {
		s.Errors = s.Errors[len(s.Errors)-maxErrors:]
	}
}

// Snapshot returns a consistent copy of the counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mutex.RLock()
	categories := make(map[string]int64, len(s.CategoryStats))
	for k, v := range s.CategoryStats {
		categories[k] = v
	}
	errCount := len(s.Errors)
	s.mutex.RUnlock()

	orig := atomic.LoadInt64(&s.BytesOriginal)
	comp := atomic.LoadInt64(&s.BytesCompressed)
	return Snapshot{
		FilesReceived:   atomic.LoadInt64(&s.FilesReceived),
		FilesCompressed: atomic.LoadInt64(&s.FilesCompressed),
		FilesTranscoded: atomic.LoadInt64(&s.FilesTranscoded),
		FilesKept:       atomic.LoadInt64(&s.FilesKept),
		FilesResized:    atomic.LoadInt64(&s.FilesResized),
		FilesFailed:     atomic.LoadInt64(&s.FilesFailed),
		FilesDeleted:    atomic.LoadInt64(&s.FilesDeleted),
		BytesOriginal:   orig,
		BytesCompressed: comp,
		BytesSaved:      orig - comp,
		SavedPercent:    compressor.PercentSaved(orig, comp),
		Uptime:          time.Since(s.StartTime).Truncate(time.Second).String(),
		Categories:      categories,
		Errors:          errCount,
	}
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	snap := s.Snapshot()
	return fmt.Sprintf(`Upload Statistics Summary:

Files:
		Received: %d
		Compressed: %d
		Transcoded: %d
		Kept Original: %d
		Resized: %d
		Failed: %d
		Deleted: %d

Bytes:
		Original: %s
		Compressed: %s
		Saved: %s (%.2f%%)

Uptime: %s`,
		snap.FilesReceived,
		snap.FilesCompressed,
		snap.FilesTranscoded,
		snap.FilesKept,
		snap.FilesResized,
		snap.FilesFailed,
		snap.FilesDeleted,
		FormatBytes(snap.BytesOriginal),
		FormatBytes(snap.BytesCompressed),
		FormatBytes(snap.BytesSaved),
		snap.SavedPercent,
		snap.Uptime)
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return b.String()
}

// FormatBytes returns a human-readable string for a byte count.
func FormatBytes(bytes int64) string {
	sign := ""
	if bytes < 0 {
		sign = "-"
		bytes = -bytes
	}
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%s%d B", sign, bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%s%.1f %cB", sign, float64(bytes)/float64(div), "KMGTPE"[exp])
}
