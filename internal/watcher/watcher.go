package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"media-upload-go/internal/compressor"
	"media-upload-go/internal/config"
	"media-upload-go/internal/logger"
	"media-upload-go/internal/statistics"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// BatchFunc is called after every compressed batch.
type BatchFunc func(results []compressor.CompressionResult)

// Watcher compresses images dropped into an inbox directory.
type Watcher struct {
	dir        string
	opts       compressor.Options
	debounce   time.Duration
	compressor compressor.Compressor
	logger     *logrus.Logger
	stats      *statistics.Statistics
	onBatch    BatchFunc

	// outputs written by this watcher, ignored until the deadline
	produced map[string]time.Time
}

// NewWatcher builds a watcher from the watch section of cfg.
func NewWatcher(cfg *config.Config, comp compressor.Compressor, logger *logrus.Logger, stats *statistics.Statistics) (*Watcher, error) {
	category, err := compressor.ParseCategory(cfg.Watch.Category)
	if err != nil {
		return nil, err
	}
	debounce := cfg.Watch.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &Watcher{
		dir:        cfg.Watch.InboxDir,
		opts:       cfg.CompressionOptions(category),
		debounce:   debounce,
		compressor: comp,
		logger:     logger,
		stats:      stats,
		produced:   make(map[string]time.Time),
	}, nil
}

// OnBatch registers a callback for finished batches.
func (w *Watcher) OnBatch(fn BatchFunc) {
	w.onBatch = fn
}

// Run processes images already in the inbox, then watches it until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", w.dir, err)
	}
	w.logger.WithField("dir", w.dir).Info("Watching inbox")

	if existing, err := w.scanExisting(); err != nil {
		w.logger.Warnf("Failed to scan inbox: %v", err)
	} else if len(existing) > 0 {
		w.process(ctx, existing)
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.isCandidate(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			w.process(ctx, paths)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Errorf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) scanExisting() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		p := filepath.Join(w.dir, e.Name())
		if !e.IsDir() && w.isCandidate(p) {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// pruneProduced forgets outputs whose suppression window has passed.
func (w *Watcher) pruneProduced(now time.Time) {
	for path, until := range w.produced {
		if !now.Before(until) {
			delete(w.produced, path)
		}
	}
}

// isCandidate filters out hidden and temp files, non-images and our own outputs.
func (w *Watcher) isCandidate(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	if until, ok := w.produced[path]; ok {
		if time.Now().Before(until) {
			return false
		}
		delete(w.produced, path)
	}
	return true
}

func (w *Watcher) process(ctx context.Context, paths []string) {
	w.pruneProduced(time.Now())

	// files may vanish between the event and the batch
	existing := paths[:0]
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return
	}

	results := w.compressor.CompressBatch(ctx, existing, w.opts)
	ignoreUntil := time.Now().Add(2*w.debounce + time.Second)
	for _, r := range results {
		w.stats.IncrementFilesReceived()
		w.stats.IncrementCategory(string(w.opts.Category))
		w.stats.RecordResult(r)
		if !r.Failed {
			w.produced[r.OutputPath] = ignoreUntil
		}
	}

	summary := compressor.Summarize(results)
	logger.WithCategory(w.logger, string(w.opts.Category), "watch").WithFields(logrus.Fields{
		"files":         summary.Files,
		"failed":        summary.Failed,
		"saved_bytes":   summary.Saved,
		"saved_percent": summary.SavedPercent,
	}).Info("Inbox batch compressed")

	if w.onBatch != nil {
		w.onBatch(results)
	}
}
