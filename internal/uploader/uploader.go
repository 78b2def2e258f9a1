package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"media-upload-go/internal/compressor"
	"media-upload-go/internal/config"
	"media-upload-go/internal/domain"
	"media-upload-go/internal/logger"
	"media-upload-go/internal/repository"
	"media-upload-go/internal/statistics"
	"media-upload-go/internal/storage"

	"github.com/sirupsen/logrus"
)

// LogHookFunc receives human readable progress lines, e.g. for a WebSocket.
type LogHookFunc func(level, message string)

// Uploader stores incoming images, compresses them and records them in the ledger.
type Uploader struct {
	config     *config.Config
	logger     *logrus.Logger
	stats      *statistics.Statistics
	layout     *storage.Layout
	compressor compressor.Compressor
	repo       repository.MediaRepository

	logHook LogHookFunc
}

// StagedFile is an upload written to its category directory but not yet compressed.
type StagedFile struct {
	OriginalName string
	Path         string
	Size         int64
}

// NewUploader returns a new Uploader.
func NewUploader(
	cfg *config.Config,
	logger *logrus.Logger,
	stats *statistics.Statistics,
	layout *storage.Layout,
	comp compressor.Compressor,
	repo repository.MediaRepository,
) *Uploader {
	return NewUploaderWithLogHook(cfg, logger, stats, layout, comp, repo, nil)
}

// NewUploaderWithLogHook is NewUploader with a hook that mirrors progress lines.
func NewUploaderWithLogHook(
	cfg *config.Config,
	logger *logrus.Logger,
	stats *statistics.Statistics,
	layout *storage.Layout,
	comp compressor.Compressor,
	repo repository.MediaRepository,
	logHook LogHookFunc,
) *Uploader {
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &Uploader{
		config:     cfg,
		logger:     logger,
		stats:      stats,
		layout:     layout,
		compressor: comp,
		repo:       repo,
		logHook:    logHook,
	}
}

// SetLogHook replaces the progress hook.
func (u *Uploader) SetLogHook(hook LogHookFunc) {
	u.logHook = hook
}

// Stats returns the running statistics.
func (u *Uploader) Stats() *statistics.Statistics {
	return u.stats
}

// Stage streams r into a fresh file in the category directory.
func (u *Uploader) Stage(category compressor.Category, originalName string, r io.Reader) (StagedFile, error) {
	path := u.layout.StagePath(category, originalName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return StagedFile{}, fmt.Errorf("create staged file: %w", err)
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return StagedFile{}, fmt.Errorf("write staged file: %w", err)
	}

	u.stats.IncrementFilesReceived()
	u.stats.IncrementCategory(string(category))
	logger.WithFileOperation(u.logger, path, "stage").Debugf("Staged %s (%d bytes)", originalName, n)

	return StagedFile{OriginalName: filepath.Base(originalName), Path: path, Size: n}, nil
}

// Discard removes staged files that will not be processed.
func (u *Uploader) Discard(staged []StagedFile) {
	for _, s := range staged {
		if err := u.layout.Remove(s.Path); err != nil {
			logger.WithFileOperation(u.logger, s.Path, "discard").Warnf("Failed to remove staged file: %v", err)
		}
	}
}

// Process compresses staged files and records one ledger entry per file.
// Compression is best-effort: a file that cannot be compressed is kept as
// uploaded and still recorded. Only ledger failures produce an error; the
// stored file of an unrecorded upload is removed and the returned media
// holds the entries that were recorded.
func (u *Uploader) Process(ctx context.Context, category compressor.Category, owner string, staged []StagedFile) ([]*domain.Media, compressor.Summary, error) {
	paths := make([]string, len(staged))
	for i, s := range staged {
		paths[i] = s.Path
	}

	results := u.compressor.CompressBatch(ctx, paths, u.config.CompressionOptions(category))
	summary := compressor.Summarize(results)

	media := make([]*domain.Media, 0, len(results))
	var errs []error
	for i, res := range results {
		u.stats.RecordResult(res)
		u.emit(staged[i], res)

		m, err := u.toMedia(category, owner, staged[i], res)
		if err != nil {
			u.removeUnrecorded(storedPath(staged[i], res))
			errs = append(errs, fmt.Errorf("record %s: %w", staged[i].OriginalName, err))
			continue
		}
		// detached so a cancelled request still leaves a consistent ledger
		if _, err := u.repo.Create(context.WithoutCancel(ctx), m); err != nil {
			u.stats.AddError(m.StoredPath, "ledger", err.Error())
			u.removeUnrecorded(m.StoredPath)
			errs = append(errs, fmt.Errorf("record %s: %w", staged[i].OriginalName, err))
			continue
		}
		media = append(media, m)
	}

	logger.WithCategory(u.logger, string(category), "process").WithFields(logrus.Fields{
		"files":         summary.Files,
		"failed":        summary.Failed,
		"saved_bytes":   summary.Saved,
		"saved_percent": summary.SavedPercent,
	}).Info("Upload batch processed")

	return media, summary, errors.Join(errs...)
}

// Delete removes the stored file and its ledger entry.
func (u *Uploader) Delete(ctx context.Context, id int64) error {
	m, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := u.layout.Remove(m.StoredPath); err != nil {
		return fmt.Errorf("remove stored file: %w", err)
	}
	if err := u.repo.Delete(ctx, id); err != nil {
		return err
	}
	u.stats.IncrementFilesDeleted()
	logger.WithFileOperation(u.logger, m.StoredPath, "delete").Info("Upload deleted")
	return nil
}

// removeUnrecorded deletes a stored file that has no ledger entry.
func (u *Uploader) removeUnrecorded(path string) {
	if err := u.layout.Remove(path); err != nil {
		logger.WithFileOperation(u.logger, path, "cleanup").Warnf("Failed to remove unrecorded upload: %v", err)
	}
}

func storedPath(s StagedFile, res compressor.CompressionResult) string {
	if res.OutputPath != "" {
		return res.OutputPath
	}
	return s.Path
}

func (u *Uploader) toMedia(category compressor.Category, owner string, s StagedFile, res compressor.CompressionResult) (*domain.Media, error) {
	stored := storedPath(s, res)
	url, err := u.layout.URL(stored)
	if err != nil {
		return nil, err
	}

	format := res.OutputFormat
	if format == "" {
		format = res.SourceFormat
	}

	m := &domain.Media{
		Category:       string(category),
		OwnerRef:       owner,
		OriginalName:   s.OriginalName,
		StoredPath:     stored,
		URL:            url,
		OriginalSize:   res.OriginalSize,
		CompressedSize: res.CompressedSize,
		Format:         string(format),
		Width:          res.Width,
		Height:         res.Height,
		Failed:         res.Failed,
	}
	if res.Error != nil {
		m.ErrorMessage = res.Error.Error()
	}
	return m, nil
}

func (u *Uploader) emit(s StagedFile, res compressor.CompressionResult) {
	if u.logHook == nil {
		return
	}
	if res.Failed {
		u.logHook("warn", fmt.Sprintf("%s: kept as uploaded (%v)", s.OriginalName, res.Error))
		return
	}
	u.logHook("info", fmt.Sprintf("%s: %s, %s -> %s (%.2f%%)",
		s.OriginalName,
		res.Action,
		statistics.FormatBytes(res.OriginalSize),
		statistics.FormatBytes(res.CompressedSize),
		res.SavedPercent))
}
