package compressor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// DefaultCompressor is the default implementation of the Compressor interface.
type DefaultCompressor struct {
	encoder Encoder
	workers int
	logger  *logrus.Logger
}

// Option customises a DefaultCompressor.
type Option func(*DefaultCompressor)

// WithEncoder replaces the image encoder.
func WithEncoder(e Encoder) Option {
	return func(c *DefaultCompressor) {
		if e != nil {
			c.encoder = e
		}
	}
}

// WithWorkers bounds the number of images compressed at the same time.
func WithWorkers(n int) Option {
	return func(c *DefaultCompressor) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewDefaultCompressor creates a new DefaultCompressor instance.
func NewDefaultCompressor(logger *logrus.Logger, opts ...Option) *DefaultCompressor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &DefaultCompressor{
		encoder: NewDefaultEncoder(DefaultJPEGQuality, DefaultWebPQuality),
		workers: max(runtime.NumCPU(), 2),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Compressor = (*DefaultCompressor)(nil)

// Compress probes, resizes and re-encodes a single image. On error the
// original file is left untouched and no partial output remains.
func (c *DefaultCompressor) Compress(ctx context.Context, path string, opts Options) (CompressionResult, error) {
	opts = opts.withDefaults()
	res := CompressionResult{
		InputPath: path,
		Action:    ActionFailed,
		StartedAt: time.Now(),
	}
	log := c.logger.WithFields(logrus.Fields{"file": path, "operation": "compress", "category": opts.Category})

	if err := ctx.Err(); err != nil {
		return res, failure("start", path, err)
	}

	info, err := Probe(path)
	if err != nil {
		if errors.Is(err, ErrUnreadableImage) {
			return res, err
		}
		return res, failure("probe", path, err)
	}
	res.OriginalSize = info.Size
	res.SourceFormat = info.Format

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return res, failure("decode", path, err)
	}

	directive := Fit(info.Width, info.Height, opts.Bounds)
	if !directive.NoOp() {
		img = imaging.Resize(img, directive.Width, directive.Height, imaging.Lanczos)
		res.Resized = true
	}

	target := TargetFormat(opts.Category, info.Format)
	if target == FormatJPEG && info.Format.HasAlpha() {
		img = flatten(img)
	}
	outPath := OutputPath(path, target)

	if err := ctx.Err(); err != nil {
		return res, failure("encode", path, err)
	}

	tmpPath, size, err := c.encodeToTemp(img, target, outPath)
	if err != nil {
		return res, failure("encode", path, err)
	}

	res.OutputFormat = target
	res.Width = img.Bounds().Dx()
	res.Height = img.Bounds().Dy()

	if outPath == path && !res.Resized && target == info.Format && size >= info.Size {
		_ = os.Remove(tmpPath)
		res.OutputPath = path
		res.CompressedSize = info.Size
		res.Action = ActionKept
		c.finish(&res)
		log.Debug("Re-encoded image not smaller than original, kept original")
		return res, nil
	}

	if err := placeOutput(tmpPath, outPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return res, failure("rename", path, err)
	}
	if outPath != path && !sameFile(path, outPath) {
		if err := os.Remove(path); err != nil {
			_ = os.Remove(outPath)
			return res, failure("remove original", path, err)
		}
	}

	res.OutputPath = outPath
	res.CompressedSize = size
	res.Action = ActionCompressed
	if target != info.Format || outPath != path {
		res.Action = ActionTranscoded
	}
	c.finish(&res)

	log.WithFields(logrus.Fields{
		"output":          outPath,
		"format":          target,
		"original_size":   res.OriginalSize,
		"compressed_size": res.CompressedSize,
		"saved_percent":   res.SavedPercent,
	}).Debug("Image compressed")
	return res, nil
}

// encodeToTemp writes the encoded image to a temp file next to outPath and
// returns its path and size.
func (c *DefaultCompressor) encodeToTemp(img image.Image, format Format, outPath string) (string, int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".compress-*"+format.Extension())
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := c.encoder.Encode(tmp, img, format); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("chmod temp file: %w", err)
	}

	stat, err := os.Stat(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("stat temp file: %w", err)
	}
	return tmpPath, stat.Size(), nil
}

func (c *DefaultCompressor) finish(res *CompressionResult) {
	res.Saved = res.OriginalSize - res.CompressedSize
	res.SavedPercent = PercentSaved(res.OriginalSize, res.CompressedSize)
	res.FinishedAt = time.Now()
}

// CompressBatch compresses all paths concurrently. Results keep input order;
// a failed item is reported unchanged with Failed set.
func (c *DefaultCompressor) CompressBatch(ctx context.Context, paths []string, opts Options) []CompressionResult {
	resArr := make([]CompressionResult, len(paths))
	if len(paths) == 0 {
		return resArr
	}

	type job struct {
		index int
		path  string
	}
	type result struct {
		index int
		res   CompressionResult
	}

	jobs := make(chan job, len(paths))
	results := make(chan result, len(paths))

	numWorkers := min(c.workers, len(paths))
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- result{index: j.index, res: c.compressOrPassThrough(ctx, j.path, opts)}
			}
		}()
	}

	for i, path := range paths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)

	wg.Wait()
	close(results)

	for r := range results {
		resArr[r.index] = r.res
	}
	return resArr
}

func (c *DefaultCompressor) compressOrPassThrough(ctx context.Context, path string, opts Options) (res CompressionResult) {
	defer func() {
		if p := recover(); p != nil {
			res = c.passThrough(path, failure("panic", path, fmt.Errorf("%v", p)))
		}
	}()

	if err := ctx.Err(); err != nil {
		return c.passThrough(path, err)
	}
	r, err := c.Compress(ctx, path, opts)
	if err != nil {
		return c.passThrough(path, err)
	}
	return r
}

// passThrough reports a failed item at its original size with nothing saved.
func (c *DefaultCompressor) passThrough(path string, err error) CompressionResult {
	now := time.Now()
	res := CompressionResult{
		InputPath:  path,
		OutputPath: path,
		Action:     ActionFailed,
		Failed:     true,
		Error:      err,
		StartedAt:  now,
		FinishedAt: now,
	}
	if stat, statErr := os.Stat(path); statErr == nil {
		res.OriginalSize = stat.Size()
		res.CompressedSize = stat.Size()
	}
	c.logger.WithFields(logrus.Fields{"file": path, "operation": "compress"}).
		Warnf("Compression failed, keeping original: %v", err)
	return res
}

// flatten draws img onto an opaque white background.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// placeOutput moves the encoded temp file to outPath. A different file
// already at outPath is never replaced.
func placeOutput(tmpPath, outPath, src string) error {
	if outPath == src || sameFile(src, outPath) {
		return os.Rename(tmpPath, outPath)
	}
	// Link refuses an existing target, so two sources sharing an output
	// path in one batch cannot clobber each other.
	err := os.Link(tmpPath, outPath)
	if err == nil {
		_ = os.Remove(tmpPath)
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrOutputExists, outPath)
	}
	// no hard links on this filesystem
	if _, statErr := os.Lstat(outPath); statErr == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, outPath)
	}
	return os.Rename(tmpPath, outPath)
}

func sameFile(a, b string) bool {
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(sa, sb)
}
