// Package inspect reports what the compressor sees in an image and what it
// would do with it.
package inspect

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"

	"media-upload-go/internal/compressor"
)

// ErrExiftoolUnavailable is returned alongside a report when the exiftool
// binary cannot be found. The report is still valid without metadata.
var ErrExiftoolUnavailable = errors.New("exiftool not available")

// Date sources.
const (
	DateSourceEXIFDateTime          = "EXIF DateTime"
	DateSourceEXIFDateTimeOriginal  = "EXIF DateTimeOriginal"
	DateSourceEXIFDateTimeDigitized = "EXIF DateTimeDigitized"
	DateSourceFileModTime           = "File Modification Time"
)

// Plan is what compressing the file would produce.
type Plan struct {
	Category     compressor.Category `json:"category"`
	OutputFormat compressor.Format   `json:"output_format"`
	OutputPath   string              `json:"output_path"`
	Width        int                 `json:"width"`
	Height       int                 `json:"height"`
	Resize       bool                `json:"resize"`
}

// Report describes one image.
type Report struct {
	Info       compressor.ImageInfo   `json:"info"`
	CapturedAt time.Time              `json:"captured_at"`
	DateSource string                 `json:"date_source"`
	Plan       Plan                   `json:"plan"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Inspector builds reports.
type Inspector struct {
	logger   *logrus.Logger
	lookPath func(string) (string, error)
}

// NewInspector returns a new Inspector.
func NewInspector(logger *logrus.Logger) *Inspector {
	return &Inspector{logger: logger, lookPath: exec.LookPath}
}

// Inspect probes path and plans its compression for opts. A nil error or
// ErrExiftoolUnavailable both come with a usable report.
func (i *Inspector) Inspect(path string, opts compressor.Options) (*Report, error) {
	info, err := compressor.Probe(path)
	if err != nil {
		return nil, err
	}

	r := &Report{Info: info, Plan: plan(info, opts)}
	r.CapturedAt, r.DateSource = i.captureDate(path)

	meta, err := i.metadata(path)
	if err != nil {
		return r, err
	}
	r.Metadata = meta
	return r, nil
}

func plan(info compressor.ImageInfo, opts compressor.Options) Plan {
	if opts.Category == "" {
		opts.Category = compressor.CategoryGeneric
	}
	if opts.Bounds.MaxWidth <= 0 || opts.Bounds.MaxHeight <= 0 {
		opts.Bounds = compressor.DefaultBoundsFor(opts.Category)
	}

	target := compressor.TargetFormat(opts.Category, info.Format)
	p := Plan{
		Category:     opts.Category,
		OutputFormat: target,
		OutputPath:   compressor.OutputPath(info.Path, target),
		Width:        info.Width,
		Height:       info.Height,
	}
	if d := compressor.Fit(info.Width, info.Height, opts.Bounds); !d.NoOp() {
		p.Width, p.Height, p.Resize = d.Width, d.Height, true
	}
	return p
}

// captureDate prefers EXIF dates and falls back to the modification time.
func (i *Inspector) captureDate(path string) (time.Time, string) {
	t, src, err := exifDate(path)
	if err == nil {
		return t, src
	}
	i.logger.WithField("file", path).Debugf("No EXIF date: %v", err)
	if st, err := os.Stat(path); err == nil {
		return st.ModTime(), DateSourceFileModTime
	}
	return time.Time{}, ""
}

func exifDate(path string) (time.Time, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("failed to decode EXIF: %w", err)
	}

	if tm, err := x.DateTime(); err == nil {
		return tm, DateSourceEXIFDateTime, nil
	}
	for _, tag := range []struct {
		name   exif.FieldName
		source string
	}{
		{exif.DateTimeOriginal, DateSourceEXIFDateTimeOriginal},
		{exif.DateTimeDigitized, DateSourceEXIFDateTimeDigitized},
	} {
		field, err := x.Get(tag.name)
		if err != nil {
			continue
		}
		if s, err := field.StringVal(); err == nil {
			if t, ok := parseEXIFDateTime(s); ok {
				return t, tag.source, nil
			}
		}
	}
	return time.Time{}, "", errors.New("no valid date found in EXIF")
}

func parseEXIFDateTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	formats := []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02",
		"2006-01-02",
		time.RFC3339,
		time.RFC3339Nano,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (i *Inspector) metadata(path string) (map[string]interface{}, error) {
	if _, err := i.lookPath("exiftool"); err != nil {
		return nil, ErrExiftoolUnavailable
	}

	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExiftoolUnavailable, err)
	}
	defer et.Close()

	files := et.ExtractMetadata(path)
	if len(files) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if files[0].Err != nil {
		return nil, fmt.Errorf("exiftool: %w", files[0].Err)
	}
	return files[0].Fields, nil
}
