package compressor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Category identifies where an uploaded image will be used.
type Category string

const (
	CategoryAvatar     Category = "avatar"
	CategoryPostImage  Category = "post-image"
	CategoryEventImage Category = "event-image"
	CategoryGeneric    Category = "generic"
)

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{CategoryAvatar, CategoryPostImage, CategoryEventImage, CategoryGeneric}
}

// ParseCategory converts a user supplied name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryAvatar, CategoryPostImage, CategoryEventImage, CategoryGeneric:
		return c, nil
	case "":
		return CategoryGeneric, nil
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

// Bounds is the bounding box an image must fit inside.
type Bounds struct {
	MaxWidth  int
	MaxHeight int
}

var (
	// DefaultBounds applies to post, event and generic images.
	DefaultBounds = Bounds{MaxWidth: 1920, MaxHeight: 1920}
	// AvatarBounds applies to avatars.
	AvatarBounds = Bounds{MaxWidth: 500, MaxHeight: 500}
)

// DefaultBoundsFor returns the default bounds for a category.
func DefaultBoundsFor(c Category) Bounds {
	if c == CategoryAvatar {
		return AvatarBounds
	}
	return DefaultBounds
}

// Options controls a single compression or a batch.
type Options struct {
	Category Category
	Bounds   Bounds
}

// withDefaults fills zero values from the category defaults.
func (o Options) withDefaults() Options {
	if o.Category == "" {
		o.Category = CategoryGeneric
	}
	def := DefaultBoundsFor(o.Category)
	if o.Bounds.MaxWidth <= 0 {
		o.Bounds.MaxWidth = def.MaxWidth
	}
	if o.Bounds.MaxHeight <= 0 {
		o.Bounds.MaxHeight = def.MaxHeight
	}
	return o
}

// Action describes what happened to a file.
type Action string

const (
	ActionCompressed Action = "compressed"
	ActionTranscoded Action = "transcoded"
	ActionKept       Action = "kept"
	ActionFailed     Action = "failed"
)

// CompressionResult describes the result of compressing a single file.
type CompressionResult struct {
	InputPath      string    `json:"input_path"`
	OutputPath     string    `json:"output_path"`
	OriginalSize   int64     `json:"original_size"`
	CompressedSize int64     `json:"compressed_size"`
	Saved          int64     `json:"saved"`
	SavedPercent   float64   `json:"saved_percent"`
	SourceFormat   Format    `json:"source_format,omitempty"`
	OutputFormat   Format    `json:"output_format,omitempty"`
	Width          int       `json:"width,omitempty"`
	Height         int       `json:"height,omitempty"`
	Resized        bool      `json:"resized"`
	Action         Action    `json:"action"`
	Failed         bool      `json:"failed"`
	Error          error     `json:"-"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// PathChanged reports whether the output lives at a different path than the input.
func (r CompressionResult) PathChanged() bool {
	return r.OutputPath != "" && r.OutputPath != r.InputPath
}

// Compressor defines the interface for image compression.
type Compressor interface {
	// Compress processes one file and fails loudly on any error.
	Compress(ctx context.Context, path string, opts Options) (CompressionResult, error)
	// CompressBatch processes all paths and returns one result per path in input order.
	// Per-item failures are reported in the results, never as an error.
	CompressBatch(ctx context.Context, paths []string, opts Options) []CompressionResult
}
