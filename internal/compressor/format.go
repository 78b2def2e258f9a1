package compressor

import (
	"path/filepath"
	"strings"
)

// TargetFormat picks the output codec for a source image. Rules are applied
// in priority order.
func TargetFormat(c Category, source Format) Format {
	switch {
	case c == CategoryAvatar:
		return FormatJPEG
	case source == FormatJPEG || source == FormatPNG:
		return FormatJPEG
	case c == CategoryPostImage && source != FormatWebP:
		return FormatJPEG
	case source == FormatWebP:
		return FormatWebP
	default:
		return FormatJPEG
	}
}

// OutputPath returns the sibling path the encoded file is written to.
// JPEG output always ends in .jpg; WebP output keeps the original path.
func OutputPath(path string, f Format) string {
	if f != FormatJPEG {
		return path
	}
	ext := filepath.Ext(path)
	if ext == ".jpg" {
		return path
	}
	return strings.TrimSuffix(path, ext) + ".jpg"
}
