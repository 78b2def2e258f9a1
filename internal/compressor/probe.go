package compressor

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

// Format is an encoded image format as reported by the decoder registry.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatGIF     Format = "gif"
	FormatUnknown Format = ""
)

// Extension returns the file extension written for an output format.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatWebP:
		return ".webp"
	case FormatPNG:
		return ".png"
	case FormatGIF:
		return ".gif"
	default:
		return ""
	}
}

// HasAlpha reports whether the format can carry transparency.
func (f Format) HasAlpha() bool {
	return f == FormatPNG || f == FormatWebP || f == FormatGIF
}

// ImageInfo is the metadata of a staged source image.
type ImageInfo struct {
	Path        string `json:"path"`
	Format      Format `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int64  `json:"size"`
	Orientation int    `json:"orientation,omitempty"`
}

// Rotated reports whether the EXIF orientation swaps width and height on display.
func (i ImageInfo) Rotated() bool {
	return i.Orientation >= 5 && i.Orientation <= 8
}

// Probe reads an image header and returns its format and displayed dimensions
// without decoding pixel data.
func Probe(path string) (ImageInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, name, err := image.DecodeConfig(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("probe %s: %w: %w", path, ErrUnreadableImage, err)
	}

	info := ImageInfo{
		Path:        path,
		Format:      Format(name),
		Width:       cfg.Width,
		Height:      cfg.Height,
		Size:        stat.Size(),
		Orientation: 1,
	}

	if info.Format == FormatJPEG {
		if o := readOrientation(f); o > 0 {
			info.Orientation = o
		}
	}
	if info.Rotated() {
		info.Width, info.Height = info.Height, info.Width
	}
	return info, nil
}

// readOrientation returns the EXIF orientation tag or 0 when absent.
func readOrientation(f *os.File) int {
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}
	x, err := exif.Decode(f)
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 0
	}
	return o
}
