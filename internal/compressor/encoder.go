package compressor

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

const (
	DefaultJPEGQuality = 80
	DefaultWebPQuality = 80
)

// Encoder writes img to w in the requested format.
type Encoder interface {
	Encode(w io.Writer, img image.Image, format Format) error
}

// DefaultEncoder encodes JPEG with imaging and WebP with libwebp.
type DefaultEncoder struct {
	JPEGQuality int
	WebPQuality int
}

// NewDefaultEncoder creates an encoder with the given qualities; values
// outside 1..100 fall back to the defaults.
func NewDefaultEncoder(jpegQuality, webpQuality int) *DefaultEncoder {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	if webpQuality < 1 || webpQuality > 100 {
		webpQuality = DefaultWebPQuality
	}
	return &DefaultEncoder{JPEGQuality: jpegQuality, WebPQuality: webpQuality}
}

// Encode implements Encoder.
func (e *DefaultEncoder) Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.JPEGQuality))
	case FormatWebP:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(e.WebPQuality))
		if err != nil {
			return fmt.Errorf("webp options: %w", err)
		}
		return webp.Encode(w, img, opts)
	default:
		return fmt.Errorf("unsupported output format: %q", format)
	}
}
